package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                            "/",
		"/metrics":                    "/metrics",
		"/v1/users/abc":               "/v1/users/:id",
		"/v1/groups/abc/members":      "/v1/groups/:id/members",
		"/v1/clients/abc":             "/v1/clients/:id",
		"/v1/groups/abc/extra/deep":   "/v1/groups/abc/extra/deep",
		"/oauth/token":                "/oauth/token",
		"/v1/users/abc?fields=email":  "/v1/users/:id",
		"/v1/permissions/resolve":     "/v1/permissions/resolve",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
