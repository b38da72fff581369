package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"codexbase.org/internal/agent"
	"codexbase.org/internal/oauth"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// Endpoints that authenticate by other means (client credentials, signup) or
// carry no identity at all.
var publicPaths = []string{
	"/oauth/token",
	"/oauth/revoke",
	"/oauth/tokeninfo",
	"/v1/users",
	"/metrics",
	"/healthz",
	"/readyz",
	"/v1/info",
	"/",
}

// withAuth validates the bearer token, resolves the caller's effective groups
// and attaches the principal to the request context.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}

		info, err := a.auth.ValidateBearer(r.Context(), token)
		if err != nil {
			if errors.Is(err, oauth.ErrInvalidToken) {
				writeOAuthError(w, err)
				return
			}
			writeError(w, http.StatusInternalServerError, "authentication error")
			return
		}

		p := agent.Principal{
			UserID:   info.UserID,
			ClientID: info.ClientID,
			GroupIDs: info.GroupIDs,
			Scopes:   info.Scopes,
		}
		next.ServeHTTP(w, r.WithContext(agent.ContextWithPrincipal(r.Context(), p)))
	})
}

// principal returns the authenticated caller, failing the request when the
// endpoint needs a resource owner and the token is client-only.
func (a *API) principal(ctx context.Context) (agent.Principal, bool) {
	return agent.PrincipalFromContext(ctx)
}

func requireUser(w http.ResponseWriter, p agent.Principal, ok bool) bool {
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return false
	}
	if p.UserID == "" {
		writeError(w, http.StatusForbidden, "a resource owner token is required")
		return false
	}
	return true
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
