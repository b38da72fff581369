package agent

import "context"

// Principal is the caller identity attached to a request after bearer
// validation: the owning user (absent for client-only tokens), the OAuth
// client, the user's effective group ids and the token's scopes.
type Principal struct {
	UserID   string
	ClientID string
	GroupIDs []string
	Scopes   []string
}

// HasScope reports whether the principal's token carries the given scope.
func (p Principal) HasScope(scope string) bool {
	for _, s := range p.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

type principalContextKey struct{}

// ContextWithPrincipal attaches the authenticated principal to the context.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, &p)
}

// PrincipalFromContext extracts the authenticated principal from the context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	v, ok := ctx.Value(principalContextKey{}).(*Principal)
	if !ok || v == nil {
		return Principal{}, false
	}
	return *v, true
}
