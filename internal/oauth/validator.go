package oauth

import (
	"context"
	"errors"
)

// TokenInfo is the introspection view of an active token. GroupIDs carries
// the owner's effective groups so sibling services can authorize without a
// second round trip.
type TokenInfo struct {
	AccessToken string   `json:"access_token"`
	ClientID    string   `json:"client_id"`
	UserID      string   `json:"user_id,omitempty"`
	GroupIDs    []string `json:"group_ids,omitempty"`
	Scopes      []string `json:"scopes"`
	ExpiresIn   int64    `json:"expires_in"`
}

// ValidateBearer resolves a presented bearer token to its identity.
// Revocation wins over everything; expiry is checked against the engine
// clock. Inactive tokens yield ErrInvalidToken regardless of cause.
func (s *Server) ValidateBearer(ctx context.Context, accessToken string) (*TokenInfo, error) {
	if accessToken == "" {
		return nil, ErrInvalidToken.WithDescription("missing bearer token")
	}
	t, err := s.store.Tokens(ctx).FindByAccess(ctx, accessToken)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidToken.WithDescription("unknown token")
	}
	if err != nil {
		return nil, err
	}
	if t.Revoked {
		return nil, ErrInvalidToken.WithDescription("token has been revoked")
	}
	if t.AccessExpired(s.now()) {
		return nil, ErrInvalidToken.WithDescription("token has expired")
	}
	remaining := t.expiresAt().Sub(s.now())
	info := &TokenInfo{
		AccessToken: t.AccessToken,
		ClientID:    t.ClientID,
		UserID:      t.UserID,
		Scopes:      ScopeList(t.Scope),
		ExpiresIn:   int64(remaining.Seconds()),
	}
	if t.UserID != "" {
		groups, err := s.agents.EffectiveGroupIDs(ctx, t.UserID)
		if err != nil {
			return nil, err
		}
		info.GroupIDs = groups
	}
	return info, nil
}

// RevokeToken marks the token named by either handle as revoked. Revocation
// is irreversible and also kills the paired refresh token, since both live
// on one record. Unknown tokens are not an error, per RFC 7009.
func (s *Server) RevokeToken(ctx context.Context, token, tokenTypeHint string) error {
	tokens := s.store.Tokens(ctx)
	var (
		t   *Token
		err error
	)
	if tokenTypeHint == "refresh_token" {
		t, err = tokens.FindByRefresh(ctx, token)
		if errors.Is(err, ErrNotFound) {
			t, err = tokens.FindByAccess(ctx, token)
		}
	} else {
		t, err = tokens.FindByAccess(ctx, token)
		if errors.Is(err, ErrNotFound) {
			t, err = tokens.FindByRefresh(ctx, token)
		}
	}
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if t.Revoked {
		return nil
	}
	return tokens.MarkRevoked(ctx, t.ID)
}
