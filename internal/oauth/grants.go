package oauth

import (
	"context"
	"errors"
)

// grantResult is what a token-endpoint strategy hands back to the server:
// the authenticated resource owner (empty for client_credentials), the
// authoritative scope, and whether a refresh token accompanies the access
// token.
type grantResult struct {
	userID         string
	scope          string
	includeRefresh bool
}

// tokenGrant is one grant-type strategy at the token endpoint. The server
// has already authenticated the client and checked that the client is
// registered for the grant type.
type tokenGrant interface {
	authenticate(ctx context.Context, req *TokenRequest, client *Client) (*grantResult, error)
}

// authorizationCodeGrant exchanges a single-use code for a token pair.
type authorizationCodeGrant struct {
	srv *Server
}

func (g *authorizationCodeGrant) authenticate(ctx context.Context, req *TokenRequest, client *Client) (*grantResult, error) {
	if req.Code == "" {
		return nil, ErrInvalidRequest.WithDescription("missing code parameter")
	}
	codes := g.srv.store.Codes(ctx)
	code, err := codes.FindByCode(ctx, req.Code, client.ClientID)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidGrant.WithDescription("invalid authorization code")
	}
	if err != nil {
		return nil, err
	}
	if code.Expired(g.srv.now()) {
		// Lazy purge: expired codes are removed when first touched.
		if derr := codes.Delete(ctx, code.ID); derr != nil {
			return nil, derr
		}
		return nil, ErrInvalidGrant.WithDescription("authorization code expired")
	}
	if code.RedirectURI != "" && req.RedirectURI != code.RedirectURI {
		return nil, ErrInvalidGrant.WithDescription("redirect_uri mismatch")
	}
	// Single use: the code is consumed whether or not issuance succeeds.
	if err := codes.Delete(ctx, code.ID); err != nil {
		return nil, err
	}
	return &grantResult{userID: code.UserID, scope: code.Scope, includeRefresh: true}, nil
}

// refreshTokenGrant issues a fresh token pair off a still-eligible refresh
// token. The prior token record is left as is.
type refreshTokenGrant struct {
	srv *Server
}

func (g *refreshTokenGrant) authenticate(ctx context.Context, req *TokenRequest, client *Client) (*grantResult, error) {
	if req.RefreshToken == "" {
		return nil, ErrInvalidRequest.WithDescription("missing refresh_token parameter")
	}
	t, err := g.srv.store.Tokens(ctx).FindByRefresh(ctx, req.RefreshToken)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidGrant.WithDescription("invalid refresh token")
	}
	if err != nil {
		return nil, err
	}
	if t.ClientID != client.ClientID {
		return nil, ErrInvalidGrant.WithDescription("refresh token was issued to another client")
	}
	if t.Revoked {
		return nil, ErrInvalidGrant.WithDescription("token has been revoked")
	}
	if !t.RefreshEligible(g.srv.now()) {
		return nil, ErrInvalidGrant.WithDescription("refresh window has closed")
	}
	scope := t.Scope
	if req.Scope != "" {
		// Narrowing is allowed, widening is not.
		if !scopeSubset(req.Scope, t.Scope) {
			return nil, ErrInvalidScope.WithDescription("requested scope exceeds original grant")
		}
		scope = req.Scope
	}
	return &grantResult{userID: t.UserID, scope: scope, includeRefresh: true}, nil
}

// passwordGrant authenticates the resource owner's credentials directly.
type passwordGrant struct {
	srv *Server
}

func (g *passwordGrant) authenticate(ctx context.Context, req *TokenRequest, client *Client) (*grantResult, error) {
	if req.Username == "" || req.Password == "" {
		return nil, ErrInvalidRequest.WithDescription("missing username or password")
	}
	user, err := g.srv.agents.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		return nil, ErrInvalidGrant.WithDescription("invalid resource owner credentials")
	}
	return &grantResult{userID: user.ID, scope: req.Scope, includeRefresh: true}, nil
}

// clientCredentialsGrant mints a token for the client itself. No resource
// owner, no refresh token.
type clientCredentialsGrant struct {
	srv *Server
}

func (g *clientCredentialsGrant) authenticate(ctx context.Context, req *TokenRequest, client *Client) (*grantResult, error) {
	if !client.Confidential() {
		return nil, ErrUnauthorizedClient.WithDescription("public clients cannot use client_credentials")
	}
	return &grantResult{userID: "", scope: req.Scope, includeRefresh: false}, nil
}
