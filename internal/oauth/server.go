package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"codexbase.org/internal/agent"
	"codexbase.org/internal/ids"
)

// AgentDirectory is the slice of the agent service the engine needs:
// resource-owner authentication for the password grant and hierarchy
// resolution for privileged-grant gating. *agent.Service satisfies it.
type AgentDirectory interface {
	Authenticate(ctx context.Context, email, password string) (*agent.User, error)
	EffectiveGroupIDs(ctx context.Context, userID string) ([]string, error)
}

// Server is the OAuth2 engine. Grant and response handlers are plain maps
// assembled once at construction; there is no global registry.
type Server struct {
	store  Store
	agents AgentDirectory

	grants    map[string]tokenGrant
	responses map[string]responseHandler

	now           func() time.Time
	accessTTL     time.Duration
	issuer        string
	idTokenSecret []byte
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithClock overrides the engine clock, for tests.
func WithClock(now func() time.Time) ServerOption {
	return func(s *Server) { s.now = now }
}

// WithAccessTTL overrides the access-token lifetime.
func WithAccessTTL(ttl time.Duration) ServerOption {
	return func(s *Server) { s.accessTTL = ttl }
}

// WithIssuer sets the iss claim of minted id_tokens.
func WithIssuer(issuer string) ServerOption {
	return func(s *Server) { s.issuer = issuer }
}

// WithIDTokenSecret enables HS256 id_token minting for requests carrying the
// openid scope. Access tokens stay opaque either way.
func WithIDTokenSecret(secret []byte) ServerOption {
	return func(s *Server) { s.idTokenSecret = secret }
}

// NewServer wires the engine with one strategy per supported grant type and
// response type.
func NewServer(store Store, agents AgentDirectory, opts ...ServerOption) *Server {
	s := &Server{
		store:     store,
		agents:    agents,
		now:       time.Now,
		accessTTL: DefaultAccessTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.grants = map[string]tokenGrant{
		GrantAuthorizationCode: &authorizationCodeGrant{srv: s},
		GrantRefreshToken:      &refreshTokenGrant{srv: s},
		GrantPassword:          &passwordGrant{srv: s},
		GrantClientCredentials: &clientCredentialsGrant{srv: s},
	}
	s.responses = map[string]responseHandler{
		ResponseTypeCode:  s.authorizeCode,
		ResponseTypeToken: s.authorizeImplicit,
	}
	return s
}

// TokenRequest is a parsed token-endpoint request body.
type TokenRequest struct {
	GrantType    string
	ClientID     string
	ClientSecret string
	Code         string
	RedirectURI  string
	RefreshToken string
	Username     string
	Password     string
	Scope        string
}

// TokenResponse is the token-endpoint success payload.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
}

// Token runs one token-endpoint request: client authentication, grant-type
// dispatch, scope validation, issuance.
func (s *Server) Token(ctx context.Context, req *TokenRequest) (*TokenResponse, error) {
	client, err := s.authenticateClient(ctx, req.ClientID, req.ClientSecret)
	if err != nil {
		return nil, err
	}
	handler, ok := s.grants[req.GrantType]
	if !ok {
		return nil, ErrUnsupportedGrantType.WithDescription("unsupported grant_type %q", req.GrantType)
	}
	if !client.CheckGrantType(req.GrantType) {
		return nil, ErrUnauthorizedClient.WithDescription("client is not registered for %s", req.GrantType)
	}
	res, err := handler.authenticate(ctx, req, client)
	if err != nil {
		return nil, err
	}
	scope := res.scope
	if scope == "" {
		scope = client.Scope
	}
	if !client.AllowedScope(scope) {
		return nil, ErrInvalidScope.WithDescription("requested scope exceeds client registration")
	}
	token, err := s.issueToken(ctx, client, res.userID, scope, res.includeRefresh)
	if err != nil {
		return nil, err
	}
	return s.tokenResponse(token)
}

func (s *Server) authenticateClient(ctx context.Context, clientID, clientSecret string) (*Client, error) {
	if clientID == "" {
		return nil, ErrInvalidClient.WithDescription("missing client_id")
	}
	client, err := s.store.Clients(ctx).FindByClientID(ctx, clientID)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidClient.WithDescription("unknown client")
	}
	if err != nil {
		return nil, err
	}
	if client.Confidential() && !client.CheckSecret(clientSecret) {
		return nil, ErrInvalidClient.WithDescription("client authentication failed")
	}
	return client, nil
}

// issueToken mints an opaque token record and persists it.
func (s *Server) issueToken(ctx context.Context, client *Client, userID, scope string, includeRefresh bool) (*Token, error) {
	t := &Token{
		ID:          ids.New(),
		AccessToken: randomToken(32),
		TokenType:   "Bearer",
		ClientID:    client.ClientID,
		UserID:      userID,
		Scope:       scope,
		IssuedAt:    s.now().UTC(),
		ExpiresIn:   int64(s.accessTTL / time.Second),
	}
	if includeRefresh {
		t.RefreshToken = randomToken(32)
	}
	if err := s.store.Tokens(ctx).Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Server) tokenResponse(t *Token) (*TokenResponse, error) {
	resp := &TokenResponse{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		ExpiresIn:    t.ExpiresIn,
		RefreshToken: t.RefreshToken,
		Scope:        t.Scope,
	}
	if t.UserID != "" && len(s.idTokenSecret) > 0 && HasScope(t.Scope, "openid") {
		idToken, err := s.mintIDToken(t)
		if err != nil {
			return nil, err
		}
		resp.IDToken = idToken
	}
	return resp, nil
}

func (s *Server) mintIDToken(t *Token) (string, error) {
	claims := jwt.RegisteredClaims{
		Issuer:    s.issuer,
		Subject:   t.UserID,
		Audience:  jwt.ClaimStrings{t.ClientID},
		IssuedAt:  jwt.NewNumericDate(t.IssuedAt),
		ExpiresAt: jwt.NewNumericDate(t.IssuedAt.Add(time.Duration(t.ExpiresIn) * time.Second)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.idTokenSecret)
}

// AuthorizeRequest is a parsed authorization-endpoint request. UserID is the
// already-authenticated resource owner granting consent.
type AuthorizeRequest struct {
	ResponseType string
	ClientID     string
	RedirectURI  string
	Scope        string
	State        string
	UserID       string
}

// AuthorizeResult carries what the HTTP layer folds into the redirect: a
// code for the code flow, or a full token for the implicit flow.
type AuthorizeResult struct {
	RedirectURI string
	State       string
	Code        string
	Token       *TokenResponse
}

type responseHandler func(ctx context.Context, req *AuthorizeRequest, client *Client) (*AuthorizeResult, error)

// Authorize runs one authorization-endpoint request after the resource owner
// has authenticated and consented.
func (s *Server) Authorize(ctx context.Context, req *AuthorizeRequest) (*AuthorizeResult, error) {
	client, err := s.store.Clients(ctx).FindByClientID(ctx, req.ClientID)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidClient.WithDescription("unknown client")
	}
	if err != nil {
		return nil, err
	}
	if req.RedirectURI == "" {
		req.RedirectURI = client.DefaultRedirectURI()
	}
	if req.RedirectURI == "" || !client.CheckRedirectURI(req.RedirectURI) {
		return nil, ErrInvalidRequest.WithDescription("unregistered redirect_uri")
	}
	handler, ok := s.responses[req.ResponseType]
	if !ok {
		return nil, ErrUnsupportedResponseType.WithDescription("unsupported response_type %q", req.ResponseType)
	}
	if !client.CheckResponseType(req.ResponseType) {
		return nil, ErrUnauthorizedClient.WithDescription("client is not registered for response_type %s", req.ResponseType)
	}
	if !client.AllowedScope(req.Scope) {
		return nil, ErrInvalidScope.WithDescription("requested scope exceeds client registration")
	}
	if req.UserID == "" {
		return nil, ErrAccessDenied.WithDescription("resource owner did not grant access")
	}
	return handler(ctx, req, client)
}

// authorizeCode mints (or re-serves) an authorization code. Issuance is
// idempotent per (client, redirect_uri, scope, user) while an unexpired code
// exists.
func (s *Server) authorizeCode(ctx context.Context, req *AuthorizeRequest, client *Client) (*AuthorizeResult, error) {
	codes := s.store.Codes(ctx)
	existing, err := codes.FindActive(ctx, client.ClientID, req.UserID, req.RedirectURI, req.Scope)
	if err == nil && !existing.Expired(s.now()) {
		return &AuthorizeResult{RedirectURI: req.RedirectURI, State: req.State, Code: existing.Code}, nil
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	code := &AuthorizationCode{
		ID:          ids.New(),
		Code:        randomToken(36),
		ClientID:    client.ClientID,
		UserID:      req.UserID,
		RedirectURI: req.RedirectURI,
		Scope:       req.Scope,
		AuthTime:    s.now().UTC(),
	}
	if err := codes.Create(ctx, code); err != nil {
		return nil, err
	}
	return &AuthorizeResult{RedirectURI: req.RedirectURI, State: req.State, Code: code.Code}, nil
}

// authorizeImplicit issues an access token directly in the redirect
// fragment. No refresh token in this flow.
func (s *Server) authorizeImplicit(ctx context.Context, req *AuthorizeRequest, client *Client) (*AuthorizeResult, error) {
	token, err := s.issueToken(ctx, client, req.UserID, req.Scope, false)
	if err != nil {
		return nil, err
	}
	resp, err := s.tokenResponse(token)
	if err != nil {
		return nil, err
	}
	return &AuthorizeResult{RedirectURI: req.RedirectURI, State: req.State, Token: resp}, nil
}

// randomToken returns n random bytes in unpadded URL-safe base64.
func randomToken(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
