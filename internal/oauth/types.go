// Package oauth implements the OAuth2 authorization and token engine: client
// records, the per-grant-type state machines, authorization-code lifecycle,
// token issuance/expiry/revocation and bearer validation.
package oauth

import (
	"crypto/subtle"
	"time"

	"codexbase.org/internal/perm"
)

// Grant type and response type identifiers, wire-exact per RFC 6749.
const (
	GrantAuthorizationCode = "authorization_code"
	GrantRefreshToken      = "refresh_token"
	GrantPassword          = "password"
	GrantClientCredentials = "client_credentials"
	GrantImplicit          = "implicit"

	ResponseTypeCode  = "code"
	ResponseTypeToken = "token"
)

// PrivilegedGrantTypes are gated by the tenant master config at
// client-creation time.
var PrivilegedGrantTypes = []string{GrantClientCredentials, GrantPassword}

// KnownGrantTypes enumerates every grant type the engine understands.
var KnownGrantTypes = []string{
	GrantAuthorizationCode,
	GrantRefreshToken,
	GrantPassword,
	GrantClientCredentials,
	GrantImplicit,
}

const (
	// CodeTTL is the authorization-code lifetime; expiry is detected lazily
	// on exchange.
	CodeTTL = 300 * time.Second

	// DefaultAccessTTL is the access-token lifetime unless overridden.
	DefaultAccessTTL = time.Hour
)

// Client is a registered OAuth2 client application.
type Client struct {
	ID                      string
	ClientID                string
	ClientSecret            string
	Name                    string
	UserID                  string
	GrantTypes              []string
	ResponseTypes           []string
	RedirectURIs            []string
	Scope                   string
	TokenEndpointAuthMethod string
	Permissions             perm.ObjectPermissions
	CreatedAt               time.Time
}

// Confidential reports whether the client holds a secret.
func (c *Client) Confidential() bool { return c.ClientSecret != "" }

// CheckSecret compares a presented secret in constant time.
func (c *Client) CheckSecret(secret string) bool {
	if !c.Confidential() {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(c.ClientSecret), []byte(secret)) == 1
}

// CheckGrantType reports whether the grant type is allowed for this client.
func (c *Client) CheckGrantType(grantType string) bool {
	for _, gt := range c.GrantTypes {
		if gt == grantType {
			return true
		}
	}
	return false
}

// CheckResponseType reports whether the response type is allowed.
func (c *Client) CheckResponseType(responseType string) bool {
	for _, rt := range c.ResponseTypes {
		if rt == responseType {
			return true
		}
	}
	return false
}

// CheckRedirectURI reports whether the URI is registered for this client.
func (c *Client) CheckRedirectURI(uri string) bool {
	for _, u := range c.RedirectURIs {
		if u == uri {
			return true
		}
	}
	return false
}

// DefaultRedirectURI returns the first registered URI, empty if none.
func (c *Client) DefaultRedirectURI() string {
	if len(c.RedirectURIs) == 0 {
		return ""
	}
	return c.RedirectURIs[0]
}

// AllowedScope reports whether every requested scope is within the client's
// registered scope.
func (c *Client) AllowedScope(requested string) bool {
	return scopeSubset(requested, c.Scope)
}

// AuthorizationCode is a single-use code minted at consent and exchanged at
// the token endpoint. It is deleted on exchange; expiry is lazy.
type AuthorizationCode struct {
	ID          string
	Code        string
	ClientID    string
	UserID      string
	RedirectURI string
	Scope       string
	AuthTime    time.Time
}

// Expired reports whether the code is past its TTL at now.
func (c *AuthorizationCode) Expired(now time.Time) bool {
	return now.After(c.AuthTime.Add(CodeTTL))
}

// Token is an issued opaque access token, optionally paired with a refresh
// token. Tokens are never deleted; revocation flips the flag.
type Token struct {
	ID           string
	AccessToken  string
	RefreshToken string
	TokenType    string
	ClientID     string
	UserID       string
	Scope        string
	IssuedAt     time.Time
	ExpiresIn    int64
	Revoked      bool
}

func (t *Token) expiresAt() time.Time {
	return t.IssuedAt.Add(time.Duration(t.ExpiresIn) * time.Second)
}

// AccessExpired reports whether the access window has closed: strictly after
// issued_at + expires_in.
func (t *Token) AccessExpired(now time.Time) bool {
	return now.After(t.expiresAt())
}

// RefreshEligible reports whether the refresh window is still open. The
// refresh window is twice the access window, independent of access expiry.
func (t *Token) RefreshEligible(now time.Time) bool {
	return !now.After(t.IssuedAt.Add(2 * time.Duration(t.ExpiresIn) * time.Second))
}

// Active reports whether a bearer presentation of the token is acceptable.
func (t *Token) Active(now time.Time) bool {
	return !t.Revoked && !t.AccessExpired(now)
}

// MasterConfig is the tenant-wide gating record: per privileged grant type,
// the agents allowed to mint clients carrying it. Written only by bootstrap,
// read-only at decision time.
type MasterConfig struct {
	ID              string
	GrantPrivileges map[string]perm.AgentSet
	Permissions     perm.ObjectPermissions
}

// AllowsGrant reports whether the creator identity intersects the agent set
// configured for the grant type. Same intersection rule as the permission
// resolver, applied to the embedded sets.
func (m *MasterConfig) AllowsGrant(grantType, userID string, groupIDs []string) bool {
	if m == nil {
		return false
	}
	set, ok := m.GrantPrivileges[grantType]
	if !ok {
		return false
	}
	return set.Matches(userID, groupIDs)
}
