package oauth

import (
	"context"
	"errors"
)

// Storage sentinels follow the "oauth: ..." convention.
var (
	ErrNotFound      = errors.New("oauth: not found")
	ErrAlreadyExists = errors.New("oauth: already exists")
)

// Store exposes the persistence surface of the engine as per-record-type
// sub-stores. Implementations live in store/pg; tests use in-memory fakes.
type Store interface {
	Clients(ctx context.Context) ClientStore
	Codes(ctx context.Context) CodeStore
	Tokens(ctx context.Context) TokenStore
	Master(ctx context.Context) MasterStore
}

type ClientStore interface {
	Create(ctx context.Context, c *Client) error
	Find(ctx context.Context, id string) (*Client, error)
	FindByClientID(ctx context.Context, clientID string) (*Client, error)
	ListByOwner(ctx context.Context, userID string) ([]*Client, error)
	Delete(ctx context.Context, id string) error
}

type CodeStore interface {
	Create(ctx context.Context, c *AuthorizationCode) error
	FindByCode(ctx context.Context, code, clientID string) (*AuthorizationCode, error)
	// FindActive returns the newest code matching the full issuance tuple,
	// ErrNotFound if none. Callers check expiry themselves.
	FindActive(ctx context.Context, clientID, userID, redirectURI, scope string) (*AuthorizationCode, error)
	Delete(ctx context.Context, id string) error
}

type TokenStore interface {
	Create(ctx context.Context, t *Token) error
	FindByAccess(ctx context.Context, accessToken string) (*Token, error)
	FindByRefresh(ctx context.Context, refreshToken string) (*Token, error)
	MarkRevoked(ctx context.Context, id string) error
}

type MasterStore interface {
	Get(ctx context.Context) (*MasterConfig, error)
	Put(ctx context.Context, m *MasterConfig) error
}
