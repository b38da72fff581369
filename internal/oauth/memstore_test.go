package oauth

import (
	"context"
	"sync"

	"codexbase.org/internal/agent"
)

// memStore is an in-memory Store used across the package tests.
type memStore struct {
	mu      sync.Mutex
	clients map[string]*Client            // by record id
	codes   map[string]*AuthorizationCode // by record id
	tokens  map[string]*Token             // by record id
	master  *MasterConfig
}

func newMemStore() *memStore {
	return &memStore{
		clients: make(map[string]*Client),
		codes:   make(map[string]*AuthorizationCode),
		tokens:  make(map[string]*Token),
	}
}

func (s *memStore) Clients(ctx context.Context) ClientStore { return (*memClientStore)(s) }
func (s *memStore) Codes(ctx context.Context) CodeStore     { return (*memCodeStore)(s) }
func (s *memStore) Tokens(ctx context.Context) TokenStore   { return (*memTokenStore)(s) }
func (s *memStore) Master(ctx context.Context) MasterStore  { return (*memMasterStore)(s) }

type memClientStore memStore

func (s *memClientStore) Create(ctx context.Context, c *Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c.ID]; ok {
		return ErrAlreadyExists
	}
	s.clients[c.ID] = c
	return nil
}

func (s *memClientStore) Find(ctx context.Context, id string) (*Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[id]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

func (s *memClientStore) FindByClientID(ctx context.Context, clientID string) (*Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.clients {
		if c.ClientID == clientID {
			return c, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memClientStore) ListByOwner(ctx context.Context, userID string) ([]*Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Client
	for _, c := range s.clients {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *memClientStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[id]; !ok {
		return ErrNotFound
	}
	delete(s.clients, id)
	return nil
}

type memCodeStore memStore

func (s *memCodeStore) Create(ctx context.Context, c *AuthorizationCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[c.ID] = c
	return nil
}

func (s *memCodeStore) FindByCode(ctx context.Context, code, clientID string) (*AuthorizationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.codes {
		if c.Code == code && c.ClientID == clientID {
			return c, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memCodeStore) FindActive(ctx context.Context, clientID, userID, redirectURI, scope string) (*AuthorizationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var newest *AuthorizationCode
	for _, c := range s.codes {
		if c.ClientID != clientID || c.UserID != userID || c.RedirectURI != redirectURI || c.Scope != scope {
			continue
		}
		if newest == nil || c.AuthTime.After(newest.AuthTime) {
			newest = c
		}
	}
	if newest == nil {
		return nil, ErrNotFound
	}
	return newest, nil
}

func (s *memCodeStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.codes[id]; !ok {
		return ErrNotFound
	}
	delete(s.codes, id)
	return nil
}

type memTokenStore memStore

func (s *memTokenStore) Create(ctx context.Context, t *Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[t.ID] = t
	return nil
}

func (s *memTokenStore) FindByAccess(ctx context.Context, accessToken string) (*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tokens {
		if t.AccessToken == accessToken {
			return t, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memTokenStore) FindByRefresh(ctx context.Context, refreshToken string) (*Token, error) {
	if refreshToken == "" {
		return nil, ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tokens {
		if t.RefreshToken == refreshToken {
			return t, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memTokenStore) MarkRevoked(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[id]
	if !ok {
		return ErrNotFound
	}
	t.Revoked = true
	return nil
}

type memMasterStore memStore

func (s *memMasterStore) Get(ctx context.Context) (*MasterConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.master == nil {
		return nil, ErrNotFound
	}
	return s.master, nil
}

func (s *memMasterStore) Put(ctx context.Context, m *MasterConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.master = m
	return nil
}

// fakeAgents is a canned AgentDirectory: passwords and group memberships are
// looked up from maps.
type fakeAgents struct {
	passwords map[string]string   // email -> password
	users     map[string]string   // email -> user id
	groups    map[string][]string // user id -> effective groups
}

func (f *fakeAgents) Authenticate(ctx context.Context, email, password string) (*agent.User, error) {
	if pw, ok := f.passwords[email]; ok && pw == password {
		return &agent.User{ID: f.users[email], Email: email}, nil
	}
	return nil, agent.ErrPermissionDenied
}

func (f *fakeAgents) EffectiveGroupIDs(ctx context.Context, userID string) ([]string, error) {
	return f.groups[userID], nil
}
