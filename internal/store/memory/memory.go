// Package memory is a mutex-guarded in-memory implementation of the agent
// and oauth store interfaces. It backs tests and the no-database dev mode of
// cmd/api; production deployments use store/pg.
package memory

import (
	"context"
	"slices"
	"sync"

	"codexbase.org/internal/agent"
	"codexbase.org/internal/oauth"
	"codexbase.org/internal/perm"
)

// Store holds everything in maps. The zero value is not usable; call New.
type Store struct {
	mu sync.Mutex

	users  map[string]*agent.User
	groups map[string]*agent.Group

	clients map[string]*oauth.Client
	codes   map[string]*oauth.AuthorizationCode
	tokens  map[string]*oauth.Token
	master  *oauth.MasterConfig
}

func New() *Store {
	return &Store{
		users:   make(map[string]*agent.User),
		groups:  make(map[string]*agent.Group),
		clients: make(map[string]*oauth.Client),
		codes:   make(map[string]*oauth.AuthorizationCode),
		tokens:  make(map[string]*oauth.Token),
	}
}

// agent.Store

func (s *Store) Users(ctx context.Context) agent.UserStore   { return (*userStore)(s) }
func (s *Store) Groups(ctx context.Context) agent.GroupStore { return (*groupStore)(s) }

// oauth.Store

func (s *Store) Clients(ctx context.Context) oauth.ClientStore { return (*clientStore)(s) }
func (s *Store) Codes(ctx context.Context) oauth.CodeStore     { return (*codeStore)(s) }
func (s *Store) Tokens(ctx context.Context) oauth.TokenStore   { return (*tokenStore)(s) }
func (s *Store) Master(ctx context.Context) oauth.MasterStore  { return (*masterStore)(s) }

type userStore Store

func (s *userStore) Create(ctx context.Context, u *agent.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; ok {
		return agent.ErrAlreadyExists
	}
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return agent.ErrAlreadyExists
		}
	}
	s.users[u.ID] = u
	return nil
}

func (s *userStore) Find(ctx context.Context, id string) (*agent.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, agent.ErrNotFound
	}
	return u, nil
}

func (s *userStore) FindByEmail(ctx context.Context, email string) (*agent.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, agent.ErrNotFound
}

func (s *userStore) GrantPermissions(ctx context.Context, id string, m perm.Mutation) error {
	return (*Store)(s).mutateUserPerms(id, m, false)
}

func (s *userStore) RevokePermissions(ctx context.Context, id string, m perm.Mutation) error {
	return (*Store)(s).mutateUserPerms(id, m, true)
}

func (s *Store) mutateUserPerms(id string, m perm.Mutation, revoke bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return agent.ErrNotFound
	}
	if u.Permissions == nil {
		u.Permissions = perm.Template()
	}
	m.Apply(u.Permissions, revoke)
	return nil
}

type groupStore Store

func (s *groupStore) Create(ctx context.Context, g *agent.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[g.ID]; ok {
		return agent.ErrAlreadyExists
	}
	for _, existing := range s.groups {
		if existing.Name == g.Name {
			return agent.ErrAlreadyExists
		}
	}
	s.groups[g.ID] = g
	return nil
}

func (s *groupStore) Find(ctx context.Context, id string) (*agent.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok {
		return nil, agent.ErrNotFound
	}
	return g, nil
}

func (s *groupStore) FindByName(ctx context.Context, name string) (*agent.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.groups {
		if g.Name == name {
			return g, nil
		}
	}
	return nil, agent.ErrNotFound
}

func (s *groupStore) DirectMemberships(ctx context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, g := range s.groups {
		if g.HasMember(userID) {
			out = append(out, g.ID)
		}
	}
	return out, nil
}

func (s *groupStore) Parent(ctx context.Context, groupID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		return "", agent.ErrNotFound
	}
	return g.Source, nil
}

func (s *groupStore) AddMembers(ctx context.Context, groupID string, userIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		return agent.ErrNotFound
	}
	for _, uid := range userIDs {
		if !slices.Contains(g.Members, uid) {
			g.Members = append(g.Members, uid)
		}
	}
	return nil
}

func (s *groupStore) RemoveMembers(ctx context.Context, groupID string, userIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		return agent.ErrNotFound
	}
	g.Members = slices.DeleteFunc(g.Members, func(m string) bool {
		return slices.Contains(userIDs, m)
	})
	return nil
}

func (s *groupStore) GrantPermissions(ctx context.Context, id string, m perm.Mutation) error {
	return (*Store)(s).mutateGroupPerms(id, m, false)
}

func (s *groupStore) RevokePermissions(ctx context.Context, id string, m perm.Mutation) error {
	return (*Store)(s).mutateGroupPerms(id, m, true)
}

func (s *Store) mutateGroupPerms(id string, m perm.Mutation, revoke bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok {
		return agent.ErrNotFound
	}
	if g.Permissions == nil {
		g.Permissions = perm.Template()
	}
	m.Apply(g.Permissions, revoke)
	return nil
}

type clientStore Store

func (s *clientStore) Create(ctx context.Context, c *oauth.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c.ID]; ok {
		return oauth.ErrAlreadyExists
	}
	s.clients[c.ID] = c
	return nil
}

func (s *clientStore) Find(ctx context.Context, id string) (*oauth.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[id]
	if !ok {
		return nil, oauth.ErrNotFound
	}
	return c, nil
}

func (s *clientStore) FindByClientID(ctx context.Context, clientID string) (*oauth.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.clients {
		if c.ClientID == clientID {
			return c, nil
		}
	}
	return nil, oauth.ErrNotFound
}

func (s *clientStore) ListByOwner(ctx context.Context, userID string) ([]*oauth.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*oauth.Client
	for _, c := range s.clients {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *clientStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[id]; !ok {
		return oauth.ErrNotFound
	}
	delete(s.clients, id)
	return nil
}

type codeStore Store

func (s *codeStore) Create(ctx context.Context, c *oauth.AuthorizationCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[c.ID] = c
	return nil
}

func (s *codeStore) FindByCode(ctx context.Context, code, clientID string) (*oauth.AuthorizationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.codes {
		if c.Code == code && c.ClientID == clientID {
			return c, nil
		}
	}
	return nil, oauth.ErrNotFound
}

func (s *codeStore) FindActive(ctx context.Context, clientID, userID, redirectURI, scope string) (*oauth.AuthorizationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var newest *oauth.AuthorizationCode
	for _, c := range s.codes {
		if c.ClientID != clientID || c.UserID != userID || c.RedirectURI != redirectURI || c.Scope != scope {
			continue
		}
		if newest == nil || c.AuthTime.After(newest.AuthTime) {
			newest = c
		}
	}
	if newest == nil {
		return nil, oauth.ErrNotFound
	}
	return newest, nil
}

func (s *codeStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.codes[id]; !ok {
		return oauth.ErrNotFound
	}
	delete(s.codes, id)
	return nil
}

type tokenStore Store

func (s *tokenStore) Create(ctx context.Context, t *oauth.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[t.ID] = t
	return nil
}

func (s *tokenStore) FindByAccess(ctx context.Context, accessToken string) (*oauth.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tokens {
		if t.AccessToken == accessToken {
			return t, nil
		}
	}
	return nil, oauth.ErrNotFound
}

func (s *tokenStore) FindByRefresh(ctx context.Context, refreshToken string) (*oauth.Token, error) {
	if refreshToken == "" {
		return nil, oauth.ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tokens {
		if t.RefreshToken == refreshToken {
			return t, nil
		}
	}
	return nil, oauth.ErrNotFound
}

func (s *tokenStore) MarkRevoked(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[id]
	if !ok {
		return oauth.ErrNotFound
	}
	t.Revoked = true
	return nil
}

type masterStore Store

func (s *masterStore) Get(ctx context.Context) (*oauth.MasterConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.master == nil {
		return nil, oauth.ErrNotFound
	}
	return s.master, nil
}

func (s *masterStore) Put(ctx context.Context, m *oauth.MasterConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.master = m
	return nil
}
