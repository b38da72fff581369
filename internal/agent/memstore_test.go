package agent

import (
	"context"
	"sync"

	"codexbase.org/internal/perm"
)

// memStore is an in-memory Store used across the package tests.
type memStore struct {
	mu     sync.Mutex
	users  map[string]*User
	groups map[string]*Group
}

func newMemStore() *memStore {
	return &memStore{
		users:  make(map[string]*User),
		groups: make(map[string]*Group),
	}
}

func (m *memStore) Users(context.Context) UserStore   { return (*memUserStore)(m) }
func (m *memStore) Groups(context.Context) GroupStore { return (*memGroupStore)(m) }

type memUserStore memStore

func (s *memUserStore) Create(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; ok {
		return ErrAlreadyExists
	}
	s.users[u.ID] = u
	return nil
}

func (s *memUserStore) Find(_ context.Context, id string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return u, nil
}

func (s *memUserStore) FindByEmail(_ context.Context, email string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memUserStore) GrantPermissions(ctx context.Context, id string, m perm.Mutation) error {
	u, err := s.Find(ctx, id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.Permissions == nil {
		u.Permissions = perm.Template()
	}
	m.Apply(u.Permissions, false)
	return nil
}

func (s *memUserStore) RevokePermissions(ctx context.Context, id string, m perm.Mutation) error {
	u, err := s.Find(ctx, id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.Permissions == nil {
		return nil
	}
	m.Apply(u.Permissions, true)
	return nil
}

type memGroupStore memStore

func (s *memGroupStore) Create(_ context.Context, g *Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[g.ID]; ok {
		return ErrAlreadyExists
	}
	s.groups[g.ID] = g
	return nil
}

func (s *memGroupStore) Find(_ context.Context, id string) (*Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok {
		return nil, ErrNotFound
	}
	return g, nil
}

func (s *memGroupStore) FindByName(_ context.Context, name string) (*Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.groups {
		if g.Name == name {
			return g, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memGroupStore) DirectMemberships(_ context.Context, userID string) ([]string, error) {
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

func (s *memGroupStore) Parent(_ context.Context, groupID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		return "", ErrNotFound
	}
	return g.Source, nil
}

func (s *memGroupStore) AddMembers(ctx context.Context, groupID string, userIDs []string) error {
	g, err := s.Find(ctx, groupID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, uid := range userIDs {
		if !g.HasMember(uid) {
			g.Members = append(g.Members, uid)
		}
	}
	return nil
}

func (s *memGroupStore) RemoveMembers(ctx context.Context, groupID string, userIDs []string) error {
	g, err := s.Find(ctx, groupID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := g.Members[:0]
	for _, m := range g.Members {
		drop := false
		for _, uid := range userIDs {
			if m == uid {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, m)
		}
	}
	g.Members = kept
	return nil
}

func (s *memGroupStore) GrantPermissions(ctx context.Context, id string, m perm.Mutation) error {
	g, err := s.Find(ctx, id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if g.Permissions == nil {
		g.Permissions = perm.Template()
	}
	m.Apply(g.Permissions, false)
	return nil
}

func (s *memGroupStore) RevokePermissions(ctx context.Context, id string, m perm.Mutation) error {
	g, err := s.Find(ctx, id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if g.Permissions == nil {
		return nil
	}
	m.Apply(g.Permissions, true)
	return nil
}
