package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"codexbase.org/internal/ids"
	"codexbase.org/internal/perm"
)

// ResourceKind discriminates the permission-bearing agent documents the
// service can address.
type ResourceKind string

const (
	KindUser  ResourceKind = "user"
	KindGroup ResourceKind = "group"
)

// Service provides user/group management on top of the store, with
// permission checks resolved through the group hierarchy.
type Service struct {
	store     Store
	hierarchy *HierarchyResolver
	now       func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs a Service over the given store.
func NewService(store Store, opts ...ServiceOption) *Service {
	s := &Service{
		store:     store,
		hierarchy: NewHierarchyResolver(storeGroupSource{store}),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// storeGroupSource adapts a Store to the hierarchy walk's lookup surface.
type storeGroupSource struct{ store Store }

func (g storeGroupSource) DirectMemberships(ctx context.Context, userID string) ([]string, error) {
	return g.store.Groups(ctx).DirectMemberships(ctx, userID)
}

func (g storeGroupSource) Parent(ctx context.Context, groupID string) (string, error) {
	return g.store.Groups(ctx).Parent(ctx, groupID)
}

// EffectiveGroupIDs resolves the user's ancestor-inclusive group set.
func (s *Service) EffectiveGroupIDs(ctx context.Context, userID string) ([]string, error) {
	return s.hierarchy.EffectiveGroupIDs(ctx, userID)
}

// GetUser loads a user record by id.
func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	return s.store.Users(ctx).Find(ctx, id)
}

// GetGroup loads a group record by id.
func (s *Service) GetGroup(ctx context.Context, id string) (*Group, error) {
	return s.store.Groups(ctx).Find(ctx, id)
}

// Authenticate verifies a user's credentials and returns the user on success.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, ErrInvalidInput
	}
	user, err := s.store.Users(ctx).FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if err := VerifyPassword(user.HashedPassword, password); err != nil {
		return nil, ErrPermissionDenied
	}
	return user, nil
}

// CreateUser registers a new user with a full permissions template attached.
func (s *Service) CreateUser(ctx context.Context, email, password, name string) (*User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if _, err := s.store.Users(ctx).FindByEmail(ctx, email); err == nil {
		return nil, ErrAlreadyExists
	}

	now := s.now().UTC()
	user := &User{
		ID:             ids.New(),
		Email:          email,
		HashedPassword: hash,
		Name:           strings.TrimSpace(name),
		Permissions:    perm.Template(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	// A user always controls their own record.
	user.Permissions.AddAgents(perm.Actions, perm.Granted, []string{user.ID}, nil)
	if err := s.store.Users(ctx).Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// CreateGroup creates a group with the creator as its only direct member and
// full control over the new record. Source must point at an existing group
// or stay empty for a root.
func (s *Service) CreateGroup(ctx context.Context, name, description, source, creatorID string) (*Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: group name is required", ErrInvalidInput)
	}
	groups := s.store.Groups(ctx)
	if _, err := groups.FindByName(ctx, name); err == nil {
		return nil, ErrAlreadyExists
	}
	if source != "" {
		if _, err := groups.Find(ctx, source); err != nil {
			return nil, fmt.Errorf("%w: source group %s", ErrNotFound, source)
		}
	}

	now := s.now().UTC()
	group := &Group{
		ID:          ids.New(),
		Name:        name,
		Description: strings.TrimSpace(description),
		Source:      source,
		Members:     []string{creatorID},
		Permissions: perm.Template(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	group.Permissions.AddAgents(perm.Actions, perm.Granted, []string{creatorID}, nil)
	if err := groups.Create(ctx, group); err != nil {
		return nil, err
	}
	return group, nil
}

// AddUsersToGroup adds direct members. The caller needs update_content on the
// group; an empty caller id skips the check (internal bootstrap paths).
func (s *Service) AddUsersToGroup(ctx context.Context, groupID string, userIDs []string, callerID string) error {
	group, err := s.store.Groups(ctx).Find(ctx, groupID)
	if err != nil {
		return err
	}
	if err := s.checkUpdateContent(ctx, group.Permissions, callerID); err != nil {
		return err
	}
	for _, uid := range userIDs {
		if _, err := s.store.Users(ctx).Find(ctx, uid); err != nil {
			return fmt.Errorf("%w: user %s", ErrNotFound, uid)
		}
	}
	return s.store.Groups(ctx).AddMembers(ctx, groupID, userIDs)
}

// RemoveUsersFromGroup removes direct members under the same gate as
// AddUsersToGroup. Removing an absent member is a no-op.
func (s *Service) RemoveUsersFromGroup(ctx context.Context, groupID string, userIDs []string, callerID string) error {
	group, err := s.store.Groups(ctx).Find(ctx, groupID)
	if err != nil {
		return err
	}
	if err := s.checkUpdateContent(ctx, group.Permissions, callerID); err != nil {
		return err
	}
	return s.store.Groups(ctx).RemoveMembers(ctx, groupID, userIDs)
}

// GrantPermissions applies a grant mutation to a user or group document. The
// caller needs update_content on the target; empty caller skips the gate.
func (s *Service) GrantPermissions(ctx context.Context, kind ResourceKind, id string, m perm.Mutation, callerID string) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	target, err := s.resourcePermissions(ctx, kind, id)
	if err != nil {
		return err
	}
	if err := s.checkUpdateContent(ctx, target, callerID); err != nil {
		return err
	}
	switch kind {
	case KindUser:
		return s.store.Users(ctx).GrantPermissions(ctx, id, m)
	case KindGroup:
		return s.store.Groups(ctx).GrantPermissions(ctx, id, m)
	default:
		return fmt.Errorf("%w: unknown resource kind %q", ErrInvalidInput, kind)
	}
}

// RevokePermissions applies a revoke mutation under the same gate.
func (s *Service) RevokePermissions(ctx context.Context, kind ResourceKind, id string, m perm.Mutation, callerID string) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	target, err := s.resourcePermissions(ctx, kind, id)
	if err != nil {
		return err
	}
	if err := s.checkUpdateContent(ctx, target, callerID); err != nil {
		return err
	}
	switch kind {
	case KindUser:
		return s.store.Users(ctx).RevokePermissions(ctx, id, m)
	case KindGroup:
		return s.store.Groups(ctx).RevokePermissions(ctx, id, m)
	default:
		return fmt.Errorf("%w: unknown resource kind %q", ErrInvalidInput, kind)
	}
}

// ResolvePermission answers whether userID may perform action on the given
// resource, resolving the caller's effective groups first.
func (s *Service) ResolvePermission(ctx context.Context, kind ResourceKind, id string, action perm.Action, userID string, defaultIfAbsent bool) (bool, error) {
	target, err := s.resourcePermissions(ctx, kind, id)
	if err != nil {
		return false, err
	}
	groupIDs, err := s.hierarchy.EffectiveGroupIDs(ctx, userID)
	if err != nil {
		return false, err
	}
	return perm.Resolve(target, action, userID, groupIDs, defaultIfAbsent), nil
}

func (s *Service) resourcePermissions(ctx context.Context, kind ResourceKind, id string) (perm.ObjectPermissions, error) {
	switch kind {
	case KindUser:
		u, err := s.store.Users(ctx).Find(ctx, id)
		if err != nil {
			return nil, err
		}
		return u.Permissions, nil
	case KindGroup:
		g, err := s.store.Groups(ctx).Find(ctx, id)
		if err != nil {
			return nil, err
		}
		return g.Permissions, nil
	default:
		return nil, fmt.Errorf("%w: unknown resource kind %q", ErrInvalidInput, kind)
	}
}

func (s *Service) checkUpdateContent(ctx context.Context, target perm.ObjectPermissions, callerID string) error {
	if callerID == "" {
		return nil
	}
	groupIDs, err := s.hierarchy.EffectiveGroupIDs(ctx, callerID)
	if err != nil {
		return err
	}
	if !perm.Resolve(target, perm.ActionUpdateContent, callerID, groupIDs, false) {
		return ErrPermissionDenied
	}
	return nil
}
