package agent

import (
	"context"

	"codexbase.org/internal/perm"
)

// Store describes persistence operations required by the agent subsystem.
type Store interface {
	Users(ctx context.Context) UserStore
	Groups(ctx context.Context) GroupStore
}

// UserStore manages user documents.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	// GrantPermissions and RevokePermissions apply the mutation as a single
	// atomic document update (set-union / set-difference), never a blind
	// read-modify-write.
	GrantPermissions(ctx context.Context, id string, m perm.Mutation) error
	RevokePermissions(ctx context.Context, id string, m perm.Mutation) error
}

// GroupStore manages group documents and direct memberships.
type GroupStore interface {
	Create(ctx context.Context, g *Group) error
	Find(ctx context.Context, id string) (*Group, error)
	FindByName(ctx context.Context, name string) (*Group, error)
	// DirectMemberships returns the ids of groups listing userID as a direct
	// member.
	DirectMemberships(ctx context.Context, userID string) ([]string, error)
	// Parent returns the group's source pointer, empty for roots.
	Parent(ctx context.Context, groupID string) (string, error)
	AddMembers(ctx context.Context, groupID string, userIDs []string) error
	RemoveMembers(ctx context.Context, groupID string, userIDs []string) error
	GrantPermissions(ctx context.Context, id string, m perm.Mutation) error
	RevokePermissions(ctx context.Context, id string, m perm.Mutation) error
}
