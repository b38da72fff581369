// Package agent holds the user and group records of the trust subsystem and
// the hierarchy resolver that computes a user's effective group memberships.
package agent

import (
	"time"

	"codexbase.org/internal/perm"
)

// User is a registered account. Group membership is derived from the groups'
// member lists, never stored on the user itself.
type User struct {
	ID             string
	Email          string
	HashedPassword string
	Name           string
	Permissions    perm.ObjectPermissions
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Group is a named set of users. Source points at the single parent group,
// forming a forest; an empty Source marks a root. Members lists direct user
// members only — ancestry is derived by the hierarchy resolver.
type Group struct {
	ID          string
	Name        string
	Description string
	Source      string
	Members     []string
	Permissions perm.ObjectPermissions
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasMember reports whether userID is a direct member of the group.
func (g *Group) HasMember(userID string) bool {
	for _, m := range g.Members {
		if m == userID {
			return true
		}
	}
	return false
}
