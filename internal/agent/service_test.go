package agent

import (
	"context"
	"errors"
	"testing"

	"codexbase.org/internal/perm"
)

func TestCreateUserAndAuthenticate(t *testing.T) {
	store := newMemStore()
	svc := NewService(store)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, "Editor@Example.org", "s3cret", "Editor")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if user.Email != "editor@example.org" {
		t.Fatalf("email not normalized: %s", user.Email)
	}
	if user.Permissions == nil {
		t.Fatal("expected permissions template on new user")
	}
	if !perm.Resolve(user.Permissions, perm.ActionUpdateContent, user.ID, nil, false) {
		t.Fatal("user must control their own record")
	}

	if _, err := svc.Authenticate(ctx, "editor@example.org", "s3cret"); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if _, err := svc.Authenticate(ctx, "editor@example.org", "wrong"); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	if _, err := svc.CreateUser(ctx, "editor@example.org", "other", ""); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestHierarchyInheritanceThroughResolve(t *testing.T) {
	store := newMemStore()
	svc := NewService(store)
	ctx := context.Background()

	owner, err := svc.CreateUser(ctx, "owner@example.org", "pw", "")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	g1, err := svc.CreateGroup(ctx, "g1", "", "", owner.ID)
	if err != nil {
		t.Fatalf("CreateGroup g1: %v", err)
	}
	g2, err := svc.CreateGroup(ctx, "g2", "", g1.ID, owner.ID)
	if err != nil {
		t.Fatalf("CreateGroup g2: %v", err)
	}

	// u is a direct member of g2 only.
	u, err := svc.CreateUser(ctx, "member@example.org", "pw", "")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := svc.AddUsersToGroup(ctx, g2.ID, []string{u.ID}, owner.ID); err != nil {
		t.Fatalf("AddUsersToGroup: %v", err)
	}

	effective, err := svc.EffectiveGroupIDs(ctx, u.ID)
	if err != nil {
		t.Fatalf("EffectiveGroupIDs: %v", err)
	}
	want := map[string]bool{g1.ID: false, g2.ID: false}
	for _, id := range effective {
		if _, ok := want[id]; ok {
			want[id] = true
		}
	}
	for id, seen := range want {
		if !seen {
			t.Fatalf("effective set %v is missing %s", effective, id)
		}
	}

	// A resource granting read to g1 is readable by u via g2's ancestry.
	resource, err := svc.CreateGroup(ctx, "archive", "", "", owner.ID)
	if err != nil {
		t.Fatalf("CreateGroup archive: %v", err)
	}
	m := perm.Mutation{Actions: []perm.Action{perm.ActionRead}, Disposition: perm.Granted, GroupIDs: []string{g1.ID}}
	if err := svc.GrantPermissions(ctx, KindGroup, resource.ID, m, owner.ID); err != nil {
		t.Fatalf("GrantPermissions: %v", err)
	}

	ok, err := svc.ResolvePermission(ctx, KindGroup, resource.ID, perm.ActionRead, u.ID, false)
	if err != nil {
		t.Fatalf("ResolvePermission: %v", err)
	}
	if !ok {
		t.Fatal("read granted to ancestor group must reach descendant members")
	}
}

func TestMembershipMutationGate(t *testing.T) {
	store := newMemStore()
	svc := NewService(store)
	ctx := context.Background()

	owner, _ := svc.CreateUser(ctx, "owner@example.org", "pw", "")
	outsider, _ := svc.CreateUser(ctx, "outsider@example.org", "pw", "")
	g, err := svc.CreateGroup(ctx, "team", "", "", owner.ID)
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}

	err = svc.AddUsersToGroup(ctx, g.ID, []string{outsider.ID}, outsider.ID)
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied for outsider, got %v", err)
	}

	if err := svc.AddUsersToGroup(ctx, g.ID, []string{outsider.ID}, owner.ID); err != nil {
		t.Fatalf("owner add failed: %v", err)
	}
	// Adding again is a no-op, not an error.
	if err := svc.AddUsersToGroup(ctx, g.ID, []string{outsider.ID}, owner.ID); err != nil {
		t.Fatalf("idempotent add failed: %v", err)
	}

	if err := svc.RemoveUsersFromGroup(ctx, g.ID, []string{outsider.ID}, owner.ID); err != nil {
		t.Fatalf("RemoveUsersFromGroup: %v", err)
	}
	if err := svc.RemoveUsersFromGroup(ctx, g.ID, []string{outsider.ID}, owner.ID); err != nil {
		t.Fatalf("idempotent remove failed: %v", err)
	}

	group, _ := store.Groups(ctx).Find(ctx, g.ID)
	if group.HasMember(outsider.ID) {
		t.Fatal("outsider should have been removed")
	}
}

func TestGrantUnknownActionRejected(t *testing.T) {
	store := newMemStore()
	svc := NewService(store)
	ctx := context.Background()

	owner, _ := svc.CreateUser(ctx, "owner@example.org", "pw", "")
	m := perm.Mutation{Actions: []perm.Action{"fly"}, Disposition: perm.Granted, UserIDs: []string{"u"}}
	if err := svc.GrantPermissions(ctx, KindUser, owner.ID, m, ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
