package oauth

import (
	"context"
	"errors"
	"testing"

	"codexbase.org/internal/perm"
)

func TestPrivilegedGrantGating(t *testing.T) {
	store := newMemStore()
	agents := &fakeAgents{
		groups: map[string][]string{
			"admin": {"root-admins"},
		},
	}
	srv, _ := testServer(t, store, agents)
	ctx := context.Background()

	master := &MasterConfig{
		ID: "master",
		GrantPrivileges: map[string]perm.AgentSet{
			GrantClientCredentials: {Groups: []string{"root-admins"}},
			GrantPassword:          {Groups: []string{"root-admins"}},
		},
	}
	if err := store.Master(ctx).Put(ctx, master); err != nil {
		t.Fatalf("Put master: %v", err)
	}

	// A member of the privileged group may register a client_credentials client.
	c, err := srv.CreateClient(ctx, NewClientParams{
		GrantTypes:    []string{GrantClientCredentials},
		Scope:         "docs",
		CreatorUserID: "admin",
	})
	if err != nil {
		t.Fatalf("CreateClient by admin: %v", err)
	}
	if c.ClientSecret == "" {
		t.Fatal("expected a confidential client")
	}

	// Anyone else is rejected outright.
	_, err = srv.CreateClient(ctx, NewClientParams{
		GrantTypes:    []string{GrantPassword},
		Scope:         "docs",
		CreatorUserID: "mortal",
	})
	if !errors.Is(err, ErrUnauthorizedClient) {
		t.Fatalf("expected unauthorized_client, got %v", err)
	}

	// Mixed requests fail as a whole when one grant is privileged.
	_, err = srv.CreateClient(ctx, NewClientParams{
		GrantTypes:    []string{GrantAuthorizationCode, GrantPassword},
		Scope:         "docs",
		CreatorUserID: "mortal",
	})
	if !errors.Is(err, ErrUnauthorizedClient) {
		t.Fatalf("expected unauthorized_client for mixed request, got %v", err)
	}

	// Unprivileged grant types need no master entry at all.
	if _, err := srv.CreateClient(ctx, NewClientParams{
		GrantTypes:    []string{GrantAuthorizationCode},
		ResponseTypes: []string{ResponseTypeCode},
		Scope:         "docs",
		CreatorUserID: "mortal",
	}); err != nil {
		t.Fatalf("plain client by mortal: %v", err)
	}
}

func TestPrivilegedGrantsDisabledWithoutMasterConfig(t *testing.T) {
	store := newMemStore()
	srv, _ := testServer(t, store, nil)

	_, err := srv.CreateClient(context.Background(), NewClientParams{
		GrantTypes:    []string{GrantClientCredentials},
		Scope:         "docs",
		CreatorUserID: "anyone",
	})
	if !errors.Is(err, ErrUnauthorizedClient) {
		t.Fatalf("expected unauthorized_client, got %v", err)
	}
}

func TestDeleteClientRequiresOwnership(t *testing.T) {
	store := newMemStore()
	srv, _ := testServer(t, store, nil)
	ctx := context.Background()

	c, err := srv.CreateClient(ctx, NewClientParams{
		GrantTypes:    []string{GrantAuthorizationCode},
		Scope:         "docs",
		CreatorUserID: "owner",
	})
	if err != nil {
		t.Fatalf("CreateClient: %v", err)
	}

	if err := srv.DeleteClient(ctx, c.ID, "stranger"); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected access_denied, got %v", err)
	}
	if err := srv.DeleteClient(ctx, c.ID, "owner"); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if _, err := store.Clients(ctx).Find(ctx, c.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("client should be gone, got %v", err)
	}
}

func TestUnknownGrantTypeRejectedAtRegistration(t *testing.T) {
	store := newMemStore()
	srv, _ := testServer(t, store, nil)

	_, err := srv.CreateClient(context.Background(), NewClientParams{
		GrantTypes:    []string{"carrier_pigeon"},
		CreatorUserID: "u1",
	})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected invalid_request, got %v", err)
	}
}
