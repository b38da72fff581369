package bootstrap

import (
	"context"
	"testing"

	"codexbase.org/internal/agent"
	"codexbase.org/internal/oauth"
	"codexbase.org/internal/perm"
	"codexbase.org/internal/store/memory"
)

func testSeeder() (*Seeder, *agent.Service, *memory.Store) {
	store := memory.New()
	agents := agent.NewService(store)
	return New(agents, store, store), agents, store
}

func TestSeedFreshDeployment(t *testing.T) {
	seeder, agents, store := testSeeder()
	ctx := context.Background()

	res, err := seeder.Run(ctx, Config{
		RootAdminEmail:    "root@example.org",
		RootAdminPassword: "changeme",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.RootAdminID == "" || res.AllUsersGroupID == "" || res.RootAdminsGroupID == "" {
		t.Fatalf("incomplete result: %+v", res)
	}
	if res.RootClientID == "" || res.RootClientSecret == "" {
		t.Fatalf("expected a fresh root client with secret, got %+v", res)
	}

	// The admin can authenticate and sits in both groups.
	admin, err := agents.Authenticate(ctx, "root@example.org", "changeme")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	effective, err := agents.EffectiveGroupIDs(ctx, admin.ID)
	if err != nil {
		t.Fatalf("EffectiveGroupIDs: %v", err)
	}
	want := map[string]bool{res.AllUsersGroupID: false, res.RootAdminsGroupID: false}
	for _, id := range effective {
		if _, ok := want[id]; ok {
			want[id] = true
		}
	}
	for id, seen := range want {
		if !seen {
			t.Fatalf("admin missing from %s: %v", id, effective)
		}
	}

	// root_admins hangs off all_users.
	rootAdmins, err := store.Groups(ctx).Find(ctx, res.RootAdminsGroupID)
	if err != nil {
		t.Fatalf("Find root_admins: %v", err)
	}
	if rootAdmins.Source != res.AllUsersGroupID {
		t.Fatalf("root_admins source = %q, want %q", rootAdmins.Source, res.AllUsersGroupID)
	}

	// The root client carries every grant type.
	client, err := store.Clients(ctx).FindByClientID(ctx, res.RootClientID)
	if err != nil {
		t.Fatalf("FindByClientID: %v", err)
	}
	for _, gt := range oauth.KnownGrantTypes {
		if !client.CheckGrantType(gt) {
			t.Fatalf("root client missing grant type %s", gt)
		}
	}

	// The master config privileges root_admins for the gated grants.
	master, err := store.Master(ctx).Get(ctx)
	if err != nil {
		t.Fatalf("Get master: %v", err)
	}
	for _, gt := range oauth.PrivilegedGrantTypes {
		if !master.AllowsGrant(gt, admin.ID, effective) {
			t.Fatalf("root admin should be privileged for %s", gt)
		}
		if master.AllowsGrant(gt, "mortal", nil) {
			t.Fatalf("strangers must not be privileged for %s", gt)
		}
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	seeder, _, store := testSeeder()
	ctx := context.Background()
	cfg := Config{RootAdminEmail: "root@example.org", RootAdminPassword: "changeme"}

	first, err := seeder.Run(ctx, cfg)
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	second, err := seeder.Run(ctx, cfg)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if second.RootAdminID != first.RootAdminID ||
		second.AllUsersGroupID != first.AllUsersGroupID ||
		second.RootAdminsGroupID != first.RootAdminsGroupID ||
		second.RootClientID != first.RootClientID {
		t.Fatalf("re-run changed ids: %+v then %+v", first, second)
	}
	if second.RootClientSecret != "" {
		t.Fatal("existing client must not be re-keyed")
	}

	clients, err := store.Clients(ctx).ListByOwner(ctx, first.RootAdminID)
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	if len(clients) != 1 {
		t.Fatalf("expected one root client, got %d", len(clients))
	}
}

func TestSeedGrantsBaseVisibility(t *testing.T) {
	seeder, agents, _ := testSeeder()
	ctx := context.Background()

	res, err := seeder.Run(ctx, Config{
		RootAdminEmail:    "root@example.org",
		RootAdminPassword: "changeme",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// A fresh user added to all_users can read the base group.
	u, err := agents.CreateUser(ctx, "u@example.org", "pw", "")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := agents.AddUsersToGroup(ctx, res.AllUsersGroupID, []string{u.ID}, ""); err != nil {
		t.Fatalf("AddUsersToGroup: %v", err)
	}
	ok, err := agents.ResolvePermission(ctx, agent.KindGroup, res.AllUsersGroupID, perm.ActionRead, u.ID, false)
	if err != nil {
		t.Fatalf("ResolvePermission: %v", err)
	}
	if !ok {
		t.Fatal("all_users members should read the base group")
	}
	// But cannot modify it.
	ok, err = agents.ResolvePermission(ctx, agent.KindGroup, res.AllUsersGroupID, perm.ActionUpdateContent, u.ID, false)
	if err != nil {
		t.Fatalf("ResolvePermission: %v", err)
	}
	if ok {
		t.Fatal("plain members must not update the base group")
	}
}
