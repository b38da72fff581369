// Package bootstrap seeds a fresh deployment: the root administrator, the
// base group pair, the root OAuth2 client and the master grant-privilege
// config. Every step is idempotent so the seeder can run on each start.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"codexbase.org/internal/agent"
	"codexbase.org/internal/ids"
	"codexbase.org/internal/oauth"
	"codexbase.org/internal/perm"
)

// Defaults for the seeded records.
const (
	DefaultAllUsersGroup   = "all_users"
	DefaultRootAdminsGroup = "root_admins"
)

// Config drives the seeding run. Email and password are required; the rest
// defaults sensibly.
type Config struct {
	RootAdminEmail    string
	RootAdminPassword string
	RootAdminName     string

	AllUsersGroup   string
	RootAdminsGroup string

	RootClientRedirectURIs []string
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.AllUsersGroup == "" {
		out.AllUsersGroup = DefaultAllUsersGroup
	}
	if out.RootAdminsGroup == "" {
		out.RootAdminsGroup = DefaultRootAdminsGroup
	}
	if out.RootAdminName == "" {
		out.RootAdminName = "Root Administrator"
	}
	return out
}

// Result reports the ids of the seeded records, pre-existing or fresh.
type Result struct {
	RootAdminID       string
	AllUsersGroupID   string
	RootAdminsGroupID string
	RootClientID      string
	RootClientSecret  string // empty when the client already existed
}

// Seeder runs the bootstrap sequence against the two stores.
type Seeder struct {
	agents     *agent.Service
	agentStore agent.Store
	oauthStore oauth.Store
}

func New(agents *agent.Service, agentStore agent.Store, oauthStore oauth.Store) *Seeder {
	return &Seeder{agents: agents, agentStore: agentStore, oauthStore: oauthStore}
}

// Run seeds everything, skipping records that already exist.
func (s *Seeder) Run(ctx context.Context, cfg Config) (*Result, error) {
	if cfg.RootAdminEmail == "" || cfg.RootAdminPassword == "" {
		return nil, errors.New("bootstrap: root admin email and password are required")
	}
	cfg = cfg.withDefaults()
	res := &Result{}

	admin, err := s.ensureRootAdmin(ctx, cfg)
	if err != nil {
		return nil, err
	}
	res.RootAdminID = admin.ID

	allUsers, err := s.ensureGroup(ctx, cfg.AllUsersGroup, "every registered user", "", admin.ID)
	if err != nil {
		return nil, err
	}
	res.AllUsersGroupID = allUsers.ID

	rootAdmins, err := s.ensureGroup(ctx, cfg.RootAdminsGroup, "deployment administrators", allUsers.ID, admin.ID)
	if err != nil {
		return nil, err
	}
	res.RootAdminsGroupID = rootAdmins.ID

	if err := s.wireBaseGrants(ctx, admin.ID, allUsers.ID, rootAdmins.ID); err != nil {
		return nil, err
	}

	client, secret, err := s.ensureRootClient(ctx, cfg, admin.ID)
	if err != nil {
		return nil, err
	}
	res.RootClientID = client.ClientID
	res.RootClientSecret = secret

	if err := s.ensureMasterConfig(ctx, rootAdmins.ID); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Seeder) ensureRootAdmin(ctx context.Context, cfg Config) (*agent.User, error) {
	users := s.agentStore.Users(ctx)
	if existing, err := users.FindByEmail(ctx, cfg.RootAdminEmail); err == nil {
		return existing, nil
	} else if !errors.Is(err, agent.ErrNotFound) {
		return nil, err
	}
	admin, err := s.agents.CreateUser(ctx, cfg.RootAdminEmail, cfg.RootAdminPassword, cfg.RootAdminName)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: create root admin: %w", err)
	}
	return admin, nil
}

func (s *Seeder) ensureGroup(ctx context.Context, name, description, source, adminID string) (*agent.Group, error) {
	groups := s.agentStore.Groups(ctx)
	if existing, err := groups.FindByName(ctx, name); err == nil {
		return existing, nil
	} else if !errors.Is(err, agent.ErrNotFound) {
		return nil, err
	}
	group, err := s.agents.CreateGroup(ctx, name, description, source, adminID)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: create group %s: %w", name, err)
	}
	return group, nil
}

// wireBaseGrants attaches the standing permissions: members of all_users can
// read and list the base group and the root admin record, and root_admins
// keep full control of both groups. Grants are set unions, so re-running is
// harmless.
func (s *Seeder) wireBaseGrants(ctx context.Context, adminID, allUsersID, rootAdminsID string) error {
	readList := perm.Mutation{
		Actions:     []perm.Action{perm.ActionRead, perm.ActionList},
		Disposition: perm.Granted,
		GroupIDs:    []string{allUsersID},
	}
	if err := s.agents.GrantPermissions(ctx, agent.KindGroup, allUsersID, readList, ""); err != nil {
		return fmt.Errorf("bootstrap: grant read on %s: %w", allUsersID, err)
	}
	if err := s.agents.GrantPermissions(ctx, agent.KindUser, adminID, readList, ""); err != nil {
		return fmt.Errorf("bootstrap: grant read on root admin: %w", err)
	}

	full := perm.Mutation{
		Actions:     perm.Actions,
		Disposition: perm.Granted,
		GroupIDs:    []string{rootAdminsID},
	}
	for _, groupID := range []string{allUsersID, rootAdminsID} {
		if err := s.agents.GrantPermissions(ctx, agent.KindGroup, groupID, full, ""); err != nil {
			return fmt.Errorf("bootstrap: grant control on %s: %w", groupID, err)
		}
	}
	return nil
}

// ensureRootClient inserts the root client directly, bypassing the
// privileged-grant gate that governs ordinary registrations.
func (s *Seeder) ensureRootClient(ctx context.Context, cfg Config, adminID string) (*oauth.Client, string, error) {
	clients := s.oauthStore.Clients(ctx)
	owned, err := clients.ListByOwner(ctx, adminID)
	if err != nil {
		return nil, "", err
	}
	if len(owned) > 0 {
		return owned[0], "", nil
	}

	secret := oauth.NewClientSecret()
	client := &oauth.Client{
		ID:                      ids.New(),
		ClientID:                uuid.NewString(),
		ClientSecret:            secret,
		Name:                    "codexbase-root",
		UserID:                  adminID,
		GrantTypes:              oauth.KnownGrantTypes,
		ResponseTypes:           []string{oauth.ResponseTypeCode, oauth.ResponseTypeToken},
		RedirectURIs:            cfg.RootClientRedirectURIs,
		Scope:                   "openid profile docs admin",
		TokenEndpointAuthMethod: "client_secret_post",
		Permissions:             perm.Template(),
		CreatedAt:               time.Now().UTC(),
	}
	client.Permissions.AddAgents(perm.Actions, perm.Granted, []string{adminID}, nil)
	if err := clients.Create(ctx, client); err != nil {
		return nil, "", fmt.Errorf("bootstrap: create root client: %w", err)
	}
	return client, secret, nil
}

func (s *Seeder) ensureMasterConfig(ctx context.Context, rootAdminsID string) error {
	master := s.oauthStore.Master(ctx)
	if _, err := master.Get(ctx); err == nil {
		return nil
	} else if !errors.Is(err, oauth.ErrNotFound) {
		return err
	}
	cfg := &oauth.MasterConfig{
		ID: ids.New(),
		GrantPrivileges: map[string]perm.AgentSet{
			oauth.GrantClientCredentials: {Groups: []string{rootAdminsID}},
			oauth.GrantPassword:          {Groups: []string{rootAdminsID}},
		},
		Permissions: perm.Template(),
	}
	cfg.Permissions.AddAgents(
		[]perm.Action{perm.ActionRead, perm.ActionUpdateContent},
		perm.Granted, nil, []string{rootAdminsID})
	if err := master.Put(ctx, cfg); err != nil {
		return fmt.Errorf("bootstrap: write master config: %w", err)
	}
	return nil
}
