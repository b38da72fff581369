package oauth

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"codexbase.org/internal/ids"
	"codexbase.org/internal/perm"
)

// NewClientParams describes a client registration request.
type NewClientParams struct {
	Name          string
	RedirectURIs  []string
	GrantTypes    []string
	ResponseTypes []string
	Scope         string
	// Public clients get no secret and authenticate with "none".
	Public        bool
	CreatorUserID string
}

// CreateClient registers a client. Privileged grant types are gated against
// the master config: the creator's effective identity must intersect the
// configured agent set for each privileged grant requested, or the whole
// registration is rejected.
func (s *Server) CreateClient(ctx context.Context, p NewClientParams) (*Client, error) {
	if p.CreatorUserID == "" {
		return nil, ErrInvalidRequest.WithDescription("missing creator")
	}
	if len(p.GrantTypes) == 0 {
		return nil, ErrInvalidRequest.WithDescription("at least one grant type is required")
	}
	for _, gt := range p.GrantTypes {
		if !knownGrantType(gt) {
			return nil, ErrInvalidRequest.WithDescription("unknown grant type %q", gt)
		}
	}
	if err := s.checkGrantPrivileges(ctx, p.GrantTypes, p.CreatorUserID); err != nil {
		return nil, err
	}

	client := &Client{
		ID:                      ids.New(),
		ClientID:                uuid.NewString(),
		Name:                    p.Name,
		UserID:                  p.CreatorUserID,
		GrantTypes:              append([]string(nil), p.GrantTypes...),
		ResponseTypes:           append([]string(nil), p.ResponseTypes...),
		RedirectURIs:            append([]string(nil), p.RedirectURIs...),
		Scope:                   p.Scope,
		TokenEndpointAuthMethod: "none",
		Permissions:             perm.Template(),
		CreatedAt:               s.now().UTC(),
	}
	if !p.Public {
		client.ClientSecret = randomToken(32)
		client.TokenEndpointAuthMethod = "client_secret_post"
	}
	client.Permissions.AddAgents(perm.Actions, perm.Granted, []string{p.CreatorUserID}, nil)

	if err := s.store.Clients(ctx).Create(ctx, client); err != nil {
		return nil, err
	}
	return client, nil
}

// ListClients returns the clients owned by a user.
func (s *Server) ListClients(ctx context.Context, ownerID string) ([]*Client, error) {
	return s.store.Clients(ctx).ListByOwner(ctx, ownerID)
}

// DeleteClient removes a client registration. Only the owner or an agent
// with delete permission on the record may remove it.
func (s *Server) DeleteClient(ctx context.Context, id, callerID string) error {
	clients := s.store.Clients(ctx)
	client, err := clients.Find(ctx, id)
	if err != nil {
		return err
	}
	if callerID != "" && client.UserID != callerID {
		groupIDs, gerr := s.agents.EffectiveGroupIDs(ctx, callerID)
		if gerr != nil {
			return gerr
		}
		if !perm.Resolve(client.Permissions, perm.ActionDelete, callerID, groupIDs, false) {
			return ErrAccessDenied.WithDescription("caller may not delete this client")
		}
	}
	return clients.Delete(ctx, id)
}

func (s *Server) checkGrantPrivileges(ctx context.Context, grantTypes []string, creatorID string) error {
	var privileged []string
	for _, gt := range grantTypes {
		for _, p := range PrivilegedGrantTypes {
			if gt == p {
				privileged = append(privileged, gt)
			}
		}
	}
	if len(privileged) == 0 {
		return nil
	}
	master, err := s.store.Master(ctx).Get(ctx)
	if errors.Is(err, ErrNotFound) {
		// No master config means nobody is privileged.
		return ErrUnauthorizedClient.WithDescription("privileged grant types are not enabled")
	}
	if err != nil {
		return err
	}
	groupIDs, err := s.agents.EffectiveGroupIDs(ctx, creatorID)
	if err != nil {
		return err
	}
	for _, gt := range privileged {
		if !master.AllowsGrant(gt, creatorID, groupIDs) {
			return ErrUnauthorizedClient.WithDescription("creator may not register clients with %s", gt)
		}
	}
	return nil
}

// NewClientSecret mints a fresh client secret. Exposed for seeding paths
// that insert clients directly.
func NewClientSecret() string {
	return randomToken(32)
}

func knownGrantType(gt string) bool {
	for _, k := range KnownGrantTypes {
		if gt == k {
			return true
		}
	}
	return false
}
