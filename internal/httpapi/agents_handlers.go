package httpapi

import (
	"net/http"

	"codexbase.org/internal/agent"
	"codexbase.org/internal/audit"
	"codexbase.org/internal/obs"
	"codexbase.org/internal/perm"
)

type createUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

func (a *API) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, err := a.agents.CreateUser(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		writeAgentError(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "agent.user.created", map[string]any{"user_id": user.ID})
	writeJSON(w, http.StatusCreated, userResponse{ID: user.ID, Email: user.Email, Name: user.Name})
}

// handleGetUser serves a user record to callers holding read on it.
func (a *API) handleGetUser(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(r.Context())
	if !requireUser(w, p, ok) {
		return
	}
	id := r.PathValue("id")
	allowed, err := a.agents.ResolvePermission(r.Context(), agent.KindUser, id, perm.ActionRead, p.UserID, false)
	if err != nil {
		writeAgentError(w, err)
		return
	}
	obs.ObservePermissionCheck(string(perm.ActionRead), allowed)
	if !allowed && p.UserID != id {
		writeError(w, http.StatusForbidden, "permission denied")
		return
	}
	user, err := a.agents.GetUser(r.Context(), id)
	if err != nil {
		writeAgentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{ID: user.ID, Email: user.Email, Name: user.Name})
}

type createGroupRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Source      string `json:"source,omitempty"`
}

type groupResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Source      string   `json:"source,omitempty"`
	Members     []string `json:"members"`
}

func (a *API) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(r.Context())
	if !requireUser(w, p, ok) {
		return
	}
	var req createGroupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	group, err := a.agents.CreateGroup(r.Context(), req.Name, req.Description, req.Source, p.UserID)
	if err != nil {
		writeAgentError(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "agent.group.created", map[string]any{
		"group_id": group.ID,
		"source":   group.Source,
	})
	writeJSON(w, http.StatusCreated, groupView(group))
}

func (a *API) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(r.Context())
	if !requireUser(w, p, ok) {
		return
	}
	id := r.PathValue("id")
	allowed, err := a.agents.ResolvePermission(r.Context(), agent.KindGroup, id, perm.ActionRead, p.UserID, false)
	if err != nil {
		writeAgentError(w, err)
		return
	}
	obs.ObservePermissionCheck(string(perm.ActionRead), allowed)
	if !allowed {
		writeError(w, http.StatusForbidden, "permission denied")
		return
	}
	group, err := a.agents.GetGroup(r.Context(), id)
	if err != nil {
		writeAgentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, groupView(group))
}

func groupView(g *agent.Group) groupResponse {
	return groupResponse{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description,
		Source:      g.Source,
		Members:     g.Members,
	}
}

type membersRequest struct {
	UserIDs []string `json:"user_ids"`
}

func (a *API) handleAddMembers(w http.ResponseWriter, r *http.Request) {
	a.handleMembers(w, r, true)
}

func (a *API) handleRemoveMembers(w http.ResponseWriter, r *http.Request) {
	a.handleMembers(w, r, false)
}

func (a *API) handleMembers(w http.ResponseWriter, r *http.Request, add bool) {
	p, ok := a.principal(r.Context())
	if !requireUser(w, p, ok) {
		return
	}
	var req membersRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.UserIDs) == 0 {
		writeError(w, http.StatusBadRequest, "user_ids is required")
		return
	}
	groupID := r.PathValue("id")
	var err error
	event := "agent.group.members_added"
	if add {
		err = a.agents.AddUsersToGroup(r.Context(), groupID, req.UserIDs, p.UserID)
	} else {
		event = "agent.group.members_removed"
		err = a.agents.RemoveUsersFromGroup(r.Context(), groupID, req.UserIDs, p.UserID)
	}
	if err != nil {
		writeAgentError(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), event, map[string]any{
		"group_id": groupID,
		"user_ids": req.UserIDs,
	})
	w.WriteHeader(http.StatusNoContent)
}

type permissionMutationRequest struct {
	ResourceKind string   `json:"resource_kind"`
	ResourceID   string   `json:"resource_id"`
	Actions      []string `json:"actions"`
	Disposition  string   `json:"disposition"`
	UserIDs      []string `json:"user_ids,omitempty"`
	GroupIDs     []string `json:"group_ids,omitempty"`
}

func (a *API) handleGrant(w http.ResponseWriter, r *http.Request) {
	a.handlePermissionMutation(w, r, false)
}

func (a *API) handleRevokePerms(w http.ResponseWriter, r *http.Request) {
	a.handlePermissionMutation(w, r, true)
}

func (a *API) handlePermissionMutation(w http.ResponseWriter, r *http.Request, revoke bool) {
	p, ok := a.principal(r.Context())
	if !requireUser(w, p, ok) {
		return
	}
	var req permissionMutationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	actions := make([]perm.Action, 0, len(req.Actions))
	for _, act := range req.Actions {
		actions = append(actions, perm.Action(act))
	}
	m := perm.Mutation{
		Actions:     actions,
		Disposition: perm.Disposition(req.Disposition),
		UserIDs:     req.UserIDs,
		GroupIDs:    req.GroupIDs,
	}
	kind := agent.ResourceKind(req.ResourceKind)
	var err error
	event := "perm.granted"
	if revoke {
		event = "perm.revoked"
		err = a.agents.RevokePermissions(r.Context(), kind, req.ResourceID, m, p.UserID)
	} else {
		err = a.agents.GrantPermissions(r.Context(), kind, req.ResourceID, m, p.UserID)
	}
	if err != nil {
		writeAgentError(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), event, map[string]any{
		"resource_kind": req.ResourceKind,
		"resource_id":   req.ResourceID,
		"actions":       req.Actions,
		"disposition":   req.Disposition,
	})
	w.WriteHeader(http.StatusNoContent)
}

// handleResolve answers whether a user may perform an action on a resource.
// The subject defaults to the caller; resolving for another user requires
// read permission on that user's record.
func (a *API) handleResolve(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(r.Context())
	if !requireUser(w, p, ok) {
		return
	}
	q := r.URL.Query()
	kind := agent.ResourceKind(q.Get("resource_kind"))
	resourceID := q.Get("resource_id")
	action := perm.Action(q.Get("action"))
	subject := q.Get("user_id")
	if subject == "" {
		subject = p.UserID
	}
	if resourceID == "" || action == "" {
		writeError(w, http.StatusBadRequest, "resource_id and action are required")
		return
	}
	if subject != p.UserID {
		canRead, err := a.agents.ResolvePermission(r.Context(), agent.KindUser, subject, perm.ActionRead, p.UserID, false)
		if err != nil {
			writeAgentError(w, err)
			return
		}
		if !canRead {
			writeError(w, http.StatusForbidden, "permission denied")
			return
		}
	}
	defaultIfAbsent := q.Get("default") == "true"
	allowed, err := a.agents.ResolvePermission(r.Context(), kind, resourceID, action, subject, defaultIfAbsent)
	if err != nil {
		writeAgentError(w, err)
		return
	}
	obs.ObservePermissionCheck(string(action), allowed)
	writeJSON(w, http.StatusOK, map[string]any{
		"resource_kind": string(kind),
		"resource_id":   resourceID,
		"action":        string(action),
		"user_id":       subject,
		"allowed":       allowed,
	})
}
