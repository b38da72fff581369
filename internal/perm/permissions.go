// Package perm implements the per-resource permission model: a fixed action
// vocabulary, a granted/withdrawn agent set per action, and the pure
// resolution function deciding whether a caller may perform an action.
package perm

// Action is one of the fixed operations a resource can gate.
type Action string

const (
	ActionRead           Action = "read"
	ActionList           Action = "list"
	ActionUpdateContent  Action = "update_content"
	ActionDelete         Action = "delete"
	ActionCreateChildren Action = "create_children"
	ActionLinkFromOthers Action = "link_from_others"
)

// Actions enumerates every action key a permissions document carries.
var Actions = []Action{
	ActionRead,
	ActionList,
	ActionUpdateContent,
	ActionDelete,
	ActionCreateChildren,
	ActionLinkFromOthers,
}

// ValidAction reports whether a is part of the fixed vocabulary.
func ValidAction(a Action) bool {
	for _, known := range Actions {
		if a == known {
			return true
		}
	}
	return false
}

// Disposition addresses one of the two agent sets attached to an action.
type Disposition string

const (
	Granted   Disposition = "granted"
	Withdrawn Disposition = "withdrawn"
)

// ValidDisposition reports whether d addresses a real agent set.
func ValidDisposition(d Disposition) bool {
	return d == Granted || d == Withdrawn
}

// ActionPermissions holds the granted and withdrawn agent sets for one action.
type ActionPermissions struct {
	Granted   AgentSet `json:"granted"`
	Withdrawn AgentSet `json:"withdrawn"`
}

// ObjectPermissions maps every action to its agent sets. A nil map on a
// resource is the distinct "no permissions attached" state; resolution then
// falls back to the caller-supplied default.
type ObjectPermissions map[Action]*ActionPermissions

// Template returns permissions with empty granted/withdrawn sets for every
// action. All permission-bearing resources are created through this so the
// full key set is always present.
func Template() ObjectPermissions {
	p := make(ObjectPermissions, len(Actions))
	for _, a := range Actions {
		p[a] = &ActionPermissions{
			Granted:   TemplateAgentSet(),
			Withdrawn: TemplateAgentSet(),
		}
	}
	return p
}

// set returns the addressed agent set, materialising the action entry if a
// stored document predates the full template.
func (p ObjectPermissions) set(action Action, d Disposition) *AgentSet {
	ap, ok := p[action]
	if !ok {
		ap = &ActionPermissions{Granted: TemplateAgentSet(), Withdrawn: TemplateAgentSet()}
		p[action] = ap
	}
	if d == Withdrawn {
		return &ap.Withdrawn
	}
	return &ap.Granted
}

// AddAgents unions the given user and group ids into the addressed agent set
// of each action. Present ids are skipped; the call is idempotent.
func (p ObjectPermissions) AddAgents(actions []Action, d Disposition, userIDs, groupIDs []string) {
	for _, a := range actions {
		s := p.set(a, d)
		s.AddUsers(userIDs...)
		s.AddGroups(groupIDs...)
	}
}

// RemoveAgents removes the given user and group ids from the addressed agent
// set of each action. Absent ids are a silent no-op.
func (p ObjectPermissions) RemoveAgents(actions []Action, d Disposition, userIDs, groupIDs []string) {
	for _, a := range actions {
		s := p.set(a, d)
		s.RemoveUsers(userIDs...)
		s.RemoveGroups(groupIDs...)
	}
}

// Clone returns a deep copy, preserving the nil "absent" state.
func (p ObjectPermissions) Clone() ObjectPermissions {
	if p == nil {
		return nil
	}
	out := make(ObjectPermissions, len(p))
	for a, ap := range p {
		out[a] = &ActionPermissions{
			Granted:   ap.Granted.Clone(),
			Withdrawn: ap.Withdrawn.Clone(),
		}
	}
	return out
}
