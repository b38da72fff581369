package perm

import "fmt"

// Mutation is one grant or revoke request against a resource's permissions:
// which actions, which of the two agent sets, and which agents. Stores apply
// it as an atomic set-union (grant) or set-difference (revoke).
type Mutation struct {
	Actions     []Action
	Disposition Disposition
	UserIDs     []string
	GroupIDs    []string
}

// Validate checks the mutation addresses known actions and a real
// disposition.
func (m Mutation) Validate() error {
	if len(m.Actions) == 0 {
		return fmt.Errorf("perm: mutation names no actions")
	}
	for _, a := range m.Actions {
		if !ValidAction(a) {
			return fmt.Errorf("perm: unknown action %q", a)
		}
	}
	if !ValidDisposition(m.Disposition) {
		return fmt.Errorf("perm: unknown disposition %q", m.Disposition)
	}
	if len(m.UserIDs) == 0 && len(m.GroupIDs) == 0 {
		return fmt.Errorf("perm: mutation names no agents")
	}
	return nil
}

// Apply performs the mutation against an in-memory permissions map. Stores
// that hold documents in application memory (tests, bootstrap construction)
// share this with the SQL set-update path.
func (m Mutation) Apply(p ObjectPermissions, revoke bool) {
	if revoke {
		p.RemoveAgents(m.Actions, m.Disposition, m.UserIDs, m.GroupIDs)
		return
	}
	p.AddAgents(m.Actions, m.Disposition, m.UserIDs, m.GroupIDs)
}
