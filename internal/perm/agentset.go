package perm

import "slices"

// AgentSet names a collection of agents: specific user ids, specific group
// ids, or every authenticated agent when Any is set. Any replaces the old
// wildcard-id convention so that a literal id can never collide with it.
type AgentSet struct {
	Users  []string `json:"users"`
	Groups []string `json:"groups"`
	Any    bool     `json:"any,omitempty"`
}

// TemplateAgentSet returns an empty set with both id slices allocated.
func TemplateAgentSet() AgentSet {
	return AgentSet{Users: []string{}, Groups: []string{}}
}

// AddUsers unions the given user ids into the set. Already-present ids are
// skipped, so the operation is idempotent.
func (s *AgentSet) AddUsers(ids ...string) {
	for _, id := range ids {
		if id == "" || slices.Contains(s.Users, id) {
			continue
		}
		s.Users = append(s.Users, id)
	}
}

// AddGroups unions the given group ids into the set.
func (s *AgentSet) AddGroups(ids ...string) {
	for _, id := range ids {
		if id == "" || slices.Contains(s.Groups, id) {
			continue
		}
		s.Groups = append(s.Groups, id)
	}
}

// RemoveUsers drops the given user ids. Absent ids are a silent no-op.
func (s *AgentSet) RemoveUsers(ids ...string) {
	s.Users = slices.DeleteFunc(s.Users, func(v string) bool {
		return slices.Contains(ids, v)
	})
}

// RemoveGroups drops the given group ids.
func (s *AgentSet) RemoveGroups(ids ...string) {
	s.Groups = slices.DeleteFunc(s.Groups, func(v string) bool {
		return slices.Contains(ids, v)
	})
}

// Matches reports whether the caller identity (user id plus its effective
// group ids) intersects the set. An Any set matches every authenticated
// caller.
func (s AgentSet) Matches(userID string, groupIDs []string) bool {
	if s.Any {
		return true
	}
	if userID != "" && slices.Contains(s.Users, userID) {
		return true
	}
	for _, gid := range groupIDs {
		if slices.Contains(s.Groups, gid) {
			return true
		}
	}
	return false
}

// IsEmpty reports whether the set names no agent at all.
func (s AgentSet) IsEmpty() bool {
	return !s.Any && len(s.Users) == 0 && len(s.Groups) == 0
}

// Clone returns a deep copy of the set.
func (s AgentSet) Clone() AgentSet {
	return AgentSet{
		Users:  slices.Clone(s.Users),
		Groups: slices.Clone(s.Groups),
		Any:    s.Any,
	}
}
