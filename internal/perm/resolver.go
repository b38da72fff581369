package perm

// Resolve decides whether the caller may perform action on a resource
// carrying the given permissions.
//
// A nil permissions map means the resource has no permissions attached and
// the caller-supplied default applies regardless of identity. Otherwise the
// caller identity set (its user id, its effective group ids, and the implied
// any-authenticated membership) is intersected with the action's agent sets:
// withdrawal always wins over grant, and with neither matched the answer is
// deny.
//
// groupIDs must already be the effective, ancestor-inclusive set; the
// resolver never walks the hierarchy itself.
func Resolve(p ObjectPermissions, action Action, userID string, groupIDs []string, defaultIfAbsent bool) bool {
	if p == nil {
		return defaultIfAbsent
	}
	ap, ok := p[action]
	if !ok {
		return false
	}
	if ap.Withdrawn.Matches(userID, groupIDs) {
		return false
	}
	return ap.Granted.Matches(userID, groupIDs)
}
