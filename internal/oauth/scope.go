package oauth

import "strings"

// ScopeList splits a space-separated scope string, dropping empties.
func ScopeList(scope string) []string {
	return strings.Fields(scope)
}

// HasScope reports whether the space-separated scope string contains s.
func HasScope(scope, s string) bool {
	for _, item := range ScopeList(scope) {
		if item == s {
			return true
		}
	}
	return false
}

// scopeSubset reports whether every element of requested appears in allowed.
// An empty request is trivially a subset.
func scopeSubset(requested, allowed string) bool {
	allowedSet := make(map[string]struct{})
	for _, s := range ScopeList(allowed) {
		allowedSet[s] = struct{}{}
	}
	for _, s := range ScopeList(requested) {
		if _, ok := allowedSet[s]; !ok {
			return false
		}
	}
	return true
}
