package agent

import (
	"context"
	"fmt"
)

const defaultMaxDepth = 64

// GroupSource is the narrow lookup surface the hierarchy walk needs. Any
// GroupStore satisfies it.
type GroupSource interface {
	DirectMemberships(ctx context.Context, userID string) ([]string, error)
	Parent(ctx context.Context, groupID string) (string, error)
}

// HierarchyResolver computes the transitive closure of a user's group
// memberships by walking each group's source pointer towards the roots.
type HierarchyResolver struct {
	groups   GroupSource
	maxDepth int
}

// HierarchyOption configures a HierarchyResolver.
type HierarchyOption func(*HierarchyResolver)

// WithMaxDepth bounds the ancestor walk. Chains longer than the bound are
// treated like cycles: a data-integrity fault.
func WithMaxDepth(depth int) HierarchyOption {
	return func(r *HierarchyResolver) {
		if depth > 0 {
			r.maxDepth = depth
		}
	}
}

// NewHierarchyResolver constructs a resolver over the given group source.
func NewHierarchyResolver(groups GroupSource, opts ...HierarchyOption) *HierarchyResolver {
	r := &HierarchyResolver{groups: groups, maxDepth: defaultMaxDepth}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// EffectiveGroupIDs returns the user's direct memberships unioned with every
// ancestor reachable through source pointers. The walk is iterative with a
// visited set, so no group is loaded twice; a parent pointer closing back on
// its own chain terminates with ErrHierarchyCycle instead of looping.
func (r *HierarchyResolver) EffectiveGroupIDs(ctx context.Context, userID string) ([]string, error) {
	direct, err := r.groups.DirectMemberships(ctx, userID)
	if err != nil {
		return nil, err
	}

	visited := make(map[string]struct{}, len(direct))
	var effective []string

	for _, gid := range direct {
		if _, ok := visited[gid]; ok {
			continue
		}
		visited[gid] = struct{}{}
		effective = append(effective, gid)

		// Walk this group's ancestor chain. chain guards against a source
		// pointer closing back on the path being walked; visited only stops
		// re-collection of ancestors already reached from another direct
		// membership.
		chain := map[string]struct{}{gid: {}}
		current := gid
		for depth := 0; ; depth++ {
			if depth >= r.maxDepth {
				return nil, fmt.Errorf("%w: ancestor chain of %s exceeds depth %d", ErrHierarchyCycle, gid, r.maxDepth)
			}
			parent, err := r.groups.Parent(ctx, current)
			if err != nil {
				return nil, err
			}
			if parent == "" {
				break
			}
			if _, ok := chain[parent]; ok {
				return nil, fmt.Errorf("%w: group %s is its own ancestor", ErrHierarchyCycle, parent)
			}
			chain[parent] = struct{}{}
			if _, ok := visited[parent]; ok {
				break
			}
			visited[parent] = struct{}{}
			effective = append(effective, parent)
			current = parent
		}
	}
	return effective, nil
}
