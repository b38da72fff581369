package perm

import "testing"

func TestResolveDefaultWhenAbsent(t *testing.T) {
	for _, def := range []bool{true, false} {
		if got := Resolve(nil, ActionRead, "u1", []string{"g1"}, def); got != def {
			t.Fatalf("Resolve(nil, default=%v) = %v", def, got)
		}
		if got := Resolve(nil, ActionDelete, "", nil, def); got != def {
			t.Fatalf("Resolve(nil, anonymous, default=%v) = %v", def, got)
		}
	}
}

func TestResolveDefaultClosed(t *testing.T) {
	p := Template()
	if Resolve(p, ActionRead, "u1", []string{"g1"}, true) {
		t.Fatal("empty permissions must deny even with a permissive default")
	}
}

func TestResolveGrantPaths(t *testing.T) {
	p := Template()
	p.AddAgents([]Action{ActionRead}, Granted, []string{"u1"}, []string{"g1"})

	if !Resolve(p, ActionRead, "u1", nil, false) {
		t.Fatal("direct user grant denied")
	}
	if !Resolve(p, ActionRead, "u2", []string{"g1"}, false) {
		t.Fatal("group grant denied")
	}
	if Resolve(p, ActionRead, "u2", []string{"g2"}, false) {
		t.Fatal("unrelated caller allowed")
	}
	if Resolve(p, ActionList, "u1", nil, false) {
		t.Fatal("grant leaked to another action")
	}
}

func TestResolveWithdrawalWins(t *testing.T) {
	p := Template()
	p.AddAgents([]Action{ActionRead}, Granted, []string{"u1"}, []string{"g1"})
	p.AddAgents([]Action{ActionRead}, Withdrawn, []string{"u1"}, nil)

	if Resolve(p, ActionRead, "u1", []string{"g1"}, true) {
		t.Fatal("withdrawn agent must be denied regardless of grants")
	}
	// The group grant still holds for other members.
	if !Resolve(p, ActionRead, "u2", []string{"g1"}, false) {
		t.Fatal("withdrawal of one user must not affect the rest of the group")
	}
}

func TestResolveWithdrawnGroupBeatsUserGrant(t *testing.T) {
	p := Template()
	p.AddAgents([]Action{ActionUpdateContent}, Granted, []string{"u1"}, nil)
	p.AddAgents([]Action{ActionUpdateContent}, Withdrawn, nil, []string{"g1"})

	if Resolve(p, ActionUpdateContent, "u1", []string{"g1"}, false) {
		t.Fatal("withdrawal via group must override a direct user grant")
	}
}

func TestResolveAnyAuthenticated(t *testing.T) {
	p := Template()
	p[ActionRead].Granted.Any = true

	if !Resolve(p, ActionRead, "whoever", nil, false) {
		t.Fatal("any-authenticated grant denied")
	}

	p[ActionRead].Withdrawn.AddUsers("banned")
	if Resolve(p, ActionRead, "banned", nil, false) {
		t.Fatal("withdrawal must win over an any-authenticated grant")
	}
}

func TestAddRemoveAgentsIdempotent(t *testing.T) {
	p := Template()
	p.AddAgents([]Action{ActionRead}, Granted, []string{"u1", "u1"}, nil)
	p.AddAgents([]Action{ActionRead}, Granted, []string{"u1"}, nil)
	if got := len(p[ActionRead].Granted.Users); got != 1 {
		t.Fatalf("expected a single u1 entry, got %d", got)
	}

	p.RemoveAgents([]Action{ActionRead}, Granted, []string{"u1"}, nil)
	p.RemoveAgents([]Action{ActionRead}, Granted, []string{"u1", "absent"}, nil)
	if got := len(p[ActionRead].Granted.Users); got != 0 {
		t.Fatalf("expected empty set after removal, got %d entries", got)
	}
}

func TestTemplateCoversAllActions(t *testing.T) {
	p := Template()
	for _, a := range Actions {
		ap, ok := p[a]
		if !ok {
			t.Fatalf("template is missing action %q", a)
		}
		if !ap.Granted.IsEmpty() || !ap.Withdrawn.IsEmpty() {
			t.Fatalf("template sets for %q are not empty", a)
		}
	}
}
