package domain

import (
	"errors"
	"testing"
)

func TestRosterRemoveMigratesHost(t *testing.T) {
	tests := []struct {
		name     string
		members  []string
		removals []string
		wantHost string
	}{
		{
			name:     "SuccessiveHostsLeave",
			members:  []string{"a", "b", "c"},
			removals: []string{"a", "b"},
			wantHost: "c",
		},
		{
			name:     "FirstRemainingWhenOriginalAbsent",
			members:  []string{"a", "b", "c"},
			removals: []string{"a"},
			wantHost: "b",
		},
		{
			name:     "EmptyRosterHasNoHost",
			members:  []string{"a"},
			removals: []string{"a"},
			wantHost: "",
		},
		{
			name:     "NonHostRemovalKeepsHost",
			members:  []string{"a", "b", "c"},
			removals: []string{"b"},
			wantHost: "a",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			r := NewRoster(test.members...)
			for _, id := range test.removals {
				if err := r.Remove(id); err != nil {
					t.Fatalf("Remove(%s) error: %v", id, err)
				}
			}
			if got := r.Host(); got != test.wantHost {
				t.Fatalf("Host() = %q, want %q", got, test.wantHost)
			}
		})
	}
}

func TestRosterHostReturnsToOriginal(t *testing.T) {
	r := NewRoster("a", "b", "c")
	if err := r.Remove("a"); err != nil {
		t.Fatalf("remove a: %v", err)
	}
	if r.Host() != "b" {
		t.Fatalf("host = %q, want b", r.Host())
	}
	if err := r.Add("a"); err != nil {
		t.Fatalf("re-add a: %v", err)
	}
	if err := r.Remove("b"); err != nil {
		t.Fatalf("remove b: %v", err)
	}
	if r.Host() != "a" {
		t.Fatalf("host = %q, want original host a", r.Host())
	}
}

func TestRosterReadyIdempotency(t *testing.T) {
	r := NewRoster("a", "b")
	if err := r.Ready("a"); err != nil {
		t.Fatalf("first ready: %v", err)
	}
	if err := r.Ready("a"); !errors.Is(err, ErrAlreadyReady) {
		t.Fatalf("second ready error = %v, want ErrAlreadyReady", err)
	}
	if r.Len() != 2 || r.ReadyLen() != 1 {
		t.Fatalf("sizes = (%d, %d), want (2, 1)", r.Len(), r.ReadyLen())
	}
	if err := r.Unready("b"); !errors.Is(err, ErrNotReady) {
		t.Fatalf("unready error = %v, want ErrNotReady", err)
	}
	if err := r.Ready("stranger"); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("ready stranger error = %v, want ErrNotParticipant", err)
	}
}

func TestRosterRemoveDropsReadyFlag(t *testing.T) {
	r := NewRoster("a", "b")
	_ = r.Ready("b")
	_ = r.Remove("b")
	if r.IsReady("b") || r.ReadyLen() != 0 {
		t.Fatalf("ready set should not keep removed member")
	}
}

func TestRosterHostIs(t *testing.T) {
	r := NewRoster("a", "b", "c")
	_ = r.Remove("a")

	if r.HostIs("a") {
		t.Fatalf("original host outside the roster must not pass HostIs")
	}
	if !r.HostIs("b") {
		t.Fatalf("current host should pass HostIs")
	}
	if r.HostIs("c") {
		t.Fatalf("plain member should not pass HostIs")
	}

	_ = r.Add("a")
	if !r.HostIs("a") {
		t.Fatalf("original host back in the roster should pass HostIs")
	}
}

func TestRosterClearKeepsHost(t *testing.T) {
	r := NewRoster("a", "b", "c")
	_ = r.Ready("b")
	_ = r.Remove("a")

	removed := r.Clear()
	if len(removed) != 2 {
		t.Fatalf("removed = %v, want 2 members", removed)
	}
	members := r.Members()
	if len(members) != 1 || members[0] != "b" {
		t.Fatalf("members after clear = %v, want [b]", members)
	}
	if r.ReadyLen() != 0 {
		t.Fatalf("ready set should be empty after clear")
	}
}

func TestRosterAddAdoptsHostWhenEmpty(t *testing.T) {
	r := NewRoster("a")
	_ = r.Remove("a")
	if err := r.Add("z"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if r.Host() != "z" {
		t.Fatalf("host = %q, want z", r.Host())
	}
	if err := r.Add("z"); !errors.Is(err, ErrAlreadyInRoster) {
		t.Fatalf("duplicate add error = %v", err)
	}
}
