package domain

import "errors"

var (
	ErrNotParticipant   = errors.New("participant is not in the session")
	ErrAlreadyInRoster  = errors.New("participant is already in the session")
	ErrAlreadyReady     = errors.New("participant is already ready")
	ErrNotReady         = errors.New("participant is not ready")
	ErrEmptyParticipant = errors.New("participant id is empty")
)

// Roster tracks the members of one session, which of them are ready, and who hosts.
// Members keep insertion order so host migration and iteration are stable.
// Roster is not safe for concurrent use; the owning session serializes access.
type Roster struct {
	members      []string
	ready        map[string]struct{}
	host         string
	originalHost string
}

// NewRoster builds a roster whose first member is both host and original host.
func NewRoster(members ...string) *Roster {
	r := &Roster{ready: make(map[string]struct{})}
	for _, id := range members {
		if id == "" || r.Has(id) {
			continue
		}
		r.members = append(r.members, id)
	}
	if len(r.members) > 0 {
		r.host = r.members[0]
		r.originalHost = r.members[0]
	}
	return r
}

// Has reports whether id is a member.
func (r *Roster) Has(id string) bool {
	return r.indexOf(id) >= 0
}

func (r *Roster) indexOf(id string) int {
	for i, member := range r.members {
		if member == id {
			return i
		}
	}
	return -1
}

// Add appends a member. A roster without a host adopts the newcomer as host.
func (r *Roster) Add(id string) error {
	if id == "" {
		return ErrEmptyParticipant
	}
	if r.Has(id) {
		return ErrAlreadyInRoster
	}
	r.members = append(r.members, id)
	if r.host == "" {
		r.host = id
		if r.originalHost == "" {
			r.originalHost = id
		}
	}
	return nil
}

// Ready marks a member as ready.
func (r *Roster) Ready(id string) error {
	if !r.Has(id) {
		return ErrNotParticipant
	}
	if _, ok := r.ready[id]; ok {
		return ErrAlreadyReady
	}
	r.ready[id] = struct{}{}
	return nil
}

// Unready clears a member's ready flag.
func (r *Roster) Unready(id string) error {
	if !r.Has(id) {
		return ErrNotParticipant
	}
	if _, ok := r.ready[id]; !ok {
		return ErrNotReady
	}
	delete(r.ready, id)
	return nil
}

// IsReady reports whether id is in the ready set.
func (r *Roster) IsReady(id string) bool {
	_, ok := r.ready[id]
	return ok
}

// Remove drops a member and migrates the host when the host leaves:
// the original host if still present, otherwise the first remaining member,
// otherwise nobody.
func (r *Roster) Remove(id string) error {
	i := r.indexOf(id)
	if i < 0 {
		return ErrNotParticipant
	}
	r.members = append(r.members[:i], r.members[i+1:]...)
	delete(r.ready, id)

	if r.host == id {
		switch {
		case r.Has(r.originalHost):
			r.host = r.originalHost
		case len(r.members) > 0:
			r.host = r.members[0]
		default:
			r.host = ""
		}
	}
	return nil
}

// Clear removes every member, returning them in roster order, then re-adds the host.
func (r *Roster) Clear() []string {
	removed := r.members
	r.members = nil
	r.ready = make(map[string]struct{})
	if r.host != "" {
		r.members = append(r.members, r.host)
	}
	return removed
}

// HostIs reports whether id may act as host: it must be the current or original
// host, and both it and the current host must still be members.
func (r *Roster) HostIs(id string) bool {
	if id == "" {
		return false
	}
	return (id == r.host || id == r.originalHost) && r.Has(r.host) && r.Has(id)
}

// Host returns the current host, or "" for an empty roster.
func (r *Roster) Host() string { return r.host }

// OriginalHost returns the participant that created the session.
func (r *Roster) OriginalHost() string { return r.originalHost }

// Members returns a copy of the members in insertion order.
func (r *Roster) Members() []string {
	return append([]string(nil), r.members...)
}

// ReadyMembers returns the ready members in roster order.
func (r *Roster) ReadyMembers() []string {
	out := make([]string, 0, len(r.ready))
	for _, id := range r.members {
		if _, ok := r.ready[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// Len returns the member count.
func (r *Roster) Len() int { return len(r.members) }

// ReadyLen returns the size of the ready set.
func (r *Roster) ReadyLen() int { return len(r.ready) }
