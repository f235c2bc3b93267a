package combat

import (
	"sync"
	"time"

	"github.com/quarrelgame-framework/server/internal/domain"
)

// HitstopPending marks a combatant whose latest action has not settled yet.
const HitstopPending = -1

// Runtime is the per-combatant state the resolver and pipeline share.
type Runtime struct {
	LastActionAt   time.Time          `json:"lastActionAt"`
	LastResult     domain.HitResult   `json:"lastResult,omitempty"`
	State          domain.CombatState `json:"state"`
	PreviousAction string             `json:"previousAction,omitempty"`
	Hitstop        int                `json:"hitstop"`
	Airborne       bool               `json:"airborne"`
}

// StateTable owns the runtime state of every combatant, keyed by combatant id.
// Entries are created lazily and live as long as the table.
// The mutex only protects the map; it is never held across an execution routine.
type StateTable struct {
	mu      sync.Mutex
	entries map[string]*Runtime
}

// NewStateTable returns an empty table.
func NewStateTable() *StateTable {
	return &StateTable{entries: make(map[string]*Runtime)}
}

// entry must be called with mu held.
func (t *StateTable) entry(id string) *Runtime {
	rt, ok := t.entries[id]
	if !ok {
		rt = &Runtime{State: domain.StateNeutral}
		t.entries[id] = rt
	}
	return rt
}

// Get returns a copy of the combatant's runtime state.
func (t *StateTable) Get(id string) Runtime {
	t.mu.Lock()
	defer t.mu.Unlock()
	return *t.entry(id)
}

// Begin records a freshly accepted action at time at.
func (t *StateTable) Begin(id string, at time.Time, moveID string) {
	t.BeginIf(id, at, moveID, nil)
}

// BeginIf records the action only when accept approves the combatant's
// current state. accept runs under the table lock and must not block;
// a nil accept approves everything.
func (t *StateTable) BeginIf(id string, at time.Time, moveID string, accept func(Runtime) bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	rt := t.entry(id)
	if accept != nil && !accept(*rt) {
		return false
	}
	rt.LastActionAt = at
	rt.Hitstop = HitstopPending
	rt.State = domain.StateStartup
	rt.PreviousAction = moveID
	return true
}

// Settle stores the outcome of the action started at time at and moves the
// combatant into recovery. It does nothing and returns false when a newer
// action has been recorded since.
func (t *StateTable) Settle(id string, at time.Time, result domain.HitResult, hitstop int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	rt := t.entry(id)
	if !rt.LastActionAt.Equal(at) {
		return false
	}
	rt.LastResult = result
	rt.State = domain.StateRecovery
	rt.Hitstop = hitstop
	return true
}

// ResetIf returns the combatant to neutral only while its latest action is still the one started at at.
func (t *StateTable) ResetIf(id string, at time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	rt := t.entry(id)
	if !rt.LastActionAt.Equal(at) {
		return false
	}
	rt.State = domain.StateNeutral
	rt.Hitstop = 0
	return true
}

// SetState overrides the combat state, e.g. hitstun applied by game logic.
func (t *StateTable) SetState(id string, state domain.CombatState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entry(id).State = state
}

// SetAirborne records the combatant's physical state.
func (t *StateTable) SetAirborne(id string, airborne bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entry(id).Airborne = airborne
}

// SetHitstop records a hitstop duration for a combatant.
func (t *StateTable) SetHitstop(id string, ticks int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entry(id).Hitstop = ticks
}

// Lookup returns a copy of the entry without creating one.
func (t *StateTable) Lookup(id string) (Runtime, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rt, ok := t.entries[id]
	if !ok {
		return Runtime{}, false
	}
	return *rt, true
}
