package ports

import "context"

// Effects applies presentation-side combat effects owned outside the core.
type Effects interface {
	// ApplyHitstop freezes a combatant for the given number of ticks.
	// A negative value marks hitstop as pending.
	ApplyHitstop(ctx context.Context, combatantID string, ticks int)

	// ResetState returns a combatant to its neutral state.
	ResetState(ctx context.Context, combatantID string)
}
