package domain

// HitResult tags how an executed move resolved.
type HitResult string

const (
	HitResultNone       HitResult = ""
	HitResultHit        HitResult = "hit"
	HitResultCounterHit HitResult = "counter_hit"
	HitResultWhiffed    HitResult = "whiffed"
	HitResultBlocked    HitResult = "blocked"
)

// Connected reports whether the result counts as a landed attack.
// A combatant that never acted has no result and is treated as connected,
// matching "not whiffed".
func (r HitResult) Connected() bool {
	return r != HitResultWhiffed
}

// CombatState is the combat-state tag of a combatant.
type CombatState string

const (
	StateNeutral   CombatState = "neutral"
	StateStartup   CombatState = "startup"
	StateActive    CombatState = "active"
	StateRecovery  CombatState = "recovery"
	StateHitstun   CombatState = "hitstun"
	StateBlockstun CombatState = "blockstun"
	StateKnockdown CombatState = "knockdown"
)

// Negative reports whether the combatant is not actionable in this state.
func (s CombatState) Negative() bool {
	switch s {
	case StateNeutral, "":
		return false
	default:
		return true
	}
}

// Outcome is the settled result of one executed move.
type Outcome struct {
	Attacker string    `json:"attacker"`
	Defender string    `json:"defender,omitempty"`
	Result   HitResult `json:"result"`
}
