package combat

import "github.com/quarrelgame-framework/server/internal/domain"

// CancelPolicy decides whether a resolved move may interrupt the combatant's current state.
type CancelPolicy struct{}

// NewCancelPolicy constructs a CancelPolicy.
func NewCancelPolicy() *CancelPolicy {
	return &CancelPolicy{}
}

// Allow applies the gatling rule:
//   - actionable combatants accept any move;
//   - in recovery, the previous move must list the candidate in its gatlings
//     and must not have whiffed;
//   - every other negative state rejects.
//
// previous may be nil when the combatant has not acted yet.
func (p *CancelPolicy) Allow(rt Runtime, previous *domain.Move, candidate *domain.Move) bool {
	if candidate == nil {
		return false
	}
	if !rt.State.Negative() {
		return true
	}
	if rt.State != domain.StateRecovery {
		return false
	}
	if previous == nil || !previous.GatlingsTo(candidate.ID) {
		return false
	}
	return rt.LastResult.Connected()
}
