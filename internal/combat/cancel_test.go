package combat

import (
	"testing"

	"github.com/quarrelgame-framework/server/internal/domain"
)

func TestCancelPolicyActionableAcceptsAnything(t *testing.T) {
	character := testCharacter()
	policy := NewCancelPolicy()
	previous, _ := character.Move("5H")

	for _, state := range []domain.CombatState{domain.StateNeutral, ""} {
		for _, result := range []domain.HitResult{domain.HitResultNone, domain.HitResultWhiffed, domain.HitResultHit} {
			rt := Runtime{State: state, LastResult: result}
			for i := range character.Moves {
				if !policy.Allow(rt, previous, &character.Moves[i]) {
					t.Fatalf("state %q result %q rejected %s", state, result, character.Moves[i].ID)
				}
			}
		}
	}
}

func TestCancelPolicyGatling(t *testing.T) {
	character := testCharacter()
	policy := NewCancelPolicy()
	light, _ := character.Move("5L")
	medium, _ := character.Move("5M")
	heavy, _ := character.Move("5H")

	tests := []struct {
		name      string
		rt        Runtime
		previous  *domain.Move
		candidate *domain.Move
		want      bool
	}{
		{"RecoveryHitGatling", Runtime{State: domain.StateRecovery, LastResult: domain.HitResultHit}, light, medium, true},
		{"RecoveryBlockedGatling", Runtime{State: domain.StateRecovery, LastResult: domain.HitResultBlocked}, light, medium, true},
		{"RecoveryWhiffedGatling", Runtime{State: domain.StateRecovery, LastResult: domain.HitResultWhiffed}, light, medium, false},
		{"RecoveryHitNoGatling", Runtime{State: domain.StateRecovery, LastResult: domain.HitResultHit}, light, heavy, false},
		{"RecoveryNoPrevious", Runtime{State: domain.StateRecovery, LastResult: domain.HitResultHit}, nil, medium, false},
		{"BlockstunRejects", Runtime{State: domain.StateBlockstun, LastResult: domain.HitResultHit}, light, medium, false},
		{"StartupRejects", Runtime{State: domain.StateStartup, LastResult: domain.HitResultHit}, light, medium, false},
		{"NilCandidate", Runtime{State: domain.StateNeutral}, light, nil, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := policy.Allow(test.rt, test.previous, test.candidate); got != test.want {
				t.Fatalf("Allow() = %t, want %t", got, test.want)
			}
		})
	}
}
