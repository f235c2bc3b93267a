package combat

import (
	"testing"

	"github.com/quarrelgame-framework/server/internal/domain"
)

func TestResolve(t *testing.T) {
	character := testCharacter()
	resolver := NewResolver()

	tests := []struct {
		name     string
		airborne bool
		input    domain.Input
		want     string
	}{
		{
			name:  "PlainButtonUsesNeutralCommandNormal",
			input: domain.Input{Button: domain.ButtonLight},
			want:  "5L",
		},
		{
			name:  "CommandNormalExactPair",
			input: domain.Input{Command: &domain.CommandNormal{Direction: domain.MotionDown, Button: domain.ButtonMedium}},
			want:  "2M",
		},
		{
			name:  "CommandNormalNoMatch",
			input: domain.Input{Command: &domain.CommandNormal{Direction: domain.MotionBack, Button: domain.ButtonHeavy}},
			want:  "",
		},
		{
			name:  "MotionGroundedPicksFirstDefined",
			input: domain.Input{Motion: []domain.Token{"down", "down_forward", "forward", "special"}},
			want:  "fireball",
		},
		{
			name:     "MotionAirborneSkipsGroundedMove",
			airborne: true,
			input:    domain.Input{Motion: []domain.Token{"down", "down_forward", "forward", "special"}},
			want:     "air-fireball",
		},
		{
			name:  "MotionDifferentOrder",
			input: domain.Input{Motion: []domain.Token{"forward", "down", "down_forward", "special"}},
			want:  "dp",
		},
		{
			name:  "MotionPrefixDoesNotMatch",
			input: domain.Input{Motion: []domain.Token{"down", "down_forward", "forward"}},
			want:  "",
		},
		{
			name:  "MotionNeverMatchesCommandNormals",
			input: domain.Input{Motion: []domain.Token{"neutral", "light"}},
			want:  "",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			move := resolver.Resolve(character, test.airborne, test.input)
			got := ""
			if move != nil {
				got = move.ID
			}
			if got != test.want {
				t.Fatalf("Resolve() = %q, want %q", got, test.want)
			}
		})
	}
}

func TestResolveDeterministic(t *testing.T) {
	character := testCharacter()
	resolver := NewResolver()
	input := domain.Input{Motion: []domain.Token{"down", "down_forward", "forward", "special"}}

	first := resolver.Resolve(character, false, input)
	for i := 0; i < 100; i++ {
		if got := resolver.Resolve(character, false, input); got != first {
			t.Fatalf("iteration %d resolved %v, want %v", i, got, first)
		}
	}
}

func TestResolveNilCharacter(t *testing.T) {
	if move := NewResolver().Resolve(nil, false, domain.Input{Button: domain.ButtonLight}); move != nil {
		t.Fatalf("Resolve(nil) = %v, want nil", move)
	}
}
