package combat

import "github.com/quarrelgame-framework/server/internal/domain"

// Resolver maps a submitted input to one of a character's moves.
// Definition order is priority order: earlier moves win ties.
type Resolver struct{}

// NewResolver constructs a Resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve returns the move the input selects, or nil when nothing matches.
// No match is a normal outcome, not an error.
func (r *Resolver) Resolve(character *domain.Character, airborne bool, input domain.Input) *domain.Move {
	if character == nil {
		return nil
	}

	input = input.Normalize()
	switch input.Kind() {
	case domain.InputCommandNormal:
		return r.resolveCommandNormal(character, *input.Command)
	case domain.InputMotion:
		return r.resolveMotion(character, airborne, input.Motion)
	default:
		return nil
	}
}

// resolveCommandNormal scans command-normal-shaped moves for an exact (direction, button) pair.
func (r *Resolver) resolveCommandNormal(character *domain.Character, command domain.CommandNormal) *domain.Move {
	for i := range character.Moves {
		move := &character.Moves[i]
		if !move.IsCommandNormal() {
			continue
		}
		if move.Command.Direction == command.Direction && move.Command.Button == command.Button {
			return move
		}
	}
	return nil
}

func (r *Resolver) resolveMotion(character *domain.Character, airborne bool, seq []domain.Token) *domain.Move {
	var matches []*domain.Move
	for i := range character.Moves {
		if character.Moves[i].MatchesMotion(seq) {
			matches = append(matches, &character.Moves[i])
		}
	}

	for _, move := range matches {
		if move.Applicability.Allows(airborne) {
			return move
		}
	}
	return nil
}
