package domain

import "fmt"

// Applicability restricts a move to a physical state.
type Applicability string

const (
	ApplicableAny      Applicability = ""
	ApplicableGrounded Applicability = "grounded"
	ApplicableAirborne Applicability = "airborne"
)

// Allows reports whether a combatant with the given airborne flag may use the move.
func (a Applicability) Allows(airborne bool) bool {
	switch a {
	case ApplicableGrounded:
		return !airborne
	case ApplicableAirborne:
		return airborne
	default:
		return true
	}
}

// FrameData is measured in ticks.
type FrameData struct {
	Startup  int `json:"startup"`
	Active   int `json:"active"`
	Recovery int `json:"recovery"`
}

// Move is one attack or skill a character can perform.
// Exactly one of Motion and Command is set.
type Move struct {
	ID            string         `json:"id"`
	Name          string         `json:"name,omitempty"`
	Motion        []Token        `json:"motion,omitempty"`
	Command       *CommandNormal `json:"command,omitempty"`
	GatlingsInto  []string       `json:"gatlings_into,omitempty"`
	Applicability Applicability  `json:"applicability,omitempty"`
	FrameData     FrameData      `json:"frame_data"`
}

// IsCommandNormal reports whether the move is keyed by a direction + button pair.
func (m *Move) IsCommandNormal() bool {
	return m.Command != nil
}

// MatchesMotion reports whether the move's pattern is element-wise equal to seq.
func (m *Move) MatchesMotion(seq []Token) bool {
	if m.Command != nil || len(m.Motion) != len(seq) {
		return false
	}
	for i, tok := range m.Motion {
		if seq[i] != tok {
			return false
		}
	}
	return true
}

// GatlingsTo reports whether the move may cancel into the given move id.
func (m *Move) GatlingsTo(id string) bool {
	for _, next := range m.GatlingsInto {
		if next == id {
			return true
		}
	}
	return false
}

// Validate checks the move has a usable shape.
func (m *Move) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("move has no id")
	}
	if (m.Command == nil) == (len(m.Motion) == 0) {
		return fmt.Errorf("move %s: exactly one of motion and command must be set", m.ID)
	}
	if m.Command != nil && (!m.Command.Direction.Valid() || !m.Command.Button.Valid()) {
		return fmt.Errorf("move %s: invalid command normal", m.ID)
	}
	for _, tok := range m.Motion {
		if !tok.Valid() {
			return fmt.Errorf("move %s: invalid motion token %q", m.ID, tok)
		}
	}
	return nil
}

// Character is a playable fighter and its ordered move list. Order is priority.
type Character struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Moves []Move `json:"moves"`
}

// Move looks up a move by id.
func (c *Character) Move(id string) (*Move, bool) {
	if c == nil {
		return nil, false
	}
	for i := range c.Moves {
		if c.Moves[i].ID == id {
			return &c.Moves[i], true
		}
	}
	return nil, false
}
