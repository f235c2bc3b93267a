package domain

import "fmt"

// Phase represents the lifecycle stage of a session.
type Phase string

const (
	// PhaseWaiting is the pre-match state where participants join and ready up.
	PhaseWaiting Phase = "waiting"
	// PhaseStarting is held while every ready participant loads the map.
	PhaseStarting Phase = "starting"
	// PhaseInProgress is the active match.
	PhaseInProgress Phase = "in_progress"
	// PhaseEnding is entered when game logic signals the end of the match.
	PhaseEnding Phase = "ending"
	// PhaseEnded is terminal.
	PhaseEnded Phase = "ended"
)

// transitions lists the legal successor phases of each phase.
var transitions = map[Phase][]Phase{
	PhaseWaiting:    {PhaseStarting},
	PhaseStarting:   {PhaseInProgress, PhaseWaiting},
	PhaseInProgress: {PhaseEnding},
	PhaseEnding:     {PhaseEnded},
}

// CanTransition reports whether moving from one phase to another is legal.
func CanTransition(from, to Phase) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions leave the phase.
func (p Phase) Terminal() bool {
	return p == PhaseEnded
}

// Live reports whether the session still accepts operations.
func (p Phase) Live() bool {
	return p != PhaseEnded
}

// PhaseError describes an illegal phase transition.
type PhaseError struct {
	From Phase
	To   Phase
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("illegal phase transition %s -> %s", e.From, e.To)
}

// Transition returns the target phase or a *PhaseError when the move is illegal.
func Transition(from, to Phase) (Phase, error) {
	if !CanTransition(from, to) {
		return from, &PhaseError{From: from, To: to}
	}
	return to, nil
}
