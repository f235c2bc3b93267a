package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/quarrelgame-framework/server/internal/domain"
)

var (
	ErrUnknownParticipant  = errors.New("participant not found")
	ErrNotInSession        = errors.New("participant is not in a session")
	ErrAlreadyInSession    = errors.New("participant is already in a session")
	ErrSessionNotFound     = errors.New("session not found")
	ErrNotHost             = errors.New("participant is not the host of the session")
	ErrAlreadyStarted      = errors.New("session already started")
	ErrInvalidPhase        = errors.New("operation not valid in the current session phase")
	ErrNoReadyParticipants = errors.New("no ready participants")
	ErrUnknownCharacter    = errors.New("character not found")
	ErrNotSpawned          = errors.New("participant has no combatant")
	ErrNoActiveMove        = errors.New("no move is waiting for a hit report")
	ErrUnknownRequest      = errors.New("no pending request with that id")
	ErrInvalidTicket       = errors.New("invalid session ticket")
	ErrTicketsDisabled     = errors.New("session tickets are not configured")

	// Roster failures surface unchanged so callers can match either package's sentinel.
	ErrNotParticipant = domain.ErrNotParticipant
	ErrAlreadyReady   = domain.ErrAlreadyReady
	ErrNotReady       = domain.ErrNotReady
)

// LoadTimeoutError reports a participant that did not acknowledge a load in time.
type LoadTimeoutError struct {
	ParticipantID string
	ResourceID    string
	Timeout       time.Duration
}

func (e *LoadTimeoutError) Error() string {
	return fmt.Sprintf("participant %s did not load %s within %s", e.ParticipantID, e.ResourceID, e.Timeout)
}

// LoadRejectedError reports a participant whose client refused or failed the load.
type LoadRejectedError struct {
	ParticipantID string
	ResourceID    string
	Err           error
}

func (e *LoadRejectedError) Error() string {
	return fmt.Sprintf("participant %s failed to load %s: %v", e.ParticipantID, e.ResourceID, e.Err)
}

func (e *LoadRejectedError) Unwrap() error {
	return e.Err
}
