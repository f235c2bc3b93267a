package app

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/quarrelgame-framework/server/internal/domain"
)

// Session is one orchestrated match: roster, phase and settings behind a
// per-session lock. Mutators return the events they produced; the caller
// publishes them once the lock is released.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu       sync.Mutex
	phase    domain.Phase
	settings domain.Settings
	roster   *domain.Roster
	arena    *domain.ArenaRef
	mode     domain.CombatMode
	dir      *Directory
}

func newSession(id string, settings domain.Settings, dir *Directory, now time.Time) *Session {
	return &Session{
		ID:        id,
		CreatedAt: now,
		phase:     domain.PhaseWaiting,
		settings:  settings.Normalize(),
		roster:    domain.NewRoster(),
		dir:       dir,
	}
}

// Phase returns the current phase.
func (s *Session) Phase() domain.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Settings returns a copy of the settings.
func (s *Session) Settings() domain.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// Host returns the current host.
func (s *Session) Host() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roster.Host()
}

// OriginalHost returns the participant that created the session.
func (s *Session) OriginalHost() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roster.OriginalHost()
}

// HostIs reports whether id may perform host-only operations.
func (s *Session) HostIs(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roster.HostIs(id)
}

// Members returns the roster in join order.
func (s *Session) Members() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roster.Members()
}

// ReadyMembers returns the ready set in join order.
func (s *Session) ReadyMembers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roster.ReadyMembers()
}

func (s *Session) event(kind EventKind, payload any, recipients ...string) Event {
	return Event{Kind: kind, SessionID: s.ID, Payload: payload, Recipients: recipients}
}

func (s *Session) requirePhase(allowed ...domain.Phase) error {
	for _, p := range allowed {
		if s.phase == p {
			return nil
		}
	}
	return fmt.Errorf("%w: session %s is %s", ErrInvalidPhase, s.ID, s.phase)
}

// AddParticipant binds a participant to the session and adds it to the roster.
func (s *Session) AddParticipant(id string) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requirePhase(domain.PhaseWaiting); err != nil {
		return nil, err
	}
	if s.roster.Has(id) {
		return nil, domain.ErrAlreadyInRoster
	}
	if err := s.dir.bind(id, s.ID); err != nil {
		return nil, err
	}
	hostBefore := s.roster.Host()
	if err := s.roster.Add(id); err != nil {
		s.dir.unbind(id, s.ID)
		return nil, err
	}

	events := []Event{s.event(EventParticipantJoined, ParticipantPayload{ParticipantID: id})}
	if host := s.roster.Host(); host != hostBefore {
		events = append(events, s.event(EventHostChanged, HostChangedPayload{HostID: host}))
	}
	return events, nil
}

// Ready marks a participant as ready.
func (s *Session) Ready(id string) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requirePhase(domain.PhaseWaiting); err != nil {
		return nil, err
	}
	if err := s.roster.Ready(id); err != nil {
		return nil, err
	}
	return []Event{s.event(EventParticipantReady, ParticipantPayload{ParticipantID: id})}, nil
}

// Unready clears a participant's ready flag.
func (s *Session) Unready(id string) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requirePhase(domain.PhaseWaiting); err != nil {
		return nil, err
	}
	if err := s.roster.Unready(id); err != nil {
		return nil, err
	}
	return []Event{s.event(EventParticipantUnready, ParticipantPayload{ParticipantID: id})}, nil
}

// RemoveParticipant drops a participant, migrating the host if needed.
func (s *Session) RemoveParticipant(id string) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase.Terminal() {
		return nil, fmt.Errorf("%w: session %s has ended", ErrInvalidPhase, s.ID)
	}
	hostBefore := s.roster.Host()
	if err := s.roster.Remove(id); err != nil {
		return nil, err
	}
	s.dir.unbind(id, s.ID)

	events := []Event{s.event(EventParticipantLeft, ParticipantPayload{ParticipantID: id})}
	if host := s.roster.Host(); host != hostBefore && host != "" {
		events = append(events, s.event(EventHostChanged, HostChangedPayload{HostID: host}))
	}
	return events, nil
}

// ClearParticipants empties the roster, then re-adds the host.
func (s *Session) ClearParticipants(requester string) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.roster.HostIs(requester) {
		return nil, ErrNotHost
	}
	if err := s.requirePhase(domain.PhaseWaiting); err != nil {
		return nil, err
	}

	host := s.roster.Host()
	removed := s.roster.Clear()
	events := make([]Event, 0, len(removed)+1)
	for _, id := range removed {
		if id != host {
			s.dir.unbind(id, s.ID)
		}
		events = append(events, s.event(EventParticipantLeft, ParticipantPayload{ParticipantID: id}))
	}
	if host != "" {
		events = append(events, s.event(EventParticipantJoined, ParticipantPayload{ParticipantID: host}))
	}
	return events, nil
}

// SetSettings replaces the settings; host only, before the match starts.
func (s *Session) SetSettings(requester string, settings domain.Settings) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.roster.HostIs(requester) {
		return nil, ErrNotHost
	}
	if err := s.requirePhase(domain.PhaseWaiting); err != nil {
		return nil, err
	}
	s.settings = settings.Normalize()
	return []Event{s.event(EventSettingsChanged, SettingsPayload{Settings: s.settings})}, nil
}

// beginStart validates a start request and moves the session to Starting.
// Every roster member must be ready. It returns the participants to load.
func (s *Session) beginStart(requester string) ([]string, domain.Settings, []Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.roster.HostIs(requester) {
		return nil, domain.Settings{}, nil, ErrNotHost
	}
	if s.phase != domain.PhaseWaiting {
		return nil, domain.Settings{}, nil, fmt.Errorf("%w: session %s is %s", ErrAlreadyStarted, s.ID, s.phase)
	}
	ready := s.roster.ReadyMembers()
	if len(ready) == 0 {
		return nil, domain.Settings{}, nil, ErrNoReadyParticipants
	}
	if len(ready) != s.roster.Len() {
		var waiting []string
		for _, id := range s.roster.Members() {
			if !s.roster.IsReady(id) {
				waiting = append(waiting, id)
			}
		}
		return nil, domain.Settings{}, nil, fmt.Errorf("%w: waiting on %s", ErrNoReadyParticipants, strings.Join(waiting, ", "))
	}

	next, err := domain.Transition(s.phase, domain.PhaseStarting)
	if err != nil {
		return nil, domain.Settings{}, nil, err
	}
	s.phase = next
	return ready, s.settings, []Event{s.event(EventSessionStarting, nil)}, nil
}

// abortStart reverts a failed start to Waiting so the session stays usable.
func (s *Session) abortStart(cause error) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != domain.PhaseStarting {
		return nil
	}
	s.phase = domain.PhaseWaiting
	return []Event{s.event(EventSessionStartFailed, StartFailedPayload{Reason: cause.Error()})}
}

// commitStart moves the session to InProgress and fixes the starting arena.
func (s *Session) commitStart() ([]string, domain.ArenaRef, domain.CombatMode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := domain.Transition(s.phase, domain.PhaseInProgress)
	if err != nil {
		return nil, domain.ArenaRef{}, "", err
	}
	s.phase = next
	arena, mode := s.settings.StartingArena()
	s.arena = &arena
	s.mode = mode
	return s.roster.ReadyMembers(), arena, mode, nil
}

// startingArena returns where combatants spawn once the match runs.
func (s *Session) startingArena() (domain.ArenaRef, domain.CombatMode, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.arena == nil {
		return domain.ArenaRef{}, "", false
	}
	return *s.arena, s.mode, true
}

// beginEnd handles the "match ended" signal.
func (s *Session) beginEnd() ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := domain.Transition(s.phase, domain.PhaseEnding)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPhase, err)
	}
	s.phase = next
	return []Event{s.event(EventSessionEnding, nil)}, nil
}

// finish moves the session to Ended and releases every participant.
func (s *Session) finish() ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := domain.Transition(s.phase, domain.PhaseEnded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPhase, err)
	}
	s.phase = next
	for _, id := range s.roster.Members() {
		s.dir.unbind(id, s.ID)
	}
	return []Event{s.event(EventSessionEnded, nil)}, nil
}

// empty reports whether nobody is left in the roster.
func (s *Session) empty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roster.Len() == 0
}
