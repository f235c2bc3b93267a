package app

import (
	"sync"

	"github.com/quarrelgame-framework/server/internal/domain"
)

// EventKind identifies emitted domain events for transport dispatch.
type EventKind string

const (
	EventParticipantJoined    EventKind = "participant_joined"
	EventParticipantLeft      EventKind = "participant_left"
	EventParticipantReady     EventKind = "participant_ready"
	EventParticipantUnready   EventKind = "participant_unready"
	EventHostChanged          EventKind = "host_changed"
	EventSettingsChanged      EventKind = "settings_changed"
	EventSessionStarting      EventKind = "session_starting"
	EventSessionStarted       EventKind = "session_started"
	EventSessionStartFailed   EventKind = "session_start_failed"
	EventParticipantRespawned EventKind = "participant_respawned"
	EventCombatModeSet        EventKind = "combat_mode_set"
	EventSessionEnding        EventKind = "session_ending"
	EventSessionEnded         EventKind = "session_ended"
	EventActionResolved       EventKind = "action_resolved"
	EventHitstop              EventKind = "hitstop"
	EventStateReset           EventKind = "state_reset"
)

// Event is a domain/app event with optional targeted recipients.
type Event struct {
	Kind       EventKind
	SessionID  string
	Payload    any
	Recipients []string // participant IDs; empty means broadcast to the session
}

type ParticipantPayload struct {
	ParticipantID string `json:"participantId"`
}

type HostChangedPayload struct {
	HostID string `json:"hostId"`
}

type SettingsPayload struct {
	Settings domain.Settings `json:"settings"`
}

type SessionStartedPayload struct {
	Snapshot *Snapshot `json:"snapshot"`
}

type StartFailedPayload struct {
	Reason string `json:"reason"`
}

type RespawnedPayload struct {
	ParticipantID string          `json:"participantId"`
	CombatantID   string          `json:"combatantId"`
	CharacterID   string          `json:"characterId"`
	Arena         domain.ArenaRef `json:"arena"`
}

type CombatModePayload struct {
	ParticipantID string            `json:"participantId"`
	Mode          domain.CombatMode `json:"mode"`
}

type ActionResolvedPayload struct {
	ParticipantID string         `json:"participantId"`
	CombatantID   string         `json:"combatantId"`
	MoveID        string         `json:"moveId"`
	Outcome       domain.Outcome `json:"outcome"`
	Settled       bool           `json:"settled"`
}

type HitstopPayload struct {
	CombatantID string `json:"combatantId"`
	Ticks       int    `json:"ticks"`
}

type CombatantPayload struct {
	CombatantID string `json:"combatantId"`
}

// Bus fans events out to subscribers. Subscriptions are explicit and scoped to
// one session, or to every session when the scope is empty.
type Bus struct {
	mu   sync.RWMutex
	next int
	subs map[int]subscription
}

type subscription struct {
	sessionID string
	handler   func(Event)
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]subscription)}
}

// Subscribe registers handler for events of sessionID ("" for all sessions)
// and returns the function that removes it.
// Handlers run on the publisher's goroutine and should not block.
func (b *Bus) Subscribe(sessionID string, handler func(Event)) (unsubscribe func()) {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = subscription{sessionID: sessionID, handler: handler}
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Publish delivers events in order to every matching subscriber.
func (b *Bus) Publish(events ...Event) {
	for _, ev := range events {
		b.mu.RLock()
		handlers := make([]func(Event), 0, len(b.subs))
		for _, sub := range b.subs {
			if sub.sessionID == "" || sub.sessionID == ev.SessionID {
				handlers = append(handlers, sub.handler)
			}
		}
		b.mu.RUnlock()

		for _, handler := range handlers {
			handler(ev)
		}
	}
}
