package app

import (
	"sync"

	"github.com/quarrelgame-framework/server/internal/domain"
)

// Directory holds every connected participant and their attributes.
// SessionID is only written by roster operations (bind/unbind).
type Directory struct {
	mu           sync.RWMutex
	participants map[string]*domain.Participant
}

// NewDirectory constructs an empty directory.
func NewDirectory() *Directory {
	return &Directory{participants: make(map[string]*domain.Participant)}
}

// Connect registers a participant if needed and returns a copy of its attributes.
func (d *Directory) Connect(id string) (domain.Participant, error) {
	if id == "" {
		return domain.Participant{}, domain.ErrEmptyParticipant
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.participants[id]
	if !ok {
		p = &domain.Participant{ID: id}
		d.participants[id] = p
	}
	return *p, nil
}

// Disconnect forgets a participant.
func (d *Directory) Disconnect(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.participants, id)
}

// Get returns a copy of the participant's attributes.
func (d *Directory) Get(id string) (domain.Participant, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.participants[id]
	if !ok {
		return domain.Participant{}, false
	}
	return *p, true
}

// ByCombatant finds the participant controlling a combatant.
func (d *Directory) ByCombatant(combatantID string) (domain.Participant, bool) {
	if combatantID == "" {
		return domain.Participant{}, false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, p := range d.participants {
		if p.CombatantID == combatantID {
			return *p, true
		}
	}
	return domain.Participant{}, false
}

// SelectCharacter records the character a participant will spawn as.
func (d *Directory) SelectCharacter(id, characterID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.participants[id]
	if !ok {
		return ErrUnknownParticipant
	}
	p.SelectedCharacter = characterID
	return nil
}

func (d *Directory) bind(id, sessionID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.participants[id]
	if !ok {
		return ErrUnknownParticipant
	}
	if p.SessionID != "" && p.SessionID != sessionID {
		return ErrAlreadyInSession
	}
	p.SessionID = sessionID
	return nil
}

// unbind clears the session attribute only if it still points at sessionID.
func (d *Directory) unbind(id, sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.participants[id]
	if !ok || p.SessionID != sessionID {
		return
	}
	p.SessionID = ""
	p.CombatantID = ""
}

func (d *Directory) setCombatant(id, combatantID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.participants[id]; ok {
		p.CombatantID = combatantID
	}
}
