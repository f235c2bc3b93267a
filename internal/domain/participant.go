package domain

// Participant holds the attributes of a connected player.
type Participant struct {
	ID                string
	SessionID         string // empty when not in a session
	CombatantID       string // empty until spawned
	SelectedCharacter string
}

// InSession reports whether the participant is bound to a session.
func (p *Participant) InSession() bool {
	return p != nil && p.SessionID != ""
}
