package app

import (
	"github.com/quarrelgame-framework/server/internal/combat"
	"github.com/quarrelgame-framework/server/internal/domain"
)

// Snapshot is the view of a session handed to one participant.
type Snapshot struct {
	SessionID    string            `json:"sessionId"`
	Phase        domain.Phase      `json:"phase"`
	Map          string            `json:"map"`
	Host         string            `json:"host"`
	Perspective  string            `json:"perspective,omitempty"`
	Settings     domain.Settings   `json:"settings"`
	Arena        *domain.ArenaRef  `json:"arena"`
	Participants []ParticipantView `json:"participants"`
	State        SnapshotState     `json:"state"`
}

type ParticipantView struct {
	ID                string `json:"id"`
	CombatantID       string `json:"combatantId,omitempty"`
	SelectedCharacter string `json:"selectedCharacter,omitempty"`
	Ready             bool   `json:"ready"`
	Host              bool   `json:"host"`
}

// SnapshotState carries combat state. Tick and Time stay -1 until the
// simulation clock is exposed.
type SnapshotState struct {
	ActorStates []ActorState `json:"actorStates"`
	Tick        int64        `json:"tick"`
	Time        int64        `json:"time"`
}

type ActorState struct {
	CombatantID   string         `json:"combatantId"`
	ParticipantID string         `json:"participantId"`
	Runtime       combat.Runtime `json:"runtime"`
}

// snapshot builds the view of s for perspective. Before the match starts every
// member is listed; afterwards only the ready set that was loaded.
func (s *Session) snapshot(perspective string, table *combat.StateTable) *Snapshot {
	s.mu.Lock()
	phase := s.phase
	settings := s.settings
	host := s.roster.Host()
	var arena *domain.ArenaRef
	if s.arena != nil {
		a := *s.arena
		arena = &a
	}
	members := s.roster.Members()
	if phase != domain.PhaseWaiting {
		members = s.roster.ReadyMembers()
	}
	ready := make(map[string]bool, len(members))
	for _, id := range members {
		ready[id] = s.roster.IsReady(id)
	}
	s.mu.Unlock()

	snap := &Snapshot{
		SessionID:    s.ID,
		Phase:        phase,
		Map:          settings.Map,
		Host:         host,
		Perspective:  perspective,
		Settings:     settings,
		Arena:        arena,
		Participants: make([]ParticipantView, 0, len(members)),
		State: SnapshotState{
			ActorStates: []ActorState{},
			Tick:        -1,
			Time:        -1,
		},
	}

	for _, id := range members {
		view := ParticipantView{ID: id, Ready: ready[id], Host: id == host}
		if p, ok := s.dir.Get(id); ok {
			view.CombatantID = p.CombatantID
			view.SelectedCharacter = p.SelectedCharacter
		}
		snap.Participants = append(snap.Participants, view)

		if view.CombatantID != "" && table != nil {
			if rt, ok := table.Lookup(view.CombatantID); ok {
				snap.State.ActorStates = append(snap.State.ActorStates, ActorState{
					CombatantID:   view.CombatantID,
					ParticipantID: id,
					Runtime:       rt,
				})
			}
		}
	}
	return snap
}
