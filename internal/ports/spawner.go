package ports

import (
	"context"

	"github.com/quarrelgame-framework/server/internal/domain"
)

// SpawnRequest describes a combatant to place in an arena.
type SpawnRequest struct {
	SessionID     string
	ParticipantID string
	CharacterID   string
	Arena         domain.ArenaRef
}

// Spawner instances a participant's combatant and places it in the arena.
type Spawner interface {
	// Spawn returns the identity of the new combatant.
	Spawn(ctx context.Context, req SpawnRequest) (string, error)
}
