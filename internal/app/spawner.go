package app

import (
	"context"

	"github.com/google/uuid"

	"github.com/quarrelgame-framework/server/internal/ports"
)

// LocalSpawner hands out combatant ids without an external avatar service.
// Transports that place avatars themselves use the id as their handle.
type LocalSpawner struct{}

// Spawn implements ports.Spawner.
func (LocalSpawner) Spawn(_ context.Context, req ports.SpawnRequest) (string, error) {
	return uuid.NewString(), nil
}
