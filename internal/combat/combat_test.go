package combat

import (
	"context"
	"sync"
	"time"

	"github.com/heroiclabs/nakama-common/runtime"

	"github.com/quarrelgame-framework/server/internal/domain"
)

// noopLogger implements runtime.Logger for tests that only need to satisfy the interface.
type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}
func (noopLogger) WithField(string, interface{}) runtime.Logger {
	return noopLogger{}
}
func (noopLogger) WithFields(map[string]interface{}) runtime.Logger {
	return noopLogger{}
}
func (noopLogger) Fields() map[string]interface{} {
	return nil
}

// recordingEffects captures effect calls for assertions.
type recordingEffects struct {
	mu      sync.Mutex
	hitstop map[string][]int
	resets  map[string]int
}

func newRecordingEffects() *recordingEffects {
	return &recordingEffects{hitstop: make(map[string][]int), resets: make(map[string]int)}
}

func (r *recordingEffects) ApplyHitstop(_ context.Context, id string, ticks int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hitstop[id] = append(r.hitstop[id], ticks)
}

func (r *recordingEffects) ResetState(_ context.Context, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resets[id]++
}

func (r *recordingEffects) resetCount(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resets[id]
}

func (r *recordingEffects) hitstopFor(id string) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.hitstop[id]...)
}

// gatedExecutor blocks each move until the test releases an outcome for it.
type gatedExecutor struct {
	mu    sync.Mutex
	gates map[string]chan domain.Outcome
}

func newGatedExecutor() *gatedExecutor {
	return &gatedExecutor{gates: make(map[string]chan domain.Outcome)}
}

func (g *gatedExecutor) gate(moveID string) chan domain.Outcome {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.gates[moveID]
	if !ok {
		ch = make(chan domain.Outcome, 1)
		g.gates[moveID] = ch
	}
	return ch
}

func (g *gatedExecutor) release(moveID string, outcome domain.Outcome) {
	g.gate(moveID) <- outcome
}

func (g *gatedExecutor) Execute(ctx context.Context, attacker string, move *domain.Move) (domain.Outcome, error) {
	select {
	case outcome := <-g.gate(move.ID):
		return outcome, nil
	case <-ctx.Done():
		return domain.Outcome{}, ctx.Err()
	}
}

// steppingClock returns strictly increasing timestamps.
func steppingClock() func() time.Time {
	var mu sync.Mutex
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	n := 0
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		n++
		return base.Add(time.Duration(n) * time.Millisecond)
	}
}

func testCharacter() *domain.Character {
	return &domain.Character{
		ID:   "gio",
		Name: "Gio",
		Moves: []domain.Move{
			{ID: "5L", Command: &domain.CommandNormal{Direction: domain.MotionNeutral, Button: domain.ButtonLight}, GatlingsInto: []string{"5M", "2M"}},
			{ID: "5M", Command: &domain.CommandNormal{Direction: domain.MotionNeutral, Button: domain.ButtonMedium}, GatlingsInto: []string{"5H"}},
			{ID: "2M", Command: &domain.CommandNormal{Direction: domain.MotionDown, Button: domain.ButtonMedium}},
			{ID: "5H", Command: &domain.CommandNormal{Direction: domain.MotionNeutral, Button: domain.ButtonHeavy}},
			{ID: "5L-alt", Command: &domain.CommandNormal{Direction: domain.MotionNeutral, Button: domain.ButtonLight}},
			{ID: "fireball", Motion: []domain.Token{"down", "down_forward", "forward", "special"}, Applicability: domain.ApplicableGrounded},
			{ID: "air-fireball", Motion: []domain.Token{"down", "down_forward", "forward", "special"}, Applicability: domain.ApplicableAirborne},
			{ID: "fireball-ex", Motion: []domain.Token{"down", "down_forward", "forward", "special"}},
			{ID: "dp", Motion: []domain.Token{"forward", "down", "down_forward", "special"}},
		},
	}
}
