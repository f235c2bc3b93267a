package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/heroiclabs/nakama-common/runtime"

	"github.com/quarrelgame-framework/server/internal/config"
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

// loadBehavior scripts one participant's answer to a load request.
type loadBehavior struct {
	delay time.Duration
	err   error
	hang  bool
}

// fakeLoader answers load requests according to per-participant behaviour.
type fakeLoader struct {
	mu        sync.Mutex
	behaviour map[string]loadBehavior
	calls     []string
	release   chan struct{}
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{behaviour: make(map[string]loadBehavior), release: make(chan struct{})}
}

func (f *fakeLoader) set(participantID string, b loadBehavior) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.behaviour[participantID] = b
}

func (f *fakeLoader) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeLoader) RequestLoad(ctx context.Context, participantID, resourceID string) error {
	f.mu.Lock()
	f.calls = append(f.calls, participantID)
	b := f.behaviour[participantID]
	f.mu.Unlock()

	if b.hang {
		select {
		case <-f.release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if b.delay > 0 {
		select {
		case <-time.After(b.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return b.err
}

// eventRecorder collects every event published on a bus.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
	signal chan struct{}
}

func recordEvents(bus *Bus, sessionID string) (*eventRecorder, func()) {
	r := &eventRecorder{signal: make(chan struct{}, 1)}
	unsubscribe := bus.Subscribe(sessionID, func(ev Event) {
		r.mu.Lock()
		r.events = append(r.events, ev)
		r.mu.Unlock()
		select {
		case r.signal <- struct{}{}:
		default:
		}
	})
	return r, unsubscribe
}

func (r *eventRecorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *eventRecorder) ofKind(kind EventKind) []Event {
	var out []Event
	for _, ev := range r.all() {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

// waitFor blocks until at least n events of kind were recorded.
func (r *eventRecorder) waitFor(t *testing.T, kind EventKind, n int) []Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if evs := r.ofKind(kind); len(evs) >= n {
			return evs
		}
		select {
		case <-r.signal:
		case <-time.After(5 * time.Millisecond):
		case <-deadline:
			t.Fatalf("timed out waiting for %d %s events, got %d", n, kind, len(r.ofKind(kind)))
		}
	}
}

// blockingExecutor holds every move until the test releases an outcome.
type blockingExecutor struct {
	outcomes chan domain.Outcome
}

func newBlockingExecutor() *blockingExecutor {
	return &blockingExecutor{outcomes: make(chan domain.Outcome, 8)}
}

func (b *blockingExecutor) Execute(ctx context.Context, attacker string, move *domain.Move) (domain.Outcome, error) {
	select {
	case outcome := <-b.outcomes:
		return outcome, nil
	case <-ctx.Done():
		return domain.Outcome{}, ctx.Err()
	}
}

func testCatalog(t *testing.T) *config.GameConfig {
	t.Helper()
	c, err := config.NewGameConfig("gio",
		domain.Character{
			ID:   "gio",
			Name: "Gio",
			Moves: []domain.Move{
				{ID: "5L", Command: &domain.CommandNormal{Direction: domain.MotionNeutral, Button: domain.ButtonLight}, GatlingsInto: []string{"5M"}, FrameData: domain.FrameData{Recovery: 2000}},
				{ID: "5M", Command: &domain.CommandNormal{Direction: domain.MotionNeutral, Button: domain.ButtonMedium}},
				{ID: "5H", Command: &domain.CommandNormal{Direction: domain.MotionNeutral, Button: domain.ButtonHeavy}, FrameData: domain.FrameData{Active: 2000}},
				{ID: "fireball", Motion: []domain.Token{"down", "down_forward", "forward", "special"}, Applicability: domain.ApplicableGrounded},
			},
		},
		domain.Character{
			ID:   "mara",
			Name: "Mara",
			Moves: []domain.Move{
				{ID: "5L", Command: &domain.CommandNormal{Direction: domain.MotionNeutral, Button: domain.ButtonLight}},
			},
		},
	)
	if err != nil {
		t.Fatalf("test catalog: %v", err)
	}
	return c
}

type serviceOption func(*Options)

func newTestService(t *testing.T, loader *fakeLoader, opts ...serviceOption) *Service {
	t.Helper()
	o := Options{
		Loader:       loader,
		Catalog:      testCatalog(t),
		Logger:       noopLogger{},
		LoadTimeout:  200 * time.Millisecond,
		TickDuration: time.Millisecond,
	}
	for _, opt := range opts {
		opt(&o)
	}
	svc, err := NewService(o)
	if err != nil {
		t.Fatalf("NewService() error: %v", err)
	}
	t.Cleanup(svc.Close)
	return svc
}

// lobby connects ids, has the first create a session and the rest join it.
func lobby(t *testing.T, svc *Service, ids ...string) string {
	t.Helper()
	ctx := context.Background()
	for _, id := range ids {
		if err := svc.Connect(ctx, id); err != nil {
			t.Fatalf("connect %s: %v", id, err)
		}
	}
	sid, err := svc.CreateSession(ctx, ids[0], domain.Settings{})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	for _, id := range ids[1:] {
		if err := svc.JoinSession(ctx, id, sid); err != nil {
			t.Fatalf("join %s: %v", id, err)
		}
	}
	return sid
}

func readyAll(t *testing.T, svc *Service, ids ...string) {
	t.Helper()
	for _, id := range ids {
		if err := svc.Ready(context.Background(), id); err != nil {
			t.Fatalf("ready %s: %v", id, err)
		}
	}
}
