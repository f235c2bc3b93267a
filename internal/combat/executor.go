package combat

import (
	"context"
	"sync"
	"time"

	"github.com/quarrelgame-framework/server/internal/domain"
)

// HitReports collects client-confirmed hits for moves waiting in their active window.
type HitReports struct {
	mu      sync.Mutex
	waiting map[string]chan domain.Outcome
}

// NewHitReports constructs an empty report board.
func NewHitReports() *HitReports {
	return &HitReports{waiting: make(map[string]chan domain.Outcome)}
}

// expect opens a window for attacker. A newer window replaces an older one.
func (h *HitReports) expect(attacker string) (<-chan domain.Outcome, func()) {
	ch := make(chan domain.Outcome, 1)
	h.mu.Lock()
	h.waiting[attacker] = ch
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		if h.waiting[attacker] == ch {
			delete(h.waiting, attacker)
		}
		h.mu.Unlock()
	}
}

// Report delivers an outcome to the attacker's open window.
// It returns false when no move of the attacker is waiting.
func (h *HitReports) Report(outcome domain.Outcome) bool {
	h.mu.Lock()
	ch, ok := h.waiting[outcome.Attacker]
	if ok {
		delete(h.waiting, outcome.Attacker)
	}
	h.mu.Unlock()
	if !ok {
		return false
	}

	select {
	case ch <- outcome:
		return true
	default:
		return false
	}
}

// FrameExecutor plays a move's frame data in real time. After startup it keeps
// the move active until a hit report arrives or the active window closes,
// in which case the move whiffed.
type FrameExecutor struct {
	reports *HitReports
	tick    time.Duration
	after   func(time.Duration) <-chan time.Time
}

// NewFrameExecutor returns an executor driven by tick-sized frames.
func NewFrameExecutor(reports *HitReports, tick time.Duration) *FrameExecutor {
	if tick <= 0 {
		tick = time.Second / 60
	}
	return &FrameExecutor{reports: reports, tick: tick, after: time.After}
}

// Execute implements Executor.
func (e *FrameExecutor) Execute(ctx context.Context, attacker string, move *domain.Move) (domain.Outcome, error) {
	whiff := domain.Outcome{Attacker: attacker, Result: domain.HitResultWhiffed}

	if startup := e.frames(move.FrameData.Startup); startup > 0 {
		select {
		case <-e.after(startup):
		case <-ctx.Done():
			return whiff, ctx.Err()
		}
	}

	// Hits only count once the move is active.
	reports, done := e.reports.expect(attacker)
	defer done()

	active := e.frames(move.FrameData.Active)
	if active <= 0 {
		active = e.tick
	}
	select {
	case outcome := <-reports:
		outcome.Attacker = attacker
		if outcome.Result == domain.HitResultNone {
			outcome.Result = domain.HitResultHit
		}
		return outcome, nil
	case <-e.after(active):
		return whiff, nil
	case <-ctx.Done():
		return whiff, ctx.Err()
	}
}

func (e *FrameExecutor) frames(n int) time.Duration {
	return time.Duration(n) * e.tick
}
