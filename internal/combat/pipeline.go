package combat

import (
	"context"
	"sync"
	"time"

	"github.com/heroiclabs/nakama-common/runtime"

	"github.com/quarrelgame-framework/server/internal/domain"
	"github.com/quarrelgame-framework/server/internal/ports"
)

// DefaultHitstopTicks is the freeze applied to both sides of a connecting move.
const DefaultHitstopTicks = 12

// Executor runs a move's execution routine and reports how it landed.
type Executor interface {
	Execute(ctx context.Context, attacker string, move *domain.Move) (domain.Outcome, error)
}

// Result is what one pipeline run did once it finished.
type Result struct {
	Move      *domain.Move
	StartedAt time.Time
	Outcome   domain.Outcome
	// Settled is false when a newer action replaced this one before it settled.
	Settled bool
	// Reset is true when the run returned the combatant to neutral. It is
	// only known after recovery, so OnResult always sees false.
	Reset bool
}

// PipelineConfig tunes timing; zero fields fall back to defaults.
type PipelineConfig struct {
	HitstopTicks int
	TickDuration time.Duration
	Now          func() time.Time
	After        func(time.Duration) <-chan time.Time
	// OnResult, when set, is called from the action goroutine as soon as the
	// outcome is settled or discarded, before any recovery wait.
	OnResult func(ctx context.Context, attacker string, res Result)
}

// Pipeline drives accepted moves to completion. Runs for the same combatant are
// not mutually excluded; the timestamp recorded at acceptance guards every
// state write made after the execution routine returns.
type Pipeline struct {
	table    *StateTable
	executor Executor
	effects  ports.Effects
	logger   runtime.Logger
	cfg      PipelineConfig

	wg   sync.WaitGroup
	stop chan struct{}
	once sync.Once
}

// NewPipeline wires a pipeline around the shared state table.
func NewPipeline(table *StateTable, executor Executor, effects ports.Effects, logger runtime.Logger, cfg PipelineConfig) *Pipeline {
	if cfg.HitstopTicks == 0 {
		cfg.HitstopTicks = DefaultHitstopTicks
	}
	if cfg.TickDuration == 0 {
		cfg.TickDuration = time.Second / 60
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.After == nil {
		cfg.After = time.After
	}
	return &Pipeline{
		table:    table,
		executor: executor,
		effects:  effects,
		logger:   logger,
		cfg:      cfg,
		stop:     make(chan struct{}),
	}
}

// Action is a handle on one in-flight run.
type Action struct {
	Move      *domain.Move
	StartedAt time.Time
	done      chan Result
}

// Done is closed after the run's result is delivered.
func (a *Action) Done() <-chan Result {
	return a.done
}

// Wait blocks until the run finishes.
func (a *Action) Wait() Result {
	return <-a.done
}

// Start records the move for attacker and runs it asynchronously.
// The caller's cancellation does not reach the execution routine.
func (p *Pipeline) Start(ctx context.Context, attacker string, move *domain.Move) *Action {
	action, _ := p.StartIf(ctx, attacker, move, nil)
	return action
}

// StartIf is Start guarded by accept, which sees the attacker's runtime state
// and is checked atomically with recording the move. It returns false, and
// starts nothing, when accept refuses.
func (p *Pipeline) StartIf(ctx context.Context, attacker string, move *domain.Move, accept func(Runtime) bool) (*Action, bool) {
	ctx = context.WithoutCancel(ctx)
	at := p.cfg.Now()

	if !p.table.BeginIf(attacker, at, move.ID, accept) {
		return nil, false
	}
	p.effects.ApplyHitstop(ctx, attacker, HitstopPending)

	action := &Action{Move: move, StartedAt: at, done: make(chan Result, 1)}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		res := p.run(ctx, attacker, move, at)
		action.done <- res
		close(action.done)
	}()
	return action, true
}

func (p *Pipeline) run(ctx context.Context, attacker string, move *domain.Move, at time.Time) Result {
	res := Result{Move: move, StartedAt: at}

	outcome, err := p.executor.Execute(ctx, attacker, move)
	if err != nil {
		p.logger.Warn("Pipeline: move %s for %s failed to execute: %v", move.ID, attacker, err)
		outcome = domain.Outcome{Result: domain.HitResultWhiffed}
	}
	if outcome.Attacker == "" {
		outcome.Attacker = attacker
	}
	res.Outcome = outcome

	hitstop := 0
	if outcome.Result != domain.HitResultWhiffed {
		hitstop = p.cfg.HitstopTicks
		p.effects.ApplyHitstop(ctx, attacker, hitstop)
		if outcome.Defender != "" {
			p.table.SetHitstop(outcome.Defender, hitstop)
			p.effects.ApplyHitstop(ctx, outcome.Defender, hitstop)
		}
	}

	res.Settled = p.table.Settle(attacker, at, outcome.Result, hitstop)
	if p.cfg.OnResult != nil {
		p.cfg.OnResult(ctx, attacker, res)
	}
	if !res.Settled {
		p.logger.Debug("Pipeline: %s acted again before %s settled, discarding outcome %s", attacker, move.ID, outcome.Result)
		return res
	}

	if recovery := time.Duration(move.FrameData.Recovery) * p.cfg.TickDuration; recovery > 0 {
		select {
		case <-p.cfg.After(recovery):
		case <-p.stop:
		}
	}

	if p.table.ResetIf(attacker, at) {
		res.Reset = true
		p.effects.ResetState(ctx, attacker)
	} else {
		p.logger.Debug("Pipeline: %s state changed during %s recovery, skipping reset", attacker, move.ID)
	}
	return res
}

// Close cuts recovery waits short and blocks until every run has finished.
func (p *Pipeline) Close() {
	p.once.Do(func() { close(p.stop) })
	p.wg.Wait()
}

// Wait blocks until every in-flight run has finished.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}
