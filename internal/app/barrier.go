package app

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quarrelgame-framework/server/internal/ports"
)

// DefaultLoadTimeout bounds each participant's load acknowledgement.
const DefaultLoadTimeout = 5 * time.Second

// LoadBarrier asks every participant to load a resource and succeeds only
// when all of them acknowledge in time.
type LoadBarrier struct {
	loader  ports.Loader
	timeout time.Duration
}

// NewLoadBarrier constructs a barrier; timeout <= 0 uses DefaultLoadTimeout.
func NewLoadBarrier(loader ports.Loader, timeout time.Duration) *LoadBarrier {
	if timeout <= 0 {
		timeout = DefaultLoadTimeout
	}
	return &LoadBarrier{loader: loader, timeout: timeout}
}

// Wait issues one load request per participant concurrently. The first
// failure returns immediately; requests still outstanding keep running but
// their results are dropped.
func (b *LoadBarrier) Wait(ctx context.Context, participants []string, resourceID string) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, id := range participants {
		g.Go(func() error {
			return b.await(gctx, id, resourceID)
		})
	}
	return g.Wait()
}

func (b *LoadBarrier) await(ctx context.Context, participantID, resourceID string) error {
	// The request outlives a failed barrier but not its own timeout.
	reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.timeout)
	result := make(chan error, 1)
	go func() {
		defer cancel()
		result <- b.loader.RequestLoad(reqCtx, participantID, resourceID)
	}()

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	select {
	case err := <-result:
		if errors.Is(err, context.DeadlineExceeded) {
			return &LoadTimeoutError{ParticipantID: participantID, ResourceID: resourceID, Timeout: b.timeout}
		}
		if err != nil {
			return &LoadRejectedError{ParticipantID: participantID, ResourceID: resourceID, Err: err}
		}
		return nil
	case <-timer.C:
		return &LoadTimeoutError{ParticipantID: participantID, ResourceID: resourceID, Timeout: b.timeout}
	case <-ctx.Done():
		return ctx.Err()
	}
}
