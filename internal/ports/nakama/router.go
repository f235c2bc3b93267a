package nakama

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/quarrelgame-framework/server/internal/app"
)

// outboxSize bounds the messages queued for one match between loop ticks.
const outboxSize = 256

// outbound is a message queued for the next MatchLoop to dispatch.
type outbound struct {
	opCode     int64
	payload    any
	recipients []string // participant ids; empty broadcasts to the match
}

// router finds the match outbox a participant is connected through. Match
// dispatchers are only usable inside handler callbacks, so everything sent
// from other goroutines is queued here.
type router struct {
	mu     sync.RWMutex
	outbox map[string]chan outbound
}

func newRouter() *router {
	return &router{outbox: make(map[string]chan outbound)}
}

func (r *router) attach(participantID string, outbox chan outbound) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outbox[participantID] = outbox
}

// detach removes the route only if it still points at outbox.
func (r *router) detach(participantID string, outbox chan outbound) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.outbox[participantID] == outbox {
		delete(r.outbox, participantID)
	}
}

// send queues msg for participantID. It returns false when the participant
// is not connected or its match is not draining.
func (r *router) send(participantID string, msg outbound) bool {
	r.mu.RLock()
	outbox, ok := r.outbox[participantID]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	return enqueue(outbox, msg)
}

func enqueue(outbox chan outbound, msg outbound) bool {
	select {
	case outbox <- msg:
		return true
	default:
		return false
	}
}

var errNotConnected = errors.New("participant is not connected to a match")

// presenceLoader asks clients to load a resource over their match connection
// and waits for the OpLoadAck carrying the same request id.
type presenceLoader struct {
	router *router
	acks   *app.PendingAcks
}

func newPresenceLoader(r *router, acks *app.PendingAcks) *presenceLoader {
	return &presenceLoader{router: r, acks: acks}
}

// RequestLoad implements ports.Loader.
func (l *presenceLoader) RequestLoad(ctx context.Context, participantID, resourceID string) error {
	requestID, result, cancel := l.acks.Open(participantID)
	defer cancel()

	msg := outbound{
		opCode:     OpRequestLoad,
		payload:    loadRequestPayload{RequestID: requestID, ResourceID: resourceID},
		recipients: []string{participantID},
	}
	if !l.router.send(participantID, msg) {
		return fmt.Errorf("%w: %s", errNotConnected, participantID)
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
