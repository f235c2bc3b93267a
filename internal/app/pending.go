package app

import (
	"sync"

	"github.com/google/uuid"
)

// PendingAcks correlates outbound requests with client acknowledgements.
// Transport loaders open one entry per request and resolve it when the
// matching ack arrives.
type PendingAcks struct {
	mu      sync.Mutex
	pending map[string]pendingAck
}

type pendingAck struct {
	participantID string
	result        chan error
}

// NewPendingAcks constructs an empty table.
func NewPendingAcks() *PendingAcks {
	return &PendingAcks{pending: make(map[string]pendingAck)}
}

// Open registers a request for participantID. The returned channel receives
// exactly one value when the request is resolved; cancel drops the entry.
func (p *PendingAcks) Open(participantID string) (string, <-chan error, func()) {
	id := uuid.NewString()
	ch := make(chan error, 1)

	p.mu.Lock()
	p.pending[id] = pendingAck{participantID: participantID, result: ch}
	p.mu.Unlock()

	return id, ch, func() {
		p.mu.Lock()
		delete(p.pending, id)
		p.mu.Unlock()
	}
}

// Resolve completes requestID. Only the participant the request was sent to
// may resolve it.
func (p *PendingAcks) Resolve(requestID, participantID string, err error) bool {
	p.mu.Lock()
	entry, ok := p.pending[requestID]
	if ok && entry.participantID == participantID {
		delete(p.pending, requestID)
	} else {
		ok = false
	}
	p.mu.Unlock()
	if !ok {
		return false
	}
	entry.result <- err
	return true
}

// Len returns the number of unresolved requests.
func (p *PendingAcks) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}
