package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/quarrelgame-framework/server/internal/app"
)

const writeWait = 10 * time.Second

var (
	errNotConnected     = errors.New("participant is not connected")
	errAlreadyConnected = errors.New("participant is already connected")
)

// serverMessage is every frame the server writes. Events carry the event kind
// as their type; replies echo the request id of the command they answer.
type serverMessage struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Payload   any    `json:"payload,omitempty"`
	Error     string `json:"error,omitempty"`
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) writeJSON(msg serverMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", msg.Type, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub tracks connected participants and fans session events out to them.
// Session membership is followed from the event stream itself, so members
// still receive session_ended after the session has released them.
type Hub struct {
	logger *log.Logger

	mu      sync.Mutex
	clients map[string]*client
	members map[string]map[string]struct{} // session id -> participant ids
}

func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{
		logger:  logger,
		clients: make(map[string]*client),
		members: make(map[string]map[string]struct{}),
	}
}

func (h *Hub) attach(participantID string, conn *websocket.Conn) (*client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[participantID]; ok {
		return nil, errAlreadyConnected
	}
	c := &client{conn: conn}
	h.clients[participantID] = c
	return c, nil
}

func (h *Hub) detach(participantID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[participantID] == c {
		delete(h.clients, participantID)
	}
}

func (h *Hub) send(participantID string, msg serverMessage) error {
	h.mu.Lock()
	c, ok := h.clients[participantID]
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", errNotConnected, participantID)
	}
	return c.writeJSON(msg)
}

// Route delivers ev to its recipients. Subscribe it to the service bus.
func (h *Hub) Route(ev app.Event) {
	msg := serverMessage{Type: string(ev.Kind), SessionID: ev.SessionID, Payload: ev.Payload}
	for _, id := range h.recipients(ev) {
		if err := h.send(id, msg); err != nil && !errors.Is(err, errNotConnected) {
			h.logger.Printf("failed to deliver %s to %s: %v", ev.Kind, id, err)
		}
	}
}

func (h *Hub) recipients(ev app.Event) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	members := h.members[ev.SessionID]
	if ev.Kind == app.EventParticipantJoined {
		if p, ok := ev.Payload.(app.ParticipantPayload); ok {
			if members == nil {
				members = make(map[string]struct{})
				h.members[ev.SessionID] = members
			}
			members[p.ParticipantID] = struct{}{}
		}
	}

	var ids []string
	if len(ev.Recipients) > 0 {
		ids = append(ids, ev.Recipients...)
	} else {
		for id := range members {
			ids = append(ids, id)
		}
		sort.Strings(ids)
	}

	switch ev.Kind {
	case app.EventParticipantLeft:
		if p, ok := ev.Payload.(app.ParticipantPayload); ok {
			delete(members, p.ParticipantID)
			if len(members) == 0 {
				delete(h.members, ev.SessionID)
			}
		}
	case app.EventSessionEnded:
		delete(h.members, ev.SessionID)
	}
	return ids
}

// Loader asks participants to load a resource over their socket and waits for
// the load_ack carrying the same request id.
type Loader struct {
	hub  *Hub
	acks *app.PendingAcks
}

func NewLoader(hub *Hub, acks *app.PendingAcks) *Loader {
	return &Loader{hub: hub, acks: acks}
}

type loadRequest struct {
	ResourceID string `json:"resourceId"`
}

// RequestLoad implements ports.Loader.
func (l *Loader) RequestLoad(ctx context.Context, participantID, resourceID string) error {
	requestID, result, cancel := l.acks.Open(participantID)
	defer cancel()

	msg := serverMessage{Type: typeRequestLoad, RequestID: requestID, Payload: loadRequest{ResourceID: resourceID}}
	if err := l.hub.send(participantID, msg); err != nil {
		return err
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
