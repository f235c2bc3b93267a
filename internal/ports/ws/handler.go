package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	nethttp "net/http"

	"github.com/gorilla/websocket"

	"github.com/quarrelgame-framework/server/internal/app"
	"github.com/quarrelgame-framework/server/internal/domain"
)

// Client command types. Server events use the app event kinds.
const (
	typeCreateSession     = "create_session"
	typeJoinSession       = "join_session"
	typeLeaveSession      = "leave_session"
	typeReady             = "ready"
	typeUnready           = "unready"
	typeStartSession      = "start_session"
	typeSubmitInput       = "submit_input"
	typeLoadAck           = "load_ack"
	typeHitReport         = "hit_report"
	typeSetSettings       = "set_settings"
	typeSelectCharacter   = "select_character"
	typeRespawn           = "respawn"
	typeClearParticipants = "clear_participants"
	typePhysicalState     = "physical_state"
	typeGetCurrentSession = "get_current_session"
	typeListSessions      = "list_sessions"
	typeEndMatch          = "end_match"

	typeConnected   = "connected"
	typeReply       = "reply"
	typeError       = "error"
	typeRequestLoad = "request_load"
)

var errUnknownType = errors.New("unknown message type")

type clientMessage struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type sessionRequest struct {
	SessionID string           `json:"session_id"`
	Settings  *domain.Settings `json:"settings,omitempty"`
}

type loadAck struct {
	Error string `json:"error,omitempty"`
}

type hitReport struct {
	Defender string           `json:"defender"`
	Result   domain.HitResult `json:"result"`
}

type characterRequest struct {
	CharacterID string `json:"characterId"`
}

type physicalState struct {
	Airborne bool `json:"airborne"`
}

type HandlerConfig struct {
	Logger *log.Logger
}

// Handler serves one websocket per participant, identified by the id query
// parameter, and maps its commands onto the service.
type Handler struct {
	svc      *app.Service
	hub      *Hub
	acks     *app.PendingAcks
	logger   *log.Logger
	upgrader websocket.Upgrader
}

func NewHandler(svc *app.Service, hub *Hub, acks *app.PendingAcks, cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *nethttp.Request) bool {
			return true
		},
	}

	return &Handler{
		svc:      svc,
		hub:      hub,
		acks:     acks,
		logger:   logger,
		upgrader: upgrader,
	}
}

func (h *Handler) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	participantID := r.URL.Query().Get("id")
	if participantID == "" {
		nethttp.Error(w, "missing id", nethttp.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("upgrade failed for %s: %v", participantID, err)
		return
	}
	defer conn.Close()

	c, err := h.hub.attach(participantID, conn)
	if err != nil {
		message := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error())
		conn.WriteMessage(websocket.CloseMessage, message)
		return
	}
	ctx := r.Context()
	defer func() {
		h.hub.detach(participantID, c)
		h.svc.Disconnect(context.WithoutCancel(ctx), participantID)
	}()

	if err := h.svc.Connect(ctx, participantID); err != nil {
		h.logger.Printf("connect failed for %s: %v", participantID, err)
		return
	}
	if err := c.writeJSON(serverMessage{Type: typeConnected, Payload: app.ParticipantPayload{ParticipantID: participantID}}); err != nil {
		return
	}

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			h.logger.Printf("discarding malformed message from %s: %v", participantID, err)
			continue
		}
		h.dispatch(ctx, participantID, c, msg)
	}
}

func (h *Handler) dispatch(ctx context.Context, participantID string, c *client, msg clientMessage) {
	reply := func(payload any, err error) {
		out := serverMessage{Type: typeReply, RequestID: msg.RequestID, Payload: payload}
		if err != nil {
			out = serverMessage{Type: typeError, RequestID: msg.RequestID, Error: err.Error()}
		}
		if err := c.writeJSON(out); err != nil {
			h.logger.Printf("failed to reply to %s: %v", participantID, err)
		}
	}
	svc := h.svc

	switch msg.Type {
	case typeCreateSession:
		var req sessionRequest
		if err := decode(msg, &req); err != nil {
			reply(nil, err)
			return
		}
		var settings domain.Settings
		if req.Settings != nil {
			settings = *req.Settings
		}
		sessionID, err := svc.CreateSession(ctx, participantID, settings)
		reply(sessionRequest{SessionID: sessionID}, err)
	case typeJoinSession:
		var req sessionRequest
		if err := decode(msg, &req); err != nil {
			reply(nil, err)
			return
		}
		reply(sessionRequest{SessionID: req.SessionID}, svc.JoinSession(ctx, participantID, req.SessionID))
	case typeLeaveSession:
		reply(nil, svc.LeaveSession(ctx, participantID))
	case typeReady:
		reply(nil, svc.Ready(ctx, participantID))
	case typeUnready:
		reply(nil, svc.Unready(ctx, participantID))
	case typeClearParticipants:
		reply(nil, svc.ClearParticipants(ctx, participantID))
	case typeRespawn:
		reply(nil, svc.RespawnParticipant(ctx, participantID))
	case typeStartSession:
		// The barrier waits on load_acks read by this loop.
		go func() {
			reply(nil, svc.StartSession(ctx, participantID))
		}()
	case typeLoadAck:
		var req loadAck
		if err := decode(msg, &req); err != nil {
			h.logger.Printf("invalid load_ack from %s: %v", participantID, err)
			return
		}
		var loadErr error
		if req.Error != "" {
			loadErr = errors.New(req.Error)
		}
		if !h.acks.Resolve(msg.RequestID, participantID, loadErr) {
			h.logger.Printf("%s acknowledged unknown or expired request %s", participantID, msg.RequestID)
		}
	case typeSubmitInput:
		var input domain.Input
		if err := decode(msg, &input); err != nil {
			reply(nil, errors.Join(domain.ErrInvalidInput, err))
			return
		}
		accepted, err := svc.SubmitInput(ctx, participantID, input)
		reply(map[string]bool{"accepted": accepted}, err)
	case typeHitReport:
		var req hitReport
		if err := decode(msg, &req); err != nil {
			reply(nil, err)
			return
		}
		reply(nil, svc.ReportHit(ctx, participantID, domain.Outcome{Defender: req.Defender, Result: req.Result}))
	case typeSetSettings:
		var settings domain.Settings
		if err := decode(msg, &settings); err != nil {
			reply(nil, err)
			return
		}
		reply(nil, svc.SetSettings(ctx, participantID, settings))
	case typeSelectCharacter:
		var req characterRequest
		if err := decode(msg, &req); err != nil {
			reply(nil, err)
			return
		}
		reply(nil, svc.SelectCharacter(ctx, participantID, req.CharacterID))
	case typePhysicalState:
		var req physicalState
		if err := decode(msg, &req); err != nil {
			reply(nil, err)
			return
		}
		reply(nil, svc.UpdatePhysicalState(ctx, participantID, req.Airborne))
	case typeGetCurrentSession:
		reply(svc.GetCurrentSession(ctx, participantID))
	case typeListSessions:
		reply(svc.ListSessions(ctx), nil)
	case typeEndMatch:
		reply(nil, h.endMatch(ctx, participantID))
	default:
		reply(nil, fmt.Errorf("%w %q", errUnknownType, msg.Type))
	}
}

// endMatch lets the host end its running session.
func (h *Handler) endMatch(ctx context.Context, participantID string) error {
	snap, err := h.svc.GetCurrentSession(ctx, participantID)
	if err != nil {
		return err
	}
	if snap.Host != participantID {
		return app.ErrNotHost
	}
	return h.svc.EndMatch(ctx, snap.SessionID)
}

func decode(msg clientMessage, v any) error {
	if len(msg.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", msg.Type, err)
	}
	return nil
}
