package ws

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/quarrelgame-framework/server/internal/app"
	"github.com/quarrelgame-framework/server/internal/config"
	"github.com/quarrelgame-framework/server/internal/domain"
)

type testMessage struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id"`
	SessionID string          `json:"session_id"`
	Payload   json.RawMessage `json:"payload"`
	Error     string          `json:"error"`
}

func newTestServer(t *testing.T) (*httptest.Server, *app.Service) {
	t.Helper()
	catalog, err := config.NewGameConfig("gio", domain.Character{
		ID: "gio",
		Moves: []domain.Move{
			{ID: "5L", Command: &domain.CommandNormal{Direction: domain.MotionNeutral, Button: domain.ButtonLight}},
		},
	})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}

	logger := log.New(&bytes.Buffer{}, "", 0)
	hub := NewHub(logger)
	acks := app.NewPendingAcks()
	svc, err := app.NewService(app.Options{
		Loader:       NewLoader(hub, acks),
		Catalog:      catalog,
		Logger:       NewLogger(logger),
		LoadTimeout:  2 * time.Second,
		TickDuration: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewService() error: %v", err)
	}
	unsubscribe := svc.Bus().Subscribe("", hub.Route)
	t.Cleanup(func() {
		unsubscribe()
		svc.Close()
	})

	handler := NewHandler(svc, hub, acks, HandlerConfig{Logger: logger})
	srv := httptest.NewServer(http.HandlerFunc(handler.Handle))
	t.Cleanup(srv.Close)
	return srv, svc
}

func websocketURL(t *testing.T, baseURL, participantID string) string {
	t.Helper()

	parsed, err := url.Parse(baseURL)
	if err != nil {
		t.Fatalf("failed to parse test server url: %v", err)
	}
	parsed.Scheme = "ws"
	q := parsed.Query()
	q.Set("id", participantID)
	parsed.RawQuery = q.Encode()
	return parsed.String()
}

func dial(t *testing.T, srv *httptest.Server, participantID string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(websocketURL(t, srv.URL, participantID), nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		t.Fatalf("failed to open websocket connection: %v", err)
	}
	t.Cleanup(func() {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
		if resp != nil {
			resp.Body.Close()
		}
	})
	if msg := readUntil(t, conn, typeConnected); !strings.Contains(string(msg.Payload), participantID) {
		t.Fatalf("connected payload = %s", msg.Payload)
	}
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msgType, requestID string, payload any) {
	t.Helper()
	msg := map[string]any{"type": msgType, "request_id": requestID}
	if payload != nil {
		msg["payload"] = payload
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write %s: %v", msgType, err)
	}
}

// readUntil skips frames until one of msgType arrives.
func readUntil(t *testing.T, conn *websocket.Conn, msgType string) testMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var msg testMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for %s: %v", msgType, err)
		}
		if msg.Type == msgType {
			return msg
		}
	}
}

// call sends a command and waits for its reply.
func call(t *testing.T, conn *websocket.Conn, msgType string, payload any) testMessage {
	t.Helper()
	requestID := msgType + "-req"
	send(t, conn, msgType, requestID, payload)
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var msg testMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for reply to %s: %v", msgType, err)
		}
		if msg.RequestID == requestID && (msg.Type == typeReply || msg.Type == typeError) {
			return msg
		}
	}
}

func TestHandlerSessionLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)
	p1 := dial(t, srv, "p1")
	p2 := dial(t, srv, "p2")

	created := call(t, p1, typeCreateSession, nil)
	if created.Type != typeReply {
		t.Fatalf("create_session failed: %s", created.Error)
	}
	var session sessionRequest
	if err := json.Unmarshal(created.Payload, &session); err != nil || session.SessionID == "" {
		t.Fatalf("create payload = %s, %v", created.Payload, err)
	}

	if reply := call(t, p2, typeJoinSession, sessionRequest{SessionID: session.SessionID}); reply.Type != typeReply {
		t.Fatalf("join_session failed: %s", reply.Error)
	}
	readUntil(t, p1, string(app.EventParticipantJoined))

	for _, conn := range []*websocket.Conn{p1, p2} {
		if reply := call(t, conn, typeReady, nil); reply.Type != typeReply {
			t.Fatalf("ready failed: %s", reply.Error)
		}
	}

	send(t, p1, typeStartSession, "start", nil)
	for _, conn := range []*websocket.Conn{p1, p2} {
		req := readUntil(t, conn, typeRequestLoad)
		if !strings.Contains(string(req.Payload), domain.DefaultMap) {
			t.Fatalf("request_load payload = %s", req.Payload)
		}
		send(t, conn, typeLoadAck, req.RequestID, nil)
	}
	for _, conn := range []*websocket.Conn{p1, p2} {
		started := readUntil(t, conn, string(app.EventSessionStarted))
		if started.SessionID != session.SessionID {
			t.Fatalf("session_started for %s, want %s", started.SessionID, session.SessionID)
		}
	}

	if reply := call(t, p2, typeEndMatch, nil); reply.Type != typeError {
		t.Fatalf("non-host ended the match")
	}
	if reply := call(t, p1, typeEndMatch, nil); reply.Type != typeReply {
		t.Fatalf("end_match failed: %s", reply.Error)
	}
	readUntil(t, p2, string(app.EventSessionEnded))
}

func TestHandlerRejectedLoadFailsStart(t *testing.T) {
	srv, svc := newTestServer(t)
	p1 := dial(t, srv, "p1")

	call(t, p1, typeCreateSession, nil)
	call(t, p1, typeReady, nil)
	send(t, p1, typeStartSession, "start", nil)

	req := readUntil(t, p1, typeRequestLoad)
	send(t, p1, typeLoadAck, req.RequestID, loadAck{Error: "map missing"})

	failed := readUntil(t, p1, typeError)
	if failed.RequestID != "start" || !strings.Contains(failed.Error, "map missing") {
		t.Fatalf("start error = %+v", failed)
	}
	snap, err := svc.GetCurrentSession(t.Context(), "p1")
	if err != nil || snap.Phase != domain.PhaseWaiting {
		t.Fatalf("snapshot = %+v, %v", snap, err)
	}
}

func TestHandlerDisconnectEndsAbandonedSession(t *testing.T) {
	srv, svc := newTestServer(t)
	p1 := dial(t, srv, "p1")

	call(t, p1, typeCreateSession, nil)
	call(t, p1, typeReady, nil)
	send(t, p1, typeStartSession, "start", nil)
	req := readUntil(t, p1, typeRequestLoad)
	send(t, p1, typeLoadAck, req.RequestID, nil)
	readUntil(t, p1, string(app.EventSessionStarted))
	if n := len(svc.ListSessions(t.Context())); n != 1 {
		t.Fatalf("active sessions = %d, want 1", n)
	}

	p1.Close()
	deadline := time.Now().Add(3 * time.Second)
	for len(svc.ListSessions(t.Context())) != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("running session outlived its last connection")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHandlerReportsErrors(t *testing.T) {
	srv, _ := newTestServer(t)
	p1 := dial(t, srv, "p1")

	if reply := call(t, p1, "fly", nil); reply.Type != typeError || !strings.Contains(reply.Error, "unknown message type") {
		t.Fatalf("reply = %+v", reply)
	}
	if reply := call(t, p1, typeJoinSession, sessionRequest{SessionID: "missing"}); reply.Type != typeError {
		t.Fatalf("joined a missing session")
	}
	call(t, p1, typeCreateSession, nil)
	if reply := call(t, p1, typeSubmitInput, map[string]any{"button": "light", "motion": []string{"down"}}); reply.Type != typeError {
		t.Fatalf("malformed input accepted")
	}
}

func TestHandlerRequiresID(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHandlerRejectsSecondConnection(t *testing.T) {
	srv, _ := newTestServer(t)
	dial(t, srv, "p1")

	conn, resp, err := websocket.DefaultDialer.Dial(websocketURL(t, srv.URL, "p1"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if resp != nil {
		defer resp.Body.Close()
	}
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("err = %v, want policy violation close", err)
	}
}

func TestHubFollowsMembership(t *testing.T) {
	hub := NewHub(log.New(&bytes.Buffer{}, "", 0))
	joined := func(id string) app.Event {
		return app.Event{Kind: app.EventParticipantJoined, SessionID: "s1", Payload: app.ParticipantPayload{ParticipantID: id}}
	}

	if got := hub.recipients(joined("p1")); len(got) != 1 || got[0] != "p1" {
		t.Fatalf("recipients = %v", got)
	}
	if got := hub.recipients(joined("p2")); len(got) != 2 {
		t.Fatalf("recipients = %v", got)
	}
	left := app.Event{Kind: app.EventParticipantLeft, SessionID: "s1", Payload: app.ParticipantPayload{ParticipantID: "p1"}}
	if got := hub.recipients(left); len(got) != 2 {
		t.Fatalf("leaver should still see its own departure: %v", got)
	}
	if got := hub.recipients(app.Event{Kind: app.EventSessionStarting, SessionID: "s1"}); len(got) != 1 || got[0] != "p2" {
		t.Fatalf("recipients = %v", got)
	}
	if got := hub.recipients(app.Event{Kind: app.EventSessionStarted, SessionID: "s1", Recipients: []string{"p9"}}); len(got) != 1 || got[0] != "p9" {
		t.Fatalf("targeted recipients = %v", got)
	}
	hub.recipients(app.Event{Kind: app.EventSessionEnded, SessionID: "s1"})
	if got := hub.recipients(app.Event{Kind: app.EventHitstop, SessionID: "s1"}); len(got) != 0 {
		t.Fatalf("ended session still has members: %v", got)
	}
}

func TestLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(log.New(&buf, "", 0))
	logger.WithField("session", "s1").WithFields(map[string]interface{}{"tick": 3}).Info("hello %s", "there")

	if got := strings.TrimSpace(buf.String()); got != "[INFO] hello there session=s1 tick=3" {
		t.Fatalf("got %q", got)
	}
	if len(logger.Fields()) != 0 {
		t.Fatalf("parent logger gained fields")
	}
}
