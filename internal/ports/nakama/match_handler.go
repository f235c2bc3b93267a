package nakama

import (
	"context"
	"database/sql"
	"errors"

	"github.com/heroiclabs/nakama-common/runtime"

	"github.com/quarrelgame-framework/server/internal/app"
	"github.com/quarrelgame-framework/server/internal/domain"
)

// MatchState holds the per-match runtime state for the Nakama match handler.
// Session state itself lives in the app service; this only tracks presences
// and the queue of messages waiting for the next loop.
type MatchState struct {
	SessionID string                      `json:"session_id"`
	Tick      int64                       `json:"tick"`
	Label     string                      `json:"-"`
	Presences map[string]runtime.Presence `json:"-"` // Map UserId -> Presence for targeted messaging

	outbox      chan outbound
	starts      chan startResult
	starting    bool
	ended       bool
	unsubscribe func()
}

type startResult struct {
	requester string
	err       error
}

type matchHandler struct {
	mod *Module
}

// MatchInit is called when the match is created for a session.
func (mh *matchHandler) MatchInit(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, params map[string]interface{}) (interface{}, int, string) {
	sessionID, _ := params[matchParamSessionID].(string)
	snap, err := mh.mod.svc.SessionSnapshot(ctx, sessionID)
	if err != nil {
		logger.Error("MatchInit: session %q not found: %v", sessionID, err)
		return nil, 0, ""
	}

	state := &MatchState{
		SessionID: sessionID,
		Presences: make(map[string]runtime.Presence),
		outbox:    make(chan outbound, outboxSize),
		starts:    make(chan startResult, 1),
	}
	outbox := state.outbox
	state.unsubscribe = mh.mod.svc.Bus().Subscribe(sessionID, func(ev app.Event) {
		opCode, ok := eventOpCodes[ev.Kind]
		if !ok {
			logger.Warn("MatchInit: no opcode for event kind %s", ev.Kind)
			return
		}
		if !enqueue(outbox, outbound{opCode: opCode, payload: ev.Payload, recipients: ev.Recipients}) {
			logger.Warn("Session %s: outbox full, dropped %s", sessionID, ev.Kind)
		}
	})

	label, err := encodeJSON(labelFor(snap))
	if err != nil {
		logger.Error("MatchInit: Failed to marshal label: %v", err)
		state.unsubscribe()
		return nil, 0, ""
	}
	state.Label = label

	logger.Debug("MatchInit: session %s bound to match.", sessionID)
	return state, mh.mod.tickRate, label
}

func (mh *matchHandler) MatchJoinAttempt(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presence runtime.Presence, metadata map[string]string) (interface{}, bool, string) {
	matchState, ok := state.(*MatchState)
	if !ok {
		return state, false, "state not found"
	}
	userID := presence.GetUserId()
	svc := mh.mod.svc

	if mh.mod.tickets.Enabled() {
		sid, err := mh.mod.tickets.Verify(metadata[metadataTicket], userID)
		if err != nil || sid != matchState.SessionID {
			logger.Warn("MatchJoinAttempt: rejected %s for session %s: %v", userID, matchState.SessionID, err)
			return state, false, "invalid ticket"
		}
	}

	if err := svc.Connect(ctx, userID); err != nil {
		return state, false, err.Error()
	}
	if snap, err := svc.GetCurrentSession(ctx, userID); err == nil && snap.SessionID == matchState.SessionID {
		return state, true, ""
	}
	if err := svc.JoinSession(ctx, userID, matchState.SessionID); err != nil {
		logger.Info("MatchJoinAttempt: %s cannot join session %s: %v", userID, matchState.SessionID, err)
		return state, false, err.Error()
	}
	return state, true, ""
}

func (mh *matchHandler) MatchJoin(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		logger.Error("MatchJoin: state not found")
		return state
	}

	for _, p := range presences {
		userID := p.GetUserId()
		matchState.Presences[userID] = p
		mh.mod.router.attach(userID, matchState.outbox)

		snap, err := mh.mod.svc.GetCurrentSession(ctx, userID)
		if err != nil {
			logger.Warn("MatchJoin: %s joined but has no session: %v", userID, err)
			continue
		}
		enqueue(matchState.outbox, outbound{opCode: OpSnapshot, payload: snap, recipients: []string{userID}})
	}

	mh.flush(matchState, dispatcher, logger)
	mh.updateLabel(ctx, matchState, dispatcher, logger)
	return matchState
}

// MatchLeave is called when one or more participants leave the match.
func (mh *matchHandler) MatchLeave(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		logger.Error("MatchLeave: state not found")
		return state
	}

	for _, p := range presences {
		userID := p.GetUserId()
		delete(matchState.Presences, userID)
		mh.mod.router.detach(userID, matchState.outbox)

		if err := mh.mod.svc.LeaveSession(ctx, userID); err != nil && !errors.Is(err, app.ErrNotInSession) {
			logger.Warn("MatchLeave: %s failed to leave session %s: %v", userID, matchState.SessionID, err)
		}
	}

	mh.flush(matchState, dispatcher, logger)
	if mh.idle(ctx, matchState, logger) {
		logger.Info("MatchLeave: Terminating match for session %s with nobody left.", matchState.SessionID)
		mh.release(matchState)
		return nil
	}
	mh.updateLabel(ctx, matchState, dispatcher, logger)
	return matchState
}

func (mh *matchHandler) MatchLoop(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, messages []runtime.MatchData) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		return state
	}

	matchState.Tick = tick

	select {
	case res := <-matchState.starts:
		matchState.starting = false
		if res.err != nil {
			mh.sendError(matchState, logger, res.requester, res.err)
		}
	default:
	}

	for _, msg := range messages {
		mh.handleMessage(ctx, matchState, logger, msg)
	}

	mh.flush(matchState, dispatcher, logger)

	if matchState.ended || mh.idle(ctx, matchState, logger) {
		logger.Info("MatchLoop: session %s is over, terminating match.", matchState.SessionID)
		mh.release(matchState)
		return nil
	}
	mh.updateLabel(ctx, matchState, dispatcher, logger)
	return matchState
}

func (mh *matchHandler) handleMessage(ctx context.Context, state *MatchState, logger runtime.Logger, msg runtime.MatchData) {
	senderID := msg.GetUserId()
	svc := mh.mod.svc

	var err error
	switch msg.GetOpCode() {
	case OpReady:
		err = svc.Ready(ctx, senderID)
	case OpUnready:
		err = svc.Unready(ctx, senderID)
	case OpStartSession:
		mh.handleStartSession(ctx, state, logger, senderID)
	case OpSubmitInput:
		var input domain.Input
		if err = decodePayload(msg.GetData(), &input); err != nil {
			err = errors.Join(domain.ErrInvalidInput, err)
			break
		}
		var accepted bool
		accepted, err = svc.SubmitInput(ctx, senderID, input)
		if err == nil && !accepted {
			logger.Debug("SubmitInput: input from %s not accepted", senderID)
		}
	case OpLoadAck:
		mh.handleLoadAck(state, logger, senderID, msg.GetData())
	case OpHitReport:
		var req hitReportRequest
		if err = decodePayload(msg.GetData(), &req); err != nil {
			break
		}
		err = svc.ReportHit(ctx, senderID, domain.Outcome{Defender: req.Defender, Result: domain.HitResult(req.Result)})
	case OpSetSettings:
		var settings domain.Settings
		if err = decodePayload(msg.GetData(), &settings); err != nil {
			break
		}
		err = svc.SetSettings(ctx, senderID, settings)
	case OpSelectCharacter:
		var req selectCharacterRequest
		if err = decodePayload(msg.GetData(), &req); err != nil {
			break
		}
		err = svc.SelectCharacter(ctx, senderID, req.CharacterID)
	case OpRespawn:
		err = svc.RespawnParticipant(ctx, senderID)
	case OpClearParticipants:
		err = svc.ClearParticipants(ctx, senderID)
	case OpPhysicalState:
		var req physicalStateRequest
		if err = decodePayload(msg.GetData(), &req); err != nil {
			break
		}
		err = svc.UpdatePhysicalState(ctx, senderID, req.Airborne)
	default:
		logger.Warn("MatchLoop: Unknown opcode received: %d", msg.GetOpCode())
		return
	}

	if err != nil {
		logger.Debug("MatchLoop: opcode %d from %s failed: %v", msg.GetOpCode(), senderID, err)
		mh.sendError(state, logger, senderID, err)
	}
}

// handleStartSession runs the start off the loop: the load barrier waits on
// acks that only this loop can receive.
func (mh *matchHandler) handleStartSession(ctx context.Context, state *MatchState, logger runtime.Logger, senderID string) {
	if state.starting {
		mh.sendError(state, logger, senderID, app.ErrAlreadyStarted)
		return
	}
	state.starting = true
	starts := state.starts
	svc := mh.mod.svc
	go func() {
		err := svc.StartSession(ctx, senderID)
		starts <- startResult{requester: senderID, err: err}
	}()
	logger.Info("StartSession: Request received from %s for session %s", senderID, state.SessionID)
}

func (mh *matchHandler) handleLoadAck(state *MatchState, logger runtime.Logger, senderID string, data []byte) {
	var req loadAckRequest
	if err := decodePayload(data, &req); err != nil {
		logger.Warn("LoadAck: Invalid payload from %s: %v", senderID, err)
		return
	}
	var loadErr error
	if req.Error != "" {
		loadErr = errors.New(req.Error)
	}
	if !mh.mod.acks.Resolve(req.RequestID, senderID, loadErr) {
		logger.Debug("LoadAck: %s acknowledged unknown or expired request %s", senderID, req.RequestID)
	}
}

// flush dispatches every queued message.
func (mh *matchHandler) flush(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	for {
		select {
		case msg := <-state.outbox:
			mh.dispatch(state, dispatcher, logger, msg)
		default:
			return
		}
	}
}

func (mh *matchHandler) dispatch(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, msg outbound) {
	if msg.opCode == OpSessionEnded {
		state.ended = true
	}

	data, err := encodePayload(msg.payload)
	if err != nil {
		logger.Error("Failed to marshal message %d: %v", msg.opCode, err)
		return
	}

	// Determine recipients (default to broadcast)
	var recipients []runtime.Presence
	if len(msg.recipients) > 0 {
		for _, uid := range msg.recipients {
			if p, ok := state.Presences[uid]; ok {
				recipients = append(recipients, p)
			}
		}

		// Targeted messages never fall back to a broadcast.
		if len(recipients) == 0 {
			return
		}
	}

	if err := dispatcher.BroadcastMessage(msg.opCode, data, recipients, nil, true); err != nil {
		logger.Error("Failed to broadcast message %d: %v", msg.opCode, err)
	}
}

// sendError queues an error notice for one participant.
func (mh *matchHandler) sendError(state *MatchState, logger runtime.Logger, userID string, err error) {
	payload := errorPayload{Code: errorCode(err), Message: err.Error()}
	if !enqueue(state.outbox, outbound{opCode: OpError, payload: payload, recipients: []string{userID}}) {
		logger.Warn("Cannot send error to %s: outbox full", userID)
	}
}

// idle reports whether the match has nothing left to serve. A session left
// in progress by everyone is ended here.
func (mh *matchHandler) idle(ctx context.Context, state *MatchState, logger runtime.Logger) bool {
	if len(state.Presences) > 0 || state.starting {
		return false
	}
	snap, err := mh.mod.svc.SessionSnapshot(ctx, state.SessionID)
	if err != nil {
		return true
	}
	switch snap.Phase {
	case domain.PhaseInProgress:
		if err := mh.mod.svc.EndMatch(ctx, state.SessionID); err != nil {
			logger.Warn("Session %s: failed to end abandoned match: %v", state.SessionID, err)
		}
		return true
	case domain.PhaseWaiting:
		// Created but nobody has joined yet.
		return len(snap.Participants) == 0
	default:
		return snap.Phase.Terminal()
	}
}

func (mh *matchHandler) release(state *MatchState) {
	if state.unsubscribe != nil {
		state.unsubscribe()
	}
	for userID := range state.Presences {
		mh.mod.router.detach(userID, state.outbox)
	}
	mh.mod.matches.Delete(state.SessionID)
}

func (mh *matchHandler) updateLabel(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	snap, err := mh.mod.svc.SessionSnapshot(ctx, state.SessionID)
	if err != nil {
		return
	}
	label, err := encodeJSON(labelFor(snap))
	if err != nil {
		logger.Error("UpdateLabel: Failed to marshal: %v", err)
		return
	}
	if label == state.Label {
		return
	}
	if err := dispatcher.MatchLabelUpdate(label); err != nil {
		logger.Error("UpdateLabel: Failed to update: %v", err)
		return
	}
	state.Label = label
}

func (mh *matchHandler) MatchTerminate(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, graceSeconds int) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		return state
	}
	logger.Debug("MatchTerminate: session %s terminated with %d seconds grace", matchState.SessionID, graceSeconds)
	if snap, err := mh.mod.svc.SessionSnapshot(ctx, matchState.SessionID); err == nil && snap.Phase == domain.PhaseInProgress {
		if err := mh.mod.svc.EndMatch(ctx, matchState.SessionID); err != nil {
			logger.Warn("MatchTerminate: failed to end session %s: %v", matchState.SessionID, err)
		}
	}
	mh.flush(matchState, dispatcher, logger)
	mh.release(matchState)
	return matchState
}

// MatchSignal lets game logic end the match via nk.MatchSignal(SignalEndMatch).
func (mh *matchHandler) MatchSignal(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, data string) (interface{}, string) {
	matchState, ok := state.(*MatchState)
	if !ok {
		return state, "state not found"
	}
	if data != SignalEndMatch {
		return state, "unknown signal"
	}
	if err := mh.mod.svc.EndMatch(ctx, matchState.SessionID); err != nil {
		logger.Warn("MatchSignal: failed to end session %s: %v", matchState.SessionID, err)
		return state, err.Error()
	}
	mh.flush(matchState, dispatcher, logger)
	return state, "ok"
}
