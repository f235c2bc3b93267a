package nakama

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/heroiclabs/nakama-common/runtime"

	"github.com/quarrelgame-framework/server/internal/domain"
)

// CreateSessionRequest is the optional create_session payload.
type CreateSessionRequest struct {
	Settings *domain.Settings `json:"settings,omitempty"`
}

// JoinSessionRequest is the join_session payload.
type JoinSessionRequest struct {
	SessionID string `json:"session_id"`
}

// SessionResponse tells the client which match carries the session and the
// ticket to present when joining it.
type SessionResponse struct {
	SessionID string `json:"session_id"`
	MatchID   string `json:"match_id"`
	Ticket    string `json:"ticket,omitempty"`
}

type sessionListing struct {
	matchLabel
	MatchID string `json:"match_id"`
}

func userIDFrom(ctx context.Context) (string, error) {
	userID, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
	if userID == "" {
		return "", runtime.NewError("user id required", codeUnauthenticated)
	}
	return userID, nil
}

// RpcCreateSession creates a session hosted by the caller and the Nakama match carrying it.
//
// Payload: (Optional) {"settings": {"map": "...", "arenaType": 3}}
// Returns: SessionResponse JSON.
func (m *Module) RpcCreateSession(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, err := userIDFrom(ctx)
	if err != nil {
		return "", err
	}

	var req CreateSessionRequest
	if payload != "" {
		if err := json.Unmarshal([]byte(payload), &req); err != nil {
			return "", runtime.NewError("Invalid payload", codeInvalidArgument)
		}
	}
	var settings domain.Settings
	if req.Settings != nil {
		settings = *req.Settings
	}

	if err := m.svc.Connect(ctx, userID); err != nil {
		return "", toRuntimeError(err)
	}
	sessionID, err := m.svc.CreateSession(ctx, userID, settings)
	if err != nil {
		logger.Warn("RpcCreateSession [User:%s]: %v", userID, err)
		return "", toRuntimeError(err)
	}

	matchID, err := nk.MatchCreate(ctx, MatchNameSession, map[string]interface{}{matchParamSessionID: sessionID})
	if err != nil {
		logger.Error("RpcCreateSession [User:%s]: Failed to create match: %v", userID, err)
		if leaveErr := m.svc.LeaveSession(ctx, userID); leaveErr != nil {
			logger.Warn("RpcCreateSession [User:%s]: rollback failed: %v", userID, leaveErr)
		}
		return "", runtime.NewError("Internal error", codeInternal)
	}
	m.matches.Store(sessionID, matchID)

	logger.Info("RpcCreateSession [User:%s]: Created session %s in match %s", userID, sessionID, matchID)
	return m.sessionResponse(userID, sessionID, matchID)
}

// RpcJoinSession resolves the match of an existing session and issues a join ticket.
//
// Payload: {"session_id": "..."}
// Returns: SessionResponse JSON.
func (m *Module) RpcJoinSession(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, err := userIDFrom(ctx)
	if err != nil {
		return "", err
	}

	var req JoinSessionRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil || req.SessionID == "" {
		return "", runtime.NewError("session_id required", codeInvalidArgument)
	}
	if _, err := m.svc.SessionSnapshot(ctx, req.SessionID); err != nil {
		return "", toRuntimeError(err)
	}
	matchID, ok := m.matches.Load(req.SessionID)
	if !ok {
		return "", runtime.NewError("session has no match", codeNotFound)
	}
	return m.sessionResponse(userID, req.SessionID, matchID.(string))
}

// RpcGetCurrentSession returns the caller's session snapshot.
func (m *Module) RpcGetCurrentSession(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, err := userIDFrom(ctx)
	if err != nil {
		return "", err
	}
	snap, err := m.svc.GetCurrentSession(ctx, userID)
	if err != nil {
		return "", toRuntimeError(err)
	}
	out, err := encodeJSON(snap)
	if err != nil {
		logger.Error("RpcGetCurrentSession [User:%s]: Failed to marshal snapshot: %v", userID, err)
		return "", runtime.NewError("Internal error", codeInternal)
	}
	return out, nil
}

// RpcListSessions lists active sessions with the match carrying each one.
func (m *Module) RpcListSessions(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	snaps := m.svc.ListSessions(ctx)
	listings := make([]sessionListing, 0, len(snaps))
	for _, snap := range snaps {
		matchID, ok := m.matches.Load(snap.SessionID)
		if !ok {
			continue
		}
		listings = append(listings, sessionListing{matchLabel: labelFor(snap), MatchID: matchID.(string)})
	}
	b, err := json.Marshal(map[string]interface{}{"sessions": listings})
	if err != nil {
		return "", runtime.NewError("Internal error", codeInternal)
	}
	return string(b), nil
}

func (m *Module) sessionResponse(userID, sessionID, matchID string) (string, error) {
	resp := SessionResponse{SessionID: sessionID, MatchID: matchID}
	if m.tickets.Enabled() {
		ticket, err := m.tickets.Issue(userID, sessionID)
		if err != nil {
			return "", runtime.NewError("Internal error", codeInternal)
		}
		resp.Ticket = ticket
	}
	b, _ := json.Marshal(resp)
	return string(b), nil
}
