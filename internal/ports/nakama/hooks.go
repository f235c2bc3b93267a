package nakama

import (
	"context"

	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"
)

// OnSessionStart registers the connecting user as a participant.
func (m *Module) OnSessionStart(ctx context.Context, logger runtime.Logger, evt *api.Event) {
	userID, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
	if userID == "" {
		return
	}
	if err := m.svc.Connect(ctx, userID); err != nil {
		logger.Warn("OnSessionStart: failed to connect %s: %v", userID, err)
	}
}

// OnSessionEnd removes the user from its session and forgets it.
func (m *Module) OnSessionEnd(ctx context.Context, logger runtime.Logger, evt *api.Event) {
	userID, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
	if userID == "" {
		return
	}
	logger.Debug("OnSessionEnd: %s disconnected (%s)", userID, evt.GetProperties()["reason"])
	m.svc.Disconnect(ctx, userID)
}
