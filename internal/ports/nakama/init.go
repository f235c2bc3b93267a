package nakama

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/heroiclabs/nakama-common/runtime"

	"github.com/quarrelgame-framework/server/internal/app"
	"github.com/quarrelgame-framework/server/internal/config"
)

// Module binds the app service to Nakama: RPCs, hooks and one match per session.
type Module struct {
	svc      *app.Service
	tickets  *app.TicketService
	router   *router
	acks     *app.PendingAcks
	tickRate int

	// matches maps a session id to the Nakama match carrying it.
	matches sync.Map
}

// newModule assembles the Nakama bindings around svc, whose loader must route
// through r and acks.
func newModule(svc *app.Service, tickets *app.TicketService, r *router, acks *app.PendingAcks, tickRate int) *Module {
	if tickRate <= 0 || tickRate > 60 {
		tickRate = 60
	}
	return &Module{svc: svc, tickets: tickets, router: r, acks: acks, tickRate: tickRate}
}

// Register installs RPCs, session hooks and the match handler.
func (m *Module) Register(initializer runtime.Initializer) error {
	rpcs := map[string]func(context.Context, runtime.Logger, *sql.DB, runtime.NakamaModule, string) (string, error){
		RpcCreateSession:     m.RpcCreateSession,
		RpcJoinSession:       m.RpcJoinSession,
		RpcGetCurrentSession: m.RpcGetCurrentSession,
		RpcListSessions:      m.RpcListSessions,
	}
	for id, fn := range rpcs {
		if err := initializer.RegisterRpc(id, fn); err != nil {
			return fmt.Errorf("register rpc %s: %w", id, err)
		}
	}

	if err := initializer.RegisterEventSessionStart(m.OnSessionStart); err != nil {
		return err
	}
	if err := initializer.RegisterEventSessionEnd(m.OnSessionEnd); err != nil {
		return err
	}

	return initializer.RegisterMatch(MatchNameSession, func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule) (runtime.Match, error) {
		return &matchHandler{mod: m}, nil
	})
}

// InitModule wires RPCs and match handlers for Nakama runtime.
func InitModule(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, initializer runtime.Initializer) error {
	environ, _ := ctx.Value(runtime.RUNTIME_CTX_ENV).(map[string]string)
	if environ == nil {
		environ = map[string]string{}
	}
	cfg, err := config.LoadRuntimeConfig(environ)
	if err != nil {
		return err
	}
	if err := config.LoadGameConfig(cfg.GameConfigPath); err != nil {
		logger.Error("InitModule: Could not load game config: %v", err)
		return err
	}

	r := newRouter()
	acks := app.NewPendingAcks()
	svc, err := app.NewService(app.Options{
		Loader:       newPresenceLoader(r, acks),
		Catalog:      config.GetGameConfig(),
		Logger:       logger,
		LoadTimeout:  cfg.LoadTimeout,
		HitstopTicks: cfg.HitstopTicks,
		TickDuration: cfg.TickDuration(),
	})
	if err != nil {
		return err
	}

	tickets := app.NewTicketService(cfg.TicketSecret, cfg.TicketTTL)
	if !tickets.Enabled() {
		logger.Warn("InitModule: QUARREL_TICKET_SECRET not set, match joins are not ticket checked.")
	}

	if err := newModule(svc, tickets, r, acks, cfg.TickRate).Register(initializer); err != nil {
		return err
	}

	logger.Info("Quarrel Go module loaded.")
	return nil
}
