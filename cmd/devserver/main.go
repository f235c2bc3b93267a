// Command devserver runs the session service behind a plain websocket
// endpoint, for client development without a Nakama cluster.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/quarrelgame-framework/server/internal/app"
	"github.com/quarrelgame-framework/server/internal/config"
	"github.com/quarrelgame-framework/server/internal/ports/ws"
)

func main() {
	logger := log.New(os.Stderr, "quarrel ", log.LstdFlags|log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		logger.Println("no .env file, using process environment")
	}

	cfg, err := config.LoadRuntimeConfig(nil)
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	if err := config.LoadGameConfig(cfg.GameConfigPath); err != nil {
		logger.Fatalf("game config: %v", err)
	}

	hub := ws.NewHub(logger)
	acks := app.NewPendingAcks()
	svc, err := app.NewService(app.Options{
		Loader:       ws.NewLoader(hub, acks),
		Catalog:      config.GetGameConfig(),
		Logger:       ws.NewLogger(logger),
		LoadTimeout:  cfg.LoadTimeout,
		HitstopTicks: cfg.HitstopTicks,
		TickDuration: cfg.TickDuration(),
	})
	if err != nil {
		logger.Fatalf("service: %v", err)
	}
	defer svc.Close()
	unsubscribe := svc.Bus().Subscribe("", hub.Route)
	defer unsubscribe()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/sessions", func(w http.ResponseWriter, r *http.Request) {
		data, err := json.Marshal(map[string]any{"sessions": svc.ListSessions(r.Context())})
		if err != nil {
			http.Error(w, "failed to encode", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})
	mux.HandleFunc("/ws", ws.NewHandler(svc, hub, acks, ws.HandlerConfig{Logger: logger}).Handle)

	srv := &http.Server{Addr: cfg.DevServerAddr, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Printf("listening on %s", cfg.DevServerAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("server: %v", err)
	}
}
