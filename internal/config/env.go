package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// RuntimeConfig holds operator-tunable settings read from the environment.
type RuntimeConfig struct {
	GameConfigPath string        `env:"QUARREL_GAME_CONFIG"   envDefault:"data/game_config.json"`
	LoadTimeout    time.Duration `env:"QUARREL_LOAD_TIMEOUT"  envDefault:"5s"`
	HitstopTicks   int           `env:"QUARREL_HITSTOP_TICKS" envDefault:"12"`
	TickRate       int           `env:"QUARREL_TICK_RATE"     envDefault:"60"`
	TicketSecret   string        `env:"QUARREL_TICKET_SECRET"`
	TicketTTL      time.Duration `env:"QUARREL_TICKET_TTL"    envDefault:"10m"`
	DevServerAddr  string        `env:"QUARREL_DEV_ADDR"      envDefault:":8080"`
}

// TickDuration is the length of one simulation tick.
func (c RuntimeConfig) TickDuration() time.Duration {
	if c.TickRate <= 0 {
		return time.Second / 60
	}
	return time.Second / time.Duration(c.TickRate)
}

// LoadRuntimeConfig parses settings from environ, or the process environment when environ is nil.
// Nakama passes its runtime env map here.
func LoadRuntimeConfig(environ map[string]string) (RuntimeConfig, error) {
	var cfg RuntimeConfig
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return RuntimeConfig{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.LoadTimeout <= 0 {
		return RuntimeConfig{}, fmt.Errorf("load timeout must be positive, got %s", cfg.LoadTimeout)
	}
	if cfg.HitstopTicks < 0 {
		return RuntimeConfig{}, fmt.Errorf("hitstop ticks must not be negative, got %d", cfg.HitstopTicks)
	}
	return cfg, nil
}
