package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/quarrelgame-framework/server/internal/domain"
)

// GameConfig is the designer-facing catalog loaded from data/game_config.json.
type GameConfig struct {
	DefaultCharacter string             `json:"default_character"`
	DefaultMap       string             `json:"default_map"`
	Characters       []domain.Character `json:"characters"`

	byID map[string]*domain.Character
}

var (
	cfg      *GameConfig
	loadOnce sync.Once
	loadErr  error
)

// LoadGameConfig loads the game configuration from the given path.
func LoadGameConfig(path string) error {
	loadOnce.Do(func() {
		data, err := os.ReadFile(path)
		if err != nil {
			loadErr = fmt.Errorf("failed to read game config: %w", err)
			return
		}

		c, err := ParseGameConfig(data)
		if err != nil {
			loadErr = err
			return
		}
		cfg = c
	})
	return loadErr
}

// GetGameConfig returns the global game configuration.
func GetGameConfig() *GameConfig {
	return cfg
}

// ParseGameConfig decodes and validates a catalog.
func ParseGameConfig(data []byte) (*GameConfig, error) {
	var c GameConfig
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game config: %w", err)
	}
	if err := c.index(); err != nil {
		return nil, err
	}
	return &c, nil
}

// NewGameConfig builds a catalog in code, mostly for tests and the dev server.
func NewGameConfig(defaultCharacter string, characters ...domain.Character) (*GameConfig, error) {
	c := &GameConfig{DefaultCharacter: defaultCharacter, Characters: characters}
	if err := c.index(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *GameConfig) index() error {
	c.byID = make(map[string]*domain.Character, len(c.Characters))
	for i := range c.Characters {
		ch := &c.Characters[i]
		if ch.ID == "" {
			return fmt.Errorf("character %d has no id", i)
		}
		if _, dup := c.byID[ch.ID]; dup {
			return fmt.Errorf("duplicate character id %q", ch.ID)
		}
		seen := make(map[string]struct{}, len(ch.Moves))
		for j := range ch.Moves {
			if err := ch.Moves[j].Validate(); err != nil {
				return fmt.Errorf("character %s: %w", ch.ID, err)
			}
			if _, dup := seen[ch.Moves[j].ID]; dup {
				return fmt.Errorf("character %s: duplicate move id %q", ch.ID, ch.Moves[j].ID)
			}
			seen[ch.Moves[j].ID] = struct{}{}
		}
		c.byID[ch.ID] = ch
	}
	if c.DefaultCharacter != "" {
		if _, ok := c.byID[c.DefaultCharacter]; !ok {
			return fmt.Errorf("default character %q is not defined", c.DefaultCharacter)
		}
	}
	return nil
}

// Character returns the character with the given id.
func (c *GameConfig) Character(id string) (*domain.Character, bool) {
	if c == nil {
		return nil, false
	}
	ch, ok := c.byID[id]
	return ch, ok
}

// DefaultCharacterID returns the character used when a participant never picked one.
func (c *GameConfig) DefaultCharacterID() string {
	if c == nil {
		return ""
	}
	if c.DefaultCharacter != "" {
		return c.DefaultCharacter
	}
	if len(c.Characters) > 0 {
		return c.Characters[0].ID
	}
	return ""
}

// DefaultSettings returns session settings seeded from the catalog.
func (c *GameConfig) DefaultSettings() domain.Settings {
	settings := domain.DefaultSettings()
	if c != nil && c.DefaultMap != "" {
		settings.Map = c.DefaultMap
	}
	return settings
}
