package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"cybot/domain/entities"
)

// GuildConfigStore persists one JSON snapshot per guild under a data
// directory. Writes go through a temp file and an atomic rename so a crash
// mid-write never leaves a half-written snapshot behind.
type GuildConfigStore struct {
	dir string
}

// NewGuildConfigStore creates a store rooted at dir, creating it if needed.
func NewGuildConfigStore(dir string) (*GuildConfigStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", dir, err)
	}
	return &GuildConfigStore{dir: dir}, nil
}

// Load returns the stored config for a guild.
func (s *GuildConfigStore) Load(ctx context.Context, guildID string) (*entities.GuildConfig, error) {
	data, err := os.ReadFile(s.path(guildID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("guild %s: %w", guildID, entities.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read config for guild %s: %w", guildID, err)
	}

	var cfg entities.GuildConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("guild %s: %v: %w", guildID, err, entities.ErrCorrupt)
	}
	if cfg.GuildID == "" {
		cfg.GuildID = guildID
	}
	if cfg.WatchedRooms == nil {
		cfg.WatchedRooms = []string{}
	}
	return &cfg, nil
}

// Save atomically replaces the stored snapshot for the config's guild.
func (s *GuildConfigStore) Save(ctx context.Context, cfg *entities.GuildConfig) error {
	if cfg.GuildID == "" {
		return fmt.Errorf("cannot save config without a guild id")
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config for guild %s: %w", cfg.GuildID, err)
	}

	tmp, err := os.CreateTemp(s.dir, cfg.GuildID+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for guild %s: %w", cfg.GuildID, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write config for guild %s: %w", cfg.GuildID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp file for guild %s: %w", cfg.GuildID, err)
	}
	if err := os.Rename(tmp.Name(), s.path(cfg.GuildID)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace config for guild %s: %w", cfg.GuildID, err)
	}
	return nil
}

func (s *GuildConfigStore) path(guildID string) string {
	return filepath.Join(s.dir, guildID+".json")
}
