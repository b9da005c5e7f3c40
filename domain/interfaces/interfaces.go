package interfaces

import (
	"context"

	"cybot/domain/entities"
)

// ConfigStore persists per-guild configuration snapshots.
type ConfigStore interface {
	// Load returns the stored config for a guild. entities.ErrNotFound is
	// returned when no snapshot exists, entities.ErrCorrupt when the
	// snapshot cannot be decoded.
	Load(ctx context.Context, guildID string) (*entities.GuildConfig, error)

	// Save atomically replaces the stored snapshot for the config's guild.
	Save(ctx context.Context, cfg *entities.GuildConfig) error
}

// RoomWatcher maintains connections to external media rooms for one session.
type RoomWatcher interface {
	// Info fetches a point-in-time snapshot of a room over a fresh
	// connection, bounded by the watcher's query timeout.
	Info(ctx context.Context, room string) (*entities.RoomInfo, error)

	// Watch opens a persistent connection to the room and invokes onChange
	// with a fresh Info snapshot after every media change. Watching an
	// already-watched room is a no-op.
	Watch(ctx context.Context, room string, onChange func(*entities.RoomInfo)) error

	// Unwatch detaches the listener and closes the room's connection.
	// Calling it for a room that is not watched is a no-op.
	Unwatch(room string)

	// Close tears down all live watches.
	Close()
}

// JokeFetcher fetches a random joke from the third-party joke API.
type JokeFetcher interface {
	Random(ctx context.Context) (string, error)
}
