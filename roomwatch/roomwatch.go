// Package roomwatch maintains connections to external media rooms: one-shot
// info queries and persistent watches that announce media changes.
package roomwatch

import "context"

// Media describes the item currently playing in a room.
type Media struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Type  string `json:"type"`
}

// Conn is one live connection to a room.
type Conn interface {
	// CurrentMedia fetches the currently playing media.
	CurrentMedia(ctx context.Context) (*Media, error)

	// Userlist fetches the names of the users currently in the room.
	Userlist(ctx context.Context) ([]string, error)

	// OnMediaChange registers the handler invoked on every media change
	// pushed by the room. Only one handler is kept.
	OnMediaChange(fn func())

	// OnClose registers the handler invoked when the connection dies for
	// any reason other than a local Close call.
	OnClose(fn func(err error))

	// Close shuts the connection down.
	Close() error
}

// Dialer opens a fresh connection to a named room.
type Dialer interface {
	Dial(ctx context.Context, room string) (Conn, error)
}
