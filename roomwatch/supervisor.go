package roomwatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cybot/domain/entities"

	log "github.com/sirupsen/logrus"
)

// DefaultQueryTimeout bounds every one-shot room query.
const DefaultQueryTimeout = 10 * time.Second

// Supervisor owns at most one live connection per room and delivers
// media-change notifications while hiding connection churn from callers.
//
// One-shot queries never reuse a connection: the external service has been
// observed to fail a second request on a reused connection, so every Info
// call opens and closes its own.
type Supervisor struct {
	dialer Dialer
	onLost func(room string, err error)

	// QueryTimeout bounds Info calls. Defaults to DefaultQueryTimeout.
	QueryTimeout time.Duration

	mu      sync.Mutex
	watches map[string]*watch
}

type watch struct {
	conn     Conn
	onChange func(*entities.RoomInfo)
}

// NewSupervisor creates a supervisor. onLost, when non-nil, is invoked after
// a watch's connection dies unrecoverably and its bookkeeping is removed.
func NewSupervisor(dialer Dialer, onLost func(room string, err error)) *Supervisor {
	return &Supervisor{
		dialer:       dialer,
		onLost:       onLost,
		QueryTimeout: DefaultQueryTimeout,
		watches:      make(map[string]*watch),
	}
}

// Info opens a fresh connection, fetches the current media and user list,
// and closes the connection again. The whole call is bounded by QueryTimeout;
// the connection is closed no matter which side of the race loses.
func (s *Supervisor) Info(ctx context.Context, room string) (*entities.RoomInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, s.QueryTimeout)
	defer cancel()

	conn, err := s.dialer.Dial(ctx, room)
	if err != nil {
		return nil, wrapConnErr(room, err)
	}
	defer conn.Close()

	media, err := conn.CurrentMedia(ctx)
	if err != nil {
		return nil, wrapQueryErr(room, err)
	}
	users, err := conn.Userlist(ctx)
	if err != nil {
		return nil, wrapQueryErr(room, err)
	}

	return &entities.RoomInfo{
		Room:       room,
		MediaTitle: media.Title,
		MediaType:  media.Type,
		UserCount:  len(users),
		MediaURL:   mediaURL(media),
	}, nil
}

// Watch opens a persistent connection to the room and registers onChange to
// receive a fresh Info snapshot after every media change. Watching a room
// that is already watched is a no-op; at most one live connection exists per
// room. The dial is bounded by QueryTimeout so an unreachable room service
// cannot stall the caller indefinitely.
func (s *Supervisor) Watch(ctx context.Context, room string, onChange func(*entities.RoomInfo)) error {
	s.mu.Lock()
	if _, ok := s.watches[room]; ok {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, s.QueryTimeout)
	defer cancel()
	conn, err := s.dialer.Dial(dialCtx, room)
	if err != nil {
		return wrapConnErr(room, err)
	}

	s.mu.Lock()
	if _, ok := s.watches[room]; ok {
		// Lost the race against a concurrent Watch for the same room.
		s.mu.Unlock()
		conn.Close()
		return nil
	}
	s.watches[room] = &watch{conn: conn, onChange: onChange}
	s.mu.Unlock()

	conn.OnMediaChange(func() {
		go s.handleChange(room)
	})
	conn.OnClose(func(err error) {
		s.handleLost(room, err)
	})

	log.WithField("room", room).Info("Room watch established")
	return nil
}

// Unwatch detaches the listener and closes the room's connection. Unknown
// rooms are a no-op.
func (s *Supervisor) Unwatch(room string) {
	s.mu.Lock()
	w, ok := s.watches[room]
	if ok {
		delete(s.watches, room)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	w.conn.Close()
	log.WithField("room", room).Info("Room watch removed")
}

// Watching reports whether a live watch exists for the room.
func (s *Supervisor) Watching(room string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.watches[room]
	return ok
}

// Rooms lists the rooms currently watched.
func (s *Supervisor) Rooms() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	rooms := make([]string, 0, len(s.watches))
	for room := range s.watches {
		rooms = append(rooms, room)
	}
	return rooms
}

// Close tears down every live watch.
func (s *Supervisor) Close() {
	s.mu.Lock()
	watches := s.watches
	s.watches = make(map[string]*watch)
	s.mu.Unlock()
	for _, w := range watches {
		w.conn.Close()
	}
}

// handleChange re-derives room info over a new connection and delivers it to
// the watch callback. A failing fetch is logged and swallowed so one flaky
// notification never ends the subscription.
func (s *Supervisor) handleChange(room string) {
	info, err := s.Info(context.Background(), room)
	if err != nil {
		log.WithField("room", room).Warnf("Failed to fetch room info after media change: %v", err)
		return
	}

	s.mu.Lock()
	w, ok := s.watches[room]
	s.mu.Unlock()
	if !ok {
		// Unwatched while the fetch was in flight.
		return
	}
	w.onChange(info)
}

// handleLost removes bookkeeping for a watch whose connection died. A close
// we triggered ourselves has already been removed and is ignored here.
func (s *Supervisor) handleLost(room string, err error) {
	s.mu.Lock()
	_, ok := s.watches[room]
	if ok {
		delete(s.watches, room)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	log.WithField("room", room).Warnf("Room watch connection lost: %v", err)
	if s.onLost != nil {
		s.onLost(room, err)
	}
}

// mediaURL derives the canonical URL for recognized media types.
func mediaURL(m *Media) string {
	switch m.Type {
	case "yt":
		return fmt.Sprintf("https://www.youtube.com/watch?v=%s", m.ID)
	default:
		return ""
	}
}

func wrapConnErr(room string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("room %s: %v: %w", room, err, entities.ErrTimeout)
	}
	return fmt.Errorf("room %s: %v: %w", room, err, entities.ErrConnect)
}

func wrapQueryErr(room string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("room %s: %v: %w", room, err, entities.ErrTimeout)
	}
	return fmt.Errorf("room %s query failed: %w", room, err)
}
