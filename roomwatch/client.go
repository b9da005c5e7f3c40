package roomwatch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const writeTimeout = 5 * time.Second

// WSDialer dials the external room service over websocket. Frames are JSON:
// requests carry a sequence number that the matching response echoes back,
// and the service pushes unsolicited changeMedia frames on the same
// connection.
type WSDialer struct {
	// BaseURL is the ws:// or wss:// root of the room service.
	BaseURL string
}

// NewWSDialer creates a dialer for the room service at baseURL.
func NewWSDialer(baseURL string) *WSDialer {
	return &WSDialer{BaseURL: strings.TrimRight(baseURL, "/")}
}

// Dial opens a connection to the named room and joins it.
func (d *WSDialer) Dial(ctx context.Context, room string) (Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, fmt.Sprintf("%s/r/%s", d.BaseURL, room), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial room %s: %w", room, err)
	}

	c := &wsConn{
		ws:      ws,
		room:    room,
		pending: make(map[uint32]chan frame),
	}
	if err := c.writeFrame(frame{Type: "join", Room: room}); err != nil {
		ws.Close()
		return nil, fmt.Errorf("failed to join room %s: %w", room, err)
	}
	go c.readLoop()
	return c, nil
}

// frame is the wire format shared by requests, responses and pushes.
type frame struct {
	Type  string   `json:"type"`
	Seq   uint32   `json:"seq,omitempty"`
	Room  string   `json:"room,omitempty"`
	Media *Media   `json:"media,omitempty"`
	Users []string `json:"users,omitempty"`
	Error string   `json:"error,omitempty"`
}

type wsConn struct {
	ws   *websocket.Conn
	room string

	wmu sync.Mutex // serializes websocket writes
	seq uint32

	mu       sync.Mutex
	pending  map[uint32]chan frame
	onChange func()
	onClose  func(error)
	closeErr error
	dead     bool

	closed atomic.Bool
}

func (c *wsConn) CurrentMedia(ctx context.Context) (*Media, error) {
	resp, err := c.request(ctx, "getMedia")
	if err != nil {
		return nil, err
	}
	if resp.Media == nil {
		return nil, fmt.Errorf("room %s returned no media", c.room)
	}
	return resp.Media, nil
}

func (c *wsConn) Userlist(ctx context.Context) ([]string, error) {
	resp, err := c.request(ctx, "getUserlist")
	if err != nil {
		return nil, err
	}
	return resp.Users, nil
}

func (c *wsConn) OnMediaChange(fn func()) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

func (c *wsConn) OnClose(fn func(error)) {
	c.mu.Lock()
	if c.dead {
		// The read loop already ended; deliver the close immediately.
		err := c.closeErr
		c.mu.Unlock()
		fn(err)
		return
	}
	c.onClose = fn
	c.mu.Unlock()
}

func (c *wsConn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.wmu.Lock()
	c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "closing"),
		time.Now().Add(writeTimeout))
	c.wmu.Unlock()
	return c.ws.Close()
}

// request sends a frame and waits for the response with the same sequence
// number, racing against ctx.
func (c *wsConn) request(ctx context.Context, typ string) (*frame, error) {
	seq := atomic.AddUint32(&c.seq, 1)
	ch := make(chan frame, 1)

	c.mu.Lock()
	if c.dead {
		c.mu.Unlock()
		return nil, fmt.Errorf("connection to room %s is closed", c.room)
	}
	c.pending[seq] = ch
	c.mu.Unlock()

	if err := c.writeFrame(frame{Type: typ, Seq: seq}); err != nil {
		c.mu.Lock()
		delete(c.pending, seq)
		c.mu.Unlock()
		return nil, err
	}

	select {
	case resp := <-ch:
		if resp.Error != "" {
			return nil, fmt.Errorf("room %s: %s", c.room, resp.Error)
		}
		return &resp, nil
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, seq)
		c.mu.Unlock()
		return nil, ctx.Err()
	}
}

func (c *wsConn) writeFrame(f frame) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteJSON(f)
}

func (c *wsConn) readLoop() {
	var readErr error
	for {
		var f frame
		if err := c.ws.ReadJSON(&f); err != nil {
			readErr = err
			break
		}

		if f.Seq != 0 {
			c.mu.Lock()
			ch, ok := c.pending[f.Seq]
			if ok {
				delete(c.pending, f.Seq)
			}
			c.mu.Unlock()
			if ok {
				ch <- f
			}
			continue
		}

		if f.Type == "changeMedia" {
			c.mu.Lock()
			fn := c.onChange
			c.mu.Unlock()
			if fn != nil {
				fn()
			}
		}
	}

	c.mu.Lock()
	c.dead = true
	c.closeErr = readErr
	onClose := c.onClose
	pending := c.pending
	c.pending = make(map[uint32]chan frame)
	c.mu.Unlock()

	// Fail anything still waiting for a response.
	for seq, ch := range pending {
		ch <- frame{Seq: seq, Error: "connection lost"}
	}

	c.ws.Close()
	if !c.closed.Load() && onClose != nil {
		onClose(readErr)
	}
}
