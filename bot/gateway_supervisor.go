package bot

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// reconnectInterval is the fixed delay between reconnect attempts. There is
// no backoff; the gateway rate-limits aggressive reconnects on its own.
const reconnectInterval = 10 * time.Second

type connState int

const (
	stateDisconnected connState = iota
	stateConnected
	stateReconnecting
)

func (s connState) String() string {
	switch s {
	case stateConnected:
		return "connected"
	case stateReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// gatewaySupervisor drives reconnection after the gateway connection drops.
// At most one reconnect loop runs at a time: repeated disconnect events
// while a loop is active are ignored.
type gatewaySupervisor struct {
	open     func() error
	interval time.Duration

	mu      sync.Mutex
	state   connState
	stopped bool
	stopCh  chan struct{}
}

func newGatewaySupervisor(open func() error, interval time.Duration) *gatewaySupervisor {
	return &gatewaySupervisor{
		open:     open,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// HandleConnect records a live connection and releases the reconnecting
// guard.
func (s *gatewaySupervisor) HandleConnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = stateConnected
	log.Info("Gateway connected")
}

// HandleDisconnect starts the reconnect loop unless one is already running
// or the supervisor has been shut down.
func (s *gatewaySupervisor) HandleDisconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.state == stateReconnecting {
		return
	}
	s.state = stateReconnecting
	log.Warnf("Gateway disconnected, reconnecting every %s", s.interval)
	go s.reconnectLoop()
}

// Shutdown stops any running reconnect loop and makes later disconnects
// no-ops.
func (s *gatewaySupervisor) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	close(s.stopCh)
}

// State returns the current connection state.
func (s *gatewaySupervisor) State() connState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *gatewaySupervisor) reconnectLoop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
		}

		if err := s.open(); err != nil {
			log.Warnf("Reconnect attempt %d failed: %v", attempt, err)
			continue
		}

		s.mu.Lock()
		s.state = stateConnected
		s.mu.Unlock()
		log.Infof("Gateway reconnected after %d attempt(s)", attempt)
		return
	}
}
