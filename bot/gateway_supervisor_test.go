package bot

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingOpener struct {
	mu        sync.Mutex
	attempts  int
	failFirst int // attempts that fail before one succeeds; -1 fails forever
}

func (o *countingOpener) open() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.attempts++
	if o.failFirst < 0 || o.attempts <= o.failFirst {
		return fmt.Errorf("gateway unavailable")
	}
	return nil
}

func (o *countingOpener) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.attempts
}

func TestGatewaySupervisor_ReconnectsUntilSuccess(t *testing.T) {
	opener := &countingOpener{failFirst: 2}
	s := newGatewaySupervisor(opener.open, 10*time.Millisecond)

	s.HandleConnect()
	assert.Equal(t, stateConnected, s.State())

	s.HandleDisconnect()
	assert.Equal(t, stateReconnecting, s.State())

	require.Eventually(t, func() bool {
		return s.State() == stateConnected
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 3, opener.count())

	// No further attempts once reconnected.
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 3, opener.count())
}

func TestGatewaySupervisor_SecondDisconnectDoesNotStackLoops(t *testing.T) {
	opener := &countingOpener{failFirst: -1}
	s := newGatewaySupervisor(opener.open, 20*time.Millisecond)

	s.HandleDisconnect()
	s.HandleDisconnect()
	s.HandleDisconnect()

	time.Sleep(110 * time.Millisecond)
	s.Shutdown()

	// A single loop makes roughly one attempt per interval. Stacked loops
	// would roughly triple that.
	assert.LessOrEqual(t, opener.count(), 7)
	assert.GreaterOrEqual(t, opener.count(), 3)
}

func TestGatewaySupervisor_ShutdownStopsReconnecting(t *testing.T) {
	opener := &countingOpener{failFirst: -1}
	s := newGatewaySupervisor(opener.open, 10*time.Millisecond)

	s.HandleDisconnect()
	time.Sleep(35 * time.Millisecond)
	s.Shutdown()
	time.Sleep(15 * time.Millisecond)
	after := opener.count()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, opener.count())

	// Disconnects after shutdown are ignored.
	s.HandleDisconnect()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, opener.count())
}
