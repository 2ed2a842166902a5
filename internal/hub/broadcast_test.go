package hub

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/hirewire/notifyhub/internal/auth"
)

// plantConnection registers a pump-less connection so buffer behavior can
// be exercised deterministically (nothing drains the send channel).
func plantConnection(h *Hub, bufferSize int) *Connection {
	c := &Connection{
		id:            atomic.AddInt64(&h.nextID, 1),
		hub:           h,
		send:          make(chan []byte, bufferSize),
		done:          make(chan struct{}),
		subscriptions: NewSubscriptionSet(),
		connectedAt:   time.Now(),
	}
	c.touch()

	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()
	atomic.AddInt64(&h.stats.totalConnections, 1)
	atomic.AddInt64(&h.stats.activeConnections, 1)
	return c
}

func authSubscribe(c *Connection, userID, channel string) {
	if c.setIdentity(auth.Identity{UserID: userID}) {
		atomic.AddInt64(&c.hub.stats.authenticatedUsers, 1)
	}
	c.subscriptions.Add(channel)
}

func TestBroadcast_EmptyChannelDeliversNothing(t *testing.T) {
	h := newTestHub(t)
	c := plantConnection(h, 4)
	authSubscribe(c, "u1", "")

	if n := h.BroadcastToChannel("", map[string]any{"type": "noop"}); n != 0 {
		t.Errorf("delivered: got %d, want 0", n)
	}
}

func TestBroadcast_FullBufferCountsStrikeNotDelivery(t *testing.T) {
	h := newTestHub(t)
	c := plantConnection(h, 1)
	authSubscribe(c, "u1", "global")

	if n := h.BroadcastToChannel("global", map[string]any{"type": "a"}); n != 1 {
		t.Fatalf("first broadcast delivered: got %d, want 1", n)
	}
	// Buffer of one is now full; the next fan-out drops for this client.
	if n := h.BroadcastToChannel("global", map[string]any{"type": "b"}); n != 0 {
		t.Errorf("second broadcast delivered: got %d, want 0", n)
	}
	if got := atomic.LoadInt32(&c.sendStrikes); got != 1 {
		t.Errorf("strikes: got %d, want 1", got)
	}
	if h.ConnectionCount() != 1 {
		t.Error("a single dropped frame must not disconnect the client")
	}
}

func TestBroadcast_ThreeConsecutiveStrikesDisconnect(t *testing.T) {
	h := newTestHub(t)
	c := plantConnection(h, 1)
	authSubscribe(c, "u1", "global")

	h.BroadcastToChannel("global", map[string]any{"type": "fill"})
	for i := 0; i < slowClientStrikes; i++ {
		h.BroadcastToChannel("global", map[string]any{"type": "drop"})
	}

	if h.ConnectionCount() != 0 {
		t.Fatalf("slow client still registered after %d strikes", slowClientStrikes)
	}
	if atomic.LoadInt32(&c.closed) != 1 {
		t.Error("slow client connection not marked closed")
	}
}

func TestBroadcast_SuccessfulSendResetsStrikes(t *testing.T) {
	h := newTestHub(t)
	c := plantConnection(h, 1)
	authSubscribe(c, "u1", "global")

	h.BroadcastToChannel("global", map[string]any{"type": "fill"})
	h.BroadcastToChannel("global", map[string]any{"type": "drop"})
	h.BroadcastToChannel("global", map[string]any{"type": "drop"})
	if got := atomic.LoadInt32(&c.sendStrikes); got != 2 {
		t.Fatalf("strikes before drain: got %d, want 2", got)
	}

	// Drain one slot; the next delivery succeeds and forgives past drops.
	<-c.send
	if n := h.BroadcastToChannel("global", map[string]any{"type": "ok"}); n != 1 {
		t.Fatalf("delivered after drain: got %d, want 1", n)
	}
	if got := atomic.LoadInt32(&c.sendStrikes); got != 0 {
		t.Errorf("strikes after successful send: got %d, want 0", got)
	}
}

func TestBroadcast_FansOutToEveryQualifyingConnection(t *testing.T) {
	h := newTestHub(t)

	for i := 0; i < 3; i++ {
		authSubscribe(plantConnection(h, 4), "u1", "user:u1")
	}
	// Subscribed but unauthenticated: excluded.
	plantConnection(h, 4).subscriptions.Add("user:u1")
	// Authenticated but on another channel: excluded.
	authSubscribe(plantConnection(h, 4), "u2", "user:u2")

	if n := h.BroadcastToChannel("user:u1", map[string]any{"type": "offer_sent"}); n != 3 {
		t.Errorf("delivered: got %d, want 3", n)
	}
}

func TestSweep_EvictsOnlyConnectionsPastThreshold(t *testing.T) {
	h := New(Options{
		Logger:        zerolog.Nop(),
		Verifier:      testVerifier,
		InstanceID:    "test-instance",
		IdleThreshold: time.Minute,
	})
	t.Cleanup(h.Shutdown)

	idle := plantConnection(h, 4)
	fresh := plantConnection(h, 4)
	atomic.StoreInt64(&idle.lastActivity, time.Now().Add(-2*time.Minute).UnixNano())

	h.sweep(time.Now())

	if h.ConnectionCount() != 1 {
		t.Fatalf("remaining connections: got %d, want 1", h.ConnectionCount())
	}
	if atomic.LoadInt32(&idle.closed) != 1 {
		t.Error("idle connection not closed")
	}
	if atomic.LoadInt32(&fresh.closed) != 0 {
		t.Error("fresh connection must survive the sweep")
	}
}

func TestSweep_ActivityResetsIdleClock(t *testing.T) {
	h := New(Options{
		Logger:        zerolog.Nop(),
		Verifier:      testVerifier,
		InstanceID:    "test-instance",
		IdleThreshold: time.Minute,
	})
	t.Cleanup(h.Shutdown)

	c := plantConnection(h, 4)
	atomic.StoreInt64(&c.lastActivity, time.Now().Add(-2*time.Minute).UnixNano())
	c.touch()

	h.sweep(time.Now())

	if h.ConnectionCount() != 1 {
		t.Error("recently active connection was reaped")
	}
}
