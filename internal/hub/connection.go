package hub

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hirewire/notifyhub/internal/auth"
)

// Connection is one accepted WebSocket session with its own auth and
// subscription state. A connection is never reused after Deregister; a
// reconnect gets a fresh Connection with a fresh id.
type Connection struct {
	id   int64
	conn net.Conn
	hub  *Hub

	// Outgoing frames. The channel itself is never closed; done signals
	// the write pump to exit so enqueue never races a channel close.
	send chan []byte
	done chan struct{}

	closeOnce sync.Once
	closed    int32 // atomic: 1 after Deregister, sends become silent no-ops

	// Auth state. authenticated transitions false→true exactly once;
	// re-authentication only overwrites the identity.
	authenticated int32 // atomic
	identityMu    sync.RWMutex
	identity      auth.Identity

	subscriptions *SubscriptionSet

	// Slow client detection: consecutive full-buffer sends.
	sendStrikes int32 // atomic

	lastActivity int64 // atomic: unix nanos, updated on inbound and outbound traffic
	connectedAt  time.Time
}

// ID returns the process-unique connection id.
func (c *Connection) ID() int64 {
	return c.id
}

// Authenticated reports whether the handshake has succeeded.
func (c *Connection) Authenticated() bool {
	return atomic.LoadInt32(&c.authenticated) == 1
}

// Identity returns the user attached by the handshake. Zero value until
// authenticated.
func (c *Connection) Identity() auth.Identity {
	c.identityMu.RLock()
	defer c.identityMu.RUnlock()
	return c.identity
}

// setIdentity attaches (or overwrites) the verified identity and reports
// whether this was the first successful handshake for the connection.
func (c *Connection) setIdentity(id auth.Identity) (first bool) {
	c.identityMu.Lock()
	c.identity = id
	c.identityMu.Unlock()
	return atomic.CompareAndSwapInt32(&c.authenticated, 0, 1)
}

// Subscriptions returns the connection's channel set.
func (c *Connection) Subscriptions() *SubscriptionSet {
	return c.subscriptions
}

// touch records activity now. Called on every inbound frame and every
// outbound send.
func (c *Connection) touch() {
	atomic.StoreInt64(&c.lastActivity, time.Now().UnixNano())
}

// LastActivity returns the time of the most recent traffic.
func (c *Connection) LastActivity() time.Time {
	return time.Unix(0, atomic.LoadInt64(&c.lastActivity))
}

// enqueue queues a frame for the write pump without blocking. Returns
// false when the connection is closed or its buffer is full. A closed
// connection is a silent no-op, not an error.
func (c *Connection) enqueue(data []byte) bool {
	if atomic.LoadInt32(&c.closed) == 1 {
		return false
	}
	select {
	case c.send <- data:
		atomic.StoreInt32(&c.sendStrikes, 0)
		c.touch()
		return true
	default:
		return false
	}
}

// markClosed flips the closed flag and wakes the write pump. Safe to call
// from any goroutine, any number of times.
func (c *Connection) markClosed() {
	c.closeOnce.Do(func() {
		atomic.StoreInt32(&c.closed, 1)
		close(c.done)
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

// SubscriptionSet is a thread-safe set of channel names. A channel is
// just a string key; it exists only while some connection references it.
type SubscriptionSet struct {
	mu       sync.RWMutex
	channels map[string]struct{}
}

// NewSubscriptionSet creates an empty subscription set.
func NewSubscriptionSet() *SubscriptionSet {
	return &SubscriptionSet{
		channels: make(map[string]struct{}),
	}
}

// Add subscribes to a channel. Duplicate adds are no-ops.
func (s *SubscriptionSet) Add(channel string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels[channel] = struct{}{}
}

// Remove unsubscribes from a channel. Absent removes are no-ops.
func (s *SubscriptionSet) Remove(channel string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.channels, channel)
}

// Has checks membership.
func (s *SubscriptionSet) Has(channel string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.channels[channel]
	return exists
}

// Count returns the number of subscriptions.
func (s *SubscriptionSet) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.channels)
}

// List returns a copy of all subscribed channels.
func (s *SubscriptionSet) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]string, 0, len(s.channels))
	for ch := range s.channels {
		result = append(result, ch)
	}
	return result
}
