// Package hub implements the real-time notification hub: a registry of
// long-lived WebSocket connections, the authentication handshake that
// attaches user identities to them, per-connection channel subscriptions,
// and the broadcast engine that fans domain events out to authenticated
// subscribers.
package hub

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/hirewire/notifyhub/internal/auth"
	"github.com/hirewire/notifyhub/internal/limits"
	"github.com/hirewire/notifyhub/internal/metrics"
	"github.com/hirewire/notifyhub/internal/protocol"
)

// Disconnect reasons, recorded per deregistration.
const (
	ReasonClientClose    = "client_close"
	ReasonReadError      = "read_error"
	ReasonWriteError     = "write_error"
	ReasonIdleTimeout    = "idle_timeout"
	ReasonSlowClient     = "slow_client"
	ReasonServerShutdown = "server_shutdown"
)

// slowClientStrikes is how many consecutive full-buffer sends a
// connection survives before it is closed.
const slowClientStrikes = 3

// BroadcastFunc is the hub's sole inbound API for the rest of the system.
// Collaborators receive it once at start-up via explicit injection; a nil
// value is treated by them as "hub unavailable" and logged, never called.
type BroadcastFunc func(channel string, message map[string]any) int

// Options configures a Hub.
type Options struct {
	Logger     zerolog.Logger
	Verifier   auth.TokenVerifier
	InstanceID string

	SendBufferSize int
	AuthTimeout    time.Duration

	ReapInterval  time.Duration
	IdleThreshold time.Duration

	// Inbound rate limiting; nil disables it.
	Limiter *limits.MessageLimiter
}

// Hub owns the connection registry and all per-connection lifecycle
// state. It is created at process start and torn down at shutdown; there
// is no hidden global state.
type Hub struct {
	opts   Options
	logger zerolog.Logger

	mu     sync.RWMutex
	conns  map[int64]*Connection
	nextID int64 // atomic

	stats Stats

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a hub with the given options. Zero-valued durations get
// production defaults.
func New(opts Options) *Hub {
	if opts.SendBufferSize <= 0 {
		opts.SendBufferSize = 64
	}
	if opts.AuthTimeout <= 0 {
		opts.AuthTimeout = 10 * time.Second
	}
	if opts.ReapInterval <= 0 {
		opts.ReapInterval = 5 * time.Minute
	}
	if opts.IdleThreshold <= 0 {
		opts.IdleThreshold = 30 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Hub{
		opts:   opts,
		logger: opts.Logger.With().Str("component", "hub").Logger(),
		conns:  make(map[int64]*Connection),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Attach registers a freshly upgraded transport, queues the welcome
// frame, and starts the connection's read and write pumps. The read pump
// blocks until the connection closes; Attach returns immediately.
func (h *Hub) Attach(conn net.Conn) *Connection {
	c := &Connection{
		id:            atomic.AddInt64(&h.nextID, 1),
		conn:          conn,
		hub:           h,
		send:          make(chan []byte, h.opts.SendBufferSize),
		done:          make(chan struct{}),
		subscriptions: NewSubscriptionSet(),
		connectedAt:   time.Now(),
	}
	c.touch()

	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()

	atomic.AddInt64(&h.stats.totalConnections, 1)
	active := atomic.AddInt64(&h.stats.activeConnections, 1)
	metrics.ConnectionsTotal.Inc()
	metrics.ConnectionsActive.Set(float64(active))

	h.logger.Info().
		Int64("conn_id", c.id).
		Str("remote_addr", conn.RemoteAddr().String()).
		Int64("active_connections", active).
		Msg("Connection registered")

	h.sendEnvelope(c, protocol.System("connected to notification hub", h.opts.InstanceID, c.id))

	h.wg.Add(2)
	go h.writePump(c)
	go h.readPump(c)

	return c
}

// Deregister removes a connection from the registry, fixes up the
// counters, and closes the transport. Every removal path — client close,
// transport error, idle eviction, shutdown — converges here so the
// statistics stay consistent. Safe to call more than once.
func (h *Hub) Deregister(c *Connection, reason string) {
	h.mu.Lock()
	_, present := h.conns[c.id]
	if present {
		delete(h.conns, c.id)
	}
	h.mu.Unlock()

	c.markClosed()
	if !present {
		return
	}

	active := atomic.AddInt64(&h.stats.activeConnections, -1)
	metrics.ConnectionsActive.Set(float64(active))
	metrics.DisconnectsTotal.WithLabelValues(reason).Inc()

	if c.Authenticated() {
		authed := atomic.AddInt64(&h.stats.authenticatedUsers, -1)
		metrics.AuthenticatedUsers.Set(float64(authed))
	}
	if h.opts.Limiter != nil {
		h.opts.Limiter.Forget(c.id)
	}

	h.logger.Info().
		Int64("conn_id", c.id).
		Str("reason", reason).
		Dur("duration", time.Since(c.connectedAt)).
		Int64("active_connections", active).
		Msg("Connection deregistered")
}

// forEach runs fn against a snapshot of the registry. A connection
// closing mid-iteration cannot crash the walk or skip other entries.
func (h *Hub) forEach(fn func(*Connection)) {
	h.mu.RLock()
	snapshot := make([]*Connection, 0, len(h.conns))
	for _, c := range h.conns {
		snapshot = append(snapshot, c)
	}
	h.mu.RUnlock()

	for _, c := range snapshot {
		fn(c)
	}
}

// ConnectionCount returns the number of registered connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// StatsSnapshot returns the current hub counters.
func (h *Hub) StatsSnapshot() Snapshot {
	return h.stats.Snapshot()
}

// sendEnvelope stamps, encodes and queues an outbound envelope. Failures
// to a closed or saturated connection are absorbed per the best-effort
// delivery contract.
func (h *Hub) sendEnvelope(c *Connection, env protocol.Envelope) bool {
	data, err := protocol.Encode(env)
	if err != nil {
		h.logger.Error().Err(err).Int64("conn_id", c.id).Msg("Failed to encode envelope")
		return false
	}
	if !c.enqueue(data) {
		return false
	}
	metrics.MessagesDelivered.Inc()
	return true
}

// Shutdown closes every connection through the standard deregister path
// and waits for all pump goroutines to exit.
func (h *Hub) Shutdown() {
	h.logger.Info().Msg("Hub shutting down")
	h.cancel()

	h.forEach(func(c *Connection) {
		h.Deregister(c, ReasonServerShutdown)
	})

	h.wg.Wait()
	h.logger.Info().Msg("Hub shutdown complete")
}
