package hub

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/hirewire/notifyhub/internal/metrics"
	"github.com/hirewire/notifyhub/internal/protocol"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Time allowed between inbound frames (pongs included) before the
	// connection is considered dead.
	pongWait = 60 * time.Second

	// Server ping period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// readPump reads frames from the connection until it closes, dispatching
// each text frame through the message handler. Runs in its own goroutine;
// per-connection message order is preserved because dispatch (including
// the blocking verifier call in the handshake) happens inline here.
func (h *Hub) readPump(c *Connection) {
	defer h.wg.Done()

	reason := ReasonReadError
	defer func() {
		h.Deregister(c, reason)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		msg, op, err := wsutil.ReadClientData(c.conn)
		if err != nil {
			if atomic.LoadInt32(&c.closed) == 1 {
				// Deregister already closed the socket under us.
				reason = ReasonClientClose
				return
			}
			var closedErr wsutil.ClosedError
			if errors.As(err, &closedErr) {
				reason = ReasonClientClose
				return
			}
			// Socket-level failure: counted, logged, deregistered.
			atomic.AddInt64(&h.stats.errors, 1)
			metrics.ProtocolErrors.Inc()
			h.logger.Debug().
				Err(err).
				Int64("conn_id", c.id).
				Msg("Transport read error")
			return
		}

		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.touch()

		switch op {
		case ws.OpText:
			atomic.AddInt64(&h.stats.messagesProcessed, 1)
			metrics.MessagesProcessed.Inc()

			if h.opts.Limiter != nil && !h.opts.Limiter.Allow(c.id) {
				metrics.RateLimitedMessages.Inc()
				h.logger.Warn().
					Int64("conn_id", c.id).
					Msg("Client rate limited")
				h.sendEnvelope(c, protocol.ErrorWithCode(
					"RATE_LIMIT_EXCEEDED",
					"too many messages, please slow down"))
				continue
			}

			h.dispatch(c, msg)

		case ws.OpClose:
			reason = ReasonClientClose
			return

		default:
			// wsutil answers pings automatically; other control frames
			// are ignored.
		}
	}
}
