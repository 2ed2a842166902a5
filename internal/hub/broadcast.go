package hub

import (
	"sync/atomic"

	"github.com/hirewire/notifyhub/internal/metrics"
	"github.com/hirewire/notifyhub/internal/protocol"
)

// BroadcastToChannel fans a domain message out to every connection that
// is both authenticated and subscribed to the channel, and returns the
// number of connections the message was queued for. Zero subscribers is
// not an error.
//
// Delivery is fire-and-forget: the envelope is serialized once with a
// fresh timestamp, each qualifying connection gets a non-blocking send,
// and a full buffer counts a strike instead of aborting the fan-out.
// Three consecutive strikes close the connection.
func (h *Hub) BroadcastToChannel(channel string, message map[string]any) int {
	if channel == "" {
		return 0
	}

	data, err := protocol.Encode(protocol.Broadcast(channel, message))
	if err != nil {
		atomic.AddInt64(&h.stats.errors, 1)
		metrics.ProtocolErrors.Inc()
		h.logger.Error().
			Err(err).
			Str("channel", channel).
			Msg("Failed to serialize broadcast envelope")
		return 0
	}

	metrics.BroadcastsTotal.WithLabelValues(channel).Inc()

	delivered := 0
	var slow []*Connection

	h.forEach(func(c *Connection) {
		if !c.Authenticated() || !c.subscriptions.Has(channel) {
			return
		}

		if c.enqueue(data) {
			delivered++
			metrics.MessagesDelivered.Inc()
			return
		}

		// Buffer full or connection already closed. Closed connections
		// are silent no-ops; live-but-saturated ones collect strikes.
		if atomic.LoadInt32(&c.closed) == 1 {
			return
		}
		metrics.DroppedDeliveries.Inc()
		strikes := atomic.AddInt32(&c.sendStrikes, 1)
		if strikes == 1 {
			h.logger.Warn().
				Int64("conn_id", c.id).
				Str("channel", channel).
				Msg("Client send buffer full, dropping frame")
		}
		if strikes >= slowClientStrikes {
			slow = append(slow, c)
		}
	})

	for _, c := range slow {
		h.logger.Warn().
			Int64("conn_id", c.id).
			Int32("consecutive_drops", atomic.LoadInt32(&c.sendStrikes)).
			Msg("Disconnecting slow client")
		h.Deregister(c, ReasonSlowClient)
	}

	if delivered > 0 {
		h.logger.Debug().
			Str("channel", channel).
			Int("delivered", delivered).
			Msg("Broadcast delivered")
	}

	return delivered
}
