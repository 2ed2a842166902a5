package hub

import (
	"sync/atomic"

	"github.com/hirewire/notifyhub/internal/metrics"
	"github.com/hirewire/notifyhub/internal/protocol"
)

// dispatch decodes one inbound frame and routes it to its handler. A
// malformed frame is a protocol error: counted, answered with an error
// envelope, and the connection stays open.
func (h *Hub) dispatch(c *Connection, data []byte) {
	frame, err := protocol.ParseClientFrame(data)
	if err != nil {
		atomic.AddInt64(&h.stats.errors, 1)
		metrics.ProtocolErrors.Inc()
		h.logger.Warn().
			Int64("conn_id", c.id).
			Msg("Client sent malformed frame")
		h.sendEnvelope(c, protocol.Error("invalid message format"))
		return
	}

	switch frame.Type {
	case protocol.TypeAuthenticate:
		h.handshake(c, frame.Token)

	case protocol.TypeSubscribe:
		channel, ok := frame.ChannelName()
		if !ok {
			// Non-string channel: silently ignored, no error raised.
			h.logger.Debug().
				Int64("conn_id", c.id).
				Msg("Subscribe with non-string channel ignored")
			return
		}
		c.subscriptions.Add(channel)
		h.logger.Info().
			Int64("conn_id", c.id).
			Str("channel", channel).
			Int("subscription_count", c.subscriptions.Count()).
			Msg("Client subscribed")
		h.sendEnvelope(c, protocol.Subscribed(channel))

	case protocol.TypeUnsubscribe:
		channel, ok := frame.ChannelName()
		if !ok {
			h.logger.Debug().
				Int64("conn_id", c.id).
				Msg("Unsubscribe with non-string channel ignored")
			return
		}
		c.subscriptions.Remove(channel)
		h.logger.Info().
			Int64("conn_id", c.id).
			Str("channel", channel).
			Msg("Client unsubscribed")
		h.sendEnvelope(c, protocol.Unsubscribed(channel))

	case protocol.TypePing:
		h.sendEnvelope(c, protocol.Pong())

	default:
		// Unrecognized frames are echoed back with the connection's
		// current auth state.
		h.sendEnvelope(c, protocol.Echo(frame.Raw(), c.Authenticated(), c.Identity().UserID))
	}
}
