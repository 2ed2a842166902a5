// Package events bridges domain events published by the REST layer into
// the hub's broadcast engine. REST processes publish the notification
// payload to "<prefix>.<channel>" after persisting the domain event; every
// hub instance subscribes to the whole prefix and fans the payload out to
// its local subscribers.
package events

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/hirewire/notifyhub/internal/hub"
)

// Config for the NATS bridge.
type Config struct {
	URL           string
	SubjectPrefix string
	InstanceID    string

	// Broadcast is the hub's engine handle, injected once at start-up.
	// A nil handle makes every received event a logged no-op.
	Broadcast hub.BroadcastFunc

	Logger zerolog.Logger
}

// Bridge subscribes to domain-event subjects and forwards payloads into
// the broadcast engine. Messages are fire-and-forget in both directions:
// no ack, no replay.
type Bridge struct {
	conn      *nats.Conn
	sub       *nats.Subscription
	prefix    string
	broadcast hub.BroadcastFunc
	logger    zerolog.Logger
}

// NewBridge connects to NATS with reconnect handling. The subscription
// starts with Start.
func NewBridge(cfg Config) (*Bridge, error) {
	b := &Bridge{
		prefix:    cfg.SubjectPrefix,
		broadcast: cfg.Broadcast,
		logger:    cfg.Logger.With().Str("component", "events_bridge").Logger(),
	}

	opts := []nats.Option{
		nats.Name("notify-hub-" + cfg.InstanceID),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				b.logger.Warn().Err(err).Msg("Disconnected from NATS")
			}
		}),
		nats.ReconnectHandler(func(conn *nats.Conn) {
			b.logger.Info().Str("url", conn.ConnectedUrl()).Msg("Reconnected to NATS")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			b.logger.Error().Err(err).Msg("NATS error")
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	b.conn = conn

	b.logger.Info().Str("url", conn.ConnectedUrl()).Msg("Connected to NATS")
	return b, nil
}

// Start subscribes to every subject under the prefix.
func (b *Bridge) Start() error {
	subject := b.prefix + ".>"
	sub, err := b.conn.Subscribe(subject, b.handle)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	b.sub = sub

	b.logger.Info().Str("subject", subject).Msg("Subscribed to domain events")
	return nil
}

// handle maps one domain event onto a channel broadcast. The channel is
// the subject minus the prefix: "notify.user:42" → "user:42".
func (b *Bridge) handle(msg *nats.Msg) {
	channel := strings.TrimPrefix(msg.Subject, b.prefix+".")
	if channel == "" || channel == msg.Subject {
		b.logger.Warn().Str("subject", msg.Subject).Msg("Event with unroutable subject dropped")
		return
	}

	if b.broadcast == nil {
		b.logger.Warn().
			Str("channel", channel).
			Msg("Hub unavailable, dropping event")
		return
	}

	var payload map[string]any
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		b.logger.Warn().
			Err(err).
			Str("channel", channel).
			Msg("Event with undecodable payload dropped")
		return
	}

	delivered := b.broadcast(channel, payload)
	b.logger.Debug().
		Str("channel", channel).
		Int("delivered", delivered).
		Msg("Event forwarded to broadcast engine")
}

// Connected reports whether the NATS connection is up.
func (b *Bridge) Connected() bool {
	return b.conn != nil && b.conn.IsConnected()
}

// Close unsubscribes and drops the NATS connection.
func (b *Bridge) Close() {
	if b.sub != nil {
		if err := b.sub.Unsubscribe(); err != nil {
			b.logger.Warn().Err(err).Msg("Error unsubscribing from domain events")
		}
	}
	if b.conn != nil {
		b.conn.Close()
		b.logger.Info().Msg("NATS connection closed")
	}
}
