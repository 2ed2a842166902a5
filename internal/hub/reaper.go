package hub

import (
	"context"
	"time"

	"github.com/hirewire/notifyhub/internal/metrics"
)

// RunReaper periodically evicts connections that have gone silent for
// longer than the idle threshold. This is the only component that removes
// connections the client didn't close itself; it exists to bound memory
// and socket usage against peers that vanished without a close frame.
// Eviction goes through the standard deregister path so the counters stay
// consistent. Blocks until ctx is cancelled; run in its own goroutine.
func (h *Hub) RunReaper(ctx context.Context) {
	ticker := time.NewTicker(h.opts.ReapInterval)
	defer ticker.Stop()

	h.logger.Info().
		Dur("interval", h.opts.ReapInterval).
		Dur("idle_threshold", h.opts.IdleThreshold).
		Msg("Idle reaper started")

	for {
		select {
		case <-ctx.Done():
			h.logger.Info().Msg("Idle reaper stopped")
			return
		case <-ticker.C:
			h.sweep(time.Now())
		}
	}
}

// sweep closes every connection idle past the threshold as of now.
func (h *Hub) sweep(now time.Time) {
	var reaped int

	h.forEach(func(c *Connection) {
		idle := now.Sub(c.LastActivity())
		if idle <= h.opts.IdleThreshold {
			return
		}
		h.logger.Info().
			Int64("conn_id", c.id).
			Dur("idle", idle).
			Msg("Evicting idle connection")
		h.Deregister(c, ReasonIdleTimeout)
		metrics.ReapedConnections.Inc()
		reaped++
	})

	if reaped > 0 {
		h.logger.Info().
			Int("reaped", reaped).
			Msg("Idle sweep complete")
	}
}
