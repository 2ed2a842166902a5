// Package limits protects the hub from clients that flood it with
// inbound frames.
package limits

import (
	"sync"

	"golang.org/x/time/rate"
)

// MessageLimiter applies a per-connection token bucket to inbound frames.
// Bursts are allowed up to the bucket capacity; sustained traffic is
// capped at the refill rate. Over-limit frames are dropped by the caller,
// never answered with a disconnect.
type MessageLimiter struct {
	mu       sync.Mutex
	limiters map[int64]*rate.Limiter

	perSecond rate.Limit
	burst     int
}

// NewMessageLimiter creates a limiter allowing burst frames instantly and
// perSecond frames sustained, per connection.
func NewMessageLimiter(perSecond float64, burst int) *MessageLimiter {
	return &MessageLimiter{
		limiters:  make(map[int64]*rate.Limiter),
		perSecond: rate.Limit(perSecond),
		burst:     burst,
	}
}

// Allow reports whether the connection may process another inbound frame.
func (l *MessageLimiter) Allow(connID int64) bool {
	l.mu.Lock()
	lim, ok := l.limiters[connID]
	if !ok {
		lim = rate.NewLimiter(l.perSecond, l.burst)
		l.limiters[connID] = lim
	}
	l.mu.Unlock()

	return lim.Allow()
}

// Forget drops the limiter state for a closed connection.
func (l *MessageLimiter) Forget(connID int64) {
	l.mu.Lock()
	delete(l.limiters, connID)
	l.mu.Unlock()
}
