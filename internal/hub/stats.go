package hub

import "sync/atomic"

// Stats tracks process-wide hub counters. All fields are manipulated
// atomically; Snapshot is safe to call concurrently with anything.
type Stats struct {
	totalConnections   int64 // monotonic, never decremented
	activeConnections  int64
	messagesProcessed  int64
	errors             int64
	authenticatedUsers int64
}

// Snapshot is a point-in-time read of the counters, served on /stats.
type Snapshot struct {
	TotalConnections   int64   `json:"totalConnections"`
	ActiveConnections  int64   `json:"activeConnections"`
	MessagesProcessed  int64   `json:"messagesProcessed"`
	Errors             int64   `json:"errors"`
	AuthenticatedUsers int64   `json:"authenticatedUsers"`
	AuthenticationRate float64 `json:"authenticationRate"`
}

// Snapshot derives the current counter values without mutating anything.
func (s *Stats) Snapshot() Snapshot {
	total := atomic.LoadInt64(&s.totalConnections)
	authed := atomic.LoadInt64(&s.authenticatedUsers)

	var rate float64
	if total > 0 {
		rate = float64(authed) / float64(total)
	}

	return Snapshot{
		TotalConnections:   total,
		ActiveConnections:  atomic.LoadInt64(&s.activeConnections),
		MessagesProcessed:  atomic.LoadInt64(&s.messagesProcessed),
		Errors:             atomic.LoadInt64(&s.errors),
		AuthenticatedUsers: authed,
		AuthenticationRate: rate,
	}
}
