package hub

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/hirewire/notifyhub/internal/auth"
	"github.com/hirewire/notifyhub/internal/metrics"
	"github.com/hirewire/notifyhub/internal/protocol"
)

// handshake runs the authenticate exchange: verify the token with the
// external identity provider and, on success, attach the identity to the
// connection. Runs inline in the connection's read loop, so the verifier
// call (bounded by AuthTimeout) serializes this connection's messages
// against its own handshake.
//
// Failure leaves the connection open and unauthenticated; the hub never
// retries on the client's behalf. Re-authenticating an authenticated
// connection is allowed and simply overwrites the identity.
func (h *Hub) handshake(c *Connection, token string) {
	if token == "" {
		metrics.AuthFailures.Inc()
		h.logger.Warn().
			Int64("conn_id", c.id).
			Msg("Authenticate frame without token")
		h.sendEnvelope(c, protocol.AuthError("missing token"))
		return
	}

	ctx, cancel := context.WithTimeout(h.ctx, h.opts.AuthTimeout)
	defer cancel()

	identity, err := h.opts.Verifier.Verify(ctx, token)
	if err != nil {
		metrics.AuthFailures.Inc()
		h.logger.Warn().
			Int64("conn_id", c.id).
			Err(err).
			Msg("Authentication failed")
		h.sendEnvelope(c, protocol.AuthError(authErrorReason(err)))
		return
	}

	if first := c.setIdentity(*identity); first {
		authed := atomic.AddInt64(&h.stats.authenticatedUsers, 1)
		metrics.AuthenticatedUsers.Set(float64(authed))
	}

	h.logger.Info().
		Int64("conn_id", c.id).
		Str("user_id", identity.UserID).
		Msg("Client authenticated")

	h.sendEnvelope(c, protocol.AuthSuccess(identity.UserID, identity.Email))
}

// authErrorReason maps verifier errors to the client-facing reason
// without leaking provider internals.
func authErrorReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, auth.ErrMissingToken):
		return "missing token"
	case errors.Is(err, context.DeadlineExceeded):
		return "verification timed out"
	default:
		return "invalid or expired token"
	}
}
