// Package auth verifies the opaque tokens clients present during the
// WebSocket authentication handshake.
package auth

import (
	"context"
	"errors"
)

// Identity is the user attached to a connection after a successful
// handshake.
type Identity struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

// Sentinel errors returned by verifiers.
var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid or expired token")
)

// TokenVerifier validates an opaque token against an identity provider.
// Verification is an out-of-process call and must honor ctx cancellation.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// VerifierFunc adapts a plain function to the TokenVerifier interface.
type VerifierFunc func(ctx context.Context, token string) (*Identity, error)

func (f VerifierFunc) Verify(ctx context.Context, token string) (*Identity, error) {
	return f(ctx, token)
}
