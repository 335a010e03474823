// Package server gates new WebSocket connections on a pre-issued bearer
// token before any session state is created.
package server

import (
	"errors"
	"fmt"

	"github.com/scrawlhq/scrawl/internal/auth"
)

// Authentication failures. Both are fatal to the connection attempt; neither
// is retried server-side.
var (
	ErrMissingToken = errors.New("no token supplied")
	ErrInvalidToken = errors.New("invalid token")
)

// TokenVerifier validates a bearer token and returns the claims bound to it.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// Authenticator resolves connect-time tokens to user identities.
type Authenticator struct {
	verifier TokenVerifier
}

// NewAuthenticator creates an Authenticator delegating to the verifier.
func NewAuthenticator(verifier TokenVerifier) *Authenticator {
	return &Authenticator{verifier: verifier}
}

// Authenticate validates rawToken and returns the stable user identity it
// is bound to. An empty token fails immediately without invoking the
// verifier; any verification failure is reported as ErrInvalidToken.
func (a *Authenticator) Authenticate(rawToken string) (string, error) {
	if rawToken == "" {
		return "", ErrMissingToken
	}

	claims, err := a.verifier.Verify(rawToken)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	return claims.UserID, nil
}
