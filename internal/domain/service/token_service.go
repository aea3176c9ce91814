// Package service defines interfaces for domain services implemented in infra.
package service

import (
	"context"
	"time"
)

// AssertionSigner turns a set of OAuth2 claims and a service-account private
// key into a signed JWT assertion (header.claims.signature, each segment
// base64url without padding).
type AssertionSigner interface {
	// Sign signs the claims with the PEM-encoded RSA private key using RS256.
	// Claims must include iss, scope, aud, iat and exp.
	Sign(claims map[string]any, privateKeyPEM string) (string, error)
}

// AccessToken is a short-lived bearer token minted from a signed assertion.
type AccessToken struct {
	Value      string    // The bearer token value.
	ObtainedAt time.Time // When the exchange completed.
	TTL        time.Duration
}

// ValidAt reports whether the token is still usable at the given instant,
// keeping a safety margin before the advertised expiry.
func (t *AccessToken) ValidAt(now time.Time, margin time.Duration) bool {
	if t == nil || t.Value == "" {
		return false
	}

	return now.Before(t.ObtainedAt.Add(t.TTL - margin))
}

// AccessTokenSource produces bearer tokens for the push gateway. One exchange
// attempt per call; implementations may cache a still-valid token.
type AccessTokenSource interface {
	Token(ctx context.Context) (*AccessToken, error)
}
