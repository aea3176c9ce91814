// Package google implements the OAuth2 service-account flow against Google's
// token endpoint: sign a JWT assertion with the account's RSA key, exchange it
// for a short-lived bearer token.
package google

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"pushrelay/config"
	"pushrelay/internal/domain/service"
)

// assertionLifetime is the claims window the token endpoint accepts:
// exp is always iat + 3600s.
const assertionLifetime = time.Hour

// rs256Signer signs assertions with RSASSA-PKCS1-v1_5 over SHA-256.
type rs256Signer struct{}

// NewAssertionSigner is the constructor for rs256Signer.
func NewAssertionSigner() service.AssertionSigner {
	return &rs256Signer{}
}

// Sign implements service.AssertionSigner. The PEM body is decoded to DER and
// imported as a PKCS8 (or PKCS1) RSA key; a mismatched key algorithm or
// malformed PEM is a fatal, non-retryable error for the invocation.
func (s *rs256Signer) Sign(claims map[string]any, privateKeyPEM string) (string, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(privateKeyPEM))
	if err != nil {
		return "", errors.Wrap(err, "parse service account private key")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims(claims))
	signed, err := token.SignedString(key)
	if err != nil {
		return "", errors.Wrap(err, "sign assertion")
	}

	return signed, nil
}

// buildAssertionClaims assembles the claim set for one token exchange.
func buildAssertionClaims(cred *config.GoogleServiceAccount, scope string, issuedAt time.Time) map[string]any {
	iat := issuedAt.Unix()

	return map[string]any{
		"iss":   cred.ClientEmail,
		"scope": scope,
		"aud":   cred.TokenURI,
		"iat":   iat,
		"exp":   iat + int64(assertionLifetime.Seconds()),
	}
}
