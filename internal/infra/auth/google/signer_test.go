package google

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pushrelay/config"
)

func generateTestKey(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)

	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	return key, string(pemBytes)
}

func testCredential(keyPEM string) *config.GoogleServiceAccount {
	return &config.GoogleServiceAccount{
		ClientEmail: "sa@proj.iam.gserviceaccount.com",
		PrivateKey:  keyPEM,
		TokenURI:    "https://oauth2.googleapis.com/token",
	}
}

func TestSign_VerifiesWithPublicKey(t *testing.T) {
	key, keyPEM := generateTestKey(t)
	cred := testCredential(keyPEM)
	claims := buildAssertionClaims(cred, "https://www.googleapis.com/auth/firebase.messaging", time.Now())

	signer := NewAssertionSigner()
	assertion, err := signer.Sign(claims, cred.PrivateKey)
	require.NoError(t, err)

	parsed, err := jwt.Parse(assertion, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, jwt.ErrSignatureInvalid
		}

		return &key.PublicKey, nil
	})
	require.NoError(t, err)
	assert.True(t, parsed.Valid)

	parsedClaims, ok := parsed.Claims.(jwt.MapClaims)
	require.True(t, ok)
	assert.Equal(t, cred.ClientEmail, parsedClaims["iss"])
	assert.Equal(t, cred.TokenURI, parsedClaims["aud"])
}

func TestBuildAssertionClaims_ExpiryWindow(t *testing.T) {
	_, keyPEM := generateTestKey(t)
	cred := testCredential(keyPEM)
	issuedAt := time.Unix(1700000000, 0)

	claims := buildAssertionClaims(cred, "scope-a", issuedAt)

	iat, ok := claims["iat"].(int64)
	require.True(t, ok)
	exp, ok := claims["exp"].(int64)
	require.True(t, ok)
	assert.Equal(t, int64(1700000000), iat)
	assert.Equal(t, int64(3600), exp-iat)
	assert.Equal(t, "scope-a", claims["scope"])
}

func TestSign_SegmentsAreBase64URLWithoutPadding(t *testing.T) {
	_, keyPEM := generateTestKey(t)
	cred := testCredential(keyPEM)
	claims := buildAssertionClaims(cred, "scope", time.Now())

	signer := NewAssertionSigner()
	assertion, err := signer.Sign(claims, cred.PrivateKey)
	require.NoError(t, err)

	segments := strings.Split(assertion, ".")
	require.Len(t, segments, 3)

	for _, segment := range segments {
		assert.NotContains(t, segment, "+")
		assert.NotContains(t, segment, "/")
		assert.NotContains(t, segment, "=")
	}

	// Round trip: the claims segment decodes back to the original claim set.
	decoded, err := base64.RawURLEncoding.DecodeString(segments[1])
	require.NoError(t, err)

	var roundTripped map[string]any
	require.NoError(t, json.Unmarshal(decoded, &roundTripped))
	assert.Equal(t, cred.ClientEmail, roundTripped["iss"])
	assert.Equal(t, cred.TokenURI, roundTripped["aud"])
}

func TestSign_MalformedPEM(t *testing.T) {
	signer := NewAssertionSigner()

	_, err := signer.Sign(map[string]any{"iss": "x"}, "not a pem block")
	assert.Error(t, err)
}
