package google

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestTokenSource_Exchange(t *testing.T) {
	_, keyPEM := generateTestKey(t)

	var exchanges atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		exchanges.Add(1)

		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, grantTypeJWTBearer, r.PostFormValue("grant_type"))
		assert.NotEmpty(t, r.PostFormValue("assertion"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"AT1","expires_in":3600,"token_type":"Bearer"}`))
	}))
	defer server.Close()

	cred := testCredential(keyPEM)
	cred.TokenURI = server.URL

	source := NewAccessTokenSource(cred, "scope", 5*time.Second, NewAssertionSigner(), testLogger())

	token, err := source.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AT1", token.Value)
	assert.Equal(t, time.Hour, token.TTL)

	// Second call reuses the cached token, no second exchange.
	again, err := source.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, token.Value, again.Value)
	assert.Equal(t, int64(1), exchanges.Load())
}

func TestTokenSource_RefreshesExpiredToken(t *testing.T) {
	_, keyPEM := generateTestKey(t)

	var exchanges atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		exchanges.Add(1)
		w.Write([]byte(`{"access_token":"AT","expires_in":3600}`))
	}))
	defer server.Close()

	cred := testCredential(keyPEM)
	cred.TokenURI = server.URL

	source := NewAccessTokenSource(cred, "scope", 5*time.Second, NewAssertionSigner(), testLogger()).(*accessTokenSource)

	clock := time.Unix(1700000000, 0)
	source.now = func() time.Time { return clock }

	_, err := source.Token(context.Background())
	require.NoError(t, err)

	// Advance past ttl - safety margin; the cache must not be reused.
	clock = clock.Add(time.Hour - 30*time.Second)

	_, err = source.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), exchanges.Load())
}

func TestTokenSource_NonOKPropagated(t *testing.T) {
	_, keyPEM := generateTestKey(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	cred := testCredential(keyPEM)
	cred.TokenURI = server.URL

	source := NewAccessTokenSource(cred, "scope", 5*time.Second, NewAssertionSigner(), testLogger())

	_, err := source.Token(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), "invalid_grant")
}

func TestTokenSource_MalformedKeyIsFatal(t *testing.T) {
	cred := testCredential("garbage")
	source := NewAccessTokenSource(cred, "scope", 5*time.Second, NewAssertionSigner(), testLogger())

	_, err := source.Token(context.Background())
	assert.Error(t, err)
}
