package supabase

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pushrelay/config"
	"pushrelay/internal/domain/repository"
)

func newTestRepository(t *testing.T, serverURL string) repository.ProfileRepository {
	t.Helper()

	repo, err := NewProfileRepository(
		&config.SupabaseConfig{URL: serverURL, ServiceRoleKey: "service-key"},
		5*time.Second,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	require.NoError(t, err)

	return repo
}

func TestResolveProfile_TokenPresent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/users", r.URL.Path)
		assert.Equal(t, "eq.u1", r.URL.Query().Get("id"))
		assert.Equal(t, "fcm_token,notifications_enabled", r.URL.Query().Get("select"))
		assert.Equal(t, "service-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))

		w.Write([]byte(`[{"fcm_token":"tok123","notifications_enabled":true}]`))
	}))
	defer server.Close()

	repo := newTestRepository(t, server.URL)

	profile, err := repo.ResolveProfile(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "tok123", profile.FCMToken)
	assert.True(t, profile.Deliverable())
}

func TestResolveProfile_OptedOut(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"fcm_token":"tok123","notifications_enabled":false}]`))
	}))
	defer server.Close()

	repo := newTestRepository(t, server.URL)

	profile, err := repo.ResolveProfile(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "tok123", profile.FCMToken)
	assert.False(t, profile.NotificationsEnabled)
	assert.False(t, profile.Deliverable())
}

func TestResolveProfile_FailsSoft(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "no rows",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`[]`))
			},
		},
		{
			name: "null token column",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`[{"fcm_token":null,"notifications_enabled":null}]`))
			},
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{not json`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			repo := newTestRepository(t, server.URL)

			profile, err := repo.ResolveProfile(context.Background(), "u1")
			require.NoError(t, err)
			assert.Empty(t, profile.FCMToken)
			assert.True(t, profile.NotificationsEnabled)
			assert.False(t, profile.Deliverable())
		})
	}
}

func TestNewProfileRepository_RequiresConfig(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := NewProfileRepository(nil, time.Second, logger)
	assert.Error(t, err)

	_, err = NewProfileRepository(&config.SupabaseConfig{URL: "https://x"}, time.Second, logger)
	assert.Error(t, err)
}
