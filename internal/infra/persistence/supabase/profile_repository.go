// Package supabase implements the recipient resolver against a PostgREST
// record store (relational users table).
package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"pushrelay/config"
	"pushrelay/internal/domain/entity"
	"pushrelay/internal/domain/repository"
)

// profileRepository implements repository.ProfileRepository via
// GET {url}/rest/v1/users?id=eq.{id}&select=fcm_token,notifications_enabled.
type profileRepository struct {
	baseURL    string
	serviceKey string
	client     *http.Client
	logger     *slog.Logger
}

// NewProfileRepository is the constructor for profileRepository.
func NewProfileRepository(cfg *config.SupabaseConfig, callTimeout time.Duration, logger *slog.Logger) (repository.ProfileRepository, error) {
	if cfg == nil || cfg.URL == "" || cfg.ServiceRoleKey == "" {
		return nil, errors.New("supabase url and service role key must be configured")
	}
	if callTimeout <= 0 {
		callTimeout = 10 * time.Second
	}

	return &profileRepository{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		serviceKey: cfg.ServiceRoleKey,
		client:     &http.Client{Timeout: callTimeout},
		logger:     logger,
	}, nil
}

// userRow is the PostgREST projection of the users table.
type userRow struct {
	FCMToken             *string `json:"fcm_token"`
	NotificationsEnabled *bool   `json:"notifications_enabled"`
}

// ResolveProfile implements repository.ProfileRepository. Every failure mode
// resolves to the empty profile: absence of a push destination is expected
// steady state, not an error.
func (repo *profileRepository) ResolveProfile(ctx context.Context, recipientID string) (*entity.RecipientPushProfile, error) {
	query := fmt.Sprintf("%s/rest/v1/users?id=eq.%s&select=fcm_token,notifications_enabled",
		repo.baseURL, url.QueryEscape(recipientID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, query, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build supabase request")
	}
	req.Header.Set("apikey", repo.serviceKey)
	req.Header.Set("Authorization", "Bearer "+repo.serviceKey)

	resp, err := repo.client.Do(req)
	if err != nil {
		repo.logger.Warn("Supabase users query failed",
			slog.String("user_id", recipientID),
			slog.Any("error", err),
		)

		return entity.EmptyProfile(), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		repo.logger.Warn("Supabase users query error",
			slog.String("user_id", recipientID),
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(body)),
		)

		return entity.EmptyProfile(), nil
	}

	var rows []userRow
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		repo.logger.Warn("Supabase users response malformed",
			slog.String("user_id", recipientID),
			slog.Any("error", err),
		)

		return entity.EmptyProfile(), nil
	}

	if len(rows) == 0 {
		repo.logger.Info("No user row for recipient", slog.String("user_id", recipientID))

		return entity.EmptyProfile(), nil
	}

	profile := entity.EmptyProfile()
	if rows[0].FCMToken != nil {
		profile.FCMToken = *rows[0].FCMToken
	}
	// Only an explicit false disables; a missing column keeps the default.
	if rows[0].NotificationsEnabled != nil {
		profile.NotificationsEnabled = *rows[0].NotificationsEnabled
	}

	return profile, nil
}
