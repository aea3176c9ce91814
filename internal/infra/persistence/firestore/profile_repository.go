// Package firestore implements the recipient resolver against the Firestore
// REST API (document store, fetch-by-id).
package firestore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"

	"pushrelay/internal/domain/entity"
	"pushrelay/internal/domain/repository"
	"pushrelay/internal/domain/service"
)

// profileRepository implements repository.ProfileRepository by fetching the
// users/{id} document. The token source must carry a scope that covers
// Firestore (cloud-platform); when nil the request goes unauthenticated,
// which only works with open security rules.
type profileRepository struct {
	baseURL string
	tokens  service.AccessTokenSource
	client  *http.Client
	logger  *slog.Logger
}

// NewProfileRepository is the constructor for profileRepository.
func NewProfileRepository(projectID string, tokens service.AccessTokenSource, callTimeout time.Duration, logger *slog.Logger) (repository.ProfileRepository, error) {
	if projectID == "" {
		return nil, errors.New("firebase project id must be configured")
	}
	if callTimeout <= 0 {
		callTimeout = 10 * time.Second
	}

	return &profileRepository{
		baseURL: fmt.Sprintf("https://firestore.googleapis.com/v1/projects/%s/databases/(default)/documents", projectID),
		tokens:  tokens,
		client:  &http.Client{Timeout: callTimeout},
		logger:  logger,
	}, nil
}

// firestoreDocument is the subset of the document representation we read.
type firestoreDocument struct {
	Fields struct {
		FCMToken struct {
			StringValue string `json:"stringValue"`
		} `json:"fcmToken"`
		NotificationsEnabled struct {
			BooleanValue *bool `json:"booleanValue"`
		} `json:"notificationsEnabled"`
	} `json:"fields"`
}

// ResolveProfile implements repository.ProfileRepository. Missing documents,
// missing fields and transport failures all fail soft to the empty profile.
func (repo *profileRepository) ResolveProfile(ctx context.Context, recipientID string) (*entity.RecipientPushProfile, error) {
	docURL := repo.baseURL + "/users/" + url.PathEscape(recipientID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, docURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build firestore request")
	}
	req.Header.Set("Content-Type", "application/json")

	if repo.tokens != nil {
		accessToken, tokenErr := repo.tokens.Token(ctx)
		if tokenErr != nil {
			repo.logger.Warn("Firestore token fetch failed",
				slog.String("user_id", recipientID),
				slog.Any("error", tokenErr),
			)

			return entity.EmptyProfile(), nil
		}
		req.Header.Set("Authorization", "Bearer "+accessToken.Value)
	}

	resp, err := repo.client.Do(req)
	if err != nil {
		repo.logger.Warn("Firestore document fetch failed",
			slog.String("user_id", recipientID),
			slog.Any("error", err),
		)

		return entity.EmptyProfile(), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		repo.logger.Warn("Firestore API error",
			slog.String("user_id", recipientID),
			slog.Int("status", resp.StatusCode),
		)

		return entity.EmptyProfile(), nil
	}

	var doc firestoreDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		repo.logger.Warn("Firestore document malformed",
			slog.String("user_id", recipientID),
			slog.Any("error", err),
		)

		return entity.EmptyProfile(), nil
	}

	profile := entity.EmptyProfile()
	profile.FCMToken = doc.Fields.FCMToken.StringValue
	// Only an explicit false disables; an absent field keeps the default.
	if doc.Fields.NotificationsEnabled.BooleanValue != nil {
		profile.NotificationsEnabled = *doc.Fields.NotificationsEnabled.BooleanValue
	}

	return profile, nil
}
