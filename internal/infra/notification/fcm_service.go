// Package notification delivers push messages through the FCM HTTP v1 API.
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"time"

	"github.com/pkg/errors"

	"pushrelay/config"
	"pushrelay/internal/domain/entity"
	"pushrelay/internal/domain/service"
)

// clickAction is the routing intent the client app registered its tap
// handler under.
const clickAction = "FLUTTER_NOTIFICATION_CLICK"

// fcmService implements service.PushDispatcher against the HTTP v1 send
// endpoint, authenticating each call with a bearer token from the source.
type fcmService struct {
	endpoint  string
	channelID string
	tokens    service.AccessTokenSource
	client    *http.Client
	logger    *slog.Logger
}

// NewFCMService is the constructor for fcmService.
func NewFCMService(cfg *config.FirebaseConfig, tokens service.AccessTokenSource, logger *slog.Logger) service.PushDispatcher {
	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &fcmService{
		endpoint:  fmt.Sprintf("https://fcm.googleapis.com/v1/projects/%s/messages:send", cfg.ProjectID),
		channelID: cfg.AndroidChannelID,
		tokens:    tokens,
		client:    &http.Client{Timeout: timeout},
		logger:    logger,
	}
}

// fcmMessage is the HTTP v1 send request. The notification block drives
// OS-level display; data stays minimal (routing fields only) so the OS does
// not deprioritize background delivery; android and apns blocks are both
// always present, the gateway routes per token.
type fcmMessage struct {
	Message messageBody `json:"message"`
}

type messageBody struct {
	Token        string             `json:"token"`
	Notification notificationBlock  `json:"notification"`
	Data         map[string]string  `json:"data"`
	Android      androidConfig      `json:"android"`
	APNS         apnsConfig         `json:"apns"`
}

type notificationBlock struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type androidConfig struct {
	Priority     string              `json:"priority"`
	Notification androidNotification `json:"notification"`
}

type androidNotification struct {
	ChannelID   string `json:"channel_id"`
	Sound       string `json:"sound"`
	Visibility  string `json:"visibility"`
	ClickAction string `json:"click_action"`
}

type apnsConfig struct {
	Payload apnsPayload `json:"payload"`
}

type apnsPayload struct {
	APS apsBlock `json:"aps"`
}

type apsBlock struct {
	Alert    notificationBlock `json:"alert"`
	Sound    string            `json:"sound"`
	Badge    int               `json:"badge"`
	Category string            `json:"category"`
}

// Dispatch implements service.PushDispatcher.
func (s *fcmService) Dispatch(ctx context.Context, token, title, body, category, recipientID string) (*entity.PushOutcome, error) {
	accessToken, err := s.tokens.Token(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "obtain access token")
	}

	payload := s.buildMessage(token, title, body, category, recipientID)
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "marshal FCM message")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(raw))
	if err != nil {
		return nil, errors.Wrap(err, "build FCM request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken.Value)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "call FCM endpoint")
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		s.logger.Warn("FCM rejected message",
			slog.Int("status", resp.StatusCode),
			slog.String("user_id", recipientID),
		)

		return entity.FailedOutcome(fmt.Sprintf("%d: %s", resp.StatusCode, string(respBody))), nil
	}

	return entity.SentOutcome(parseMessageID(respBody)), nil
}

func (s *fcmService) buildMessage(token, title, body, category, recipientID string) *fcmMessage {
	return &fcmMessage{
		Message: messageBody{
			Token: token,
			Notification: notificationBlock{
				Title: title,
				Body:  body,
			},
			Data: map[string]string{
				"click_action": clickAction,
				"type":         category,
				"user_id":      recipientID,
			},
			Android: androidConfig{
				Priority: "high",
				Notification: androidNotification{
					ChannelID:   s.channelID,
					Sound:       "default",
					Visibility:  "public",
					ClickAction: clickAction,
				},
			},
			APNS: apnsConfig{
				Payload: apnsPayload{
					APS: apsBlock{
						Alert: notificationBlock{
							Title: title,
							Body:  body,
						},
						Sound:    "default",
						Badge:    1,
						Category: clickAction,
					},
				},
			},
		},
	}
}

// parseMessageID extracts the message ID from a send response. The v1 API
// returns {"name":"projects/{p}/messages/{id}"}; absent or malformed bodies
// yield an empty ID, which is fine.
func parseMessageID(body []byte) string {
	var sendResp struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(body, &sendResp); err != nil || sendResp.Name == "" {
		return ""
	}

	return path.Base(sendResp.Name)
}
