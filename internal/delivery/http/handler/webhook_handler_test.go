package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pushrelay/config"
	"pushrelay/internal/delivery/http/validator"
	"pushrelay/internal/domain/entity"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNotificationUsecase struct {
	outcome    *entity.PushOutcome
	err        error
	calls      int
	lastRecord *entity.NotificationRecord
}

func (f *fakeNotificationUsecase) ProcessChangeEvent(_ context.Context, record *entity.NotificationRecord) (*entity.PushOutcome, error) {
	f.calls++
	f.lastRecord = record
	if f.err != nil {
		return nil, f.err
	}

	return f.outcome, nil
}

func newTestHandler(uc *fakeNotificationUsecase) *WebhookHandler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return NewWebhookHandler(WebhookHandlerParams{
		Config:         &config.Config{},
		Logger:         logger,
		NotificationUC: uc,
	})
}

func performWebhook(t *testing.T, h *WebhookHandler, body string) *httptest.ResponseRecorder {
	t.Helper()

	e := echo.New()
	e.Validator = validator.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.HandleWebhook(c))

	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	return body
}

func TestHandleWebhook_SentResponse(t *testing.T) {
	uc := &fakeNotificationUsecase{outcome: entity.SentOutcome("msg-42")}
	h := newTestHandler(uc)

	rec := performWebhook(t, h, `{"type":"INSERT","record":{"user_id":"u-1","title":"Hello","message":"world"}}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "FCM sent", body["message"])
	assert.Equal(t, "u-1", body["userId"])
	assert.Equal(t, "msg-42", body["messageId"])
	require.NotNil(t, uc.lastRecord)
	assert.Equal(t, "Hello", uc.lastRecord.Title)
}

func TestHandleWebhook_SentWithoutMessageIDOmitsField(t *testing.T) {
	uc := &fakeNotificationUsecase{outcome: entity.SentOutcome("")}
	h := newTestHandler(uc)

	rec := performWebhook(t, h, `{"type":"INSERT","record":{"user_id":"u-1","title":"Hello"}}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "FCM sent", body["message"])
	assert.NotContains(t, body, "messageId")
}

func TestHandleWebhook_NonInsertSkipped(t *testing.T) {
	uc := &fakeNotificationUsecase{}
	h := newTestHandler(uc)

	for _, eventType := range []string{"UPDATE", "DELETE", ""} {
		rec := performWebhook(t, h, `{"type":"`+eventType+`","record":{"user_id":"u-1","title":"Hello"}}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "Not INSERT, skipped", body["message"])
		assert.NotContains(t, body, "userId")
	}
	assert.Zero(t, uc.calls, "non-insert events must not reach the pipeline")
}

func TestHandleWebhook_MissingRequiredFields(t *testing.T) {
	uc := &fakeNotificationUsecase{}
	h := newTestHandler(uc)

	tests := []struct {
		name string
		body string
	}{
		{name: "missing user_id", body: `{"type":"INSERT","record":{"title":"Hello"}}`},
		{name: "missing title", body: `{"type":"INSERT","record":{"user_id":"u-1"}}`},
		{name: "empty record", body: `{"type":"INSERT","record":{}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := performWebhook(t, h, tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			body := decodeBody(t, rec)
			assert.Equal(t, "Missing required fields", body["error"])
		})
	}
	assert.Zero(t, uc.calls)
}

func TestHandleWebhook_SkippedResponse(t *testing.T) {
	uc := &fakeNotificationUsecase{outcome: entity.SkippedOutcome(entity.SkipReasonNoToken)}
	h := newTestHandler(uc)

	rec := performWebhook(t, h, `{"type":"INSERT","record":{"user_id":"u-2","title":"Hello"}}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "No FCM token", body["message"])
	assert.Equal(t, "u-2", body["userId"])
}

func TestHandleWebhook_GatewayFailure(t *testing.T) {
	uc := &fakeNotificationUsecase{outcome: entity.FailedOutcome("500: internal")}
	h := newTestHandler(uc)

	rec := performWebhook(t, h, `{"type":"INSERT","record":{"user_id":"u-3","title":"Hello"}}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "FCM failed", body["error"])
	assert.Equal(t, "500: internal", body["details"])
}

func TestHandleWebhook_PipelineError(t *testing.T) {
	uc := &fakeNotificationUsecase{err: errors.New("token exchange refused")}
	h := newTestHandler(uc)

	rec := performWebhook(t, h, `{"type":"INSERT","record":{"user_id":"u-4","title":"Hello"}}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Internal error", body["error"])
	assert.Contains(t, body["details"], "token exchange refused")
}

func TestHandleWebhook_MalformedJSON(t *testing.T) {
	uc := &fakeNotificationUsecase{}
	h := newTestHandler(uc)

	rec := performWebhook(t, h, `{not json`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Internal error", body["error"])
	assert.Zero(t, uc.calls)
}

func TestHandleWebhook_AuthRejectsMissingToken(t *testing.T) {
	uc := &fakeNotificationUsecase{outcome: entity.SentOutcome("")}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewWebhookHandler(WebhookHandlerParams{
		Config: &config.Config{
			WebhookAuth: &config.WebhookAuthConfig{Enabled: true, Audience: "https://relay.example.com/"},
		},
		Logger:         logger,
		NotificationUC: uc,
	})

	rec := performWebhook(t, h, `{"type":"INSERT","record":{"user_id":"u-1","title":"Hello"}}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, uc.calls)
}
