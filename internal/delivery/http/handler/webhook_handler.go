// Package handler contains the HTTP handlers of the webhook server.
package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"pushrelay/config"
	deliverycontext "pushrelay/internal/delivery/context"
	"pushrelay/internal/domain/entity"
	apperrors "pushrelay/internal/domain/errors"
	"pushrelay/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/fx"
	"google.golang.org/api/idtoken"
)

// successResponse is the envelope for accepted events. The field names and
// values are a fixed contract with the webhook caller and its dashboards.
type successResponse struct {
	Message   string `json:"message"`
	UserID    string `json:"userId,omitempty"`
	MessageID string `json:"messageId,omitempty"`
}

// errorResponse is the envelope for rejected events.
type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// WebhookHandler receives database change events and relays them as pushes.
type WebhookHandler struct {
	verifyCallerAuth bool
	audience         string
	logger           *slog.Logger
	notificationUC   usecase.NotificationUsecase
}

// WebhookHandlerParams holds dependencies for the WebhookHandler
type WebhookHandlerParams struct {
	fx.In

	Config         *config.Config
	Logger         *slog.Logger
	NotificationUC usecase.NotificationUsecase
}

// NewWebhookHandler creates the change event webhook handler
func NewWebhookHandler(params WebhookHandlerParams) *WebhookHandler {
	verifyCallerAuth := false
	audience := ""
	if params.Config.WebhookAuth != nil {
		verifyCallerAuth = params.Config.WebhookAuth.Enabled
		audience = params.Config.WebhookAuth.Audience
	}

	return &WebhookHandler{
		verifyCallerAuth: verifyCallerAuth,
		audience:         audience,
		logger:           params.Logger,
		notificationUC:   params.NotificationUC,
	}
}

// HandleWebhook handles one incoming database change event.
func (h *WebhookHandler) HandleWebhook(c echo.Context) error {
	ctx := c.Request().Context()
	logger := deliverycontext.GetLoggerOrDefault(ctx, h.logger)

	if h.verifyCallerAuth {
		if err := verifyCallerToken(c.Request(), h.audience); err != nil {
			logger.Warn("Rejected webhook call with invalid token", slog.Any("error", err))

			return c.NoContent(http.StatusUnauthorized)
		}
	}

	var event entity.ChangeEvent
	if err := c.Bind(&event); err != nil {
		logger.Error("Failed to parse change event", slog.Any("error", err))

		return respondError(c, apperrors.ErrInternal.WithDetails(err.Error()))
	}

	// Update and delete events acknowledge without side effects so the
	// caller never retries them.
	if !event.IsInsert() {
		return c.JSON(http.StatusOK, successResponse{Message: "Not INSERT, skipped"})
	}

	if err := c.Validate(&event.Record); err != nil {
		logger.Warn("Change event missing required fields",
			slog.String("user_id", event.Record.UserID),
			slog.Any("error", err),
		)

		return respondError(c, apperrors.ErrValidationFailed)
	}

	outcome, err := h.notificationUC.ProcessChangeEvent(ctx, &event.Record)
	if err != nil {
		logger.Error("Failed to process change event",
			slog.String("user_id", event.Record.UserID),
			slog.Any("error", err),
		)

		return respondError(c, apperrors.ErrInternal.WithDetails(err.Error()))
	}

	return h.respondOutcome(c, &event.Record, outcome, logger)
}

// respondOutcome maps a terminal outcome to the fixed response contract.
func (h *WebhookHandler) respondOutcome(c echo.Context, record *entity.NotificationRecord, outcome *entity.PushOutcome, logger *slog.Logger) error {
	switch outcome.Status {
	case entity.OutcomeSent:
		logger.Info("Push delivered",
			slog.String("user_id", record.UserID),
			slog.String("message_id", outcome.MessageID),
		)

		return c.JSON(http.StatusOK, successResponse{
			Message:   "FCM sent",
			UserID:    record.UserID,
			MessageID: outcome.MessageID,
		})
	case entity.OutcomeSkipped:
		// Skips acknowledge with 200; both missing tokens and opt-outs are
		// expected steady state, not caller errors.
		return c.JSON(http.StatusOK, successResponse{
			Message: "No FCM token",
			UserID:  record.UserID,
		})
	case entity.OutcomeFailed:
		logger.Error("Push gateway rejected message",
			slog.String("user_id", record.UserID),
			slog.String("detail", outcome.ErrorDetail),
		)

		return respondError(c, apperrors.ErrGateway.WithDetails(outcome.ErrorDetail))
	default:
		return respondError(c, apperrors.ErrInternal.WithDetails(fmt.Sprintf("unknown outcome status: %s", outcome.Status)))
	}
}

// respondError serializes an application error into the fixed wire contract.
func respondError(c echo.Context, appErr apperrors.AppError) error {
	return c.JSON(appErr.HTTPCode(), errorResponse{
		Error:   appErr.Message(),
		Details: appErr.Details(),
	})
}

// verifyCallerToken verifies the OIDC ID token on incoming webhook requests.
// The audience defaults to the request URL when not configured.
func verifyCallerToken(req *http.Request, audience string) error {
	authHeader := req.Header.Get("Authorization")
	if authHeader == "" {
		return errors.New("missing authorization header")
	}

	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return errors.New("invalid authorization header format")
	}
	token := strings.TrimPrefix(authHeader, bearerPrefix)

	if audience == "" {
		scheme := "https"
		if req.TLS == nil {
			scheme = "http"
		}
		audience = fmt.Sprintf("%s://%s%s", scheme, req.Host, req.URL.Path)
	}

	payload, err := idtoken.Validate(req.Context(), token, audience)
	if err != nil {
		return errors.Wrap(err, "failed to validate token")
	}

	if payload.Issuer != "accounts.google.com" && payload.Issuer != "https://accounts.google.com" {
		return errors.Errorf("invalid issuer: %s", payload.Issuer)
	}

	return nil
}
