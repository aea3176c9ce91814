// Package http provides the webhook HTTP server.
package http

import (
	"context"
	"log/slog"
	"net"
	"strconv"

	"pushrelay/config"
	"pushrelay/internal/delivery"
	"pushrelay/internal/delivery/http/handler"
	"pushrelay/internal/delivery/http/validator"
	"pushrelay/internal/delivery/middleware"
	"pushrelay/internal/domain/lifecycle"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	slogecho "github.com/samber/slog-echo"
	"go.uber.org/fx"
)

// ServerParams holds dependencies for the webhook server
type ServerParams struct {
	fx.In

	Lc             fx.Lifecycle
	Cfg            *config.Config
	Logger         *slog.Logger
	WebhookHandler *handler.WebhookHandler
}

type webhookServer struct {
	cfg    *config.Config
	logger *slog.Logger
	server *echo.Echo
}

// NewServer creates the webhook HTTP server
func NewServer(params ServerParams) (delivery.Delivery, error) {
	e := echo.New()
	e.HideBanner = true
	e.Validator = validator.New()
	e.Server.ReadTimeout = params.Cfg.HTTP.Timeouts.ReadTimeout
	e.Server.ReadHeaderTimeout = params.Cfg.HTTP.Timeouts.ReadHeaderTimeout
	e.Server.WriteTimeout = params.Cfg.HTTP.Timeouts.WriteTimeout
	e.Server.IdleTimeout = params.Cfg.HTTP.Timeouts.IdleTimeout

	// Recover first so panics in handlers become 500 responses
	e.Use(echomiddleware.Recover())

	// Request ID before logging so every log line carries one
	requestIDMiddleware := middleware.NewRequestIDMiddleware(params.Logger)
	e.Use(requestIDMiddleware.Process)

	e.Use(slogecho.New(params.Logger))

	loggerMiddleware := middleware.NewLoggerMiddleware(params.Logger, params.Cfg)
	e.Use(loggerMiddleware.Handle)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	// The webhook caller POSTs change events to the root path. Any other
	// method on this route gets a 405 from the router.
	e.POST("/", params.WebhookHandler.HandleWebhook)

	srv := &webhookServer{
		cfg:    params.Cfg,
		logger: params.Logger,
		server: e,
	}

	params.Lc.Append(fx.Hook{
		OnStop: srv.stop,
	})

	return srv, nil
}

// Serve starts the webhook HTTP server
func (s *webhookServer) Serve(ctx context.Context) error {
	hostPort := net.JoinHostPort("0.0.0.0", strconv.Itoa(s.cfg.HTTP.Port))
	s.logger.Info("Starting webhook HTTP server", slog.String("hostPort", hostPort))
	if err := s.server.Start(hostPort); err != nil {
		return errors.WithStack(err)
	}

	return nil
}

// stop gracefully shuts down the webhook server
func (s *webhookServer) stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, lifecycle.DefaultTimeout)
	defer cancel()

	s.logger.Info("Shutting down webhook HTTP server")

	return errors.WithStack(s.server.Shutdown(shutdownCtx))
}
