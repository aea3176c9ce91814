package main

import (
	"context"
	"log/slog"
	"os"

	"pushrelay/config"
	"pushrelay/internal/delivery"
	deliveryhttp "pushrelay/internal/delivery/http"
	"pushrelay/internal/delivery/http/handler"
	"pushrelay/internal/domain/repository"
	"pushrelay/internal/domain/service"
	"pushrelay/internal/infra/auth/google"
	logs "pushrelay/internal/infra/log"
	"pushrelay/internal/infra/notification"
	"pushrelay/internal/infra/persistence/firestore"
	"pushrelay/internal/infra/persistence/postgres"
	"pushrelay/internal/infra/persistence/supabase"
	"pushrelay/internal/usecase/impl"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

type startServerParams struct {
	fx.In
	fx.Lifecycle
	fx.Shutdowner

	Deliveries []delivery.Delivery `group:"deliveries"`
}

func main() {
	fx.New(
		injectInfra(),
		injectRepo(),
		injectService(),
		injectHandler(),
		injectDelivery(),
		fx.Invoke(
			startServer,
		),
	).Run()
}

func injectInfra() fx.Option {
	return fx.Provide(
		config.New,
		logs.New,
		context.Background,
		postgres.New,
		provideServiceAccount,
	)
}

func injectRepo() fx.Option {
	return fx.Options(
		fx.Provide(
			provideProfileRepository,
			postgres.NewDeliveryLogRepository,
		),
	)
}

func injectService() fx.Option {
	return fx.Options(
		fx.Provide(
			google.NewAssertionSigner,
			provideAccessTokenSource,
			provideDispatcher,
			impl.NewNotificationService,
		),
	)
}

func injectHandler() fx.Option {
	return fx.Options(
		fx.Provide(
			handler.NewWebhookHandler,
		),
	)
}

func injectDelivery() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				deliveryhttp.NewServer,
				fx.ResultTags(`group:"deliveries"`),
			),
		),
	)
}

// provideServiceAccount decodes the Google service account credential from
// configuration. The relay cannot run without one.
func provideServiceAccount(cfg *config.Config) (*config.GoogleServiceAccount, error) {
	if cfg.Firebase == nil {
		return nil, errors.New("firebase configuration is required")
	}

	return cfg.Firebase.ServiceAccountCredential()
}

func provideAccessTokenSource(cfg *config.Config, cred *config.GoogleServiceAccount, signer service.AssertionSigner, logger *slog.Logger) service.AccessTokenSource {
	return google.NewAccessTokenSource(cred, cfg.Firebase.Scope, cfg.Firebase.CallTimeout, signer, logger)
}

func provideDispatcher(cfg *config.Config, tokens service.AccessTokenSource, logger *slog.Logger) service.PushDispatcher {
	return notification.NewFCMService(cfg.Firebase, tokens, logger)
}

// provideProfileRepository selects the recipient resolver backend.
func provideProfileRepository(cfg *config.Config, tokens service.AccessTokenSource, logger *slog.Logger) (repository.ProfileRepository, error) {
	switch cfg.Resolver.Provider {
	case config.ResolverProviderSupabase:
		return supabase.NewProfileRepository(cfg.Supabase, cfg.Firebase.CallTimeout, logger)
	case config.ResolverProviderFirestore:
		return firestore.NewProfileRepository(cfg.Firebase.ProjectID, tokens, cfg.Firebase.CallTimeout, logger)
	default:
		return nil, errors.Errorf("unknown resolver provider: %s", cfg.Resolver.Provider)
	}
}

func startServer(ctx context.Context, params startServerParams) {
	for _, delivery := range params.Deliveries {
		go func() {
			if err := delivery.Serve(ctx); err != nil {
				slog.Error("Failed to start server", slog.Any("error", err))

				// Trigger graceful shutdown to execute all OnStop hooks
				if shutdownErr := params.Shutdown(); shutdownErr != nil {
					slog.Error("Failed to shutdown gracefully", slog.Any("error", shutdownErr))
					os.Exit(1)
				}
			}
		}()
	}
}
