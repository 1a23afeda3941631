package modules

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"go.uber.org/fx"

	"github.com/memohai/anontalks/internal/boot"
	"github.com/memohai/anontalks/internal/channel/adapters/telegram"
	"github.com/memohai/anontalks/internal/handlers"
	"github.com/memohai/anontalks/internal/ledger"
	"github.com/memohai/anontalks/internal/schedule"
	"github.com/memohai/anontalks/internal/server"
	"github.com/memohai/anontalks/internal/storage"
	"github.com/memohai/anontalks/internal/version"
)

var ServerModule = fx.Module(
	"server",
	fx.Provide(
		provideServerHandler(providePingHandler),
		provideServerHandler(provideStatsHandler),
		provideServerHandler(provideWebhookHandler),
		provideServer,
	),
	fx.Invoke(startServer),
)

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func providePingHandler(log *slog.Logger, store storage.Store) *handlers.PingHandler {
	return handlers.NewPingHandler(log, store)
}

func provideStatsHandler(log *slog.Logger, pairing *ledger.Ledger, jobs *schedule.Service) *handlers.StatsHandler {
	return handlers.NewStatsHandler(log, pairing, jobs)
}

// In polling mode the route answers 503.
func provideWebhookHandler(log *slog.Logger, adapter *telegram.TelegramAdapter) *handlers.WebhookHandler {
	return handlers.NewWebhookHandler(log, boot.WebhookPath, adapter)
}

type serverParams struct {
	fx.In

	Logger         *slog.Logger
	RuntimeConfig  *boot.RuntimeConfig
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Logger, params.RuntimeConfig.ServerAddr, params.ServerHandlers...)
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	logger.Info("starting anontalks", slog.String("version", version.Get().String()))

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
