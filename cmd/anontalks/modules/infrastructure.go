package modules

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.uber.org/fx"

	dbfs "github.com/memohai/anontalks/db"
	"github.com/memohai/anontalks/internal/boot"
	"github.com/memohai/anontalks/internal/config"
	"github.com/memohai/anontalks/internal/db"
	"github.com/memohai/anontalks/internal/logger"
	"github.com/memohai/anontalks/internal/storage"
	"github.com/memohai/anontalks/internal/storage/postgres"
	"github.com/memohai/anontalks/internal/storage/sqlite"
)

const storageOpenTimeout = 30 * time.Second

var InfrastructureModule = fx.Module(
	"infrastructure",
	fx.Provide(
		provideLogger,
		boot.ProvideRuntimeConfig,
		provideStore,
	),
)

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideStore(lc fx.Lifecycle, log *slog.Logger, rc *boot.RuntimeConfig) (storage.Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), storageOpenTimeout)
	defer cancel()

	var store storage.Store
	switch rc.StorageDriver {
	case "sqlite":
		s, err := sqlite.Open(ctx, log, rc.SQLitePath, rc.AutoMigrate)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		store = s
	default:
		if rc.AutoMigrate {
			if err := db.RunMigrate(log, rc.DatabaseURL, dbfs.PostgresMigrations(), "up", nil); err != nil {
				return nil, err
			}
		}
		pool, err := db.Open(ctx, rc.DatabaseURL, rc.MaxConns)
		if err != nil {
			return nil, fmt.Errorf("db connect: %w", err)
		}
		store = postgres.New(log, pool)
	}
	log.Info("storage ready", slog.String("driver", rc.StorageDriver))

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return store.Close()
		},
	})
	return store, nil
}
