package modules

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/memohai/anontalks/internal/analytics"
	"github.com/memohai/anontalks/internal/boot"
	"github.com/memohai/anontalks/internal/channel"
	"github.com/memohai/anontalks/internal/channel/adapters/telegram"
	"github.com/memohai/anontalks/internal/channel/inbound"
	"github.com/memohai/anontalks/internal/matchmaker"
	"github.com/memohai/anontalks/internal/schedule"
)

var ChannelModule = fx.Module(
	"channel",
	fx.Provide(
		provideAnalytics,
		provideInboundProcessor,
		provideTelegramAdapter,
		provideChannelManager,
		provideScheduleService,
	),
	fx.Invoke(
		startChannelManager,
		startScheduleService,
	),
)

func provideAnalytics(lc fx.Lifecycle, log *slog.Logger, rc *boot.RuntimeConfig) *analytics.Client {
	client := analytics.New(log, analytics.Config{
		APIKey:      rc.BotlyticsAPIKey,
		URL:         rc.BotlyticsURL,
		IncludeText: rc.BotlyticsIncludeText,
	})
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Close(ctx)
		},
	})
	return client
}

func provideInboundProcessor(log *slog.Logger, mm *matchmaker.Matchmaker, tracker *analytics.Client) *inbound.Processor {
	return inbound.NewProcessor(log, mm, tracker, inbound.Options{})
}

func provideTelegramAdapter(log *slog.Logger, rc *boot.RuntimeConfig) (*telegram.TelegramAdapter, error) {
	return telegram.NewTelegramAdapter(log, telegram.Config{
		BotToken:      rc.BotToken,
		Mode:          rc.TelegramMode,
		WebhookURL:    rc.WebhookURL,
		WebhookSecret: rc.WebhookSecret,
		SendRate:      rc.SendRate,
		Debug:         rc.TelegramDebug,
	})
}

func provideChannelManager(log *slog.Logger, processor *inbound.Processor, adapter *telegram.TelegramAdapter) *channel.Manager {
	manager := channel.NewManager(log, processor, channel.DefaultInboundWorkers, channel.DefaultInboundQueue)
	manager.RegisterAdapter(adapter)
	return manager
}

func startChannelManager(lc fx.Lifecycle, manager *channel.Manager) {
	// The connection outlives OnStart's deadline.
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return manager.Start(ctx)
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			return manager.Shutdown(stopCtx)
		},
	})
}

func provideScheduleService(log *slog.Logger) *schedule.Service {
	return schedule.NewService(log)
}

func startScheduleService(lc fx.Lifecycle, log *slog.Logger, svc *schedule.Service, rc *boot.RuntimeConfig, mm *matchmaker.Matchmaker, manager *channel.Manager) error {
	if rc.WaitingTimeout > 0 {
		job := schedule.ExpiryJob(log, rc.ExpirySchedule, rc.WaitingTimeout, mm, manager)
		if err := svc.Add(job); err != nil {
			return err
		}
	} else {
		log.Info("waiting expiry disabled")
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			svc.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return svc.Stop(ctx)
		},
	})
	return nil
}
