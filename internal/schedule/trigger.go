package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/memohai/anontalks/internal/channel"
	"github.com/memohai/anontalks/internal/matchmaker"
)

const ExpiryJobName = "expire_waiting"

// Expirer cancels waiting conversations older than a timeout.
type Expirer interface {
	ExpireWaiting(ctx context.Context, olderThan time.Duration) ([]matchmaker.Notification, error)
}

// ExpiryJob expires stale waiting conversations and notifies their initiators through sender.
func ExpiryJob(log *slog.Logger, pattern string, olderThan time.Duration, expirer Expirer, sender channel.Sender) Job {
	return Job{
		Name:    ExpiryJobName,
		Pattern: pattern,
		Run: func(ctx context.Context) error {
			notes, expireErr := expirer.ExpireWaiting(ctx, olderThan)
			var errs []error
			for _, n := range notes {
				if err := sender.Send(ctx, channel.OutboundMessage{Target: n.Address, Text: n.Text}); err != nil {
					log.Warn("notify expired participant failed", slog.String("target", n.Address), slog.Any("error", err))
					errs = append(errs, err)
				}
			}
			if expireErr != nil {
				errs = append(errs, fmt.Errorf("expire waiting: %w", expireErr))
			}
			return errors.Join(errs...)
		},
	}
}
