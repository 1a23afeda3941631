package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/memohai/anontalks/internal/channel"
	"github.com/memohai/anontalks/internal/logger"
	"github.com/memohai/anontalks/internal/matchmaker"
)

type fakeExpirer struct {
	olderThan time.Duration
	notes     []matchmaker.Notification
	err       error
}

func (f *fakeExpirer) ExpireWaiting(_ context.Context, olderThan time.Duration) ([]matchmaker.Notification, error) {
	f.olderThan = olderThan
	return f.notes, f.err
}

type recordingSender struct {
	sent []channel.OutboundMessage
	fail map[string]error
}

func (r *recordingSender) Send(_ context.Context, msg channel.OutboundMessage) error {
	if err := r.fail[msg.Target]; err != nil {
		return err
	}
	r.sent = append(r.sent, msg)
	return nil
}

func TestAddRejectsInvalidJobs(t *testing.T) {
	t.Parallel()

	svc := NewService(logger.Discard())
	noop := func(context.Context) error { return nil }
	if err := svc.Add(Job{Name: "x", Pattern: "not a cron", Run: noop}); err == nil {
		t.Fatal("expected invalid pattern error")
	}
	if err := svc.Add(Job{Pattern: "@every 1m", Run: noop}); err == nil {
		t.Fatal("expected missing name error")
	}
	if err := svc.Add(Job{Name: "x", Pattern: "@every 1m"}); err == nil {
		t.Fatal("expected missing func error")
	}
}

func TestAddReplacesAndLists(t *testing.T) {
	t.Parallel()

	svc := NewService(logger.Discard())
	noop := func(context.Context) error { return nil }
	if err := svc.Add(Job{Name: "b", Pattern: "@every 1m", Run: noop}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := svc.Add(Job{Name: "a", Pattern: "*/30 * * * * *", Run: noop}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := svc.Add(Job{Name: "b", Pattern: "@every 2m", Run: noop}); err != nil {
		t.Fatalf("add: %v", err)
	}
	entries := svc.Entries()
	if len(entries) != 2 || entries[0].Name != "a" || entries[1].Pattern != "@every 2m" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
	svc.Remove("a")
	if got := len(svc.Entries()); got != 1 {
		t.Fatalf("expected 1 entry after remove, got %d", got)
	}
}

func TestRunNow(t *testing.T) {
	t.Parallel()

	svc := NewService(logger.Discard())
	var calls atomic.Int32
	boom := errors.New("boom")
	if err := svc.Add(Job{Name: "j", Pattern: "@every 1h", Run: func(context.Context) error {
		calls.Add(1)
		return boom
	}}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := svc.RunNow(context.Background(), "j"); !errors.Is(err, boom) {
		t.Fatalf("expected job error, got %v", err)
	}
	if err := svc.RunNow(context.Background(), "missing"); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected 1 call, got %d", calls.Load())
	}
}

func TestCronRunsJob(t *testing.T) {
	t.Parallel()

	svc := NewService(logger.Discard())
	ran := make(chan struct{}, 1)
	if err := svc.Add(Job{Name: "tick", Pattern: "* * * * * *", Run: func(context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	}}); err != nil {
		t.Fatalf("add: %v", err)
	}
	svc.Start()
	defer func() { _ = svc.Stop(context.Background()) }()
	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not run")
	}
}

func TestExpiryJobNotifies(t *testing.T) {
	t.Parallel()

	expirer := &fakeExpirer{notes: []matchmaker.Notification{
		{Address: "1", Text: "expired"},
		{Address: "2", Text: "expired"},
	}}
	blocked := errors.New("blocked")
	sender := &recordingSender{fail: map[string]error{"2": blocked}}
	job := ExpiryJob(logger.Discard(), "@every 1m", 10*time.Minute, expirer, sender)

	err := job.Run(context.Background())
	if !errors.Is(err, blocked) {
		t.Fatalf("expected delivery error, got %v", err)
	}
	if expirer.olderThan != 10*time.Minute {
		t.Fatalf("unexpected timeout: %v", expirer.olderThan)
	}
	if len(sender.sent) != 1 || sender.sent[0].Target != "1" {
		t.Fatalf("unexpected deliveries: %+v", sender.sent)
	}
}

func TestExpiryJobDeliversBeforeReportingError(t *testing.T) {
	t.Parallel()

	boom := errors.New("db down")
	expirer := &fakeExpirer{notes: []matchmaker.Notification{{Address: "1", Text: "expired"}}, err: boom}
	sender := &recordingSender{}
	err := ExpiryJob(logger.Discard(), "@every 1m", time.Minute, expirer, sender).Run(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected expire error, got %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected the partial batch to be delivered, got %+v", sender.sent)
	}
}
