// Package schedule runs periodic maintenance jobs on cron patterns.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

const jobTimeout = 5 * time.Minute

var ErrJobNotFound = errors.New("schedule job not found")

type scheduledJob struct {
	job   Job
	entry cron.EntryID
}

type Service struct {
	cron   *cron.Cron
	parser cron.Parser
	logger *slog.Logger
	mu     sync.Mutex
	jobs   map[string]scheduledJob
}

func NewService(log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &Service{
		cron:   cron.New(cron.WithParser(parser), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		parser: parser,
		logger: log.With(slog.String("service", "schedule")),
		jobs:   map[string]scheduledJob{},
	}
}

// Add registers job, replacing any job with the same name.
func (s *Service) Add(job Job) error {
	job.Name = strings.TrimSpace(job.Name)
	if job.Name == "" || job.Run == nil {
		return errors.New("job name and function are required")
	}
	if _, err := s.parser.Parse(job.Pattern); err != nil {
		return fmt.Errorf("invalid cron pattern %q: %w", job.Pattern, err)
	}
	s.Remove(job.Name)
	entryID, err := s.cron.AddFunc(job.Pattern, func() {
		_ = s.run(context.Background(), job)
	})
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.jobs[job.Name] = scheduledJob{job: job, entry: entryID}
	s.mu.Unlock()
	s.logger.Info("job scheduled", slog.String("job", job.Name), slog.String("pattern", job.Pattern))
	return nil
}

func (s *Service) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sj, ok := s.jobs[name]; ok {
		s.cron.Remove(sj.entry)
		delete(s.jobs, name)
	}
}

// RunNow runs the named job once, outside its schedule.
func (s *Service) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	sj, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return ErrJobNotFound
	}
	return s.run(ctx, sj.job)
}

// Entries lists scheduled jobs by name.
func (s *Service) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, len(s.jobs))
	for name, sj := range s.jobs {
		e := s.cron.Entry(sj.entry)
		out = append(out, Entry{Name: name, Pattern: sj.job.Pattern, Next: e.Next, Prev: e.Prev})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Service) Start() {
	s.cron.Start()
}

// Stop stops scheduling and waits for running jobs, bounded by ctx.
func (s *Service) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) run(ctx context.Context, job Job) error {
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()
	started := time.Now()
	if err := job.Run(ctx); err != nil {
		s.logger.Error("job failed", slog.String("job", job.Name), slog.Any("error", err))
		return err
	}
	s.logger.Debug("job done", slog.String("job", job.Name), slog.Duration("took", time.Since(started)))
	return nil
}
