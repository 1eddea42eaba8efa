// Package scheduler triggers tracking passes on cron expressions.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is a scheduled unit of work.
type Job struct {
	Name string
	// Spec is a 5-field cron expression or descriptor ("@hourly"). A
	// "CRON_TZ=<zone> " prefix pins the entry to that zone.
	Spec string
	Run  func(ctx context.Context) error
}

// Scheduler wraps a robfig cron instance. Overlapping triggers of the same
// job are skipped rather than queued.
type Scheduler struct {
	parser cron.Parser
	c      *cron.Cron
	logger *zap.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	entries map[string]cron.EntryID
}

// New builds a Scheduler whose unprefixed specs are evaluated in loc.
func New(loc *time.Location, logger *zap.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	adapter := cronLogger{logger: logger}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		parser: parser,
		c: cron.New(
			cron.WithParser(parser),
			cron.WithLocation(loc),
			cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)),
		),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		entries: map[string]cron.EntryID{},
	}
}

// Validate reports whether spec parses.
func (s *Scheduler) Validate(spec string) error {
	if strings.TrimSpace(spec) == "" {
		return errors.New("schedule required")
	}
	if _, err := s.parser.Parse(spec); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return nil
}

// Add registers a job. Names must be unique.
func (s *Scheduler) Add(job Job) error {
	if job.Name == "" || job.Run == nil {
		return errors.New("job needs a name and a run function")
	}
	if err := s.Validate(job.Spec); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[job.Name]; exists {
		return fmt.Errorf("job %q already scheduled", job.Name)
	}
	logger := s.logger.With(zap.String("job", job.Name))
	id, err := s.c.AddFunc(job.Spec, func() {
		start := time.Now()
		logger.Info("Scheduled job started")
		if err := job.Run(s.ctx); err != nil {
			logger.Error("Scheduled job failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
			return
		}
		logger.Info("Scheduled job finished", zap.Duration("elapsed", time.Since(start)))
	})
	if err != nil {
		return fmt.Errorf("add job %q: %w", job.Name, err)
	}
	s.entries[job.Name] = id
	logger.Info("Job scheduled", zap.String("spec", job.Spec))
	return nil
}

// Next returns the next activation of the named job, or false if unknown
// or the scheduler is not running.
func (s *Scheduler) Next(name string) (time.Time, bool) {
	s.mu.Lock()
	id, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	entry := s.c.Entry(id)
	if !entry.Valid() || entry.Next.IsZero() {
		return time.Time{}, false
	}
	return entry.Next, true
}

// Start begins dispatching jobs in the background.
func (s *Scheduler) Start() {
	s.c.Start()
}

// Stop halts the scheduler, cancels the context handed to running jobs and
// waits for them to return or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.c.Stop()
	s.cancel()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for running jobs: %w", ctx.Err())
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
