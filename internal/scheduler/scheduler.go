// Package scheduler runs periodic jobs, such as re-syncing the trips file,
// on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/beekhof/tripcal/internal/logger"
)

// Job is one unit of scheduled work.
type Job func(ctx context.Context) error

// Scheduler runs registered jobs on standard five-field cron expressions
// (or descriptors such as @hourly). A job still running when its next
// activation comes is skipped for that activation.
type Scheduler struct {
	cron   *cron.Cron
	log    *logger.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	running bool
	entries map[string]cron.EntryID
}

// New creates a Scheduler evaluating schedules in loc.
func New(loc *time.Location, log *logger.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	log = logger.OrNop(log).Named("scheduler")

	cl := cronLogger{log}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(
				cron.Recover(cl),
				cron.SkipIfStillRunning(cl),
			),
		),
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]cron.EntryID),
	}
}

// Add registers job under name. An invalid spec is rejected.
func (s *Scheduler) Add(name, spec string, job Job) error {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return fmt.Errorf("invalid cron expression '%s': %w", spec, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[name]; ok {
		return fmt.Errorf("job '%s' already registered", name)
	}

	id := s.cron.Schedule(schedule, cron.FuncJob(func() { s.run(name, job) }))
	s.entries[name] = id
	s.log.Info("job scheduled", "job", name, "schedule", spec, "next", schedule.Next(time.Now()))
	return nil
}

// RunNow runs the named job once, synchronously.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	id, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("job '%s' not registered", name)
	}
	s.cron.Entry(id).WrappedJob.Run()
	return nil
}

// Next returns the next activation of the named job. It is zero until the
// scheduler is started.
func (s *Scheduler) Next(name string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.entries[name]; ok {
		return s.cron.Entry(id).Next
	}
	return time.Time{}
}

func (s *Scheduler) run(name string, job Job) {
	start := time.Now()
	if err := job(s.ctx); err != nil {
		s.log.Error("job failed", "job", name, "duration", time.Since(start), "err", err)
		return
	}
	s.log.Debug("job finished", "job", name, "duration", time.Since(start))
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.cron.Start()
	s.log.Info("scheduler started", "jobs", len(s.entries))
}

// Stop cancels running jobs and waits for them to return, or for ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		s.cancel()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.log.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

// cronLogger adapts Logger to cron.Logger.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append(keysAndValues, "err", err)...)
}
