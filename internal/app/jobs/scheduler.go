// Package jobs runs periodic maintenance tasks on a cron schedule.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/cartrewards/service_layer/internal/app/system"
	"github.com/cartrewards/service_layer/pkg/logger"
)

var _ system.Service = (*Scheduler)(nil)

// Job is a unit of scheduled work.
type Job func(ctx context.Context) error

// Scheduler wraps a cron runner as a lifecycle service.
type Scheduler struct {
	log     *logger.Logger
	cron    *cron.Cron
	timeout time.Duration

	mu      sync.Mutex
	names   map[cron.EntryID]string
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
}

// NewScheduler creates an idle scheduler. Each job run gets timeout (0
// means no per-run deadline).
func NewScheduler(log *logger.Logger, timeout time.Duration) *Scheduler {
	if log == nil {
		log = logger.NewDefault("jobs")
	}
	cl := cronLogger{log: log}
	return &Scheduler{
		log:     log,
		timeout: timeout,
		names:   make(map[cron.EntryID]string),
		cron: cron.New(cron.WithChain(
			cron.Recover(cl),
			cron.SkipIfStillRunning(cl),
		)),
	}
}

// Add schedules job under spec (standard cron or "@every 5m").
func (s *Scheduler) Add(name, spec string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.cron.AddFunc(spec, func() { s.run(name, job) })
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	s.names[id] = name
	return nil
}

// Jobs returns the scheduled job names with their next run time.
func (s *Scheduler) Jobs() map[string]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]time.Time, len(s.names))
	for _, entry := range s.cron.Entries() {
		out[s.names[entry.ID]] = entry.Next
	}
	return out
}

// RunNow executes the named job synchronously.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	var job func()
	for _, entry := range s.cron.Entries() {
		if s.names[entry.ID] == name {
			job = entry.Job.Run
			break
		}
	}
	s.mu.Unlock()
	if job == nil {
		return fmt.Errorf("job %s not found", name)
	}
	job()
	return nil
}

func (s *Scheduler) Name() string { return "job-scheduler" }

func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.running = true
	s.cron.Start()
	s.log.WithField("jobs", len(s.names)).Info("job scheduler started")
	return nil
}

func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	done := s.cron.Stop()
	cancel()
	select {
	case <-done.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	s.log.Info("job scheduler stopped")
	return nil
}

func (s *Scheduler) run(name string, job Job) {
	s.mu.Lock()
	base := s.ctx
	s.mu.Unlock()
	if base == nil {
		base = context.Background()
	}

	ctx := base
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(base, s.timeout)
		defer cancel()
	}

	start := time.Now()
	err := job(ctx)
	entry := s.log.WithField("job", name).WithField("duration_ms", time.Since(start).Milliseconds())
	if err != nil {
		entry.WithError(err).Warn("scheduled job failed")
		return
	}
	entry.Debug("scheduled job finished")
}

// cronLogger adapts the service logger to cron's logging interface.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(fields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.WithFields(fields(keysAndValues)).WithError(err).Error(msg)
}

func fields(kv []interface{}) logrus.Fields {
	out := make(logrus.Fields, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return out
}
