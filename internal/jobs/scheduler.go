// internal/jobs/scheduler.go
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/drinksharbour/drinksharbour-api/internal/pkg/metrics"
	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"
)

// Task is a named unit of periodic work
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler runs tasks on fixed intervals. A task never overlaps with itself.
type Scheduler struct {
	sched   gocron.Scheduler
	logger  *logrus.Entry
	metrics *metrics.Metrics
	timeout time.Duration

	mu    sync.Mutex
	tasks map[string]Task

	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates a stopped scheduler
func NewScheduler(logger *logrus.Entry, m *metrics.Metrics) (*Scheduler, error) {
	sched, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		sched:   sched,
		logger:  logger,
		metrics: m,
		timeout: 10 * time.Minute,
		tasks:   map[string]Task{},
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Register adds a task. Tasks with a non-positive interval are skipped.
func (s *Scheduler) Register(t Task) error {
	if t.Interval <= 0 {
		s.logger.WithField("job", t.Name).Info("job disabled")
		return nil
	}

	s.mu.Lock()
	if _, dup := s.tasks[t.Name]; dup {
		s.mu.Unlock()
		return fmt.Errorf("job %q already registered", t.Name)
	}
	s.tasks[t.Name] = t
	s.mu.Unlock()

	_, err := s.sched.NewJob(
		gocron.DurationJob(t.Interval),
		gocron.NewTask(func() {
			_ = s.execute(s.ctx, t)
		}),
		gocron.WithName(t.Name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule job %q: %w", t.Name, err)
	}

	s.logger.WithFields(logrus.Fields{"job": t.Name, "interval": t.Interval.String()}).Info("job scheduled")
	return nil
}

// Start begins running registered tasks
func (s *Scheduler) Start() {
	s.sched.Start()
	s.logger.WithField("jobs", len(s.tasks)).Info("scheduler started")
}

// RunNow executes a registered task immediately on the caller's goroutine
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	t, ok := s.tasks[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("job %q not registered", name)
	}
	return s.execute(ctx, t)
}

// Shutdown cancels running tasks and waits for them to return
func (s *Scheduler) Shutdown() error {
	s.cancel()
	if err := s.sched.Shutdown(); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}
	s.logger.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) execute(parent context.Context, t Task) (err error) {
	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()

	log := s.logger.WithField("job", t.Name)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
		elapsed := time.Since(start)
		s.metrics.JobRun(t.Name, elapsed, err)
		if err != nil {
			log.WithError(err).WithField("duration", elapsed.String()).Error("job failed")
			return
		}
		log.WithField("duration", elapsed.String()).Debug("job finished")
	}()

	log.Debug("job started")
	return t.Run(ctx)
}
