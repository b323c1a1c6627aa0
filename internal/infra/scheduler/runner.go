package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"billsplit_bot/internal/app"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// ErrRunInFlight is returned when a pass is requested while another pass
// is still running. Ticks that hit this are skipped, not queued.
var ErrRunInFlight = fmt.Errorf("scheduler pass already in flight")

// RecurringDispatcher processes requests whose next due moment has arrived.
type RecurringDispatcher interface {
	ProcessRecurringRequests(ctx context.Context, now time.Time) (app.RunStats, error)
}

// ReminderDispatcher processes cycles whose reminder moment has arrived.
type ReminderDispatcher interface {
	ProcessDueReminders(ctx context.Context, now time.Time) (app.RunStats, error)
}

// RunMetrics is a snapshot of the runner's state for the admin surface.
type RunMetrics struct {
	Active          bool
	LastRunStart    time.Time
	LastRunEnd      time.Time
	LastRunDuration time.Duration
	Processed       int
	Sent            int
	Errors          int
	LastError       string
	CompletedRuns   int
}

// Runner drives both dispatchers off cron schedules. At most one pass is
// in flight at any moment, shared across the cron ticks and RunNow.
type Runner struct {
	cronEngine        *cron.Cron
	recurring         RecurringDispatcher
	reminders         ReminderDispatcher
	logger            *logrus.Entry
	cronSpecRecurring string
	cronSpecReminder  string
	passTimeout       time.Duration
	clock             func() time.Time

	inFlight atomic.Bool
	mu       sync.Mutex
	metrics  RunMetrics
}

func NewRunner(
	recurring RecurringDispatcher,
	reminders ReminderDispatcher,
	logger *logrus.Entry,
	cronSpecRecurring string,
	cronSpecReminder string,
) *Runner {
	return &Runner{
		cronEngine:        cron.New(cron.WithLocation(time.UTC)),
		recurring:         recurring,
		reminders:         reminders,
		logger:            logger,
		cronSpecRecurring: cronSpecRecurring,
		cronSpecReminder:  cronSpecReminder,
		passTimeout:       5 * time.Minute,
		clock:             time.Now,
	}
}

// WithClock overrides the runner's time source. For tests.
func (r *Runner) WithClock(clock func() time.Time) *Runner {
	r.clock = clock
	return r
}

func (r *Runner) Start() error {
	_, err := r.cronEngine.AddFunc(r.cronSpecRecurring, func() {
		if err := r.runPass("recurring", r.recurringPass); err == ErrRunInFlight {
			r.logger.Warn("Recurring tick skipped: previous pass still running")
		}
	})
	if err != nil {
		return fmt.Errorf("could not add recurring dispatch cron job: %w", err)
	}

	_, err = r.cronEngine.AddFunc(r.cronSpecReminder, func() {
		if err := r.runPass("reminder", r.reminderPass); err == ErrRunInFlight {
			r.logger.Warn("Reminder tick skipped: previous pass still running")
		}
	})
	if err != nil {
		return fmt.Errorf("could not add reminder dispatch cron job: %w", err)
	}

	r.cronEngine.Start()
	r.logger.WithFields(logrus.Fields{
		"recurring_spec": r.cronSpecRecurring,
		"reminder_spec":  r.cronSpecReminder,
	}).Info("Scheduler runner started")
	return nil
}

func (r *Runner) Stop() {
	r.logger.Info("Stopping scheduler runner...")
	ctx := r.cronEngine.Stop()
	<-ctx.Done()
	r.logger.Info("Scheduler runner stopped")
}

// RunNow executes both passes back-to-back under a single in-flight
// guard. Used by the admin /run_now command.
func (r *Runner) RunNow() (app.RunStats, error) {
	var stats app.RunStats
	err := r.runPass("manual", func(ctx context.Context, now time.Time) (app.RunStats, error) {
		recStats, recErr := r.recurring.ProcessRecurringRequests(ctx, now)
		stats.Merge(recStats)
		remStats, remErr := r.reminders.ProcessDueReminders(ctx, now)
		stats.Merge(remStats)
		if recErr != nil {
			return stats, recErr
		}
		return stats, remErr
	})
	return stats, err
}

// Status returns a copy of the current metrics.
func (r *Runner) Status() RunMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.metrics
	m.Active = r.inFlight.Load()
	return m
}

func (r *Runner) recurringPass(ctx context.Context, now time.Time) (app.RunStats, error) {
	return r.recurring.ProcessRecurringRequests(ctx, now)
}

func (r *Runner) reminderPass(ctx context.Context, now time.Time) (app.RunStats, error) {
	return r.reminders.ProcessDueReminders(ctx, now)
}

func (r *Runner) runPass(name string, pass func(context.Context, time.Time) (app.RunStats, error)) error {
	if !r.inFlight.CompareAndSwap(false, true) {
		return ErrRunInFlight
	}
	defer r.inFlight.Store(false)

	start := r.clock()
	r.mu.Lock()
	r.metrics.LastRunStart = start
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), r.passTimeout)
	defer cancel()

	stats, err := pass(ctx, start)
	end := r.clock()

	r.mu.Lock()
	r.metrics.LastRunEnd = end
	r.metrics.LastRunDuration = end.Sub(start)
	r.metrics.Processed = stats.Processed
	r.metrics.Sent = stats.Sent
	r.metrics.Errors = stats.Errors
	if err != nil {
		r.metrics.LastError = err.Error()
	} else {
		r.metrics.LastError = ""
		r.metrics.CompletedRuns++
	}
	r.mu.Unlock()

	logger := r.logger.WithFields(logrus.Fields{
		"pass":      name,
		"processed": stats.Processed,
		"sent":      stats.Sent,
		"errors":    stats.Errors,
		"duration":  end.Sub(start).String(),
	})
	if err != nil {
		logger.WithError(err).Error("Scheduler pass failed")
		return err
	}
	logger.Info("Scheduler pass completed")
	return nil
}
