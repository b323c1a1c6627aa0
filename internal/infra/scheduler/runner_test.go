package scheduler

import (
	"context"
	"io"
	"testing"
	"time"

	"billsplit_bot/internal/app"

	"github.com/sirupsen/logrus"
)

type fakeRecurring struct {
	stats app.RunStats
	err   error
	calls int
}

func (f *fakeRecurring) ProcessRecurringRequests(ctx context.Context, now time.Time) (app.RunStats, error) {
	f.calls++
	return f.stats, f.err
}

type fakeReminders struct {
	stats app.RunStats
	err   error
	calls int
}

func (f *fakeReminders) ProcessDueReminders(ctx context.Context, now time.Time) (app.RunStats, error) {
	f.calls++
	return f.stats, f.err
}

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func TestRunNowAggregatesBothPasses(t *testing.T) {
	rec := &fakeRecurring{stats: app.RunStats{Processed: 3, Sent: 5, Errors: 1}}
	rem := &fakeReminders{stats: app.RunStats{Processed: 2, Sent: 2}}
	r := NewRunner(rec, rem, testLogger(), "*/10 * * * *", "*/5 * * * *")

	fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	r.WithClock(func() time.Time { return fixed })

	stats, err := r.RunNow()
	if err != nil {
		t.Fatalf("RunNow: unexpected error: %v", err)
	}
	if rec.calls != 1 || rem.calls != 1 {
		t.Errorf("expected one call per dispatcher, got recurring=%d reminders=%d", rec.calls, rem.calls)
	}
	if stats.Processed != 5 || stats.Sent != 7 || stats.Errors != 1 {
		t.Errorf("unexpected aggregated stats: %+v", stats)
	}

	m := r.Status()
	if m.Active {
		t.Error("runner should not be active after RunNow returns")
	}
	if m.CompletedRuns != 1 {
		t.Errorf("expected 1 completed run, got %d", m.CompletedRuns)
	}
	if m.Processed != 5 || m.Sent != 7 || m.Errors != 1 {
		t.Errorf("metrics should carry last pass counters, got %+v", m)
	}
	if !m.LastRunStart.Equal(fixed) || !m.LastRunEnd.Equal(fixed) {
		t.Errorf("metrics should use injected clock, got start=%v end=%v", m.LastRunStart, m.LastRunEnd)
	}
	if m.LastError != "" {
		t.Errorf("expected empty last error, got %q", m.LastError)
	}
}

func TestRunNowRejectedWhileInFlight(t *testing.T) {
	rec := &fakeRecurring{}
	rem := &fakeReminders{}
	r := NewRunner(rec, rem, testLogger(), "*/10 * * * *", "*/5 * * * *")

	r.inFlight.Store(true)
	if _, err := r.RunNow(); err != ErrRunInFlight {
		t.Fatalf("expected ErrRunInFlight, got %v", err)
	}
	if rec.calls != 0 || rem.calls != 0 {
		t.Errorf("dispatchers must not run while a pass is in flight, got recurring=%d reminders=%d", rec.calls, rem.calls)
	}

	if !r.Status().Active {
		t.Error("Status should report active while the flag is held")
	}
}

func TestPassErrorRecordedWithoutCountingCompletion(t *testing.T) {
	rec := &fakeRecurring{err: context.DeadlineExceeded}
	rem := &fakeReminders{}
	r := NewRunner(rec, rem, testLogger(), "*/10 * * * *", "*/5 * * * *")

	if err := r.runPass("recurring", r.recurringPass); err == nil {
		t.Fatal("expected pass error to propagate")
	}

	m := r.Status()
	if m.CompletedRuns != 0 {
		t.Errorf("failed pass must not count as completed, got %d", m.CompletedRuns)
	}
	if m.LastError == "" {
		t.Error("expected last error to be recorded")
	}

	// A later clean pass clears the error.
	rec.err = nil
	if err := r.runPass("recurring", r.recurringPass); err != nil {
		t.Fatalf("unexpected error on clean pass: %v", err)
	}
	m = r.Status()
	if m.LastError != "" {
		t.Errorf("clean pass should clear last error, got %q", m.LastError)
	}
	if m.CompletedRuns != 1 {
		t.Errorf("expected 1 completed run, got %d", m.CompletedRuns)
	}
}
