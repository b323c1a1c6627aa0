package app

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"billsplit_bot/internal/domain/request"
	"billsplit_bot/internal/domain/schedule"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type fakeResolver struct {
	err   error
	calls int
}

func (f *fakeResolver) Resolve(ctx context.Context, req *request.PaymentRequest, now time.Time) ([]*request.Participant, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return req.Participants, nil
}

func fixedRequest(freq schedule.Frequency, participants ...*request.Participant) *request.PaymentRequest {
	return &request.PaymentRequest{
		ID:           uuid.New(),
		OwnerChatID:  100,
		OwnerName:    "Alice",
		Title:        "Rent",
		Amount:       decimal.NewNullDecimal(decimal.NewFromInt(2000)),
		Frequency:    freq,
		IsRecurring:  true,
		SplitType:    request.SplitEqual,
		Participants: participants,
	}
}

func monthly() schedule.Frequency { return schedule.Frequency{Kind: schedule.KindMonthly} }

func TestNeverSentRequestFiresOnFirstTick(t *testing.T) {
	p1 := &request.Participant{ID: uuid.New(), Name: "Bob", ChatID: 200}
	p2 := &request.Participant{ID: uuid.New(), Name: "Carol", ChatID: 300}
	req := fixedRequest(monthly(), p1, p2)

	repo := &fakeRequestRepo{requests: []*request.PaymentRequest{req}}
	mc := &fakeMessenger{}
	svc := NewRecurringService(repo, &fakeResolver{}, mc, 0, testLogger())

	now := date(2024, 1, 31)
	stats, err := svc.ProcessRecurringRequests(context.Background(), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Processed != 1 || stats.Sent != 2 || stats.Errors != 0 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if repo.appendCalls != 1 {
		t.Fatalf("expected one persisted cycle, got %d", repo.appendCalls)
	}

	if len(req.Cycles) != 1 {
		t.Fatalf("expected request to carry 1 cycle, got %d", len(req.Cycles))
	}
	cycle := req.Cycles[0]
	// Due a month out, clamped: Jan 31 + 1 month = Feb 29 (2024 is a leap year).
	if want := date(2024, 2, 29); !cycle.DueDate.Equal(want) {
		t.Errorf("cycle due date = %v, want %v", cycle.DueDate, want)
	}
	if !req.LastSent.Valid || !req.LastSent.Time.Equal(now) {
		t.Errorf("last sent = %v, want %v", req.LastSent, now)
	}
	if !req.NextDue.Valid || !req.NextDue.Time.Equal(date(2024, 2, 29)) {
		t.Errorf("next due = %v, want 2024-02-29", req.NextDue)
	}

	// Each participant gets their own payment ref tied to a cycle
	// participant row.
	if len(mc.sent) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(mc.sent))
	}
	refs := map[string]bool{}
	for _, msg := range mc.sent {
		refs[msg.PaymentRef] = true
		if !msg.AmountOwed.Equal(decimal.NewFromInt(1000)) {
			t.Errorf("amount owed = %s, want 1000", msg.AmountOwed)
		}
		if msg.Reminder {
			t.Error("initial dispatch must not be flagged as a reminder")
		}
	}
	if len(refs) != 2 {
		t.Error("payment refs must be distinct per participant")
	}
	for _, cp := range cycle.Participants {
		if !refs[cp.ID.String()] {
			t.Errorf("cycle participant %s has no corresponding message ref", cp.ID)
		}
	}
}

func TestSecondPassInSameTickAddsNoCycle(t *testing.T) {
	p := &request.Participant{ID: uuid.New(), Name: "Bob", ChatID: 200}
	req := fixedRequest(monthly(), p)

	repo := &fakeRequestRepo{requests: []*request.PaymentRequest{req}}
	mc := &fakeMessenger{}
	svc := NewRecurringService(repo, &fakeResolver{}, mc, 0, testLogger())

	now := date(2024, 1, 1)
	if _, err := svc.ProcessRecurringRequests(context.Background(), now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.appendCalls != 1 {
		t.Fatalf("expected one cycle after the first pass, got %d", repo.appendCalls)
	}

	// Re-running at the same instant must be a no-op: the advanced next
	// due date is a month out.
	stats, err := svc.ProcessRecurringRequests(context.Background(), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.appendCalls != 1 {
		t.Errorf("second pass in the same tick added cycles: appends=%d", repo.appendCalls)
	}
	if stats.Sent != 0 || len(mc.sent) != 1 {
		t.Errorf("second pass must not re-send; stats=%+v total sent=%d", stats, len(mc.sent))
	}
	if len(req.Cycles) != 1 {
		t.Errorf("request carries %d cycles, want 1", len(req.Cycles))
	}
}

func TestFutureNextDueDoesNotFire(t *testing.T) {
	p := &request.Participant{ID: uuid.New(), Name: "Bob", ChatID: 200}
	req := fixedRequest(monthly(), p)
	req.LastSent = sql.NullTime{Time: date(2024, 1, 1), Valid: true}
	req.NextDue = sql.NullTime{Time: date(2024, 2, 1), Valid: true}

	repo := &fakeRequestRepo{requests: []*request.PaymentRequest{req}}
	mc := &fakeMessenger{}
	svc := NewRecurringService(repo, &fakeResolver{}, mc, 0, testLogger())

	stats, err := svc.ProcessRecurringRequests(context.Background(), date(2024, 1, 15))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Sent != 0 || repo.appendCalls != 0 {
		t.Errorf("nothing should fire before next due; stats=%+v appends=%d", stats, repo.appendCalls)
	}
}

func TestDueWithinLeniencyFires(t *testing.T) {
	p := &request.Participant{ID: uuid.New(), Name: "Bob", ChatID: 200}
	req := fixedRequest(monthly(), p)
	nextDue := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	req.LastSent = sql.NullTime{Time: date(2024, 1, 1), Valid: true}
	req.NextDue = sql.NullTime{Time: nextDue, Valid: true}

	repo := &fakeRequestRepo{requests: []*request.PaymentRequest{req}}
	mc := &fakeMessenger{}
	svc := NewRecurringService(repo, &fakeResolver{}, mc, 2*time.Hour, testLogger())

	// 90 minutes early, inside the leniency window.
	now := nextDue.Add(-90 * time.Minute)
	stats, err := svc.ProcessRecurringRequests(context.Background(), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Sent != 1 || repo.appendCalls != 1 {
		t.Errorf("expected early fire inside leniency; stats=%+v appends=%d", stats, repo.appendCalls)
	}
	// The new due date advances from the old one, not from now.
	if want := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC); !req.Cycles[0].DueDate.Equal(want) {
		t.Errorf("cycle due date = %v, want %v", req.Cycles[0].DueDate, want)
	}
}

func TestFutureStartDateHoldsFirstDispatch(t *testing.T) {
	p := &request.Participant{ID: uuid.New(), Name: "Bob", ChatID: 200}
	req := fixedRequest(monthly(), p)
	req.StartDate = sql.NullTime{Time: date(2024, 3, 1), Valid: true}

	repo := &fakeRequestRepo{requests: []*request.PaymentRequest{req}}
	mc := &fakeMessenger{}
	svc := NewRecurringService(repo, &fakeResolver{}, mc, 0, testLogger())

	stats, err := svc.ProcessRecurringRequests(context.Background(), date(2024, 2, 15))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Sent != 0 || repo.appendCalls != 0 {
		t.Errorf("request must not fire before its start date; stats=%+v", stats)
	}

	// On the start day it fires.
	stats, err = svc.ProcessRecurringRequests(context.Background(), date(2024, 3, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Sent != 1 || repo.appendCalls != 1 {
		t.Errorf("request must fire once the start date arrives; stats=%+v", stats)
	}
}

func TestSendFailureStillAdvancesRequest(t *testing.T) {
	p1 := &request.Participant{ID: uuid.New(), Name: "Bob", ChatID: 200}
	p2 := &request.Participant{ID: uuid.New(), Name: "Carol", ChatID: 300}
	req := fixedRequest(monthly(), p1, p2)

	repo := &fakeRequestRepo{requests: []*request.PaymentRequest{req}}
	mc := &fakeMessenger{failFor: map[int64]bool{200: true}}
	svc := NewRecurringService(repo, &fakeResolver{}, mc, 0, testLogger())

	stats, err := svc.ProcessRecurringRequests(context.Background(), date(2024, 1, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Sent != 1 || stats.Errors != 1 {
		t.Errorf("expected 1 sent and 1 error, got %+v", stats)
	}
	if repo.appendCalls != 1 {
		t.Error("a partial send failure must not block cycle persistence")
	}
	// The cycle still tracks both participants so reminders can catch the
	// one whose message failed.
	if len(req.Cycles[0].Participants) != 2 {
		t.Errorf("cycle participant count = %d, want 2", len(req.Cycles[0].Participants))
	}
}

func TestPersistFailureCountedWithoutAbortingPass(t *testing.T) {
	p := &request.Participant{ID: uuid.New(), Name: "Bob", ChatID: 200}
	req := fixedRequest(monthly(), p)

	repo := &fakeRequestRepo{requests: []*request.PaymentRequest{req}, appendErr: context.DeadlineExceeded}
	svc := NewRecurringService(repo, &fakeResolver{}, &fakeMessenger{}, 0, testLogger())

	stats, err := svc.ProcessRecurringRequests(context.Background(), date(2024, 1, 1))
	if err != nil {
		t.Fatalf("a per-request persist failure must not abort the pass: %v", err)
	}
	if stats.Errors == 0 {
		t.Error("persist failure must be counted")
	}
	if req.LastSent.Valid || req.NextDue.Valid {
		t.Error("in-memory request state must not advance when persistence fails")
	}
}

func TestDynamicResolutionFailureSkipsRequest(t *testing.T) {
	p := &request.Participant{ID: uuid.New(), Name: "Bob", ChatID: 200}
	req := fixedRequest(monthly(), p)
	req.IsDynamic = true
	req.LinkedAccountID = sql.NullString{String: "acct-1", Valid: true}

	repo := &fakeRequestRepo{requests: []*request.PaymentRequest{req}}
	mc := &fakeMessenger{}
	resolver := &fakeResolver{err: ErrNoMatchingCharge}
	svc := NewRecurringService(repo, resolver, mc, 0, testLogger())

	stats, err := svc.ProcessRecurringRequests(context.Background(), date(2024, 1, 1))
	if err != nil {
		t.Fatalf("pass error should stay nil for per-request failures: %v", err)
	}
	if resolver.calls != 1 {
		t.Errorf("resolver calls = %d, want 1", resolver.calls)
	}
	if stats.Errors != 1 || stats.Sent != 0 || repo.appendCalls != 0 {
		t.Errorf("failed resolution must skip dispatch and persistence; stats=%+v appends=%d", stats, repo.appendCalls)
	}
}

func TestRepositoryFetchFailureAbortsPass(t *testing.T) {
	repo := &fakeRequestRepo{findActiveErr: context.DeadlineExceeded}
	svc := NewRecurringService(repo, &fakeResolver{}, &fakeMessenger{}, 0, testLogger())

	if _, err := svc.ProcessRecurringRequests(context.Background(), date(2024, 1, 1)); err == nil {
		t.Fatal("a failed top-level fetch must abort the pass with an error")
	}
}

func TestReminderScheduleSeededOnDispatch(t *testing.T) {
	p := &request.Participant{ID: uuid.New(), Name: "Bob", ChatID: 200}
	req := fixedRequest(monthly(), p)
	req.ReminderFrequency = request.ReminderDaily

	repo := &fakeRequestRepo{requests: []*request.PaymentRequest{req}}
	svc := NewRecurringService(repo, &fakeResolver{}, &fakeMessenger{}, 0, testLogger())

	now := date(2024, 1, 1)
	if _, err := svc.ProcessRecurringRequests(context.Background(), now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cycle := req.Cycles[0]
	if !cycle.NextReminderDate.Valid {
		t.Fatal("daily reminder frequency should seed a first reminder date")
	}
	if want := date(2024, 1, 2); !cycle.NextReminderDate.Time.Equal(want) {
		t.Errorf("first reminder = %v, want %v", cycle.NextReminderDate.Time, want)
	}
}

func TestNoReminderScheduleWhenFrequencyNone(t *testing.T) {
	p := &request.Participant{ID: uuid.New(), Name: "Bob", ChatID: 200}
	req := fixedRequest(monthly(), p)
	req.ReminderFrequency = request.ReminderNone

	repo := &fakeRequestRepo{requests: []*request.PaymentRequest{req}}
	svc := NewRecurringService(repo, &fakeResolver{}, &fakeMessenger{}, 0, testLogger())

	if _, err := svc.ProcessRecurringRequests(context.Background(), date(2024, 1, 1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Cycles[0].NextReminderDate.Valid {
		t.Error("reminder frequency none must leave the reminder date null")
	}
}
