package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"testing"
	"time"

	"billsplit_bot/internal/domain/messenger"
	"billsplit_bot/internal/domain/request"
	"billsplit_bot/internal/domain/transaction"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// fakeRequestRepo is an in-memory request.Repository. Requests are held
// by pointer, so service-side mutations are visible to assertions.
type fakeRequestRepo struct {
	requests []*request.PaymentRequest

	findActiveErr error
	appendErr     error

	appendCalls          int
	reminderScheduleLog  []reminderScheduleCall
	participantStateLog  []uuid.UUID
	recordedPayments     []recordedPayment
	updatedParticipants  []*request.Participant
	updatedTotal         decimal.Decimal
	updateTotalCallCount int
}

type reminderScheduleCall struct {
	cycleID      uuid.UUID
	nextReminder sql.NullTime
	count        int
}

type recordedPayment struct {
	cycleParticipantID uuid.UUID
	amount             decimal.Decimal
	manual             bool
}

func (f *fakeRequestRepo) Create(ctx context.Context, req *request.PaymentRequest) error {
	f.requests = append(f.requests, req)
	return nil
}

func (f *fakeRequestRepo) GetByID(ctx context.Context, id uuid.UUID) (*request.PaymentRequest, error) {
	for _, req := range f.requests {
		if req.ID == id {
			return req, nil
		}
	}
	return nil, fmt.Errorf("payment request not found")
}

func (f *fakeRequestRepo) ListAll(ctx context.Context) ([]*request.PaymentRequest, error) {
	return f.requests, nil
}

func (f *fakeRequestRepo) ListByOwner(ctx context.Context, ownerChatID int64) ([]*request.PaymentRequest, error) {
	var out []*request.PaymentRequest
	for _, req := range f.requests {
		if req.OwnerChatID == ownerChatID {
			out = append(out, req)
		}
	}
	return out, nil
}

func (f *fakeRequestRepo) SetPaused(ctx context.Context, id uuid.UUID, paused bool) error {
	req, err := f.GetByID(ctx, id)
	if err != nil {
		return err
	}
	req.Paused = paused
	return nil
}

func (f *fakeRequestRepo) FindActiveRecurring(ctx context.Context) ([]*request.PaymentRequest, error) {
	if f.findActiveErr != nil {
		return nil, f.findActiveErr
	}
	var out []*request.PaymentRequest
	for _, req := range f.requests {
		if req.IsRecurring && !req.Paused && !req.Deleted {
			out = append(out, req)
		}
	}
	return out, nil
}

func (f *fakeRequestRepo) FindDueForReminder(ctx context.Context, now time.Time) ([]*request.PaymentRequest, error) {
	var out []*request.PaymentRequest
	for _, req := range f.requests {
		if req.Paused || req.Deleted {
			continue
		}
		for _, c := range req.Cycles {
			if c.NextReminderDate.Valid && !c.NextReminderDate.Time.After(now) {
				out = append(out, req)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeRequestRepo) AppendCycleAndAdvance(ctx context.Context, requestID uuid.UUID, cycle *request.Cycle, lastSent, nextDue time.Time) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appendCalls++
	req, err := f.GetByID(ctx, requestID)
	if err != nil {
		return err
	}
	req.Cycles = append(req.Cycles, cycle)
	req.LastSent = sql.NullTime{Time: lastSent, Valid: true}
	req.NextDue = sql.NullTime{Time: nextDue, Valid: true}
	return nil
}

func (f *fakeRequestRepo) UpdateCycleReminderSchedule(ctx context.Context, requestID, cycleID uuid.UUID, nextReminder sql.NullTime, reminderCycleCount int) error {
	f.reminderScheduleLog = append(f.reminderScheduleLog, reminderScheduleCall{
		cycleID:      cycleID,
		nextReminder: nextReminder,
		count:        reminderCycleCount,
	})
	return nil
}

func (f *fakeRequestRepo) UpdateCycleParticipantReminderState(ctx context.Context, requestID, cycleID, cycleParticipantID uuid.UUID, sentAt time.Time) error {
	f.participantStateLog = append(f.participantStateLog, cycleParticipantID)
	return nil
}

func (f *fakeRequestRepo) RecordParticipantPayment(ctx context.Context, cycleParticipantID uuid.UUID, amount decimal.Decimal, paidAt time.Time, manual bool) error {
	f.recordedPayments = append(f.recordedPayments, recordedPayment{
		cycleParticipantID: cycleParticipantID,
		amount:             amount,
		manual:             manual,
	})
	for _, req := range f.requests {
		for _, c := range req.Cycles {
			for _, cp := range c.Participants {
				if cp.ID == cycleParticipantID {
					cp.PaidAmount = amount
					cp.PaidDate = sql.NullTime{Time: paidAt, Valid: true}
					cp.ManualPaid = manual
					return nil
				}
			}
		}
	}
	return fmt.Errorf("cycle participant not found")
}

func (f *fakeRequestRepo) FindCycleParticipantRef(ctx context.Context, cycleParticipantID uuid.UUID) (*request.CycleParticipantRef, error) {
	for _, req := range f.requests {
		for _, c := range req.Cycles {
			for _, cp := range c.Participants {
				if cp.ID == cycleParticipantID {
					return &request.CycleParticipantRef{
						RequestID:          req.ID,
						CycleID:            c.ID,
						ParticipantID:      cp.ParticipantID,
						CycleParticipantID: cp.ID,
					}, nil
				}
			}
		}
	}
	return nil, fmt.Errorf("cycle participant not found")
}

func (f *fakeRequestRepo) UpdateParticipantsAndTotal(ctx context.Context, requestID uuid.UUID, participants []*request.Participant, total decimal.Decimal) error {
	f.updateTotalCallCount++
	f.updatedParticipants = participants
	f.updatedTotal = total
	return nil
}

// fakeMessenger records every attempted send; failFor contains chat IDs
// whose sends should fail.
type fakeMessenger struct {
	sent    []messenger.CycleContext
	failFor map[int64]bool
}

func (f *fakeMessenger) Send(ctx context.Context, msg messenger.CycleContext) error {
	if f.failFor[msg.RecipientChatID] {
		return fmt.Errorf("send to %d failed", msg.RecipientChatID)
	}
	f.sent = append(f.sent, msg)
	return nil
}

// fakeTxSource serves a canned transaction list.
type fakeTxSource struct {
	records []transaction.Record
	err     error

	lastAccountID string
	lastStart     time.Time
	lastEnd       time.Time
}

func (f *fakeTxSource) Fetch(ctx context.Context, accountID string, start, end time.Time) ([]transaction.Record, error) {
	f.lastAccountID = accountID
	f.lastStart = start
	f.lastEnd = end
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

// mustDecimal converts a literal in tests, failing fast on typos.
func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal literal %q: %v", s, err)
	}
	return d
}
