// internal/domain/request/repository.go
package request

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Repository defines persistence operations for payment requests and their
// cycles. Methods touching more than one row are atomic.
type Repository interface {
	Create(ctx context.Context, req *PaymentRequest) error
	// GetByID loads a request with its participant list (cycles are loaded
	// by the finder methods that need them).
	GetByID(ctx context.Context, id uuid.UUID) (*PaymentRequest, error)
	ListAll(ctx context.Context) ([]*PaymentRequest, error)
	ListByOwner(ctx context.Context, ownerChatID int64) ([]*PaymentRequest, error)
	SetPaused(ctx context.Context, id uuid.UUID, paused bool) error

	// FindActiveRecurring returns non-paused, non-deleted recurring
	// requests with their participant lists loaded.
	FindActiveRecurring(ctx context.Context) ([]*PaymentRequest, error)

	// FindDueForReminder returns non-paused, non-deleted requests having at
	// least one cycle whose next reminder date is at or before now. Only
	// the due cycles are loaded, each with its cycle participants.
	FindDueForReminder(ctx context.Context, now time.Time) ([]*PaymentRequest, error)

	// AppendCycleAndAdvance inserts the cycle with its participants and
	// updates the request's lastSent/nextDue in a single transaction.
	AppendCycleAndAdvance(ctx context.Context, requestID uuid.UUID, cycle *Cycle, lastSent, nextDue time.Time) error

	// UpdateCycleReminderSchedule persists a cycle's reminder scheduling
	// fields in one write.
	UpdateCycleReminderSchedule(ctx context.Context, requestID, cycleID uuid.UUID, nextReminder sql.NullTime, reminderCycleCount int) error

	// UpdateCycleParticipantReminderState marks one cycle participant as
	// reminded, keyed by the composite (request, cycle, participant) id.
	UpdateCycleParticipantReminderState(ctx context.Context, requestID, cycleID, cycleParticipantID uuid.UUID, sentAt time.Time) error

	// RecordParticipantPayment records a payment against a cycle
	// participant.
	RecordParticipantPayment(ctx context.Context, cycleParticipantID uuid.UUID, amount decimal.Decimal, paidAt time.Time, manual bool) error

	// FindCycleParticipantRef resolves a cycle participant id back to its
	// owning request, cycle and participant. Used by payment-capture
	// callbacks whose payload can carry only one id.
	FindCycleParticipantRef(ctx context.Context, cycleParticipantID uuid.UUID) (*CycleParticipantRef, error)

	// UpdateParticipantsAndTotal atomically replaces participant share
	// amounts and the request total after a dynamic amount resolution.
	UpdateParticipantsAndTotal(ctx context.Context, requestID uuid.UUID, participants []*Participant, total decimal.Decimal) error
}

// CycleParticipantRef ties a cycle participant to its owning rows.
type CycleParticipantRef struct {
	RequestID          uuid.UUID
	CycleID            uuid.UUID
	ParticipantID      uuid.UUID
	CycleParticipantID uuid.UUID
}
