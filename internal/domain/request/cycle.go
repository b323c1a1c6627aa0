// internal/domain/request/cycle.go
package request

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Cycle is one dispatched instance of a request ("a request went out").
// Corresponds to the 'payment_cycles' table. A cycle is immutable once
// created, except for its reminder scheduling fields and its participants'
// payment/reminder sub-fields.
type Cycle struct {
	ID        uuid.UUID
	RequestID uuid.UUID
	DueDate   time.Time
	Amount    decimal.Decimal
	// NextReminderDate null means reminders are off for this cycle.
	NextReminderDate   sql.NullTime
	ReminderCycleCount int
	CreatedAt          time.Time
	Participants       []*CycleParticipant
}

// CycleParticipant tracks one participant's payment and reminder state
// within a cycle.
type CycleParticipant struct {
	ID               uuid.UUID
	CycleID          uuid.UUID
	ParticipantID    uuid.UUID
	PaidAmount       decimal.Decimal
	PaidDate         sql.NullTime
	ReminderSent     bool
	ReminderSentDate sql.NullTime
	ManualPaid       bool
}

// TotalPaid sums all participant payments recorded for the cycle.
func (c *Cycle) TotalPaid() decimal.Decimal {
	total := decimal.Zero
	for _, p := range c.Participants {
		total = total.Add(p.PaidAmount)
	}
	return total
}

// FullyPaid reports whether recorded payments cover the cycle amount.
func (c *Cycle) FullyPaid() bool {
	return c.TotalPaid().GreaterThanOrEqual(c.Amount)
}
