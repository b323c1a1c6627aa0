// internal/domain/request/request.go
package request

import (
	"database/sql"
	"time"

	"billsplit_bot/internal/domain/schedule"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SplitType determines how a request's total is divided among participants.
type SplitType string

const (
	SplitEqual      SplitType = "equal"
	SplitPercentage SplitType = "percentage"
	// SplitCustom carries explicit per-participant amounts. Disallowed for
	// dynamic requests, whose total changes from cycle to cycle.
	SplitCustom SplitType = "custom"
)

// ReminderFrequency controls how often unpaid participants are nudged after
// a cycle goes out.
type ReminderFrequency string

const (
	ReminderNone    ReminderFrequency = "none"
	ReminderOnce    ReminderFrequency = "once"
	ReminderDaily   ReminderFrequency = "daily"
	ReminderWeekly  ReminderFrequency = "weekly"
	ReminderMonthly ReminderFrequency = "monthly"
)

// Frequency maps the reminder setting to a calendar frequency. A single
// "once" reminder is scheduled one day out; "none" has no schedule at all.
func (f ReminderFrequency) Frequency() (schedule.Frequency, bool) {
	switch f {
	case ReminderOnce, ReminderDaily:
		return schedule.Frequency{Kind: schedule.KindDaily}, true
	case ReminderWeekly:
		return schedule.Frequency{Kind: schedule.KindWeekly}, true
	case ReminderMonthly:
		return schedule.Frequency{Kind: schedule.KindMonthly}, true
	}
	return schedule.Frequency{}, false
}

// PaymentRequest is one shareable obligation owned by a single payer.
// Corresponds to the 'payment_requests' table.
type PaymentRequest struct {
	ID          uuid.UUID
	OwnerChatID int64
	OwnerName   string
	Title       string
	// Amount is the request total. Null for a dynamic request until its
	// first resolution against the transaction feed.
	Amount            decimal.NullDecimal
	Frequency         schedule.Frequency
	IsRecurring       bool
	IsDynamic         bool
	SplitType         SplitType
	ReminderFrequency ReminderFrequency
	// LinkedAccountID scopes the transaction feed lookups for dynamic
	// amount resolution and cadence inference.
	LinkedAccountID sql.NullString
	StartDate       sql.NullTime // null means "start now"
	LastSent        sql.NullTime
	NextDue         sql.NullTime
	Paused          bool
	Deleted         bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Participants    []*Participant
	Cycles          []*Cycle
}

// Participant is one person expected to cover a share of the request.
type Participant struct {
	ID           uuid.UUID
	RequestID    uuid.UUID
	Name         string
	ChatID       int64
	ShareAmount  decimal.NullDecimal
	SharePercent decimal.NullDecimal
	CreatedAt    time.Time
}

// ExpectedShare is the amount a participant is expected to pay for one
// cycle, from the stored share if present, otherwise derived from the
// request total and split type.
func (r *PaymentRequest) ExpectedShare(p *Participant) decimal.Decimal {
	if p.ShareAmount.Valid {
		return p.ShareAmount.Decimal
	}
	if !r.Amount.Valid || len(r.Participants) == 0 {
		return decimal.Zero
	}
	switch r.SplitType {
	case SplitPercentage:
		if !p.SharePercent.Valid {
			return decimal.Zero
		}
		return r.Amount.Decimal.Mul(p.SharePercent.Decimal).Div(decimal.NewFromInt(100)).Round(2)
	default:
		return r.Amount.Decimal.Div(decimal.NewFromInt(int64(len(r.Participants)))).Round(2)
	}
}

// NeverSent reports whether no cycle has ever been dispatched for this
// request.
func (r *PaymentRequest) NeverSent() bool {
	return !r.LastSent.Valid
}

// StartReached reports whether the configured start timing has arrived. A
// null start date means "now". The comparison is day-precision, not
// sub-day.
func (r *PaymentRequest) StartReached(now time.Time) bool {
	if !r.StartDate.Valid {
		return true
	}
	return !schedule.DateKey(now).Before(schedule.DateKey(r.StartDate.Time))
}
