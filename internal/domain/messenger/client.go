// internal/domain/messenger/client.go
package messenger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// CycleContext carries everything a transport needs to render one payment
// request or reminder message for a single participant.
type CycleContext struct {
	RequestTitle    string
	RequesterName   string
	RecipientChatID int64
	RecipientName   string
	AmountOwed      decimal.Decimal
	DueDate         time.Time
	// PaymentRef resolves back to the cycle participant when the recipient
	// acts on the message.
	PaymentRef string
	Reminder   bool
}

// Client sends payment request and reminder messages. This decouples the
// dispatchers from the concrete bot library; idempotency of delivery is the
// sender's responsibility.
type Client interface {
	Send(ctx context.Context, msg CycleContext) error
}
