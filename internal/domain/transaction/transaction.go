// internal/domain/transaction/transaction.go
package transaction

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Record is one charge observed on a linked bank account.
type Record struct {
	Date      time.Time
	Amount    decimal.Decimal
	PayeeName string
	AccountID string
}

// Source provides historical transactions for a linked account over a date
// window. Pagination against the upstream aggregator is the
// implementation's concern.
type Source interface {
	Fetch(ctx context.Context, accountID string, start, end time.Time) ([]Record, error)
}
