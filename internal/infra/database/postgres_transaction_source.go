// internal/infra/database/postgres_transaction_source.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"billsplit_bot/internal/domain/transaction"
)

// PostgresTransactionSource reads the synced transaction feed. Rows are
// written by an external bank-sync process; this side only queries.
type PostgresTransactionSource struct {
	db *sql.DB
}

func NewPostgresTransactionSource(db *sql.DB) *PostgresTransactionSource {
	return &PostgresTransactionSource{db: db}
}

func (s *PostgresTransactionSource) Fetch(ctx context.Context, accountID string, start, end time.Time) ([]transaction.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT txn_date, amount, payee_name, account_id
		 FROM synced_transactions
		 WHERE account_id = $1 AND txn_date >= $2 AND txn_date <= $3
		 ORDER BY txn_date`,
		accountID, start, end)
	if err != nil {
		return nil, fmt.Errorf("error querying synced transactions: %w", err)
	}
	defer rows.Close()

	records := make([]transaction.Record, 0)
	for rows.Next() {
		rec := transaction.Record{}
		if err := rows.Scan(&rec.Date, &rec.Amount, &rec.PayeeName, &rec.AccountID); err != nil {
			return nil, fmt.Errorf("error scanning transaction row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transaction rows: %w", err)
	}
	return records, nil
}
