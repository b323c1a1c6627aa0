// internal/infra/database/postgres_request_repository.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"billsplit_bot/internal/domain/request"
	"billsplit_bot/internal/domain/schedule"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Custom errors specific to the request repository
var ErrRequestNotFound = fmt.Errorf("payment request not found")
var ErrCycleNotFound = fmt.Errorf("payment cycle not found")
var ErrCycleParticipantNotFound = fmt.Errorf("cycle participant not found")

type PostgresRequestRepository struct {
	db *sql.DB
}

func NewPostgresRequestRepository(db *sql.DB) *PostgresRequestRepository {
	return &PostgresRequestRepository{db: db}
}

const requestColumns = `id, owner_chat_id, owner_name, title, amount,
	freq_kind, freq_count, freq_unit, is_recurring, is_dynamic, split_type,
	reminder_frequency, linked_account_id, start_date, last_sent, next_due,
	paused, deleted, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRequest(row rowScanner) (*request.PaymentRequest, error) {
	req := request.PaymentRequest{}
	var freqKind, freqUnit string
	err := row.Scan(
		&req.ID, &req.OwnerChatID, &req.OwnerName, &req.Title, &req.Amount,
		&freqKind, &req.Frequency.Count, &freqUnit, &req.IsRecurring,
		&req.IsDynamic, &req.SplitType, &req.ReminderFrequency,
		&req.LinkedAccountID, &req.StartDate, &req.LastSent, &req.NextDue,
		&req.Paused, &req.Deleted, &req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	req.Frequency.Kind = schedule.Kind(freqKind)
	req.Frequency.Unit = schedule.Unit(freqUnit)
	return &req, nil
}

// --- PaymentRequest methods ---

func (r *PostgresRequestRepository) Create(ctx context.Context, req *request.PaymentRequest) error {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}

	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for request create: %w", err)
	}
	defer txn.Rollback() // Rollback if not committed

	query := `INSERT INTO payment_requests
		(id, owner_chat_id, owner_name, title, amount, freq_kind, freq_count,
		 freq_unit, is_recurring, is_dynamic, split_type, reminder_frequency,
		 linked_account_id, start_date, last_sent, next_due, paused, deleted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING created_at, updated_at`
	err = txn.QueryRowContext(ctx, query,
		req.ID, req.OwnerChatID, req.OwnerName, req.Title, req.Amount,
		string(req.Frequency.Kind), req.Frequency.Count, string(req.Frequency.Unit),
		req.IsRecurring, req.IsDynamic, string(req.SplitType), string(req.ReminderFrequency),
		req.LinkedAccountID, req.StartDate, req.LastSent, req.NextDue,
		req.Paused, req.Deleted,
	).Scan(&req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error creating payment request: %w", err)
	}

	for _, p := range req.Participants {
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		p.RequestID = req.ID
		_, err = txn.ExecContext(ctx,
			`INSERT INTO request_participants (id, request_id, name, chat_id, share_amount, share_percent)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			p.ID, p.RequestID, p.Name, p.ChatID, p.ShareAmount, p.SharePercent,
		)
		if err != nil {
			return fmt.Errorf("error creating participant for request %s: %w", req.ID, err)
		}
	}

	return txn.Commit()
}

func (r *PostgresRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*request.PaymentRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM payment_requests WHERE id = $1`
	req, err := scanRequest(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("error getting payment request by ID: %w", err)
	}
	if req.Participants, err = r.loadParticipants(ctx, req.ID); err != nil {
		return nil, err
	}
	return req, nil
}

func (r *PostgresRequestRepository) listRequests(ctx context.Context, query string, args ...interface{}) ([]*request.PaymentRequest, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying payment requests: %w", err)
	}
	defer rows.Close()

	requests := make([]*request.PaymentRequest, 0)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning payment request row: %w", err)
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payment request rows: %w", err)
	}

	for _, req := range requests {
		if req.Participants, err = r.loadParticipants(ctx, req.ID); err != nil {
			return nil, err
		}
	}
	return requests, nil
}

func (r *PostgresRequestRepository) ListAll(ctx context.Context) ([]*request.PaymentRequest, error) {
	return r.listRequests(ctx,
		`SELECT `+requestColumns+` FROM payment_requests WHERE NOT deleted ORDER BY created_at`)
}

func (r *PostgresRequestRepository) ListByOwner(ctx context.Context, ownerChatID int64) ([]*request.PaymentRequest, error) {
	return r.listRequests(ctx,
		`SELECT `+requestColumns+` FROM payment_requests WHERE owner_chat_id = $1 AND NOT deleted ORDER BY created_at`,
		ownerChatID)
}

func (r *PostgresRequestRepository) SetPaused(ctx context.Context, id uuid.UUID, paused bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE payment_requests SET paused = $1, updated_at = NOW() WHERE id = $2`,
		paused, id)
	if err != nil {
		return fmt.Errorf("error updating paused flag: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading rows affected: %w", err)
	}
	if affected == 0 {
		return ErrRequestNotFound
	}
	return nil
}

func (r *PostgresRequestRepository) FindActiveRecurring(ctx context.Context) ([]*request.PaymentRequest, error) {
	return r.listRequests(ctx,
		`SELECT `+requestColumns+` FROM payment_requests
		 WHERE is_recurring AND NOT paused AND NOT deleted
		 ORDER BY created_at`)
}

func (r *PostgresRequestRepository) FindDueForReminder(ctx context.Context, now time.Time) ([]*request.PaymentRequest, error) {
	requests, err := r.listRequests(ctx,
		`SELECT DISTINCT r.id, r.owner_chat_id, r.owner_name, r.title, r.amount,
			r.freq_kind, r.freq_count, r.freq_unit, r.is_recurring, r.is_dynamic, r.split_type,
			r.reminder_frequency, r.linked_account_id, r.start_date, r.last_sent, r.next_due,
			r.paused, r.deleted, r.created_at, r.updated_at
		 FROM payment_requests r
		 JOIN payment_cycles c ON c.request_id = r.id
		 WHERE NOT r.paused AND NOT r.deleted
		   AND c.next_reminder_date IS NOT NULL AND c.next_reminder_date <= $1`,
		now)
	if err != nil {
		return nil, err
	}
	for _, req := range requests {
		if req.Cycles, err = r.loadDueCycles(ctx, req.ID, now); err != nil {
			return nil, err
		}
	}
	return requests, nil
}

func (r *PostgresRequestRepository) loadParticipants(ctx context.Context, requestID uuid.UUID) ([]*request.Participant, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, request_id, name, chat_id, share_amount, share_percent, created_at
		 FROM request_participants WHERE request_id = $1 ORDER BY created_at`,
		requestID)
	if err != nil {
		return nil, fmt.Errorf("error querying participants for request %s: %w", requestID, err)
	}
	defer rows.Close()

	participants := make([]*request.Participant, 0)
	for rows.Next() {
		p := request.Participant{}
		if err := rows.Scan(&p.ID, &p.RequestID, &p.Name, &p.ChatID, &p.ShareAmount, &p.SharePercent, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning participant row: %w", err)
		}
		participants = append(participants, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating participant rows: %w", err)
	}
	return participants, nil
}

func (r *PostgresRequestRepository) loadDueCycles(ctx context.Context, requestID uuid.UUID, now time.Time) ([]*request.Cycle, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, request_id, due_date, amount, next_reminder_date, reminder_cycle_count, created_at
		 FROM payment_cycles
		 WHERE request_id = $1 AND next_reminder_date IS NOT NULL AND next_reminder_date <= $2
		 ORDER BY created_at`,
		requestID, now)
	if err != nil {
		return nil, fmt.Errorf("error querying due cycles for request %s: %w", requestID, err)
	}
	defer rows.Close()

	cycles := make([]*request.Cycle, 0)
	for rows.Next() {
		c := request.Cycle{}
		if err := rows.Scan(&c.ID, &c.RequestID, &c.DueDate, &c.Amount, &c.NextReminderDate, &c.ReminderCycleCount, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning cycle row: %w", err)
		}
		cycles = append(cycles, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cycle rows: %w", err)
	}

	for _, c := range cycles {
		if c.Participants, err = r.loadCycleParticipants(ctx, c.ID); err != nil {
			return nil, err
		}
	}
	return cycles, nil
}

func (r *PostgresRequestRepository) loadCycleParticipants(ctx context.Context, cycleID uuid.UUID) ([]*request.CycleParticipant, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, cycle_id, participant_id, paid_amount, paid_date, reminder_sent, reminder_sent_date, manual_paid
		 FROM cycle_participants WHERE cycle_id = $1`,
		cycleID)
	if err != nil {
		return nil, fmt.Errorf("error querying cycle participants for cycle %s: %w", cycleID, err)
	}
	defer rows.Close()

	participants := make([]*request.CycleParticipant, 0)
	for rows.Next() {
		cp := request.CycleParticipant{}
		if err := rows.Scan(&cp.ID, &cp.CycleID, &cp.ParticipantID, &cp.PaidAmount, &cp.PaidDate, &cp.ReminderSent, &cp.ReminderSentDate, &cp.ManualPaid); err != nil {
			return nil, fmt.Errorf("error scanning cycle participant row: %w", err)
		}
		participants = append(participants, &cp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cycle participant rows: %w", err)
	}
	return participants, nil
}

// --- Cycle methods ---

func (r *PostgresRequestRepository) AppendCycleAndAdvance(ctx context.Context, requestID uuid.UUID, cycle *request.Cycle, lastSent, nextDue time.Time) error {
	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for cycle append: %w", err)
	}
	defer txn.Rollback() // Rollback if not committed

	if cycle.ID == uuid.Nil {
		cycle.ID = uuid.New()
	}
	cycle.RequestID = requestID

	_, err = txn.ExecContext(ctx,
		`INSERT INTO payment_cycles (id, request_id, due_date, amount, next_reminder_date, reminder_cycle_count, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		cycle.ID, cycle.RequestID, cycle.DueDate, cycle.Amount,
		cycle.NextReminderDate, cycle.ReminderCycleCount, cycle.CreatedAt)
	if err != nil {
		return fmt.Errorf("error inserting payment cycle: %w", err)
	}

	stmt, err := txn.PrepareContext(ctx,
		`INSERT INTO cycle_participants (id, cycle_id, participant_id, paid_amount, reminder_sent, manual_paid)
		 VALUES ($1, $2, $3, $4, $5, $6)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement for cycle participants: %w", err)
	}
	defer stmt.Close()

	for _, cp := range cycle.Participants {
		if cp.ID == uuid.Nil {
			cp.ID = uuid.New()
		}
		cp.CycleID = cycle.ID
		if _, err := stmt.ExecContext(ctx, cp.ID, cp.CycleID, cp.ParticipantID, cp.PaidAmount, cp.ReminderSent, cp.ManualPaid); err != nil {
			return fmt.Errorf("error inserting cycle participant %s: %w", cp.ID, err)
		}
	}

	res, err := txn.ExecContext(ctx,
		`UPDATE payment_requests SET last_sent = $1, next_due = $2, updated_at = NOW() WHERE id = $3`,
		lastSent, nextDue, requestID)
	if err != nil {
		return fmt.Errorf("error advancing request %s: %w", requestID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading rows affected: %w", err)
	}
	if affected == 0 {
		return ErrRequestNotFound
	}

	return txn.Commit()
}

func (r *PostgresRequestRepository) UpdateCycleReminderSchedule(ctx context.Context, requestID, cycleID uuid.UUID, nextReminder sql.NullTime, reminderCycleCount int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE payment_cycles SET next_reminder_date = $1, reminder_cycle_count = $2
		 WHERE id = $3 AND request_id = $4`,
		nextReminder, reminderCycleCount, cycleID, requestID)
	if err != nil {
		return fmt.Errorf("error updating cycle reminder schedule: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading rows affected: %w", err)
	}
	if affected == 0 {
		return ErrCycleNotFound
	}
	return nil
}

func (r *PostgresRequestRepository) UpdateCycleParticipantReminderState(ctx context.Context, requestID, cycleID, cycleParticipantID uuid.UUID, sentAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE cycle_participants cp SET reminder_sent = TRUE, reminder_sent_date = $1
		 FROM payment_cycles c
		 WHERE cp.id = $2 AND cp.cycle_id = c.id AND c.id = $3 AND c.request_id = $4`,
		sentAt, cycleParticipantID, cycleID, requestID)
	if err != nil {
		return fmt.Errorf("error updating cycle participant reminder state: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading rows affected: %w", err)
	}
	if affected == 0 {
		return ErrCycleParticipantNotFound
	}
	return nil
}

func (r *PostgresRequestRepository) RecordParticipantPayment(ctx context.Context, cycleParticipantID uuid.UUID, amount decimal.Decimal, paidAt time.Time, manual bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE cycle_participants SET paid_amount = $1, paid_date = $2, manual_paid = $3 WHERE id = $4`,
		amount, paidAt, manual, cycleParticipantID)
	if err != nil {
		return fmt.Errorf("error recording participant payment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading rows affected: %w", err)
	}
	if affected == 0 {
		return ErrCycleParticipantNotFound
	}
	return nil
}

func (r *PostgresRequestRepository) FindCycleParticipantRef(ctx context.Context, cycleParticipantID uuid.UUID) (*request.CycleParticipantRef, error) {
	ref := request.CycleParticipantRef{}
	err := r.db.QueryRowContext(ctx,
		`SELECT c.request_id, cp.cycle_id, cp.participant_id, cp.id
		 FROM cycle_participants cp
		 JOIN payment_cycles c ON cp.cycle_id = c.id
		 WHERE cp.id = $1`,
		cycleParticipantID).Scan(&ref.RequestID, &ref.CycleID, &ref.ParticipantID, &ref.CycleParticipantID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrCycleParticipantNotFound
		}
		return nil, fmt.Errorf("error resolving cycle participant ref: %w", err)
	}
	return &ref, nil
}

func (r *PostgresRequestRepository) UpdateParticipantsAndTotal(ctx context.Context, requestID uuid.UUID, participants []*request.Participant, total decimal.Decimal) error {
	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for participant update: %w", err)
	}
	defer txn.Rollback() // Rollback if not committed

	res, err := txn.ExecContext(ctx,
		`UPDATE payment_requests SET amount = $1, updated_at = NOW() WHERE id = $2`,
		total, requestID)
	if err != nil {
		return fmt.Errorf("error updating request total: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading rows affected: %w", err)
	}
	if affected == 0 {
		return ErrRequestNotFound
	}

	stmt, err := txn.PrepareContext(ctx,
		`UPDATE request_participants SET share_amount = $1, share_percent = $2
		 WHERE id = $3 AND request_id = $4`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement for participant update: %w", err)
	}
	defer stmt.Close()

	for _, p := range participants {
		if _, err := stmt.ExecContext(ctx, p.ShareAmount, p.SharePercent, p.ID, requestID); err != nil {
			return fmt.Errorf("error updating participant %s: %w", p.ID, err)
		}
	}

	return txn.Commit()
}
