// internal/app/recurring_service.go
package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"billsplit_bot/internal/domain/messenger"
	"billsplit_bot/internal/domain/request"
	"billsplit_bot/internal/domain/schedule"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// AmountResolver recomputes shares for dynamic requests before dispatch.
type AmountResolver interface {
	Resolve(ctx context.Context, req *request.PaymentRequest, now time.Time) ([]*request.Participant, error)
}

// RecurringService decides, per active request, whether an initial or
// recurring cycle is due; on fire it resolves the amount, builds the cycle,
// dispatches to every participant and advances the request's state.
type RecurringService struct {
	requestRepo request.Repository
	resolver    AmountResolver
	msgClient   messenger.Client
	leniency    time.Duration
	logger      *logrus.Entry
}

func NewRecurringService(repo request.Repository, resolver AmountResolver, mc messenger.Client, leniency time.Duration, logger *logrus.Entry) *RecurringService {
	if leniency <= 0 {
		leniency = schedule.DefaultLeniency
	}
	return &RecurringService{
		requestRepo: repo,
		resolver:    resolver,
		msgClient:   mc,
		leniency:    leniency,
		logger:      logger,
	}
}

// ProcessRecurringRequests runs one dispatch pass. A failing request is
// logged and counted and the pass continues with the next one; an error is
// returned only when the initial repository fetch fails and the whole pass
// must be abandoned.
func (s *RecurringService) ProcessRecurringRequests(ctx context.Context, now time.Time) (RunStats, error) {
	var stats RunStats
	requests, err := s.requestRepo.FindActiveRecurring(ctx)
	if err != nil {
		return stats, fmt.Errorf("listing active recurring requests: %w", err)
	}

	for _, req := range requests {
		stats.Processed++
		fired, reqStats, err := s.processOne(ctx, req, now)
		stats.Sent += reqStats.Sent
		stats.Errors += reqStats.Errors
		if err != nil {
			stats.Errors++
			s.logger.WithError(err).WithField("request_id", req.ID).Error("Recurring dispatch failed for request")
			continue
		}
		if fired {
			s.logger.WithFields(logrus.Fields{
				"request_id": req.ID,
				"next_due":   req.NextDue.Time.Format(time.RFC3339),
			}).Info("Cycle dispatched and request advanced")
		}
	}
	return stats, nil
}

// processOne handles a single request: due-check, amount resolution, cycle
// build, dispatch and persistence. fired is true when a cycle went out.
func (s *RecurringService) processOne(ctx context.Context, req *request.PaymentRequest, now time.Time) (bool, RunStats, error) {
	var stats RunStats

	var dueBasis time.Time
	if req.NeverSent() {
		if !req.StartReached(now) {
			return false, stats, nil
		}
		dueBasis = now
	} else {
		if !schedule.IsDue(req.NextDue, now, s.leniency) {
			return false, stats, nil
		}
		dueBasis = req.NextDue.Time
	}

	participants := req.Participants
	if req.IsDynamic {
		resolved, err := s.resolver.Resolve(ctx, req, now)
		if err != nil {
			// The request is skipped for this tick rather than dispatched
			// with a stale or incorrect amount.
			return false, stats, fmt.Errorf("resolving dynamic amount: %w", err)
		}
		participants = resolved
	}
	if len(participants) == 0 {
		return false, stats, fmt.Errorf("request %s has no participants", req.ID)
	}
	if !req.Amount.Valid {
		return false, stats, fmt.Errorf("request %s has no amount and no dynamic resolution", req.ID)
	}

	dueDate, err := schedule.NextDue(dueBasis, req.Frequency)
	if err != nil {
		return false, stats, fmt.Errorf("computing cycle due date: %w", err)
	}

	cycle := &request.Cycle{
		ID:        uuid.New(),
		RequestID: req.ID,
		DueDate:   dueDate,
		Amount:    req.Amount.Decimal,
		CreatedAt: now,
	}
	if freq, ok := req.ReminderFrequency.Frequency(); ok {
		if first, err := schedule.NextDue(now, freq); err == nil {
			cycle.NextReminderDate = sql.NullTime{Time: first, Valid: true}
		}
	}
	for _, p := range participants {
		cycle.Participants = append(cycle.Participants, &request.CycleParticipant{
			ID:            uuid.New(),
			CycleID:       cycle.ID,
			ParticipantID: p.ID,
			PaidAmount:    decimal.Zero,
		})
	}

	// Dispatch to every participant. One failed send is counted but never
	// blocks the remaining participants or the persistence step.
	for i, p := range participants {
		msg := messenger.CycleContext{
			RequestTitle:    req.Title,
			RequesterName:   req.OwnerName,
			RecipientChatID: p.ChatID,
			RecipientName:   p.Name,
			AmountOwed:      req.ExpectedShare(p),
			DueDate:         dueDate,
			PaymentRef:      cycle.Participants[i].ID.String(),
		}
		if err := s.msgClient.Send(ctx, msg); err != nil {
			stats.Errors++
			s.logger.WithError(err).WithFields(logrus.Fields{
				"request_id":     req.ID,
				"participant_id": p.ID,
			}).Error("Failed to send payment request message")
			continue
		}
		stats.Sent++
	}

	nextDue, err := schedule.NextDue(now, req.Frequency)
	if err != nil {
		return false, stats, fmt.Errorf("computing next due date: %w", err)
	}
	if err := s.requestRepo.AppendCycleAndAdvance(ctx, req.ID, cycle, now, nextDue); err != nil {
		return false, stats, fmt.Errorf("persisting cycle for request %s: %w", req.ID, err)
	}
	req.LastSent = sql.NullTime{Time: now, Valid: true}
	req.NextDue = sql.NullTime{Time: nextDue, Valid: true}
	req.Cycles = append(req.Cycles, cycle)
	return true, stats, nil
}
