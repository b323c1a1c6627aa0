// internal/app/reminder_service.go
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

// ReminderService sends reminders for open cycles to still-owing
// participants and reschedules or permanently disables further reminders.
type ReminderService struct {
	requestRepo request.Repository
	msgClient   messenger.Client
	logger      *logrus.Entry
}

func NewReminderService(repo request.Repository, mc messenger.Client, logger *logrus.Entry) *ReminderService {
	return &ReminderService{
		requestRepo: repo,
		msgClient:   mc,
		logger:      logger,
	}
}

// ProcessDueReminders runs one reminder pass over every cycle whose next
// reminder date has arrived. A failing cycle is logged and counted; the
// pass continues. An error is returned only when the initial repository
// fetch fails.
func (s *ReminderService) ProcessDueReminders(ctx context.Context, now time.Time) (RunStats, error) {
	var stats RunStats
	requests, err := s.requestRepo.FindDueForReminder(ctx, now)
	if err != nil {
		return stats, fmt.Errorf("listing cycles due for reminder: %w", err)
	}

	for _, req := range requests {
		for _, cycle := range req.Cycles {
			if !cycle.NextReminderDate.Valid || cycle.NextReminderDate.Time.After(now) {
				continue
			}
			stats.Processed++
			cycleStats, err := s.processCycle(ctx, req, cycle, now)
			stats.Sent += cycleStats.Sent
			stats.Errors += cycleStats.Errors
			if err != nil {
				stats.Errors++
				s.logger.WithError(err).WithFields(logrus.Fields{
					"request_id": req.ID,
					"cycle_id":   cycle.ID,
				}).Error("Reminder processing failed for cycle")
			}
		}
	}
	return stats, nil
}

func (s *ReminderService) processCycle(ctx context.Context, req *request.PaymentRequest, cycle *request.Cycle, now time.Time) (RunStats, error) {
	var stats RunStats

	disable := func(reason string) error {
		s.logger.WithFields(logrus.Fields{
			"request_id": req.ID,
			"cycle_id":   cycle.ID,
			"reason":     reason,
		}).Info("Reminders disabled for cycle")
		if err := s.requestRepo.UpdateCycleReminderSchedule(ctx, req.ID, cycle.ID, sql.NullTime{}, cycle.ReminderCycleCount); err != nil {
			return fmt.Errorf("disabling reminders for cycle %s: %w", cycle.ID, err)
		}
		cycle.NextReminderDate = sql.NullTime{}
		return nil
	}

	if req.ReminderFrequency == request.ReminderNone {
		return stats, disable("reminder frequency is none")
	}
	if req.ReminderFrequency == request.ReminderOnce && cycle.ReminderCycleCount >= 1 {
		return stats, disable("single reminder already sent")
	}

	participantsByID := make(map[uuid.UUID]*request.Participant, len(req.Participants))
	for _, p := range req.Participants {
		participantsByID[p.ID] = p
	}

	type owingEntry struct {
		cp     *request.CycleParticipant
		person *request.Participant
		owed   decimal.Decimal
	}
	var owing []owingEntry
	for _, cp := range cycle.Participants {
		if cp.ManualPaid {
			continue
		}
		person, ok := participantsByID[cp.ParticipantID]
		if !ok {
			return stats, fmt.Errorf("cycle participant %s references unknown participant %s", cp.ID, cp.ParticipantID)
		}
		expected := req.ExpectedShare(person)
		if cp.PaidAmount.GreaterThanOrEqual(expected) {
			continue
		}
		owing = append(owing, owingEntry{cp: cp, person: person, owed: expected.Sub(cp.PaidAmount)})
	}
	if len(owing) == 0 {
		return stats, disable("no participant still owes")
	}

	sentAny := false
	for _, entry := range owing {
		msg := messenger.CycleContext{
			RequestTitle:    req.Title,
			RequesterName:   req.OwnerName,
			RecipientChatID: entry.person.ChatID,
			RecipientName:   entry.person.Name,
			AmountOwed:      entry.owed,
			DueDate:         cycle.DueDate,
			PaymentRef:      entry.cp.ID.String(),
			Reminder:        true,
		}
		if err := s.msgClient.Send(ctx, msg); err != nil {
			stats.Errors++
			s.logger.WithError(err).WithFields(logrus.Fields{
				"request_id":     req.ID,
				"cycle_id":       cycle.ID,
				"participant_id": entry.person.ID,
			}).Error("Failed to send reminder message")
			continue
		}
		stats.Sent++
		sentAny = true
		entry.cp.ReminderSent = true
		entry.cp.ReminderSentDate = sql.NullTime{Time: now, Valid: true}
		if err := s.requestRepo.UpdateCycleParticipantReminderState(ctx, req.ID, cycle.ID, entry.cp.ID, now); err != nil {
			stats.Errors++
			s.logger.WithError(err).WithFields(logrus.Fields{
				"cycle_participant_id": entry.cp.ID,
			}).Error("Failed to persist reminder state for cycle participant")
		}
	}

	count := cycle.ReminderCycleCount
	if sentAny {
		count++
	}

	var next sql.NullTime
	switch {
	case cycle.FullyPaid():
		// permanently off
	case req.ReminderFrequency == request.ReminderOnce:
		// the single reminder cycle is spent
	default:
		if freq, ok := req.ReminderFrequency.Frequency(); ok {
			if n, err := schedule.NextDue(now, freq); err == nil {
				next = sql.NullTime{Time: n, Valid: true}
			}
		}
	}

	if next != cycle.NextReminderDate || count != cycle.ReminderCycleCount {
		if err := s.requestRepo.UpdateCycleReminderSchedule(ctx, req.ID, cycle.ID, next, count); err != nil {
			return stats, fmt.Errorf("rescheduling reminders for cycle %s: %w", cycle.ID, err)
		}
		cycle.NextReminderDate = next
		cycle.ReminderCycleCount = count
	}
	return stats, nil
}
