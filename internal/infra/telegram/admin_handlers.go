package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	"billsplit_bot/internal/app"
	idb "billsplit_bot/internal/infra/database"
	"billsplit_bot/internal/infra/scheduler"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// RegisterAdminHandlers registers handlers for admin commands.
// It requires the bot instance, the services backing each command, and the
// configured admin Telegram ID.
func RegisterAdminHandlers(
	ctx context.Context,
	b *telebot.Bot,
	adminService *app.AdminService,
	cadenceService *app.CadenceService,
	runner *scheduler.Runner,
	adminTelegramID int64,
	baseLogger *logrus.Entry,
) {
	parseRequestID := func(c telebot.Context, usage string) (uuid.UUID, bool) {
		args := c.Args()
		if len(args) != 1 {
			c.Send("Invalid command format. Use: " + usage)
			return uuid.Nil, false
		}
		id, err := uuid.Parse(args[0])
		if err != nil {
			c.Send("Error: the request ID must be a valid UUID.")
			return uuid.Nil, false
		}
		return id, true
	}

	b.Handle("/pause_request", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/pause_request",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")

		if c.Sender().ID != adminTelegramID {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send("Error: you are not allowed to run this command.")
		}

		id, ok := parseRequestID(c, "/pause_request <request-id>")
		if !ok {
			return nil
		}
		handlerLogger = handlerLogger.WithField("request_id", id)

		req, err := adminService.PauseRequest(ctx, c.Sender().ID, id)
		if err != nil {
			logWithError := handlerLogger.WithError(err)
			switch err {
			case app.ErrAdminNotAuthorized:
				logWithError.Warn("Admin not authorized (service level)")
				return c.Send("Error: you are not allowed to run this command.")
			case idb.ErrRequestNotFound:
				logWithError.Warn("Request to pause not found")
				return c.Send(fmt.Sprintf("Payment request %s not found.", id))
			case app.ErrRequestAlreadyPaused:
				logWithError.Warn("Request already paused")
				return c.Send(fmt.Sprintf("Payment request \"%s\" is already paused.", req.Title))
			default:
				logWithError.Error("Failed to pause request")
				return c.Send(fmt.Sprintf("An error occurred while pausing the request: %s", err.Error()))
			}
		}

		handlerLogger.Info("Request paused successfully")
		return c.Send(fmt.Sprintf("Payment request \"%s\" paused. No dispatches or reminders will go out until it is resumed.", req.Title))
	})

	b.Handle("/resume_request", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/resume_request",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")

		if c.Sender().ID != adminTelegramID {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send("Error: you are not allowed to run this command.")
		}

		id, ok := parseRequestID(c, "/resume_request <request-id>")
		if !ok {
			return nil
		}
		handlerLogger = handlerLogger.WithField("request_id", id)

		req, err := adminService.ResumeRequest(ctx, c.Sender().ID, id)
		if err != nil {
			logWithError := handlerLogger.WithError(err)
			switch err {
			case app.ErrAdminNotAuthorized:
				logWithError.Warn("Admin not authorized (service level)")
				return c.Send("Error: you are not allowed to run this command.")
			case idb.ErrRequestNotFound:
				logWithError.Warn("Request to resume not found")
				return c.Send(fmt.Sprintf("Payment request %s not found.", id))
			case app.ErrRequestNotPaused:
				logWithError.Warn("Request not paused")
				return c.Send(fmt.Sprintf("Payment request \"%s\" is not paused.", req.Title))
			default:
				logWithError.Error("Failed to resume request")
				return c.Send(fmt.Sprintf("An error occurred while resuming the request: %s", err.Error()))
			}
		}

		handlerLogger.Info("Request resumed successfully")
		return c.Send(fmt.Sprintf("Payment request \"%s\" resumed. Overdue cycles will catch up on the next scheduler pass.", req.Title))
	})

	b.Handle("/list_requests", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/list_requests",
			"sender_id": c.Sender().ID,
		})
		if c.Sender().ID != adminTelegramID {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send("Error: you are not allowed to run this command.")
		}

		requests, err := adminService.ListRequests(ctx, c.Sender().ID)
		if err != nil {
			handlerLogger.WithError(err).Error("Failed to list requests")
			return c.Send(fmt.Sprintf("An error occurred while listing requests: %s", err.Error()))
		}
		if len(requests) == 0 {
			return c.Send("No payment requests found.")
		}

		handlerLogger.WithField("request_count", len(requests)).Info("Successfully retrieved request list")

		var response strings.Builder
		response.WriteString("--- Payment requests ---\n")
		for _, req := range requests {
			status := "active"
			if req.Paused {
				status = "paused"
			}
			amount := "dynamic"
			if req.Amount.Valid {
				amount = req.Amount.Decimal.StringFixed(2)
			}
			nextDue := "-"
			if req.NextDue.Valid {
				nextDue = req.NextDue.Time.Format("2006-01-02 15:04")
			}
			response.WriteString(fmt.Sprintf("%s | \"%s\" | amount: %s | participants: %d | next due: %s | %s\n",
				req.ID, req.Title, amount, len(req.Participants), nextDue, status))
		}
		return c.Send(response.String())
	})

	b.Handle("/run_now", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/run_now",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")

		if c.Sender().ID != adminTelegramID {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send("Error: you are not allowed to run this command.")
		}

		stats, err := runner.RunNow()
		if err == scheduler.ErrRunInFlight {
			handlerLogger.Warn("Manual run rejected: pass in flight")
			return c.Send("A scheduler pass is already running. Try again in a moment.")
		}
		if err != nil {
			handlerLogger.WithError(err).Error("Manual run failed")
			return c.Send(fmt.Sprintf("Manual run failed: %s (processed: %d, sent: %d, errors: %d)",
				err.Error(), stats.Processed, stats.Sent, stats.Errors))
		}

		handlerLogger.WithFields(logrus.Fields{
			"processed": stats.Processed,
			"sent":      stats.Sent,
			"errors":    stats.Errors,
		}).Info("Manual run completed")
		return c.Send(fmt.Sprintf("Manual run completed. Processed: %d, sent: %d, errors: %d.",
			stats.Processed, stats.Sent, stats.Errors))
	})

	b.Handle("/scheduler_status", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/scheduler_status",
			"sender_id": c.Sender().ID,
		})
		if c.Sender().ID != adminTelegramID {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send("Error: you are not allowed to run this command.")
		}

		m := runner.Status()
		var response strings.Builder
		response.WriteString("--- Scheduler status ---\n")
		if m.Active {
			response.WriteString("A pass is running right now.\n")
		}
		if m.LastRunStart.IsZero() {
			response.WriteString("No passes have run yet.\n")
		} else {
			response.WriteString(fmt.Sprintf("Last pass: %s (took %s)\n",
				m.LastRunStart.Format("2006-01-02 15:04:05 MST"), m.LastRunDuration))
			response.WriteString(fmt.Sprintf("Processed: %d, sent: %d, errors: %d\n",
				m.Processed, m.Sent, m.Errors))
		}
		response.WriteString(fmt.Sprintf("Completed runs: %d\n", m.CompletedRuns))
		if m.LastError != "" {
			response.WriteString(fmt.Sprintf("Last error: %s\n", m.LastError))
		}
		return c.Send(response.String())
	})

	b.Handle("/cadence", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/cadence",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")

		if c.Sender().ID != adminTelegramID {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send("Error: you are not allowed to run this command.")
		}

		id, ok := parseRequestID(c, "/cadence <request-id>")
		if !ok {
			return nil
		}
		handlerLogger = handlerLogger.WithField("request_id", id)

		report, err := cadenceService.InferForRequest(ctx, id, time.Now())
		if err != nil {
			logWithError := handlerLogger.WithError(err)
			switch err {
			case idb.ErrRequestNotFound:
				logWithError.Warn("Request for cadence inference not found")
				return c.Send(fmt.Sprintf("Payment request %s not found.", id))
			case app.ErrNoLinkedAccount:
				logWithError.Warn("Request has no linked account")
				return c.Send("This request has no linked account, so there is no transaction history to infer from.")
			default:
				logWithError.Error("Cadence inference failed")
				return c.Send(fmt.Sprintf("An error occurred while inferring the cadence: %s", err.Error()))
			}
		}

		handlerLogger.WithField("cadence", string(report.Cadence.Label)).Info("Cadence inferred")

		var response strings.Builder
		response.WriteString(fmt.Sprintf("Cadence: %s (median gap %.1f days, %d charges seen)\n",
			report.Cadence.Label, report.Cadence.MedianGapDays, report.ChargeCount))
		if !report.LastCharge.IsZero() {
			response.WriteString(fmt.Sprintf("Last charge: %s\n", report.LastCharge.Format("2006-01-02")))
		}
		if report.HasProjection {
			response.WriteString(fmt.Sprintf("Projected next charge: %s\n", report.ProjectedNext.Format("2006-01-02")))
		}
		return c.Send(response.String())
	})
}
