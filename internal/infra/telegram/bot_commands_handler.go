// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"context"
	"fmt"
	"strings"

	"billsplit_bot/internal/domain/request"
	"billsplit_bot/internal/infra/config"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func RegisterBotCommands(
	ctx context.Context,
	b *telebot.Bot,
	cfg *config.AppConfig, // For AdminChatID
	requestRepo request.Repository,
	baseLogger *logrus.Entry, // For contextual logging
) {
	startHelpLogger := baseLogger.WithField("handler_group", "start_help")

	b.Handle("/start", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := startHelpLogger.WithField("command", "/start").WithField("sender_id", senderID)
		logCtx.Info("Processing /start command")

		if senderID == cfg.AdminChatID {
			logCtx.Info("User identified as Admin")
			return c.Send(fmt.Sprintf("Hi, admin %s! I'm ready. Use /help for the command list.", c.Sender().FirstName))
		}

		owned, err := requestRepo.ListByOwner(ctx, senderID)
		if err != nil {
			logCtx.WithError(err).Error("Error checking owned requests for /start command")
			return c.Send("Something went wrong while checking your account. Please try again later.")
		}
		if len(owned) > 0 {
			logCtx.WithField("owned_requests", len(owned)).Info("User identified as request owner")
			return c.Send(fmt.Sprintf("Hi, %s! You have %d payment request(s) on file. I'll dispatch them and chase your participants automatically.", c.Sender().FirstName, len(owned)))
		}

		logCtx.Info("User has no owned requests")
		return c.Send("Hi! I send out shared bill payment requests and remind people who haven't paid yet. When someone adds you to a split, the requests will show up here.")
	})

	b.Handle("/help", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := startHelpLogger.WithField("command", "/help").WithField("sender_id", senderID)
		logCtx.Info("Processing /help command")

		if senderID == cfg.AdminChatID {
			logCtx.Info("User identified as Admin, sending admin help.")
			var helpText strings.Builder
			helpText.WriteString("Available admin commands:\n\n")
			helpText.WriteString("`/list_requests`\n - List every payment request with its amount, participants and next due date.\n\n")
			helpText.WriteString("`/pause_request <request-id>`\n - Stop dispatches and reminders for a request.\n\n")
			helpText.WriteString("`/resume_request <request-id>`\n - Resume a paused request; overdue cycles catch up on the next pass.\n\n")
			helpText.WriteString("`/run_now`\n - Run the recurring and reminder passes immediately.\n\n")
			helpText.WriteString("`/scheduler_status`\n - Show last pass metrics and any errors.\n\n")
			helpText.WriteString("`/cadence <request-id>`\n - Infer how often the linked payee actually charges, from transaction history.\n\n")
			helpText.WriteString("`/help`\n - Show this help message.")
			return c.Send(helpText.String(), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
		}

		logCtx.Info("Sending participant help.")
		return c.Send("When a shared bill is due, I'll message you with the amount you owe and an \"I paid\" button. Tap it once you've paid and the requester is notified. If a reminder schedule is set, I'll nudge you until the bill is settled.\n\n`/help` - Show this message.")
	})
}
