// internal/infra/telegram/client.go
package telegram

import (
	"context"
	"fmt"

	"billsplit_bot/internal/domain/messenger"

	"gopkg.in/telebot.v3"
)

// TelebotAdapter implements the messenger Client interface using the
// gopkg.in/telebot.v3 library.
type TelebotAdapter struct {
	bot *telebot.Bot
}

func NewTelebotAdapter(b *telebot.Bot) *TelebotAdapter {
	return &TelebotAdapter{bot: b}
}

// Send delivers one payment request (or reminder) to a participant, with
// an inline "I paid" button carrying the payment reference.
func (tba *TelebotAdapter) Send(ctx context.Context, msg messenger.CycleContext) error {
	var text string
	if msg.Reminder {
		text = fmt.Sprintf("Reminder: you still owe %s for \"%s\" (requested by %s, due %s).",
			msg.AmountOwed.StringFixed(2), msg.RequestTitle, msg.RequesterName,
			msg.DueDate.Format("2006-01-02"))
	} else {
		text = fmt.Sprintf("%s requests %s from you for \"%s\", due %s.",
			msg.RequesterName, msg.AmountOwed.StringFixed(2), msg.RequestTitle,
			msg.DueDate.Format("2006-01-02"))
	}

	replyMarkup := &telebot.ReplyMarkup{ResizeKeyboard: true}
	paidBtn := replyMarkup.Data("I paid ✅", "paid_"+msg.PaymentRef)
	replyMarkup.Inline(replyMarkup.Row(paidBtn))

	recipient := &telebot.User{ID: msg.RecipientChatID} // Participants are direct user chats
	_, err := tba.bot.Send(recipient, text, &telebot.SendOptions{ReplyMarkup: replyMarkup, ParseMode: telebot.ModeDefault})
	return err
}
