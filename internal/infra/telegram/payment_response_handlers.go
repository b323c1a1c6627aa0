// internal/infra/telegram/payment_response_handlers.go
package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	"billsplit_bot/internal/app"

	"gopkg.in/telebot.v3"
)

// RegisterPaymentResponseHandlers wires the "I paid" callback buttons to
// the payment service.
func RegisterPaymentResponseHandlers(ctx context.Context, b *telebot.Bot, paymentService *app.PaymentService) {
	b.Handle(telebot.OnCallback, func(c telebot.Context) error {
		// telebot prefixes callback data with "\f".
		data := strings.TrimPrefix(c.Callback().Data, "\f")

		if !strings.HasPrefix(data, "paid_") {
			c.Bot().OnError(fmt.Errorf("unhandled callback data by payment_response_handler: %s", data), c)
			return c.Respond(&telebot.CallbackResponse{Text: "Unknown action."})
		}

		paymentRef := strings.TrimPrefix(data, "paid_")
		req, amount, err := paymentService.MarkPaidByRef(ctx, paymentRef, time.Now())
		if err != nil {
			c.Bot().OnError(fmt.Errorf("error processing payment callback for ref %s: %w", paymentRef, err), c)
			return c.Respond(&telebot.CallbackResponse{Text: "Something went wrong recording your payment."})
		}

		// Let the payer know, then notify the requester.
		if err := c.Respond(&telebot.CallbackResponse{Text: fmt.Sprintf("Recorded %s as paid!", amount.StringFixed(2))}); err != nil {
			return err
		}

		owner := &telebot.User{ID: req.OwnerChatID}
		payerName := ""
		if c.Sender() != nil {
			payerName = c.Sender().FirstName
		}
		_, err = c.Bot().Send(owner, fmt.Sprintf("%s marked %s as paid for \"%s\".",
			payerName, amount.StringFixed(2), req.Title))
		if err != nil {
			c.Bot().OnError(fmt.Errorf("error notifying owner %d about payment: %w", req.OwnerChatID, err), c)
		}
		return nil
	})
}
