// internal/app/payment_service.go
package app

import (
	"context"
	"fmt"
	"time"

	"billsplit_bot/internal/domain/request"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// PaymentService records participant payments coming back through the
// messenger's payment-action callbacks.
type PaymentService struct {
	requestRepo request.Repository
	logger      *logrus.Entry
}

func NewPaymentService(repo request.Repository, logger *logrus.Entry) *PaymentService {
	return &PaymentService{requestRepo: repo, logger: logger}
}

// MarkPaidByRef resolves a payment reference from a message callback and
// records the participant's expected share as paid in full, flagged as a
// manual payment.
func (s *PaymentService) MarkPaidByRef(ctx context.Context, paymentRef string, now time.Time) (*request.PaymentRequest, decimal.Decimal, error) {
	cpID, err := uuid.Parse(paymentRef)
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("invalid payment reference %q: %w", paymentRef, err)
	}

	ref, err := s.requestRepo.FindCycleParticipantRef(ctx, cpID)
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("resolving payment reference: %w", err)
	}

	req, err := s.requestRepo.GetByID(ctx, ref.RequestID)
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("loading request %s: %w", ref.RequestID, err)
	}

	var person *request.Participant
	for _, p := range req.Participants {
		if p.ID == ref.ParticipantID {
			person = p
			break
		}
	}
	if person == nil {
		return nil, decimal.Zero, fmt.Errorf("participant %s not found on request %s", ref.ParticipantID, req.ID)
	}

	amount := req.ExpectedShare(person)
	if err := s.requestRepo.RecordParticipantPayment(ctx, cpID, amount, now, true); err != nil {
		return nil, decimal.Zero, fmt.Errorf("recording payment for cycle participant %s: %w", cpID, err)
	}

	s.logger.WithFields(logrus.Fields{
		"request_id":           req.ID,
		"cycle_participant_id": cpID,
		"amount":               amount.String(),
	}).Info("Participant marked as paid")
	return req, amount, nil
}
