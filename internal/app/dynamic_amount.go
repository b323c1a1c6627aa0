// internal/app/dynamic_amount.go
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"billsplit_bot/internal/domain/request"
	"billsplit_bot/internal/domain/schedule"
	"billsplit_bot/internal/domain/transaction"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Application-level errors for dynamic amount resolution.
var ErrNoMatchingCharge = errors.New("no matching charge found in the transaction feed")
var ErrUnsupportedSplitForDynamic = errors.New("custom split is not supported for dynamic requests")
var ErrNoLinkedAccount = errors.New("dynamic request has no linked account")

// DefaultLookbackDays bounds the transaction window searched for a dynamic
// request's latest real charge.
const DefaultLookbackDays = 120

// DynamicAmountResolver recomputes a dynamic request's total and
// participant shares from the most recent matching charge on the payer's
// linked account.
type DynamicAmountResolver struct {
	txSource     transaction.Source
	requestRepo  request.Repository
	lookbackDays int
	logger       *logrus.Entry
}

func NewDynamicAmountResolver(src transaction.Source, repo request.Repository, lookbackDays int, logger *logrus.Entry) *DynamicAmountResolver {
	if lookbackDays <= 0 {
		lookbackDays = DefaultLookbackDays
	}
	return &DynamicAmountResolver{
		txSource:     src,
		requestRepo:  repo,
		lookbackDays: lookbackDays,
		logger:       logger,
	}
}

// Resolve finds the latest matching charge for the request's payee,
// recomputes shares for the request's split type, persists the updated
// participants and total atomically, and returns the new shares.
func (r *DynamicAmountResolver) Resolve(ctx context.Context, req *request.PaymentRequest, now time.Time) ([]*request.Participant, error) {
	if req.SplitType == request.SplitCustom {
		return nil, ErrUnsupportedSplitForDynamic
	}
	if !req.LinkedAccountID.Valid {
		return nil, ErrNoLinkedAccount
	}
	if len(req.Participants) == 0 {
		return nil, fmt.Errorf("dynamic request %s has no participants", req.ID)
	}

	start := now.AddDate(0, 0, -r.lookbackDays)
	records, err := r.txSource.Fetch(ctx, req.LinkedAccountID.String, start, now)
	if err != nil {
		return nil, fmt.Errorf("fetching transactions for account %s: %w", req.LinkedAccountID.String, err)
	}

	match := latestMatchingCharge(req.Title, records)
	if match == nil {
		return nil, ErrNoMatchingCharge
	}

	total := match.Amount
	switch req.SplitType {
	case request.SplitPercentage:
		// The total varies from cycle to cycle, so no fixed amount is
		// stored per participant; shares derive from the percentage and
		// the current total at dispatch time.
		for _, p := range req.Participants {
			if !p.SharePercent.Valid {
				return nil, fmt.Errorf("participant %s has no percentage on a percentage-split request", p.ID)
			}
			p.ShareAmount = decimal.NullDecimal{}
		}
	default: // equal split
		share := total.Div(decimal.NewFromInt(int64(len(req.Participants)))).Round(2)
		for _, p := range req.Participants {
			p.ShareAmount = decimal.NewNullDecimal(share)
		}
	}

	if err := r.requestRepo.UpdateParticipantsAndTotal(ctx, req.ID, req.Participants, total); err != nil {
		return nil, fmt.Errorf("persisting resolved amount for request %s: %w", req.ID, err)
	}
	req.Amount = decimal.NewNullDecimal(total)

	r.logger.WithFields(logrus.Fields{
		"request_id":     req.ID,
		"matched_payee":  match.PayeeName,
		"matched_amount": total.String(),
		"matched_date":   match.Date.Format("2006-01-02"),
	}).Info("Dynamic amount resolved from transaction feed")
	return req.Participants, nil
}

// latestMatchingCharge returns the most recent record whose normalized
// payee name equals, contains, or is contained in the normalized request
// name. Nil when nothing matches.
func latestMatchingCharge(requestName string, records []transaction.Record) *transaction.Record {
	target := schedule.NormalizePayee(requestName)
	if target == "" {
		return nil
	}
	var match *transaction.Record
	for i := range records {
		name := schedule.NormalizePayee(records[i].PayeeName)
		if name == "" {
			continue
		}
		if name != target && !strings.Contains(name, target) && !strings.Contains(target, name) {
			continue
		}
		if match == nil || records[i].Date.After(match.Date) {
			match = &records[i]
		}
	}
	return match
}
