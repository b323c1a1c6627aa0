// internal/app/cadence_service.go
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"billsplit_bot/internal/domain/request"
	"billsplit_bot/internal/domain/schedule"
	"billsplit_bot/internal/domain/transaction"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultCadenceLookbackDays is wide enough to pick up yearly charges.
const DefaultCadenceLookbackDays = 730

// CadenceReport summarizes the inferred billing rhythm of a request's
// payee.
type CadenceReport struct {
	Cadence       schedule.Cadence
	ChargeCount   int
	LastCharge    time.Time
	ProjectedNext time.Time
	HasProjection bool
}

// CadenceService infers a billing cadence for a request's payee from the
// linked account's transaction history.
type CadenceService struct {
	txSource     transaction.Source
	requestRepo  request.Repository
	lookbackDays int
	logger       *logrus.Entry
}

func NewCadenceService(src transaction.Source, repo request.Repository, lookbackDays int, logger *logrus.Entry) *CadenceService {
	if lookbackDays <= 0 {
		lookbackDays = DefaultCadenceLookbackDays
	}
	return &CadenceService{
		txSource:     src,
		requestRepo:  repo,
		lookbackDays: lookbackDays,
		logger:       logger,
	}
}

// InferForRequest collects the charge dates matching the request's payee
// name and classifies their rhythm.
func (s *CadenceService) InferForRequest(ctx context.Context, requestID uuid.UUID, now time.Time) (*CadenceReport, error) {
	req, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("loading request %s: %w", requestID, err)
	}
	if !req.LinkedAccountID.Valid {
		return nil, ErrNoLinkedAccount
	}

	start := now.AddDate(0, 0, -s.lookbackDays)
	records, err := s.txSource.Fetch(ctx, req.LinkedAccountID.String, start, now)
	if err != nil {
		return nil, fmt.Errorf("fetching transactions for account %s: %w", req.LinkedAccountID.String, err)
	}

	target := schedule.NormalizePayee(req.Title)
	var dates []time.Time
	for _, rec := range records {
		name := schedule.NormalizePayee(rec.PayeeName)
		if name == "" || target == "" {
			continue
		}
		if name != target && !strings.Contains(name, target) && !strings.Contains(target, name) {
			continue
		}
		dates = append(dates, rec.Date)
	}

	report := &CadenceReport{
		Cadence:     schedule.Infer(dates),
		ChargeCount: len(dates),
	}
	for _, d := range dates {
		if d.After(report.LastCharge) {
			report.LastCharge = d
		}
	}
	if !report.LastCharge.IsZero() {
		if next, ok := schedule.ProjectNext(report.LastCharge, report.Cadence, now); ok {
			report.ProjectedNext = next
			report.HasProjection = true
		}
	}

	s.logger.WithFields(logrus.Fields{
		"request_id":   requestID,
		"label":        report.Cadence.Label,
		"median_gap":   report.Cadence.MedianGapDays,
		"charge_count": report.ChargeCount,
	}).Debug("Cadence inferred for request payee")
	return report, nil
}
