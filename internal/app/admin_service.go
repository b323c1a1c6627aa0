package app

import (
	"context"
	"fmt"
	"time"

	"billsplit_bot/internal/domain/request"

	"github.com/google/uuid"
)

// Custom application-level errors for admin operations.
var ErrAdminNotAuthorized = fmt.Errorf("performing user is not authorized as an admin")
var ErrRequestAlreadyPaused = fmt.Errorf("payment request is already paused")
var ErrRequestNotPaused = fmt.Errorf("payment request is not paused")

// AdminService handles the operator surface: pausing and resuming requests
// and listing what the engine is tracking. Scheduler control (run-now,
// status) talks to the runner directly at the transport layer.
type AdminService struct {
	requestRepo request.Repository
	adminChatID int64
}

func NewAdminService(repo request.Repository, adminChatID int64) *AdminService {
	return &AdminService{
		requestRepo: repo,
		adminChatID: adminChatID,
	}
}

// PauseRequest excludes a request from all scheduler processing until
// resumed.
func (s *AdminService) PauseRequest(ctx context.Context, performingChatID int64, id uuid.UUID) (*request.PaymentRequest, error) {
	if performingChatID != s.adminChatID {
		return nil, ErrAdminNotAuthorized
	}

	req, err := s.requestRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load request for pausing: %w", err)
	}
	if req.Paused {
		return req, ErrRequestAlreadyPaused
	}

	if err := s.requestRepo.SetPaused(ctx, id, true); err != nil {
		return nil, fmt.Errorf("failed to pause request: %w", err)
	}
	req.Paused = true
	req.UpdatedAt = time.Now()
	return req, nil
}

// ResumeRequest puts a paused request back into scheduler processing.
func (s *AdminService) ResumeRequest(ctx context.Context, performingChatID int64, id uuid.UUID) (*request.PaymentRequest, error) {
	if performingChatID != s.adminChatID {
		return nil, ErrAdminNotAuthorized
	}

	req, err := s.requestRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load request for resuming: %w", err)
	}
	if !req.Paused {
		return req, ErrRequestNotPaused
	}

	if err := s.requestRepo.SetPaused(ctx, id, false); err != nil {
		return nil, fmt.Errorf("failed to resume request: %w", err)
	}
	req.Paused = false
	req.UpdatedAt = time.Now()
	return req, nil
}

// ListRequests returns every tracked request for the admin overview.
func (s *AdminService) ListRequests(ctx context.Context, performingChatID int64) ([]*request.PaymentRequest, error) {
	if performingChatID != s.adminChatID {
		return nil, ErrAdminNotAuthorized
	}
	requests, err := s.requestRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	return requests, nil
}
