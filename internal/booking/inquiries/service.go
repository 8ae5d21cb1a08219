package inquiries

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stashspace/stashspace/internal/authz"
	"github.com/stashspace/stashspace/internal/booking/lifecycle"
	"github.com/stashspace/stashspace/internal/booking/pricing"
	"github.com/stashspace/stashspace/internal/shared"
)

// StatusEvent is handed to the Notifier after a committed inquiry transition.
type StatusEvent struct {
	InquiryID int64
	TraderID  int64
	Status    lifecycle.Status
}

// Notifier receives committed inquiry status changes, best-effort.
type Notifier interface {
	StatusChanged(ctx context.Context, evt StatusEvent)
}

// Service implements the inquiry operations: create, update, submit, and the
// administrator-driven lifecycle advances.
type Service struct {
	repo     Repository
	guard    *authz.Guard
	catalog  pricing.Lookup
	notifier Notifier
	logger   *slog.Logger
}

// NewService constructs the inquiry service.
func NewService(repo Repository, guard *authz.Guard, catalog pricing.Lookup, notifier Notifier, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		guard:    guard,
		catalog:  catalog,
		notifier: notifier,
		logger:   logger,
	}
}

// Create opens a new draft inquiry owned by the calling trader. The estimated
// cost is computed from current list prices so the trader sees a figure
// before any offer exists.
func (s *Service) Create(ctx context.Context, actor authz.Actor, req CreateInquiryRequest) (*Inquiry, error) {
	if actor.Role != authz.RoleTrader {
		return nil, fmt.Errorf("%w: trader role required", shared.ErrPermissionDenied)
	}
	if _, err := pricing.DurationDays(req.StartDate, req.EndDate); err != nil {
		return nil, err
	}
	for _, serviceID := range req.ServiceIDs {
		if _, err := s.catalog.ServiceByID(ctx, serviceID); err != nil {
			if shared.IsNotFound(err) {
				return nil, shared.Referentialf("service", serviceID, "does not exist")
			}
			return nil, err
		}
	}

	estimate, err := pricing.Estimate(ctx, req.StartDate, req.EndDate, pricingRequests(req.SpaceRequests), s.catalog)
	if err != nil {
		return nil, err
	}

	var inquiryID int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		id, err := repo.Insert(ctx, Inquiry{
			TraderID:           actor.ID,
			StartDate:          req.StartDate,
			EndDate:            req.EndDate,
			Notes:              req.Notes,
			EstimatedCostCents: estimate,
			Status:             lifecycle.StatusDraft,
		})
		if err != nil {
			return fmt.Errorf("insert inquiry: %w", err)
		}
		inquiryID = id
		return repo.ReplaceRequests(ctx, id, spaceRequestRows(id, req.SpaceRequests), serviceRequestRows(id, req.ServiceIDs))
	})
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, inquiryID)
}

// Update replaces the mutable fields of an inquiry and recomputes the
// estimate. Traders may edit their own drafts; administrators may adjust an
// inquiry they have taken under review.
func (s *Service) Update(ctx context.Context, actor authz.Actor, inquiryID int64, req UpdateInquiryRequest) (*Inquiry, error) {
	inquiry, err := s.authorizeMutation(ctx, actor, inquiryID)
	if err != nil {
		return nil, err
	}
	switch actor.Role {
	case authz.RoleTrader:
		if inquiry.Status != lifecycle.StatusDraft {
			return nil, shared.InvalidStatef("cannot edit a %s inquiry", inquiry.Status)
		}
	case authz.RoleAdministrator:
		if inquiry.Status != lifecycle.StatusSubmitted && inquiry.Status != lifecycle.StatusUnderReview {
			return nil, shared.InvalidStatef("cannot edit a %s inquiry", inquiry.Status)
		}
	}
	if _, err := pricing.DurationDays(req.StartDate, req.EndDate); err != nil {
		return nil, err
	}
	for _, serviceID := range req.ServiceIDs {
		if _, err := s.catalog.ServiceByID(ctx, serviceID); err != nil {
			if shared.IsNotFound(err) {
				return nil, shared.Referentialf("service", serviceID, "does not exist")
			}
			return nil, err
		}
	}
	estimate, err := pricing.Estimate(ctx, req.StartDate, req.EndDate, pricingRequests(req.SpaceRequests), s.catalog)
	if err != nil {
		return nil, err
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.UpdateHeader(ctx, inquiryID, map[string]interface{}{
			"start_date":           req.StartDate,
			"end_date":             req.EndDate,
			"notes":                req.Notes,
			"estimated_cost_cents": estimate,
		}); err != nil {
			return fmt.Errorf("update inquiry: %w", err)
		}
		return repo.ReplaceRequests(ctx, inquiryID, spaceRequestRows(inquiryID, req.SpaceRequests), serviceRequestRows(inquiryID, req.ServiceIDs))
	})
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, inquiryID)
}

// Submit hands the trader's draft to the administrators.
func (s *Service) Submit(ctx context.Context, actor authz.Actor, inquiryID int64) error {
	return s.advance(ctx, actor, inquiryID, lifecycle.StatusSubmitted)
}

// StartReview marks a submitted inquiry as being worked by an administrator.
func (s *Service) StartReview(ctx context.Context, actor authz.Actor, inquiryID int64) error {
	return s.advance(ctx, actor, inquiryID, lifecycle.StatusUnderReview)
}

// Cancel terminates the inquiry. The transition table decides who may cancel
// from which status.
func (s *Service) Cancel(ctx context.Context, actor authz.Actor, inquiryID int64) error {
	return s.advance(ctx, actor, inquiryID, lifecycle.StatusCancelled)
}

// Confirm marks an accepted inquiry as a confirmed engagement.
func (s *Service) Confirm(ctx context.Context, actor authz.Actor, inquiryID int64) error {
	return s.advance(ctx, actor, inquiryID, lifecycle.StatusConfirmed)
}

// Complete marks a confirmed engagement as fulfilled.
func (s *Service) Complete(ctx context.Context, actor authz.Actor, inquiryID int64) error {
	return s.advance(ctx, actor, inquiryID, lifecycle.StatusCompleted)
}

// Archive retires a completed inquiry.
func (s *Service) Archive(ctx context.Context, actor authz.Actor, inquiryID int64) error {
	return s.advance(ctx, actor, inquiryID, lifecycle.StatusArchived)
}

func (s *Service) advance(ctx context.Context, actor authz.Actor, inquiryID int64, target lifecycle.Status) error {
	inquiry, err := s.authorizeMutation(ctx, actor, inquiryID)
	if err != nil {
		return err
	}
	eff, err := lifecycle.Transition(inquiry.Status, target, actor.Role)
	if err != nil {
		return err
	}
	if inquiry.Status == target {
		return nil
	}
	if err := s.repo.UpdateStatus(ctx, inquiryID, target); err != nil {
		return fmt.Errorf("update inquiry status: %w", err)
	}
	if eff.Notify {
		s.notifier.StatusChanged(ctx, StatusEvent{
			InquiryID: inquiryID,
			TraderID:  inquiry.TraderID,
			Status:    target,
		})
	}
	return nil
}

// authorizeMutation resolves role and ownership before any write. Traders
// probing inquiries they do not own learn nothing: a missing inquiry and a
// foreign one both read as PermissionDenied.
func (s *Service) authorizeMutation(ctx context.Context, actor authz.Actor, inquiryID int64) (*Inquiry, error) {
	switch actor.Role {
	case authz.RoleAdministrator:
		if err := s.guard.RequireAdmin(ctx, actor); err != nil {
			return nil, err
		}
	case authz.RoleTrader:
		if err := s.guard.RequireInquiryOwner(ctx, actor, inquiryID); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: unknown role %q", shared.ErrPermissionDenied, actor.Role)
	}
	inquiry, err := s.repo.Get(ctx, inquiryID)
	if err != nil {
		if shared.IsNotFound(err) && actor.Role == authz.RoleTrader {
			return nil, fmt.Errorf("%w: owning trader required", shared.ErrPermissionDenied)
		}
		return nil, err
	}
	return inquiry, nil
}

// Get returns one inquiry with its requested spaces and services.
// Administrators see every inquiry; traders only their own, and anything else
// reads as not found.
func (s *Service) Get(ctx context.Context, actor authz.Actor, inquiryID int64) (*Inquiry, error) {
	inquiry, err := s.repo.Get(ctx, inquiryID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.RequireInquiryAccess(ctx, actor, inquiryID); err != nil {
		return nil, shared.ErrNotFound
	}
	return inquiry, nil
}

// List returns inquiries matching the filter. Traders are always scoped to
// their own inquiries regardless of the filter supplied.
func (s *Service) List(ctx context.Context, actor authz.Actor, filter Filter) ([]Inquiry, error) {
	switch actor.Role {
	case authz.RoleAdministrator:
		if err := s.guard.RequireAdmin(ctx, actor); err != nil {
			return nil, err
		}
	case authz.RoleTrader:
		filter.TraderID = &actor.ID
	case authz.RoleSystem:
	default:
		return nil, fmt.Errorf("%w: unknown role %q", shared.ErrPermissionDenied, actor.Role)
	}
	return s.repo.List(ctx, filter)
}

// Estimate prices the requested spaces at current list rates without
// persisting anything.
func (s *Service) Estimate(ctx context.Context, req EstimateRequest) (*EstimateResponse, error) {
	days, err := pricing.DurationDays(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}
	total, err := pricing.Estimate(ctx, req.StartDate, req.EndDate, pricingRequests(req.SpaceRequests), s.catalog)
	if err != nil {
		return nil, err
	}
	return &EstimateResponse{EstimatedCostCents: total, DurationDays: days}, nil
}

func spaceRequestRows(inquiryID int64, inputs []SpaceRequestInput) []SpaceRequest {
	rows := make([]SpaceRequest, 0, len(inputs))
	for _, in := range inputs {
		rows = append(rows, SpaceRequest{InquiryID: inquiryID, SpaceType: in.SpaceType, SizeM2: in.SizeM2})
	}
	return rows
}

func serviceRequestRows(inquiryID int64, serviceIDs []int64) []ServiceRequest {
	rows := make([]ServiceRequest, 0, len(serviceIDs))
	for _, id := range serviceIDs {
		rows = append(rows, ServiceRequest{InquiryID: inquiryID, ServiceID: id})
	}
	return rows
}
