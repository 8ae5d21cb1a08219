package offers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/stashspace/stashspace/internal/authz"
	"github.com/stashspace/stashspace/internal/booking/lifecycle"
	"github.com/stashspace/stashspace/internal/booking/pricing"
	"github.com/stashspace/stashspace/internal/platform/db"
	"github.com/stashspace/stashspace/internal/shared"
)

// StatusEvent is handed to the Notifier after a committed transition of
// interest. Dispatch is best-effort and never part of the transaction.
type StatusEvent struct {
	InquiryID      int64
	OfferID        int64
	TraderID       int64
	Status         lifecycle.Status
	TotalCostCents *int64
}

// Notifier receives committed status changes. Implementations log and
// swallow their own failures; losing a notification is acceptable, losing a
// committed offer is not.
type Notifier interface {
	StatusChanged(ctx context.Context, evt StatusEvent)
}

// Service implements the offer operations: draft, replace, send, respond,
// expire. Every entry point takes the acting principal explicitly.
type Service struct {
	repo     Repository
	guard    *authz.Guard
	catalog  pricing.Lookup
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs the offer service.
func NewService(repo Repository, guard *authz.Guard, catalog pricing.Lookup, notifier Notifier, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		guard:    guard,
		catalog:  catalog,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// withRetry runs fn in a transaction, retrying exactly once on write-write
// contention. fn re-reads and re-validates everything it needs, so the retry
// sees the winning writer's state.
func (s *Service) withRetry(ctx context.Context, fn func(context.Context, Repository) error) error {
	err := s.repo.WithTx(ctx, fn)
	if err == nil || !db.IsSerializationFailure(err) {
		return err
	}
	s.logger.Warn("offer write conflict, retrying", slog.Any("error", err))
	err = s.repo.WithTx(ctx, fn)
	if err != nil && db.IsSerializationFailure(err) {
		return fmt.Errorf("%w: offer is being modified concurrently", shared.ErrConflict)
	}
	return err
}

// CreateDraft authorizes the administrator, prices the allocations, and
// persists header + allocations + terms + summary as one atomic unit. The
// owning inquiry advances to offer_draft. Summary.actual stays null unless a
// headline total was supplied.
func (s *Service) CreateDraft(ctx context.Context, actor authz.Actor, req CreateOfferRequest) (*Offer, error) {
	if err := s.guard.RequireAdmin(ctx, actor); err != nil {
		return nil, err
	}

	snap, err := s.repo.InquirySnapshot(ctx, req.InquiryID)
	if err != nil {
		return nil, fmt.Errorf("load inquiry: %w", err)
	}
	if _, err := lifecycle.Transition(snap.Status, lifecycle.StatusOfferDraft, actor.Role); err != nil {
		return nil, err
	}

	breakdown, err := pricing.Compute(ctx, snap.StartDate, snap.EndDate,
		snap.SpaceRequests, spaceLines(req.SpaceAllocations), serviceLines(req.ServiceAllocations), s.catalog)
	if err != nil {
		return nil, err
	}

	var offerID int64
	err = s.withRetry(ctx, func(ctx context.Context, repo Repository) error {
		id, err := repo.Insert(ctx, Offer{
			InquiryID:       req.InquiryID,
			AdministratorID: actor.ID,
			TotalCostCents:  req.TotalCostCents,
			ValidUntil:      req.ValidUntil,
			Status:          lifecycle.StatusOfferDraft,
			Notes:           req.Notes,
		})
		if err != nil {
			return fmt.Errorf("insert offer: %w", err)
		}
		offerID = id

		if err := s.insertLines(ctx, repo, offerID, req.SpaceAllocations, req.ServiceAllocations, req.Terms, breakdown); err != nil {
			return err
		}
		if err := repo.UpsertSummary(ctx, Summary{
			OfferID:             offerID,
			QuotedEstimateCents: snap.EstimatedCostCents,
			CalculatedCents:     breakdown.CalculatedTotalCents,
			SpaceTotalCents:     breakdown.SpaceTotalCents,
			ServicesTotalCents:  breakdown.ServicesTotalCents,
			ActualOfferCents:    req.TotalCostCents,
		}); err != nil {
			return fmt.Errorf("upsert summary: %w", err)
		}
		if snap.Status != lifecycle.StatusOfferDraft {
			if err := repo.UpdateInquiryStatus(ctx, snap.ID, lifecycle.StatusOfferDraft); err != nil {
				return fmt.Errorf("advance inquiry: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.repo.Get(ctx, offerID)
}

// ReplaceDraft deletes and re-inserts every child line and overwrites the
// summary, all inside one transaction under a row lock on the offer header.
// A changes_requested offer is redrafted by this very call, per the
// transition table; any other non-draft state is rejected.
func (s *Service) ReplaceDraft(ctx context.Context, actor authz.Actor, offerID int64, req ReplaceOfferRequest) (*Offer, error) {
	if err := s.guard.RequireAdmin(ctx, actor); err != nil {
		return nil, err
	}

	err := s.withRetry(ctx, func(ctx context.Context, repo Repository) error {
		offer, err := repo.LockHeader(ctx, offerID)
		if err != nil {
			return fmt.Errorf("lock offer: %w", err)
		}

		redraft := offer.Status == lifecycle.StatusChangesRequested
		if redraft {
			if _, err := lifecycle.Transition(offer.Status, lifecycle.StatusOfferDraft, actor.Role); err != nil {
				return err
			}
		} else if offer.Status != lifecycle.StatusOfferDraft {
			return shared.InvalidStatef("cannot replace lines of a %s offer", offer.Status)
		}

		snap, err := repo.InquirySnapshot(ctx, offer.InquiryID)
		if err != nil {
			return fmt.Errorf("load inquiry: %w", err)
		}
		breakdown, err := pricing.Compute(ctx, snap.StartDate, snap.EndDate,
			snap.SpaceRequests, spaceLines(req.SpaceAllocations), serviceLines(req.ServiceAllocations), s.catalog)
		if err != nil {
			return err
		}

		updates := map[string]interface{}{
			"total_cost_cents": req.TotalCostCents,
			"valid_until":      req.ValidUntil,
			"notes":            req.Notes,
		}
		if redraft {
			updates["status"] = lifecycle.StatusOfferDraft
		}
		if err := repo.UpdateHeader(ctx, offerID, updates); err != nil {
			return fmt.Errorf("update offer: %w", err)
		}
		if err := repo.DeleteLines(ctx, offerID); err != nil {
			return fmt.Errorf("delete lines: %w", err)
		}
		if err := s.insertLines(ctx, repo, offerID, req.SpaceAllocations, req.ServiceAllocations, req.Terms, breakdown); err != nil {
			return err
		}
		if err := repo.UpsertSummary(ctx, Summary{
			OfferID:             offerID,
			QuotedEstimateCents: snap.EstimatedCostCents,
			CalculatedCents:     breakdown.CalculatedTotalCents,
			SpaceTotalCents:     breakdown.SpaceTotalCents,
			ServicesTotalCents:  breakdown.ServicesTotalCents,
			ActualOfferCents:    req.TotalCostCents,
		}); err != nil {
			return fmt.Errorf("upsert summary: %w", err)
		}
		if redraft && snap.Status != lifecycle.StatusOfferDraft {
			if err := repo.UpdateInquiryStatus(ctx, snap.ID, lifecycle.StatusOfferDraft); err != nil {
				return fmt.Errorf("advance inquiry: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.repo.Get(ctx, offerID)
}

// Send validates the offer is complete, then moves offer and inquiry to
// offer_sent, stamping valid_until. The trader is notified after the commit.
// Sending an already-sent offer is a no-op per the same-state rule.
func (s *Service) Send(ctx context.Context, actor authz.Actor, offerID int64) error {
	if err := s.guard.RequireAdmin(ctx, actor); err != nil {
		return err
	}

	var evt *StatusEvent
	err := s.withRetry(ctx, func(ctx context.Context, repo Repository) error {
		evt = nil
		header, err := repo.LockHeader(ctx, offerID)
		if err != nil {
			return fmt.Errorf("lock offer: %w", err)
		}
		eff, err := lifecycle.Transition(header.Status, lifecycle.StatusOfferSent, actor.Role)
		if err != nil {
			return err
		}
		if header.Status == lifecycle.StatusOfferSent {
			return nil
		}

		offer, err := repo.Get(ctx, offerID)
		if err != nil {
			return err
		}
		snap, err := repo.InquirySnapshot(ctx, offer.InquiryID)
		if err != nil {
			return fmt.Errorf("load inquiry: %w", err)
		}
		if err := validateSendable(offer, snap); err != nil {
			return err
		}
		// Re-pricing the stored lines re-checks referential integrity and
		// mode-appropriate prices with current catalog state.
		if _, err := pricing.Compute(ctx, snap.StartDate, snap.EndDate,
			snap.SpaceRequests, storedSpaceLines(offer.SpaceAllocations),
			storedServiceLines(offer.ServiceAllocations), s.catalog); err != nil {
			return err
		}

		var validUntil *time.Time
		if eff.StampValidUntil {
			t := s.now().Add(lifecycle.OfferValidity)
			validUntil = &t
		}
		if err := repo.UpdateStatus(ctx, offerID, lifecycle.StatusOfferSent, validUntil, false); err != nil {
			return fmt.Errorf("update offer status: %w", err)
		}
		if _, err := lifecycle.Transition(snap.Status, lifecycle.StatusOfferSent, actor.Role); err != nil {
			return err
		}
		if snap.Status != lifecycle.StatusOfferSent {
			if err := repo.UpdateInquiryStatus(ctx, snap.ID, lifecycle.StatusOfferSent); err != nil {
				return fmt.Errorf("advance inquiry: %w", err)
			}
		}
		if eff.Notify {
			evt = &StatusEvent{
				InquiryID:      snap.ID,
				OfferID:        offerID,
				TraderID:       snap.TraderID,
				Status:         lifecycle.StatusOfferSent,
				TotalCostCents: offer.Summary.ActualOfferCents,
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if evt != nil {
		s.notifier.StatusChanged(ctx, *evt)
	}
	return nil
}

// Respond records the owning trader's decision on a sent offer. Accepting
// creates the confirmed booking record in the same transaction. Callers that
// are not the owning trader get ErrPermissionDenied; a missing offer is
// indistinguishable from one they cannot access.
func (s *Service) Respond(ctx context.Context, actor authz.Actor, offerID int64, action RespondAction) error {
	target, ok := map[RespondAction]lifecycle.Status{
		ActionAccept:         lifecycle.StatusAccepted,
		ActionReject:         lifecycle.StatusRejected,
		ActionRequestChanges: lifecycle.StatusChangesRequested,
	}[action]
	if !ok {
		return shared.Validationf("action", "unknown action %q", action)
	}

	header, err := s.repo.Get(ctx, offerID)
	if err != nil {
		if shared.IsNotFound(err) {
			return fmt.Errorf("%w: owning trader required", shared.ErrPermissionDenied)
		}
		return err
	}
	if err := s.guard.RequireInquiryOwner(ctx, actor, header.InquiryID); err != nil {
		return err
	}

	var evt *StatusEvent
	err = s.withRetry(ctx, func(ctx context.Context, repo Repository) error {
		evt = nil
		offer, err := repo.LockHeader(ctx, offerID)
		if err != nil {
			return fmt.Errorf("lock offer: %w", err)
		}
		eff, err := lifecycle.Transition(offer.Status, target, actor.Role)
		if err != nil {
			return err
		}
		if offer.Status == target {
			return nil
		}

		snap, err := repo.InquirySnapshot(ctx, offer.InquiryID)
		if err != nil {
			return fmt.Errorf("load inquiry: %w", err)
		}
		if err := repo.UpdateStatus(ctx, offerID, target, nil, false); err != nil {
			return fmt.Errorf("update offer status: %w", err)
		}
		if snap.Status != target {
			if _, err := lifecycle.Transition(snap.Status, target, actor.Role); err != nil {
				return err
			}
			if err := repo.UpdateInquiryStatus(ctx, snap.ID, target); err != nil {
				return fmt.Errorf("advance inquiry: %w", err)
			}
		}
		if eff.CreateBooking {
			full, err := repo.Get(ctx, offerID)
			if err != nil {
				return err
			}
			if full.Summary == nil || full.Summary.ActualOfferCents == nil {
				return shared.Validationf("actual_offer_cents", "sent offer is missing its headline total")
			}
			if _, err := repo.InsertBooking(ctx, Booking{
				OfferID:        offerID,
				InquiryID:      snap.ID,
				TraderID:       snap.TraderID,
				TotalCostCents: *full.Summary.ActualOfferCents,
				StartDate:      snap.StartDate,
				EndDate:        snap.EndDate,
			}); err != nil {
				return fmt.Errorf("insert booking: %w", err)
			}
		}
		if eff.Notify {
			evt = &StatusEvent{
				InquiryID: snap.ID,
				OfferID:   offerID,
				TraderID:  snap.TraderID,
				Status:    target,
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if evt != nil {
		s.notifier.StatusChanged(ctx, *evt)
	}
	return nil
}

// Get returns the offer with allocations, terms and summary. Administrators
// see every offer; traders only their own, and anything else reads as not
// found.
func (s *Service) Get(ctx context.Context, actor authz.Actor, offerID int64) (*Offer, error) {
	offer, err := s.repo.Get(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.RequireInquiryAccess(ctx, actor, offer.InquiryID); err != nil {
		return nil, shared.ErrNotFound
	}
	return offer, nil
}

// ExpireDue moves sent offers past their valid_until to expired, clearing the
// expiry stamp. Called by the scheduled sweep with the system actor.
func (s *Service) ExpireDue(ctx context.Context, limit int) (int, error) {
	ids, err := s.repo.ListDueForExpiry(ctx, s.now(), limit)
	if err != nil {
		return 0, fmt.Errorf("list due offers: %w", err)
	}
	expired := 0
	for _, id := range ids {
		var evt *StatusEvent
		err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
			offer, err := repo.LockHeader(ctx, id)
			if err != nil {
				return err
			}
			eff, err := lifecycle.Transition(offer.Status, lifecycle.StatusExpired, authz.RoleSystem)
			if err != nil {
				// Lost the race with a trader response. Not an error.
				return nil
			}
			if offer.Status == lifecycle.StatusExpired {
				return nil
			}
			snap, err := repo.InquirySnapshot(ctx, offer.InquiryID)
			if err != nil {
				return err
			}
			if err := repo.UpdateStatus(ctx, id, lifecycle.StatusExpired, nil, eff.ClearValidUntil); err != nil {
				return err
			}
			if snap.Status == lifecycle.StatusOfferSent {
				if err := repo.UpdateInquiryStatus(ctx, snap.ID, lifecycle.StatusExpired); err != nil {
					return err
				}
			}
			evt = &StatusEvent{InquiryID: snap.ID, OfferID: id, TraderID: snap.TraderID, Status: lifecycle.StatusExpired}
			return nil
		})
		if err != nil {
			s.logger.Error("expire offer", slog.Int64("offer_id", id), slog.Any("error", err))
			continue
		}
		if evt != nil {
			expired++
			s.notifier.StatusChanged(ctx, *evt)
		}
	}
	return expired, nil
}

// insertLines persists allocation and term rows with the computed totals.
func (s *Service) insertLines(ctx context.Context, repo Repository, offerID int64,
	spaces []SpaceAllocationRequest, services []ServiceAllocationRequest, terms []string,
	breakdown *pricing.Breakdown) error {
	for i, req := range spaces {
		alloc := SpaceAllocation{
			OfferID:         offerID,
			SpaceID:         req.SpaceID,
			AllocatedSizeM2: req.AllocatedSizeM2,
			PricePerM2Cents: breakdown.SpacePricesCents[i],
			IsManualPrice:   req.IsManualPrice,
			OfferTotalCents: breakdown.SpaceTotalsCents[i],
			Comments:        req.Comments,
			LineOrder:       i + 1,
		}
		if _, err := repo.InsertSpaceAllocation(ctx, alloc); err != nil {
			return fmt.Errorf("insert space allocation: %w", err)
		}
	}
	for i, req := range services {
		alloc := ServiceAllocation{
			OfferID:           offerID,
			ServiceID:         req.ServiceID,
			PricingType:       req.PricingType,
			Quantity:          req.Quantity,
			PricePerHourCents: req.PricePerHourCents,
			PricePerUnitCents: req.PricePerUnitCents,
			UnitType:          req.UnitType,
			FixedPriceCents:   req.FixedPriceCents,
			OfferTotalCents:   breakdown.ServiceTotalsCents[i],
			Comments:          req.Comments,
			LineOrder:         i + 1,
		}
		if _, err := repo.InsertServiceAllocation(ctx, alloc); err != nil {
			return fmt.Errorf("insert service allocation: %w", err)
		}
	}
	for i, text := range terms {
		if _, err := repo.InsertTerm(ctx, Term{OfferID: offerID, Text: text, LineOrder: i + 1}); err != nil {
			return fmt.Errorf("insert term: %w", err)
		}
	}
	return nil
}

// validateSendable enforces the send preconditions that go beyond pricing.
func validateSendable(offer *Offer, snap *InquirySnapshot) error {
	if lifecycle.RequiresActualTotal(lifecycle.StatusOfferSent) &&
		(offer.Summary == nil || offer.Summary.ActualOfferCents == nil) {
		return shared.Validationf("actual_offer_cents", "must be set before sending")
	}
	var allocated float64
	hasPositive := false
	for _, alloc := range offer.SpaceAllocations {
		allocated += alloc.AllocatedSizeM2
		if alloc.AllocatedSizeM2 > 0 {
			hasPositive = true
		}
	}
	if !hasPositive {
		return shared.Validationf("space_allocations", "at least one allocation with positive size is required")
	}
	if requested := snap.TotalRequestedM2(); allocated < requested {
		return shared.Validationf("allocated_size_m2", "total allocated %.2f m2 is below the requested %.2f m2", allocated, requested)
	}
	return nil
}

func storedSpaceLines(allocs []SpaceAllocation) []pricing.SpaceLine {
	lines := make([]pricing.SpaceLine, 0, len(allocs))
	for _, a := range allocs {
		lines = append(lines, pricing.SpaceLine{
			SpaceID:         a.SpaceID,
			AllocatedSizeM2: a.AllocatedSizeM2,
			PricePerM2Cents: a.PricePerM2Cents,
			IsManualPrice:   a.IsManualPrice,
			OfferTotalCents: a.OfferTotalCents,
		})
	}
	return lines
}

func storedServiceLines(allocs []ServiceAllocation) []pricing.ServiceLine {
	lines := make([]pricing.ServiceLine, 0, len(allocs))
	for _, a := range allocs {
		unit := ""
		if a.UnitType != nil {
			unit = *a.UnitType
		}
		lines = append(lines, pricing.ServiceLine{
			ServiceID:         a.ServiceID,
			PricingType:       a.PricingType,
			Quantity:          a.Quantity,
			PricePerHourCents: a.PricePerHourCents,
			PricePerUnitCents: a.PricePerUnitCents,
			UnitType:          unit,
			FixedPriceCents:   a.FixedPriceCents,
		})
	}
	return lines
}
