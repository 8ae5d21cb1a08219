package authz

import (
	"context"
	"fmt"

	"github.com/stashspace/stashspace/internal/shared"
)

// Oracle answers role and ownership questions for the guard. Backed by the
// users and inquiries repositories in production, by fakes in tests.
type Oracle interface {
	IsAdministrator(ctx context.Context, userID int64) (bool, error)
	OwnsInquiry(ctx context.Context, userID, inquiryID int64) (bool, error)
}

// Guard centralizes the role/ownership checks gating every mutating
// operation. A failed check yields shared.ErrPermissionDenied before any
// other work happens, and never reveals whether the resource exists.
type Guard struct {
	oracle Oracle
}

// NewGuard constructs a Guard.
func NewGuard(oracle Oracle) *Guard {
	return &Guard{oracle: oracle}
}

// RequireAdmin ensures the actor is an administrator.
func (g *Guard) RequireAdmin(ctx context.Context, actor Actor) error {
	if actor.Role != RoleAdministrator {
		return fmt.Errorf("%w: administrator role required", shared.ErrPermissionDenied)
	}
	ok, err := g.oracle.IsAdministrator(ctx, actor.ID)
	if err != nil {
		return fmt.Errorf("authz: verify administrator: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: administrator role required", shared.ErrPermissionDenied)
	}
	return nil
}

// RequireInquiryOwner ensures the actor is the trader who created the inquiry.
func (g *Guard) RequireInquiryOwner(ctx context.Context, actor Actor, inquiryID int64) error {
	if actor.Role != RoleTrader {
		return fmt.Errorf("%w: owning trader required", shared.ErrPermissionDenied)
	}
	ok, err := g.oracle.OwnsInquiry(ctx, actor.ID, inquiryID)
	if err != nil {
		return fmt.Errorf("authz: verify ownership: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: owning trader required", shared.ErrPermissionDenied)
	}
	return nil
}

// RequireInquiryAccess allows administrators or the owning trader through.
// Used by role-filtered reads.
func (g *Guard) RequireInquiryAccess(ctx context.Context, actor Actor, inquiryID int64) error {
	switch actor.Role {
	case RoleAdministrator:
		return g.RequireAdmin(ctx, actor)
	case RoleTrader:
		return g.RequireInquiryOwner(ctx, actor, inquiryID)
	case RoleSystem:
		return nil
	default:
		return fmt.Errorf("%w: unknown role %q", shared.ErrPermissionDenied, actor.Role)
	}
}
