// Package lifecycle implements the unified booking status machine shared by
// inquiries and offers. The machine only decides: it validates a requested
// transition for an actor role and reports the side effects the caller must
// perform. All persistence happens in the offers/inquiries repositories.
package lifecycle

import (
	"fmt"
	"time"

	"github.com/stashspace/stashspace/internal/authz"
	"github.com/stashspace/stashspace/internal/shared"
)

// Status is the unified lifecycle enum. An offer's status drives the owning
// inquiry's status forward, so both share one value set.
type Status string

const (
	StatusDraft            Status = "draft"
	StatusSubmitted        Status = "submitted"
	StatusUnderReview      Status = "under_review"
	StatusOfferDraft       Status = "offer_draft"
	StatusOfferSent        Status = "offer_sent"
	StatusChangesRequested Status = "changes_requested"
	StatusAccepted         Status = "accepted"
	StatusRejected         Status = "rejected"
	StatusCancelled        Status = "cancelled"
	StatusExpired          Status = "expired"
	StatusConfirmed        Status = "confirmed"
	StatusCompleted        Status = "completed"
	StatusArchived         Status = "archived"
)

// OfferValidity is how long a sent offer stays open for a response.
const OfferValidity = 7 * 24 * time.Hour

var allStatuses = map[Status]struct{}{
	StatusDraft: {}, StatusSubmitted: {}, StatusUnderReview: {},
	StatusOfferDraft: {}, StatusOfferSent: {}, StatusChangesRequested: {},
	StatusAccepted: {}, StatusRejected: {}, StatusCancelled: {},
	StatusExpired: {}, StatusConfirmed: {}, StatusCompleted: {},
	StatusArchived: {},
}

// Valid reports whether s is a known lifecycle status.
func (s Status) Valid() bool {
	_, ok := allStatuses[s]
	return ok
}

// Terminal reports whether no further transitions leave s.
func (s Status) Terminal() bool {
	switch s {
	case StatusRejected, StatusCancelled, StatusExpired, StatusArchived:
		return true
	}
	return false
}

// Effects describes the side effects the repository must perform alongside a
// committed transition.
type Effects struct {
	// StampValidUntil: set valid_until to now + OfferValidity.
	StampValidUntil bool
	// ClearValidUntil: null out valid_until.
	ClearValidUntil bool
	// CreateBooking: insert the confirmed booking row linked to the offer.
	CreateBooking bool
	// Notify: the transition is of interest to a counter-party; the Notifier
	// resolves recipients and templates from its own status-keyed table.
	Notify bool
}

// transitions maps current status to the set of next statuses each role may
// request. Absence means denial.
var transitions = map[Status]map[authz.Role][]Status{
	StatusDraft: {
		authz.RoleTrader: {StatusSubmitted, StatusCancelled},
	},
	StatusSubmitted: {
		authz.RoleAdministrator: {StatusUnderReview, StatusCancelled},
	},
	StatusUnderReview: {
		authz.RoleAdministrator: {StatusOfferDraft, StatusCancelled},
	},
	StatusOfferDraft: {
		authz.RoleAdministrator: {StatusOfferSent, StatusCancelled},
	},
	StatusOfferSent: {
		authz.RoleTrader: {StatusAccepted, StatusRejected, StatusChangesRequested},
		authz.RoleSystem: {StatusExpired},
	},
	StatusChangesRequested: {
		authz.RoleAdministrator: {StatusOfferDraft, StatusCancelled},
	},
	StatusAccepted: {
		authz.RoleAdministrator: {StatusConfirmed, StatusCancelled},
	},
	StatusConfirmed: {
		authz.RoleAdministrator: {StatusCompleted, StatusCancelled},
	},
	StatusCompleted: {
		authz.RoleAdministrator: {StatusArchived},
	},
}

// notifying lists the transitions-of-interest. A committed move into one of
// these statuses must trigger exactly one Notifier call.
var notifying = map[Status]struct{}{
	StatusSubmitted:        {},
	StatusOfferSent:        {},
	StatusChangesRequested: {},
	StatusAccepted:         {},
	StatusRejected:         {},
	StatusCancelled:        {},
	StatusExpired:          {},
	StatusConfirmed:        {},
	StatusCompleted:        {},
}

// Transition validates the move from current to next for the given role and
// returns the side effects the caller must perform. A same-state transition
// is a no-op allowed for any role and carries no effects.
func Transition(current, next Status, role authz.Role) (Effects, error) {
	if current == next {
		return Effects{}, nil
	}
	if !current.Valid() || !next.Valid() {
		return Effects{}, transitionError(current, next)
	}
	allowed := false
	for _, s := range transitions[current][role] {
		if s == next {
			allowed = true
			break
		}
	}
	if !allowed {
		return Effects{}, transitionError(current, next)
	}

	eff := Effects{}
	switch next {
	case StatusOfferSent:
		eff.StampValidUntil = true
	case StatusExpired:
		eff.ClearValidUntil = true
	case StatusAccepted:
		eff.CreateBooking = true
	}
	if _, ok := notifying[next]; ok {
		eff.Notify = true
	}
	return eff, nil
}

// RequiresActualTotal reports whether entering next demands a non-null
// OfferSummary.actual. The repository checks this before persisting anything.
func RequiresActualTotal(next Status) bool {
	return next == StatusOfferSent
}

func transitionError(current, next Status) error {
	return fmt.Errorf("%w: %s -> %s", shared.ErrInvalidTransition, current, next)
}
