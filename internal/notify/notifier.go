package notify

import (
	"context"
	"log/slog"

	"github.com/stashspace/stashspace/internal/booking/inquiries"
	"github.com/stashspace/stashspace/internal/booking/offers"
)

// Enqueuer hands the event to the background queue. Implemented by the jobs
// client in production and by fakes in tests.
type Enqueuer interface {
	EnqueueNotifyDispatch(ctx context.Context, evt Event) error
}

// Notifier publishes committed status changes to the queue. Failures are
// logged and swallowed: notification is best-effort, never part of the
// transaction that produced the transition.
type Notifier struct {
	enqueuer Enqueuer
	logger   *slog.Logger
}

// NewNotifier constructs a Notifier.
func NewNotifier(enqueuer Enqueuer, logger *slog.Logger) *Notifier {
	return &Notifier{enqueuer: enqueuer, logger: logger}
}

func (n *Notifier) publish(ctx context.Context, evt Event) {
	if err := n.enqueuer.EnqueueNotifyDispatch(ctx, evt); err != nil {
		n.logger.Error("enqueue notification",
			slog.Int64("inquiry_id", evt.InquiryID),
			slog.String("status", string(evt.Status)),
			slog.Any("error", err))
	}
}

// ForOffers adapts the notifier to the offer service's consumer interface.
func (n *Notifier) ForOffers() offers.Notifier {
	return offerNotifier{n}
}

// ForInquiries adapts the notifier to the inquiry service's consumer
// interface.
func (n *Notifier) ForInquiries() inquiries.Notifier {
	return inquiryNotifier{n}
}

type offerNotifier struct{ core *Notifier }

func (o offerNotifier) StatusChanged(ctx context.Context, evt offers.StatusEvent) {
	o.core.publish(ctx, Event{
		InquiryID:      evt.InquiryID,
		OfferID:        evt.OfferID,
		TraderID:       evt.TraderID,
		Status:         evt.Status,
		TotalCostCents: evt.TotalCostCents,
	})
}

type inquiryNotifier struct{ core *Notifier }

func (i inquiryNotifier) StatusChanged(ctx context.Context, evt inquiries.StatusEvent) {
	i.core.publish(ctx, Event{
		InquiryID: evt.InquiryID,
		TraderID:  evt.TraderID,
		Status:    evt.Status,
	})
}
