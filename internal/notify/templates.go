package notify

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/stashspace/stashspace/internal/booking/lifecycle"
)

// Event is the transition fact the dispatcher renders into notifications.
// OfferID is zero for transitions driven directly on the inquiry.
type Event struct {
	InquiryID      int64            `json:"inquiry_id"`
	OfferID        int64            `json:"offer_id,omitempty"`
	TraderID       int64            `json:"trader_id"`
	Status         lifecycle.Status `json:"status"`
	TotalCostCents *int64           `json:"total_cost_cents,omitempty"`
}

type audience int

const (
	audienceTrader audience = iota
	audienceAdmins
)

type template struct {
	Audience audience
	Category Category
	Title    string
	Body     func(p *message.Printer, evt Event) string
}

var printer = message.NewPrinter(language.English)

// templates is the fixed lookup keyed by status. A status absent from this
// table produces no notifications.
var templates = map[lifecycle.Status]template{
	lifecycle.StatusSubmitted: {
		Audience: audienceAdmins,
		Category: CategoryInquirySubmitted,
		Title:    "New inquiry submitted",
		Body: func(p *message.Printer, evt Event) string {
			return p.Sprintf("Inquiry #%d has been submitted and is waiting for review.", evt.InquiryID)
		},
	},
	lifecycle.StatusOfferSent: {
		Audience: audienceTrader,
		Category: CategoryOfferSent,
		Title:    "You have received an offer",
		Body: func(p *message.Printer, evt Event) string {
			if evt.TotalCostCents != nil {
				return p.Sprintf("An offer of $%.2f has been made on your inquiry #%d. It is valid for 7 days.",
					float64(*evt.TotalCostCents)/100, evt.InquiryID)
			}
			return p.Sprintf("An offer has been made on your inquiry #%d. It is valid for 7 days.", evt.InquiryID)
		},
	},
	lifecycle.StatusChangesRequested: {
		Audience: audienceAdmins,
		Category: CategoryChangesRequested,
		Title:    "Changes requested on an offer",
		Body: func(p *message.Printer, evt Event) string {
			return p.Sprintf("The trader has requested changes to the offer on inquiry #%d.", evt.InquiryID)
		},
	},
	lifecycle.StatusAccepted: {
		Audience: audienceAdmins,
		Category: CategoryOfferAccepted,
		Title:    "Offer accepted",
		Body: func(p *message.Printer, evt Event) string {
			return p.Sprintf("The offer on inquiry #%d has been accepted.", evt.InquiryID)
		},
	},
	lifecycle.StatusRejected: {
		Audience: audienceAdmins,
		Category: CategoryOfferRejected,
		Title:    "Offer rejected",
		Body: func(p *message.Printer, evt Event) string {
			return p.Sprintf("The offer on inquiry #%d has been rejected.", evt.InquiryID)
		},
	},
	lifecycle.StatusExpired: {
		Audience: audienceTrader,
		Category: CategoryOfferExpired,
		Title:    "Offer expired",
		Body: func(p *message.Printer, evt Event) string {
			return p.Sprintf("The offer on your inquiry #%d expired without a response.", evt.InquiryID)
		},
	},
	lifecycle.StatusCancelled: {
		Audience: audienceTrader,
		Category: CategoryCancelled,
		Title:    "Inquiry cancelled",
		Body: func(p *message.Printer, evt Event) string {
			return p.Sprintf("Inquiry #%d has been cancelled.", evt.InquiryID)
		},
	},
	lifecycle.StatusConfirmed: {
		Audience: audienceTrader,
		Category: CategoryConfirmed,
		Title:    "Booking confirmed",
		Body: func(p *message.Printer, evt Event) string {
			return p.Sprintf("Your booking for inquiry #%d has been confirmed.", evt.InquiryID)
		},
	},
	lifecycle.StatusCompleted: {
		Audience: audienceTrader,
		Category: CategoryCompleted,
		Title:    "Booking completed",
		Body: func(p *message.Printer, evt Event) string {
			return p.Sprintf("Your booking for inquiry #%d has been completed.", evt.InquiryID)
		},
	},
}
