package notify

import "time"

// Category identifies the lifecycle transition a notification reports.
type Category string

const (
	CategoryInquirySubmitted Category = "inquiry_submitted"
	CategoryOfferSent        Category = "offer_sent"
	CategoryChangesRequested Category = "changes_requested"
	CategoryOfferAccepted    Category = "offer_accepted"
	CategoryOfferRejected    Category = "offer_rejected"
	CategoryOfferExpired     Category = "offer_expired"
	CategoryCancelled        Category = "inquiry_cancelled"
	CategoryConfirmed        Category = "booking_confirmed"
	CategoryCompleted        Category = "booking_completed"
)

// Notification is one fire-and-forget message to a single recipient. Rows are
// written by the dispatcher and only ever read or marked by their recipient.
type Notification struct {
	ID          int64     `json:"id" db:"id"`
	RecipientID int64     `json:"recipient_id" db:"recipient_id"`
	Category    Category  `json:"category" db:"category"`
	Title       string    `json:"title" db:"title"`
	Body        string    `json:"body" db:"body"`
	InquiryID   int64     `json:"inquiry_id" db:"inquiry_id"`
	IsRead      bool      `json:"is_read" db:"is_read"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
