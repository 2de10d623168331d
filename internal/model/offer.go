package model

import "time"

type OfferStatus string

const (
	OfferPending  OfferStatus = "Pending"
	OfferAccepted OfferStatus = "Accepted"
	OfferRejected OfferStatus = "Rejected"
)

// Terminal reports whether no further transition is allowed.
func (s OfferStatus) Terminal() bool {
	return s == OfferAccepted || s == OfferRejected
}

type Offer struct {
	ID             int64       `json:"id"`
	SenderID       int64       `json:"sender_id"`
	ReceiverID     int64       `json:"receiver_id"`
	PostID         int64       `json:"post_id"`
	Status         OfferStatus `json:"status"`
	IsCountered    bool        `json:"is_countered"`
	CounterOfferID *int64      `json:"counter_offer_id,omitempty"`
	Message        string      `json:"message"`
	StartDate      time.Time   `json:"start_date"`
	EndDate        time.Time   `json:"end_date"`
	Milestones     Milestones  `json:"milestones"`
	CreatedAt      time.Time   `json:"created_at"`
}

// CounterOffer fields are nullable; an absent field falls back to the
// parent offer's value on acceptance.
type CounterOffer struct {
	ID         int64      `json:"id"`
	Message    *string    `json:"message,omitempty"`
	StartDate  *time.Time `json:"start_date,omitempty"`
	EndDate    *time.Time `json:"end_date,omitempty"`
	Milestones Milestones `json:"milestones,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// OfferView is an offer joined with the names shown to its parties.
type OfferView struct {
	ID                int64      `json:"id"`
	PostTitle         string     `json:"post_title"`
	SenderFirstName   string     `json:"sender_first_name"`
	SenderEmail       string     `json:"sender_email,omitempty"`
	ReceiverFirstName string     `json:"receiver_first_name"`
	Message           string     `json:"message"`
	StartDate         time.Time  `json:"start_date"`
	EndDate           time.Time  `json:"end_date"`
	Milestones        Milestones `json:"milestones"`
	CreatedAt         time.Time  `json:"created_at"`
}

// CounterOfferView is a counter-offer as seen by either party.
type CounterOfferView struct {
	ID                     int64      `json:"id"`
	OfferID                int64      `json:"offer_id"`
	CounterSenderFirstName string     `json:"counter_offer_sender,omitempty"`
	Message                *string    `json:"counter_offer_message,omitempty"`
	StartDate              *time.Time `json:"counter_offer_start_date,omitempty"`
	EndDate                *time.Time `json:"counter_offer_end_date,omitempty"`
	Milestones             Milestones `json:"counter_offer_milestones,omitempty"`
}
