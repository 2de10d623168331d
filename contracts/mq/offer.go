package mq

import (
	"time"

	"skillswap/internal/model"
)

// OfferCreatedPayload notifies the post owner of a new offer.
type OfferCreatedPayload struct {
	OfferID         int64  `json:"offerId"`
	ReceiverID      int64  `json:"receiverId"`
	SenderFirstName string `json:"senderFirstName"`
	ReceiverSkill   string `json:"receiverSkill"`
	SenderSkill     string `json:"senderSkill"`
	TraceID         string `json:"trace_id,omitempty"`
}

// CounterOfferPayload notifies the offer sender that the receiver countered.
// ReceiverID is the offer receiver, who authored the counter.
type CounterOfferPayload struct {
	OfferID        int64  `json:"offerId"`
	CounterOfferID int64  `json:"counterOfferId"`
	ReceiverID     int64  `json:"receiverId"`
	SenderID       int64  `json:"senderId"`
	TraceID        string `json:"trace_id,omitempty"`
}

// OfferDecisionPayload carries an accept, reject or withdraw decision.
// SenderID and ReceiverID always refer to the original offer's parties.
type OfferDecisionPayload struct {
	OfferID    int64  `json:"offerId"`
	ReceiverID int64  `json:"receiverId"`
	SenderID   int64  `json:"senderId"`
	TraceID    string `json:"trace_id,omitempty"`
}

// ProjectPayload materializes the project for an accepted offer.
// User1 is the post owner, User2 the offer sender.
type ProjectPayload struct {
	OfferID         int64            `json:"offerId"`
	User1ID         int64            `json:"user_1_id"`
	User2ID         int64            `json:"user_2_id"`
	User1Milestones model.Milestones `json:"user_1_milestones"`
	User1Deadline   *time.Time       `json:"user_1_deadline"`
	User2Milestones model.Milestones `json:"user_2_milestones"`
	User2Deadline   *time.Time       `json:"user_2_deadline"`
	AcceptedAt      time.Time        `json:"acceptedAt"`
	TraceID         string           `json:"trace_id,omitempty"`
}

// ChatMessagePayload persists one chat message.
type ChatMessagePayload struct {
	RoomID    string    `json:"roomId"`
	OfferID   int64     `json:"offerId"`
	SenderID  int64     `json:"senderId"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timeStamp"`
	TraceID   string    `json:"trace_id,omitempty"`
}

// MissedDeadlinePayload penalizes one party of one project.
type MissedDeadlinePayload struct {
	ProjectID int64  `json:"projectId"`
	UserID    int64  `json:"userId"`
	TraceID   string `json:"trace_id,omitempty"`
}
