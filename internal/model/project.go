package model

import "time"

type ProjectPhase string

const (
	PhaseInProgress ProjectPhase = "In-progress"
	PhaseHanded     ProjectPhase = "Handed"
	PhaseClosed     ProjectPhase = "Closed"
)

type Project struct {
	ID              int64        `json:"id"`
	OfferID         int64        `json:"offer_id"`
	User1ID         int64        `json:"user_1_id"`
	User2ID         int64        `json:"user_2_id"`
	User1Milestones Milestones   `json:"user_1_milestones"`
	User2Milestones Milestones   `json:"user_2_milestones"`
	User1Deadline   *time.Time   `json:"user_1_deadline,omitempty"`
	User2Deadline   *time.Time   `json:"user_2_deadline,omitempty"`
	User1Link       *string      `json:"user_1_project_link,omitempty"`
	User2Link       *string      `json:"user_2_project_link,omitempty"`
	AcceptedAt      time.Time    `json:"accepted_at"`
	Phase           ProjectPhase `json:"project_phase"`
}

// IsParty reports whether userID is one of the two collaborators.
func (p *Project) IsParty(userID int64) bool {
	return p.User1ID == userID || p.User2ID == userID
}

// MissedDeadlines returns the parties whose deadline passed before now
// without a submitted link.
func (p *Project) MissedDeadlines(now time.Time) []int64 {
	var missed []int64
	if p.User1Link == nil && p.User1Deadline != nil && now.After(*p.User1Deadline) {
		missed = append(missed, p.User1ID)
	}
	if p.User2Link == nil && p.User2Deadline != nil && now.After(*p.User2Deadline) {
		missed = append(missed, p.User2ID)
	}
	return missed
}

type ChatMessage struct {
	ID        int64     `json:"id"`
	RoomID    string    `json:"room_id"`
	OfferID   int64     `json:"offer_id"`
	SenderID  int64     `json:"sender_id"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
