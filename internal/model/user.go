package model

import "time"

type User struct {
	ID             int64      `json:"id"`
	FirstName      string     `json:"first_name"`
	Email          string     `json:"email"`
	SkillID        int64      `json:"skill_id"`
	SkillName      string     `json:"skill_name"`
	Available      bool       `json:"available"`
	IsVerified     bool       `json:"is_verified"`
	WarningCounter int        `json:"warning_counter"`
	IsBanned       bool       `json:"is_user_banned"`
	BannedTill     *time.Time `json:"banned_till,omitempty"`
	Role           string     `json:"role"`
}

// BannedAt reports whether the ban is still in force at now.
func (u *User) BannedAt(now time.Time) bool {
	return u.IsBanned && u.BannedTill != nil && u.BannedTill.After(now)
}

type Post struct {
	ID              int64      `json:"id"`
	UserID          int64      `json:"user_id"`
	Title           string     `json:"title"`
	SkillID         int64      `json:"skill_id"`
	SkillName       string     `json:"skill_name"`
	RequiredSkillID int64      `json:"required_skill_id"`
	Available       bool       `json:"available"`
	EndDate         *time.Time `json:"end_date,omitempty"`
	Milestones      Milestones `json:"milestones"`
}
