// Package penalty applies the missed-deadline warning and ban rule.
package penalty

import "time"

const (
	// WarningThreshold is the number of prior warnings after which the next
	// strike bans instead of warning.
	WarningThreshold = 2
	BanDuration      = 7 * 24 * time.Hour
)

// Verdict is the user state after one strike.
type Verdict struct {
	WarningCounter int        `json:"warning_counter"`
	Banned         bool       `json:"is_user_banned"`
	BannedTill     *time.Time `json:"banned_till,omitempty"`
}

// Decide returns the state after a missed deadline for a user that already
// has warnings strikes.
func Decide(warnings int, now time.Time) Verdict {
	if warnings < WarningThreshold {
		return Verdict{WarningCounter: warnings + 1}
	}
	till := now.Add(BanDuration)
	return Verdict{Banned: true, BannedTill: &till}
}

func (v Verdict) Kind() string {
	if v.Banned {
		return "ban"
	}
	return "warning"
}
