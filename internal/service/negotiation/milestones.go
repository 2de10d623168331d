package negotiation

import (
	"fmt"
	"strings"
	"time"

	"skillswap/internal/apperr"
	"skillswap/internal/model"
)

const (
	MinMilestones = 1
	MaxMilestones = 3
)

// ValidateMilestones checks count, titles and durations of a full milestone
// list as submitted with an offer.
func ValidateMilestones(ms model.Milestones) error {
	if len(ms) < MinMilestones || len(ms) > MaxMilestones {
		return apperr.Validation(apperr.CodeInvalidInput,
			fmt.Sprintf("You must provide between %d and %d milestones", MinMilestones, MaxMilestones))
	}
	return validateEntries(ms)
}

func validateEntries(ms model.Milestones) error {
	seen := make(map[string]struct{}, len(ms))
	for _, m := range ms {
		if strings.TrimSpace(m.Title) == "" {
			return apperr.Validation(apperr.CodeInvalidInput, "Each milestone must have a title")
		}
		if m.Duration < 1 {
			return apperr.Validation(apperr.CodeInvalidInput, "Each milestone must have a valid duration (in days)")
		}
		if _, dup := seen[m.Title]; dup {
			return apperr.Validation(apperr.CodeInvalidInput, fmt.Sprintf("Duplicate milestone title %q", m.Title))
		}
		seen[m.Title] = struct{}{}
	}
	return nil
}

// ValidateDurationEdit checks that incoming only re-times milestones that
// exist in original.
func ValidateDurationEdit(original, incoming model.Milestones) error {
	if len(incoming) < MinMilestones || len(incoming) > MaxMilestones {
		return apperr.Validation(apperr.CodeInvalidInput,
			fmt.Sprintf("You must provide between %d and %d milestones", MinMilestones, MaxMilestones))
	}
	if err := validateEntries(incoming); err != nil {
		return err
	}
	titles := make(map[string]struct{}, len(original))
	for _, m := range original {
		titles[m.Title] = struct{}{}
	}
	for _, m := range incoming {
		if _, ok := titles[m.Title]; !ok {
			return apperr.Validation(apperr.CodeInvalidMilestoneEdit,
				"You are only allowed to edit durations of the original milestones!")
		}
	}
	return nil
}

// MergeDurations returns original with durations replaced by incoming where
// titles match. Order and untouched milestones are preserved.
func MergeDurations(original, incoming model.Milestones) model.Milestones {
	durations := make(map[string]int, len(incoming))
	for _, m := range incoming {
		durations[m.Title] = m.Duration
	}
	merged := make(model.Milestones, 0, len(original))
	for _, m := range original {
		out := model.Milestone{Title: m.Title, Duration: m.Duration}
		if d, ok := durations[m.Title]; ok {
			out.Duration = d
		}
		merged = append(merged, out)
	}
	return merged
}

// Schedule lays milestones back to back from start and returns the dated
// copy together with the overall end date.
func Schedule(start time.Time, ms model.Milestones) (model.Milestones, time.Time) {
	scheduled := make(model.Milestones, 0, len(ms))
	cursor := start
	for _, m := range ms {
		msStart := cursor
		cursor = cursor.AddDate(0, 0, m.Duration)
		msEnd := cursor
		scheduled = append(scheduled, model.Milestone{
			Title:     m.Title,
			Duration:  m.Duration,
			StartDate: &msStart,
			EndDate:   &msEnd,
		})
	}
	return scheduled, cursor
}

// EndDate is start plus the summed milestone durations.
func EndDate(start time.Time, ms model.Milestones) time.Time {
	return start.AddDate(0, 0, ms.TotalDays())
}
