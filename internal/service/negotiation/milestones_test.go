package negotiation

import (
	"reflect"
	"testing"
	"time"

	"skillswap/internal/apperr"
	"skillswap/internal/model"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestEndDateScenario(t *testing.T) {
	ms := model.Milestones{{Title: "A", Duration: 3}, {Title: "B", Duration: 2}}
	start := date("2025-01-01")

	if got, want := EndDate(start, ms), date("2025-01-06"); !got.Equal(want) {
		t.Errorf("EndDate() = %v, want %v", got, want)
	}

	scheduled, end := Schedule(start, ms)
	if !end.Equal(date("2025-01-06")) {
		t.Errorf("Schedule() end = %v, want 2025-01-06", end)
	}
	if !scheduled[0].EndDate.Equal(date("2025-01-04")) || !scheduled[1].StartDate.Equal(date("2025-01-04")) {
		t.Errorf("milestones not back to back: %+v", scheduled)
	}
}

func TestMergeDurationsScenario(t *testing.T) {
	original := model.Milestones{{Title: "A", Duration: 3}, {Title: "B", Duration: 2}}
	incoming := model.Milestones{{Title: "A", Duration: 5}}

	if err := ValidateDurationEdit(original, incoming); err != nil {
		t.Fatalf("ValidateDurationEdit() error = %v", err)
	}
	merged := MergeDurations(original, incoming)
	want := model.Milestones{{Title: "A", Duration: 5}, {Title: "B", Duration: 2}}
	if !reflect.DeepEqual(merged, want) {
		t.Errorf("MergeDurations() = %+v, want %+v", merged, want)
	}
	if merged.TotalDays() != 7 {
		t.Errorf("TotalDays() = %d, want 7", merged.TotalDays())
	}
	if got := EndDate(date("2025-01-01"), merged); !got.Equal(date("2025-01-08")) {
		t.Errorf("EndDate() = %v, want 2025-01-08", got)
	}
}

func TestMergeKeepsOriginalOrder(t *testing.T) {
	original := model.Milestones{{Title: "A", Duration: 1}, {Title: "B", Duration: 1}, {Title: "C", Duration: 1}}
	merged := MergeDurations(original, model.Milestones{{Title: "C", Duration: 4}, {Title: "A", Duration: 2}})
	if got := merged.Titles(); !reflect.DeepEqual(got, []string{"A", "B", "C"}) {
		t.Errorf("titles = %v", got)
	}
	if merged[0].Duration != 2 || merged[2].Duration != 4 {
		t.Errorf("durations not merged: %+v", merged)
	}
	if original[0].Duration != 1 {
		t.Error("original slice mutated")
	}
}

func TestValidateDurationEdit(t *testing.T) {
	original := model.Milestones{{Title: "A", Duration: 3}, {Title: "B", Duration: 2}}
	tests := []struct {
		name     string
		incoming model.Milestones
		code     string
	}{
		{"new title", model.Milestones{{Title: "Z", Duration: 1}}, apperr.CodeInvalidMilestoneEdit},
		{"zero duration", model.Milestones{{Title: "A", Duration: 0}}, apperr.CodeInvalidInput},
		{"duplicate title", model.Milestones{{Title: "A", Duration: 1}, {Title: "A", Duration: 2}}, apperr.CodeInvalidInput},
		{"empty", model.Milestones{}, apperr.CodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDurationEdit(original, tt.incoming)
			if !apperr.HasCode(err, tt.code) {
				t.Errorf("ValidateDurationEdit() error = %v, want code %s", err, tt.code)
			}
		})
	}
}

func TestValidateMilestones(t *testing.T) {
	tests := []struct {
		name string
		ms   model.Milestones
		ok   bool
	}{
		{"one", model.Milestones{{Title: "A", Duration: 1}}, true},
		{"three", model.Milestones{{Title: "A", Duration: 1}, {Title: "B", Duration: 1}, {Title: "C", Duration: 1}}, true},
		{"four", model.Milestones{{Title: "A", Duration: 1}, {Title: "B", Duration: 1}, {Title: "C", Duration: 1}, {Title: "D", Duration: 1}}, false},
		{"none", nil, false},
		{"blank title", model.Milestones{{Title: " ", Duration: 1}}, false},
		{"negative", model.Milestones{{Title: "A", Duration: -1}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateMilestones(tt.ms); (err == nil) != tt.ok {
				t.Errorf("ValidateMilestones() error = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}
