package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Milestone is a titled project phase lasting Duration days.
type Milestone struct {
	Title     string     `json:"title"`
	Duration  int        `json:"duration"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}

// Milestones is stored as a JSONB column.
type Milestones []Milestone

func (m Milestones) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func (m *Milestones) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("milestones: unsupported scan type %T", src)
	}
}

// TotalDays sums the milestone durations.
func (m Milestones) TotalDays() int {
	total := 0
	for _, ms := range m {
		total += ms.Duration
	}
	return total
}

// Titles returns the titles in order.
func (m Milestones) Titles() []string {
	titles := make([]string, 0, len(m))
	for _, ms := range m {
		titles = append(titles, ms.Title)
	}
	return titles
}
