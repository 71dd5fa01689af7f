package models

import "time"

// DashboardEvent is a single journal entry.
type DashboardEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`        // FAN_CONTROL | RANGE_CHANGE | DELETE_DATA | REFRESH_FAILED | ...
	Description string    `json:"description"` // human-readable
	Metadata    any       `json:"metadata,omitempty"`
}
