package domain

import "time"

// Severity classifies an activity entry.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
)

// ActivityItem is one entry of the caller-visible audit trail.
type ActivityItem struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Detail    string    `json:"detail"`
	Timestamp time.Time `json:"timestamp"`
	Severity  Severity  `json:"severity"`
}
