package domain

import "time"

// AlertSeverity ranks dashboard alerts.
type AlertSeverity string

const (
	SeverityInfo     AlertSeverity = "info"
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// Alert is a dashboard alert entry.
type Alert struct {
	ID        string        `json:"id"`
	Source    string        `json:"source"`
	Severity  AlertSeverity `json:"severity"`
	Message   string        `json:"message"`
	CreatedAt time.Time     `json:"createdAt"`
}

// Activity is a recent operational event shown on dashboards.
type Activity struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Actor       string    `json:"actor,omitempty"`
	OccurredAt  time.Time `json:"occurredAt"`
}

// DashboardSnapshot is replaced wholesale on every update.
type DashboardSnapshot struct {
	Metrics     map[string]float64 `json:"metrics"`
	Alerts      []Alert            `json:"alerts"`
	Activities  []Activity         `json:"activities"`
	LastUpdated time.Time          `json:"lastUpdated"`
}
