package types

import "time"

type AlertSeverity string

const (
	AlertSeverityInfo     AlertSeverity = "info"
	AlertSeverityWarning  AlertSeverity = "warning"
	AlertSeverityCritical AlertSeverity = "critical"
)

type AlertType string

const (
	AlertTypeDailyLoss       AlertType = "daily_loss"
	AlertTypeDrawdown        AlertType = "drawdown"
	AlertTypeStopProximity   AlertType = "stop_proximity"
	AlertTypeStopBreach      AlertType = "stop_breach"
	AlertTypePositionLoss    AlertType = "position_loss"
	AlertTypeMissingStop     AlertType = "missing_stop"
	AlertTypeKillSwitch      AlertType = "kill_switch"
	AlertTypeReconciliation  AlertType = "reconciliation"
)

// RiskAlert is emitted on every breach or kill-switch state change.
// Delivery to listeners is best effort.
type RiskAlert struct {
	Severity  AlertSeverity  `json:"severity"`
	Type      AlertType      `json:"type"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// ReconciliationIssue records a divergence between the local ledger and
// the venue's authoritative position list. The venue value wins.
type ReconciliationIssue struct {
	Symbol        string    `json:"symbol"`
	Venue         string    `json:"venue"`
	LocalQuantity string    `json:"local_quantity"`
	VenueQuantity string    `json:"venue_quantity"`
	Resolution    string    `json:"resolution"`
	DetectedAt    time.Time `json:"detected_at"`
}

// KillSwitchEvent is an append-only audit row for trip/reset actions.
type KillSwitchEvent struct {
	Tripped   bool      `json:"tripped"`
	Actor     string    `json:"actor"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}
