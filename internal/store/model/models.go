// Package model contains the gorm table definitions. Monetary values are
// persisted as decimal strings so nothing round-trips through binary
// floating point.
package model

import (
	"gorm.io/datatypes"
)

type OrderModel struct {
	ID              string         `gorm:"column:id;primaryKey"`
	Symbol          string         `gorm:"column:symbol;index"`
	Venue           string         `gorm:"column:venue"`
	Side            string         `gorm:"column:side"`
	Quantity        string         `gorm:"column:quantity"`
	Kind            string         `gorm:"column:kind"`
	LimitPrice      string         `gorm:"column:limit_price"`
	StopLoss        string         `gorm:"column:stop_loss"`
	TakeProfit      string         `gorm:"column:take_profit"`
	StrategyID      string         `gorm:"column:strategy_id;index"`
	Status          string         `gorm:"column:status;index"`
	ExternalID      string         `gorm:"column:external_id;index"`
	FilledQuantity  string         `gorm:"column:filled_quantity"`
	AvgFillPrice    string         `gorm:"column:avg_fill_price"`
	ErrorText       string         `gorm:"column:error_text"`
	CreatedAtUnix   int64          `gorm:"column:created_at"`
	UpdatedAtUnix   int64          `gorm:"column:updated_at"`
	SubmittedAtUnix int64          `gorm:"column:submitted_at"`
}

func (OrderModel) TableName() string { return "orders" }

type TradeModel struct {
	ID             string `gorm:"column:id;primaryKey"`
	OrderID        string `gorm:"column:order_id;index"`
	Symbol         string `gorm:"column:symbol;index"`
	Venue          string `gorm:"column:venue"`
	Side           string `gorm:"column:side"`
	Quantity       string `gorm:"column:quantity"`
	Price          string `gorm:"column:price"`
	Fee            string `gorm:"column:fee"`
	RealizedPnL    string `gorm:"column:realized_pnl"`
	ExecutedAtUnix int64  `gorm:"column:executed_at;index"`
}

func (TradeModel) TableName() string { return "trades" }

// PositionModel keeps every row for audit; closed_at = 0 marks the one
// active row per (symbol, venue).
type PositionModel struct {
	ID            string `gorm:"column:id;primaryKey"`
	Symbol        string `gorm:"column:symbol;index:idx_position_key,priority:1"`
	Venue         string `gorm:"column:venue;index:idx_position_key,priority:2"`
	Quantity      string `gorm:"column:quantity"`
	AvgEntryPrice string `gorm:"column:avg_entry_price"`
	RealizedPnL   string `gorm:"column:realized_pnl"`
	UnrealizedPnL string `gorm:"column:unrealized_pnl"`
	StopLoss      string `gorm:"column:stop_loss"`
	TakeProfit    string `gorm:"column:take_profit"`
	HighSinceOpen string `gorm:"column:high_since_open"`
	LowSinceOpen  string `gorm:"column:low_since_open"`
	OpenedAtUnix  int64  `gorm:"column:opened_at"`
	UpdatedAtUnix int64  `gorm:"column:updated_at"`
	ClosedAtUnix  int64  `gorm:"column:closed_at;index:idx_position_key,priority:3"`
}

func (PositionModel) TableName() string { return "positions" }

type RiskAlertModel struct {
	ID            int64          `gorm:"column:id;primaryKey"`
	Severity      string         `gorm:"column:severity"`
	Type          string         `gorm:"column:type;index"`
	Message       string         `gorm:"column:message"`
	Details       datatypes.JSON `gorm:"column:details"`
	TimestampUnix int64          `gorm:"column:timestamp;index"`
}

func (RiskAlertModel) TableName() string { return "risk_alerts" }

type ReconciliationIssueModel struct {
	ID             int64  `gorm:"column:id;primaryKey"`
	Symbol         string `gorm:"column:symbol;index"`
	Venue          string `gorm:"column:venue"`
	LocalQuantity  string `gorm:"column:local_quantity"`
	VenueQuantity  string `gorm:"column:venue_quantity"`
	Resolution     string `gorm:"column:resolution"`
	DetectedAtUnix int64  `gorm:"column:detected_at;index"`
}

func (ReconciliationIssueModel) TableName() string { return "reconciliation_issues" }

type KillSwitchEventModel struct {
	ID            int64  `gorm:"column:id;primaryKey"`
	Tripped       int    `gorm:"column:tripped"`
	Actor         string `gorm:"column:actor"`
	Reason        string `gorm:"column:reason"`
	TimestampUnix int64  `gorm:"column:timestamp;index"`
}

func (KillSwitchEventModel) TableName() string { return "kill_switch_events" }
