package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is the net signed exposure per (symbol, venue). Quantity is
// positive for long, negative for short. Rows are soft-closed, never
// deleted.
type Position struct {
	ID            string          `json:"id"`
	Symbol        string          `json:"symbol"`
	Venue         string          `json:"venue"`
	Quantity      decimal.Decimal `json:"quantity"`
	AvgEntryPrice decimal.Decimal `json:"avg_entry_price"`
	RealizedPnL   decimal.Decimal `json:"realized_pnl"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	StopLoss      decimal.Decimal `json:"stop_loss"`
	TakeProfit    decimal.Decimal `json:"take_profit"`
	HighSinceOpen decimal.Decimal `json:"high_since_open"`
	LowSinceOpen  decimal.Decimal `json:"low_since_open"`
	OpenedAt      time.Time       `json:"opened_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	ClosedAt      *time.Time      `json:"closed_at,omitempty"`
}

func (p Position) Open() bool  { return p.ClosedAt == nil }
func (p Position) Long() bool  { return p.Quantity.IsPositive() }
func (p Position) Short() bool { return p.Quantity.IsNegative() }

// Side returns the direction of the open exposure.
func (p Position) Side() Side {
	if p.Short() {
		return SideSell
	}
	return SideBuy
}

// AbsQuantity is the unsigned position size.
func (p Position) AbsQuantity() decimal.Decimal {
	return p.Quantity.Abs()
}

// MarkToMarket returns the unrealized P&L at the given price:
// long qty*(px-avg), short |qty|*(avg-px).
func (p Position) MarkToMarket(price decimal.Decimal) decimal.Decimal {
	if p.Quantity.IsZero() || !price.IsPositive() {
		return decimal.Zero
	}
	if p.Long() {
		return p.Quantity.Mul(price.Sub(p.AvgEntryPrice))
	}
	return p.Quantity.Abs().Mul(p.AvgEntryPrice.Sub(price))
}

// AccountSnapshot is the view of account state the validator and risk
// monitor read. It is assembled from the store plus the latest quote,
// never from a component-private cache.
type AccountSnapshot struct {
	Equity             decimal.Decimal `json:"equity"`
	Balance            decimal.Decimal `json:"balance"`
	SessionPeakEquity  decimal.Decimal `json:"session_peak_equity"`
	TodayRealizedPnL   decimal.Decimal `json:"today_realized_pnl"`
	TodayUnrealizedPnL decimal.Decimal `json:"today_unrealized_pnl"`
	OpenPositions      int             `json:"open_positions"`
	PendingOrders      int             `json:"pending_orders"`
	LastTradedPrice    decimal.Decimal `json:"last_traded_price"`
	KillSwitchTripped  bool            `json:"kill_switch_tripped"`
	Timestamp          time.Time       `json:"timestamp"`
}

// TodayLoss is today's total loss as a non-negative number (zero when
// the day is profitable).
func (s AccountSnapshot) TodayLoss() decimal.Decimal {
	total := s.TodayRealizedPnL.Add(s.TodayUnrealizedPnL)
	if total.IsNegative() {
		return total.Neg()
	}
	return decimal.Zero
}
