// Package types holds the shared domain model of the execution core:
// order requests, persisted orders, fills, positions and risk alerts.
package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Opposite returns the side that closes a position opened with s.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

func ParseSide(raw string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "buy", "long":
		return SideBuy, nil
	case "sell", "short":
		return SideSell, nil
	default:
		return "", fmt.Errorf("invalid side: %q", raw)
	}
}

type OrderKind string

const (
	OrderKindMarket OrderKind = "market"
	OrderKindLimit  OrderKind = "limit"
)

type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "PENDING"
	OrderStatusSubmitted       OrderStatus = "SUBMITTED"
	OrderStatusOpen            OrderStatus = "OPEN"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
	OrderStatusRejected        OrderStatus = "REJECTED"
	OrderStatusFailed          OrderStatus = "FAILED"
)

// legalTransitions is the single authority on order lifecycle moves.
// Anything not listed here is an invariant violation.
var legalTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:         {OrderStatusSubmitted, OrderStatusRejected, OrderStatusFailed},
	OrderStatusSubmitted:       {OrderStatusOpen, OrderStatusPartiallyFilled, OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected, OrderStatusFailed},
	OrderStatusOpen:            {OrderStatusPartiallyFilled, OrderStatusFilled, OrderStatusCancelled, OrderStatusFailed},
	OrderStatusPartiallyFilled: {OrderStatusPartiallyFilled, OrderStatusFilled, OrderStatusCancelled, OrderStatusFailed},
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s == next {
		return false
	}
	for _, allowed := range legalTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected, OrderStatusFailed:
		return true
	default:
		return false
	}
}

// Resting reports whether the order is live at the venue but not done,
// i.e. still eligible for cancel/modify.
func (s OrderStatus) Resting() bool {
	switch s {
	case OrderStatusSubmitted, OrderStatusOpen, OrderStatusPartiallyFilled:
		return true
	default:
		return false
	}
}

// OrderRequest is the immutable input a strategy hands to the execution
// core. Quantity must be positive; side decides direction.
type OrderRequest struct {
	Symbol     string          `json:"symbol"`
	Venue      string          `json:"venue"`
	Side       Side            `json:"side"`
	Quantity   decimal.Decimal `json:"quantity"`
	Kind       OrderKind       `json:"kind"`
	LimitPrice decimal.Decimal `json:"limit_price"`
	StopLoss   decimal.Decimal `json:"stop_loss"`
	TakeProfit decimal.Decimal `json:"take_profit"`
	StrategyID string          `json:"strategy_id"`
}

// EntryPrice returns the price the request would execute at: the limit
// price when set, otherwise the supplied last traded price.
func (r OrderRequest) EntryPrice(lastPrice decimal.Decimal) decimal.Decimal {
	if r.LimitPrice.IsPositive() {
		return r.LimitPrice
	}
	return lastPrice
}

// Order is the persisted lifecycle record derived from a request.
type Order struct {
	ID             string          `json:"id"`
	Symbol         string          `json:"symbol"`
	Venue          string          `json:"venue"`
	Side           Side            `json:"side"`
	Quantity       decimal.Decimal `json:"quantity"`
	Kind           OrderKind       `json:"kind"`
	LimitPrice     decimal.Decimal `json:"limit_price"`
	StopLoss       decimal.Decimal `json:"stop_loss"`
	TakeProfit     decimal.Decimal `json:"take_profit"`
	StrategyID     string          `json:"strategy_id"`
	Status         OrderStatus     `json:"status"`
	ExternalID     string          `json:"external_id,omitempty"`
	FilledQuantity decimal.Decimal `json:"filled_quantity"`
	AvgFillPrice   decimal.Decimal `json:"avg_fill_price"`
	ErrorText      string          `json:"error_text,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	SubmittedAt    *time.Time      `json:"submitted_at,omitempty"`
}

// Trade is a single execution event against an order. Append-only.
// RealizedPnL is the profit locked in by this fill (zero for fills that
// only open or extend a position); summing it per day gives the daily
// realized P&L without replaying position history.
type Trade struct {
	ID          string          `json:"id"`
	OrderID     string          `json:"order_id"`
	Symbol      string          `json:"symbol"`
	Venue       string          `json:"venue"`
	Side        Side            `json:"side"`
	Quantity    decimal.Decimal `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Fee         decimal.Decimal `json:"fee"`
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
	ExecutedAt  time.Time       `json:"executed_at"`
}

// ValidationResult is the structured outcome of the pre-trade gate.
type ValidationResult struct {
	Valid       bool     `json:"valid"`
	FailedCheck string   `json:"failed_check,omitempty"`
	Reason      string   `json:"reason,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`
}

func Pass(warnings ...string) ValidationResult {
	return ValidationResult{Valid: true, Warnings: warnings}
}

func Fail(check, format string, args ...any) ValidationResult {
	return ValidationResult{Valid: false, FailedCheck: check, Reason: fmt.Sprintf(format, args...)}
}
