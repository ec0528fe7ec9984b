// Package store defines the persistence boundary of the execution core.
// The three background loops coordinate only through this store; nothing
// reads position state from a component-private cache.
package store

import (
	"context"
	"errors"
	"time"

	"tradecore/internal/types"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a looked-up record does not exist.
var ErrNotFound = errors.New("store: record not found")

// Store is the durable source of truth for orders, fills, positions and
// risk audit records.
type Store interface {
	OrderStore
	TradeStore
	PositionStore
	RiskStore
	Close() error
}

type OrderStore interface {
	CreateOrder(ctx context.Context, order *types.Order) error
	UpdateOrder(ctx context.Context, order *types.Order) error
	// MutateOrder applies fn to the current persisted row inside a
	// transaction, so a fill update and a concurrent cancel cannot
	// interleave on the same order.
	MutateOrder(ctx context.Context, id string, fn func(*types.Order) error) (*types.Order, error)
	GetOrder(ctx context.Context, id string) (*types.Order, error)
	GetOrderByExternalID(ctx context.Context, externalID string) (*types.Order, error)
	ListActiveOrders(ctx context.Context) ([]types.Order, error)
	ListRecentOrders(ctx context.Context, limit int) ([]types.Order, error)
}

type TradeStore interface {
	AppendTrade(ctx context.Context, trade types.Trade) error
	ListTradesForOrder(ctx context.Context, orderID string) ([]types.Trade, error)
	// SumRealizedPnLSince aggregates the realized P&L stamped on fills
	// executed at or after the cutoff (fees excluded).
	SumRealizedPnLSince(ctx context.Context, since time.Time) (decimal.Decimal, error)
	SumFeesSince(ctx context.Context, since time.Time) (decimal.Decimal, error)
}

type PositionStore interface {
	SavePosition(ctx context.Context, pos *types.Position) error
	// GetOpenPosition returns ErrNotFound when no active row exists for
	// the key; closed rows are never returned here.
	GetOpenPosition(ctx context.Context, symbol, venue string) (*types.Position, error)
	ListOpenPositions(ctx context.Context) ([]types.Position, error)
	ListRecentPositions(ctx context.Context, limit int) ([]types.Position, error)
}

type RiskStore interface {
	InsertRiskAlert(ctx context.Context, alert types.RiskAlert) error
	ListRecentRiskAlerts(ctx context.Context, limit int) ([]types.RiskAlert, error)
	InsertReconciliationIssue(ctx context.Context, issue types.ReconciliationIssue) error
	ListReconciliationIssues(ctx context.Context, limit int) ([]types.ReconciliationIssue, error)
	AppendKillSwitchEvent(ctx context.Context, event types.KillSwitchEvent) error
	// LastKillSwitchEvent restores the persisted kill-switch state on
	// startup; ErrNotFound means the switch has never been touched.
	LastKillSwitchEvent(ctx context.Context) (*types.KillSwitchEvent, error)
}
