// Package venue defines the abstraction over the external trading venue.
// The execution core consumes this interface; the venue-specific wire
// client lives outside the core and plugs in behind it.
package venue

import (
	"context"
	"errors"
	"time"

	"tradecore/internal/types"

	"github.com/shopspring/decimal"
)

// ErrUnknownOrder is returned when the venue does not recognize an
// external id (already purged, or never acknowledged).
var ErrUnknownOrder = errors.New("venue: unknown order")

// ErrRejected means the venue understood the request and refused it.
// The order manager maps it to REJECTED; any other submit error means
// the outcome is unknown and maps to FAILED.
var ErrRejected = errors.New("venue: order rejected")

// OrderUpdate is the venue's view of one working or finished order.
// FilledQuantity/AvgFillPrice are cumulative; the core derives fill
// deltas from them.
type OrderUpdate struct {
	ExternalID     string
	Status         types.OrderStatus
	FilledQuantity decimal.Decimal
	AvgFillPrice   decimal.Decimal
	UpdatedAt      time.Time
}

// Position is one entry in the venue's authoritative position list.
// Quantity is signed: negative means short.
type Position struct {
	Symbol   string
	Quantity decimal.Decimal
	AvgPrice decimal.Decimal
}

// ModifyFields carries the mutable attributes of a resting order. Nil
// fields are left untouched at the venue.
type ModifyFields struct {
	LimitPrice *decimal.Decimal
	StopLoss   *decimal.Decimal
	TakeProfit *decimal.Decimal
	Quantity   *decimal.Decimal
}

func (f ModifyFields) Empty() bool {
	return f.LimitPrice == nil && f.StopLoss == nil && f.TakeProfit == nil && f.Quantity == nil
}

// Gateway is the venue contract the order manager drives. Every call is
// expected to be bounded by the caller's context deadline.
type Gateway interface {
	// Submit places the order and returns the venue-assigned id.
	Submit(ctx context.Context, order *types.Order) (externalID string, err error)
	Cancel(ctx context.Context, externalID string) error
	Modify(ctx context.Context, externalID string, fields ModifyFields) error
	ListOpenOrders(ctx context.Context) ([]OrderUpdate, error)
	ListPositions(ctx context.Context) ([]Position, error)
}
