package venue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tradecore/internal/pkg/symbol"
	"tradecore/internal/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaperVenue is an in-memory venue used for local runs and tests. Orders
// are acknowledged immediately; fills are injected through Fill (or the
// webhook endpoint), mirroring how a real venue pushes executions.
type PaperVenue struct {
	mu        sync.Mutex
	orders    map[string]*paperOrder
	positions map[string]*Position
}

type paperOrder struct {
	order  types.Order
	update OrderUpdate
}

func NewPaperVenue() *PaperVenue {
	return &PaperVenue{
		orders:    make(map[string]*paperOrder),
		positions: make(map[string]*Position),
	}
}

func (v *PaperVenue) Submit(ctx context.Context, order *types.Order) (string, error) {
	if order == nil {
		return "", fmt.Errorf("paper venue: nil order")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	externalID := uuid.NewString()
	v.mu.Lock()
	v.orders[externalID] = &paperOrder{
		order: *order,
		update: OrderUpdate{
			ExternalID:     externalID,
			Status:         types.OrderStatusOpen,
			FilledQuantity: decimal.Zero,
			AvgFillPrice:   decimal.Zero,
			UpdatedAt:      time.Now(),
		},
	}
	v.mu.Unlock()
	return externalID, nil
}

func (v *PaperVenue) Cancel(ctx context.Context, externalID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	po, ok := v.orders[externalID]
	if !ok {
		return ErrUnknownOrder
	}
	if po.update.Status.Terminal() {
		return fmt.Errorf("paper venue: order %s already %s", externalID, po.update.Status)
	}
	po.update.Status = types.OrderStatusCancelled
	po.update.UpdatedAt = time.Now()
	return nil
}

func (v *PaperVenue) Modify(ctx context.Context, externalID string, fields ModifyFields) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	po, ok := v.orders[externalID]
	if !ok {
		return ErrUnknownOrder
	}
	if po.update.Status.Terminal() {
		return fmt.Errorf("paper venue: order %s already %s", externalID, po.update.Status)
	}
	if fields.LimitPrice != nil {
		po.order.LimitPrice = *fields.LimitPrice
	}
	if fields.StopLoss != nil {
		po.order.StopLoss = *fields.StopLoss
	}
	if fields.TakeProfit != nil {
		po.order.TakeProfit = *fields.TakeProfit
	}
	if fields.Quantity != nil {
		po.order.Quantity = *fields.Quantity
	}
	po.update.UpdatedAt = time.Now()
	return nil
}

func (v *PaperVenue) ListOpenOrders(ctx context.Context) ([]OrderUpdate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]OrderUpdate, 0, len(v.orders))
	for _, po := range v.orders {
		out = append(out, po.update)
	}
	return out, nil
}

func (v *PaperVenue) ListPositions(ctx context.Context) ([]Position, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]Position, 0, len(v.positions))
	for _, p := range v.positions {
		if p.Quantity.IsZero() {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

// Fill executes qty at price against a working order, updating the
// cumulative fill state and the venue-side position book.
func (v *PaperVenue) Fill(externalID string, qty, price decimal.Decimal) error {
	if !qty.IsPositive() || !price.IsPositive() {
		return fmt.Errorf("paper venue: fill qty and price must be positive")
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	po, ok := v.orders[externalID]
	if !ok {
		return ErrUnknownOrder
	}
	if po.update.Status.Terminal() {
		return fmt.Errorf("paper venue: cannot fill %s order %s", po.update.Status, externalID)
	}
	remaining := po.order.Quantity.Sub(po.update.FilledQuantity)
	if qty.GreaterThan(remaining) {
		qty = remaining
	}
	prevNotional := po.update.FilledQuantity.Mul(po.update.AvgFillPrice)
	newFilled := po.update.FilledQuantity.Add(qty)
	po.update.AvgFillPrice = prevNotional.Add(qty.Mul(price)).Div(newFilled)
	po.update.FilledQuantity = newFilled
	if newFilled.GreaterThanOrEqual(po.order.Quantity) {
		po.update.Status = types.OrderStatusFilled
	} else {
		po.update.Status = types.OrderStatusPartiallyFilled
	}
	po.update.UpdatedAt = time.Now()

	v.applyFillToBook(po.order.Symbol, po.order.Side, qty, price)
	return nil
}

func (v *PaperVenue) applyFillToBook(sym string, side types.Side, qty, price decimal.Decimal) {
	key := symbol.Normalize(sym)
	signed := qty
	if side == types.SideSell {
		signed = qty.Neg()
	}
	pos, ok := v.positions[key]
	if !ok {
		v.positions[key] = &Position{Symbol: key, Quantity: signed, AvgPrice: price}
		return
	}
	newQty := pos.Quantity.Add(signed)
	switch {
	case newQty.IsZero():
		pos.Quantity = decimal.Zero
		pos.AvgPrice = decimal.Zero
	case pos.Quantity.Sign() == signed.Sign() || pos.Quantity.IsZero():
		notional := pos.Quantity.Abs().Mul(pos.AvgPrice).Add(qty.Mul(price))
		pos.Quantity = newQty
		pos.AvgPrice = notional.Div(newQty.Abs())
	case newQty.Sign() != pos.Quantity.Sign():
		// Flipped through zero: remainder opens at the fill price.
		pos.Quantity = newQty
		pos.AvgPrice = price
	default:
		// Partial close: average entry is unchanged.
		pos.Quantity = newQty
	}
}

// SetPosition overrides the venue book for a symbol. Reconciliation
// tests use it to fabricate divergence from the local ledger.
func (v *PaperVenue) SetPosition(sym string, qty, avgPrice decimal.Decimal) {
	key := symbol.Normalize(sym)
	v.mu.Lock()
	v.positions[key] = &Position{Symbol: key, Quantity: qty, AvgPrice: avgPrice}
	v.mu.Unlock()
}
