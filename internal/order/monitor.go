package order

import (
	"context"
	"fmt"
	"time"

	"tradecore/internal/gateway/venue"
	"tradecore/internal/logger"
	"tradecore/internal/position"
	"tradecore/internal/scheduler"
	"tradecore/internal/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RunStatusMonitor polls the venue for the state of every active order
// and folds updates into the store. Blocks until ctx is done.
func (m *Manager) RunStatusMonitor(ctx context.Context) {
	s := scheduler.NewIntervalScheduler("status-monitor", m.cfg.StatusPollInterval)
	s.RunImmediately = true
	s.Start(ctx, m.PollOnce)
}

// PollOnce executes one status-monitor cycle. Exported so tests and the
// webhook path can drive a cycle deterministically.
func (m *Manager) PollOnce(ctx context.Context) error {
	active, err := m.store.ListActiveOrders(ctx)
	if err != nil {
		return fmt.Errorf("list active orders: %w", err)
	}
	tracked := active[:0]
	for i := range active {
		if active[i].ExternalID != "" && active[i].Status.Resting() {
			tracked = append(tracked, active[i])
		}
	}
	if len(tracked) == 0 {
		return nil
	}

	var updates []venue.OrderUpdate
	err = m.venueCall(ctx, "list_open_orders", func(cctx context.Context) error {
		var err error
		updates, err = m.gateway.ListOpenOrders(cctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("list venue orders: %w", err)
	}
	byExternal := make(map[string]venue.OrderUpdate, len(updates))
	for _, u := range updates {
		byExternal[u.ExternalID] = u
	}

	for i := range tracked {
		u, ok := byExternal[tracked[i].ExternalID]
		if !ok {
			// Not in the venue's view this cycle; reconciliation owns
			// the divergence if it persists.
			continue
		}
		if err := m.applyVenueUpdate(ctx, tracked[i], u); err != nil {
			logger.Errorf("status monitor: order %s: %v", tracked[i].ID, err)
		}
	}
	return nil
}

// applyVenueUpdate folds one venue-side order state into the store. Fill
// quantities from the venue are cumulative; the delta against the local
// row is what gets booked as a trade and pushed through the position
// manager, synchronously, before the cycle moves on.
func (m *Manager) applyVenueUpdate(ctx context.Context, ord types.Order, u venue.OrderUpdate) error {
	var fillQty, fillPrice decimal.Decimal

	updated, err := m.store.MutateOrder(ctx, ord.ID, func(o *types.Order) error {
		fillQty = u.FilledQuantity.Sub(o.FilledQuantity)
		if fillQty.IsNegative() {
			// Cumulative fills never shrink; treat a regression as noise.
			logger.Warnf("order %s: venue filled %s < local %s, ignoring fill", o.ID, u.FilledQuantity, o.FilledQuantity)
			fillQty = decimal.Zero
		}
		if fillQty.IsPositive() {
			newNotional := u.FilledQuantity.Mul(u.AvgFillPrice)
			oldNotional := o.FilledQuantity.Mul(o.AvgFillPrice)
			fillPrice = newNotional.Sub(oldNotional).Div(fillQty)
			o.FilledQuantity = u.FilledQuantity
			o.AvgFillPrice = u.AvgFillPrice
		}
		if u.Status != o.Status {
			if o.Status.CanTransitionTo(u.Status) {
				o.Status = u.Status
			} else {
				logger.Warnf("order %s: illegal transition %s -> %s from venue, keeping local status",
					o.ID, o.Status, u.Status)
			}
		}
		o.UpdatedAt = time.Now()
		return nil
	})
	if err != nil {
		return fmt.Errorf("apply venue update: %w", err)
	}

	if !fillQty.IsPositive() {
		return nil
	}

	executedAt := u.UpdatedAt
	if executedAt.IsZero() {
		executedAt = time.Now()
	}
	realized, err := m.positions.OnFill(ctx, position.Fill{
		Symbol:     updated.Symbol,
		Venue:      updated.Venue,
		Side:       updated.Side,
		Quantity:   fillQty,
		Price:      fillPrice,
		StopLoss:   updated.StopLoss,
		TakeProfit: updated.TakeProfit,
		ExecutedAt: executedAt,
	})
	if err != nil {
		return fmt.Errorf("book fill into position: %w", err)
	}

	trade := types.Trade{
		ID:          uuid.NewString(),
		OrderID:     updated.ID,
		Symbol:      updated.Symbol,
		Venue:       updated.Venue,
		Side:        updated.Side,
		Quantity:    fillQty,
		Price:       fillPrice,
		Fee:         fillQty.Mul(fillPrice).Mul(m.cfg.FeeRate),
		RealizedPnL: realized,
		ExecutedAt:  executedAt,
	}
	if err := m.store.AppendTrade(ctx, trade); err != nil {
		return fmt.Errorf("append trade: %w", err)
	}
	logger.Infof("fill: order=%s %s %s qty=%s price=%s fee=%s realized=%s status=%s",
		updated.ID, updated.Symbol, updated.Side, fillQty, fillPrice, trade.Fee, realized, updated.Status)
	return nil
}
