package order

import (
	"context"
	"fmt"
	"time"

	"tradecore/internal/gateway/venue"
	"tradecore/internal/logger"
	"tradecore/internal/scheduler"
	"tradecore/internal/types"

	"github.com/shopspring/decimal"
)

// RunReconciliation periodically compares the local ledger against the
// venue's authoritative state. Blocks until ctx is done.
func (m *Manager) RunReconciliation(ctx context.Context) {
	s := scheduler.NewIntervalScheduler("reconciliation", m.cfg.ReconcileInterval)
	s.Start(ctx, m.ReconcileOnce)
}

// ReconcileOnce executes one reconciliation cycle: expire stranded
// PENDING orders, settle orders the venue no longer knows, then compare
// positions symbol by symbol. The venue wins every divergence; each
// divergent symbol produces exactly one issue record.
func (m *Manager) ReconcileOnce(ctx context.Context) error {
	if err := m.expireStrandedPending(ctx); err != nil {
		logger.Warnf("reconcile: expire pending: %v", err)
	}

	var venueOrders []venue.OrderUpdate
	err := m.venueCall(ctx, "list_open_orders", func(cctx context.Context) error {
		var err error
		venueOrders, err = m.gateway.ListOpenOrders(cctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("list venue orders: %w", err)
	}
	if err := m.settleUnknownOrders(ctx, venueOrders); err != nil {
		logger.Warnf("reconcile: settle unknown orders: %v", err)
	}

	var venuePositions []venue.Position
	err = m.venueCall(ctx, "list_positions", func(cctx context.Context) error {
		var err error
		venuePositions, err = m.gateway.ListPositions(cctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("list venue positions: %w", err)
	}
	return m.reconcilePositions(ctx, venuePositions)
}

// expireStrandedPending fails PENDING rows old enough that their submit
// call cannot still be in flight. They exist when the process died
// between persisting the order and recording the venue's answer.
func (m *Manager) expireStrandedPending(ctx context.Context) error {
	active, err := m.store.ListActiveOrders(ctx)
	if err != nil {
		return err
	}
	cutoff := time.Now().Add(-2 * m.cfg.CallTimeout)
	for i := range active {
		o := active[i]
		if o.Status != types.OrderStatusPending || o.CreatedAt.After(cutoff) {
			continue
		}
		_, err := m.store.MutateOrder(ctx, o.ID, func(row *types.Order) error {
			if row.Status != types.OrderStatusPending {
				return nil
			}
			row.Status = types.OrderStatusFailed
			row.ErrorText = "stranded before venue acknowledgement"
			row.UpdatedAt = time.Now()
			return nil
		})
		if err != nil {
			return err
		}
		logger.Warnf("reconcile: stranded PENDING order %s marked FAILED", o.ID)
	}
	return nil
}

// settleUnknownOrders fails local resting orders whose external id the
// venue does not report. Their exposure, if any, is corrected by the
// position pass that follows.
func (m *Manager) settleUnknownOrders(ctx context.Context, venueOrders []venue.OrderUpdate) error {
	known := make(map[string]struct{}, len(venueOrders))
	for _, u := range venueOrders {
		known[u.ExternalID] = struct{}{}
	}
	active, err := m.store.ListActiveOrders(ctx)
	if err != nil {
		return err
	}
	for i := range active {
		o := active[i]
		if !o.Status.Resting() || o.ExternalID == "" {
			continue
		}
		if _, ok := known[o.ExternalID]; ok {
			continue
		}
		_, err := m.store.MutateOrder(ctx, o.ID, func(row *types.Order) error {
			if row.Status.Terminal() {
				return nil
			}
			if !row.Status.CanTransitionTo(types.OrderStatusFailed) {
				return fmt.Errorf("illegal transition %s -> FAILED", row.Status)
			}
			row.Status = types.OrderStatusFailed
			row.ErrorText = "unknown at venue during reconciliation"
			row.UpdatedAt = time.Now()
			return nil
		})
		if err != nil {
			return err
		}
		issue := types.ReconciliationIssue{
			Symbol:        o.Symbol,
			Venue:         o.Venue,
			LocalQuantity: o.Quantity.String(),
			VenueQuantity: "0",
			Resolution:    fmt.Sprintf("order %s unknown at venue, marked FAILED", o.ID),
			DetectedAt:    time.Now(),
		}
		if err := m.store.InsertReconciliationIssue(ctx, issue); err != nil {
			logger.Errorf("reconcile: record order issue: %v", err)
		}
		logger.Warnf("reconcile: order %s (external_id=%s) unknown at venue, marked FAILED", o.ID, o.ExternalID)
	}
	return nil
}

func (m *Manager) reconcilePositions(ctx context.Context, venuePositions []venue.Position) error {
	local, err := m.store.ListOpenPositions(ctx)
	if err != nil {
		return fmt.Errorf("list local positions: %w", err)
	}

	venueBySymbol := make(map[string]venue.Position, len(venuePositions))
	for _, p := range venuePositions {
		venueBySymbol[p.Symbol] = p
	}
	localBySymbol := make(map[string]types.Position, len(local))
	for _, p := range local {
		localBySymbol[p.Symbol] = p
	}

	symbols := make(map[string]struct{}, len(venueBySymbol)+len(localBySymbol))
	for s := range venueBySymbol {
		symbols[s] = struct{}{}
	}
	for s := range localBySymbol {
		symbols[s] = struct{}{}
	}

	for symbol := range symbols {
		localQty := decimal.Zero
		if p, ok := localBySymbol[symbol]; ok {
			localQty = p.Quantity
		}
		venueQty := decimal.Zero
		venueAvg := decimal.Zero
		if p, ok := venueBySymbol[symbol]; ok {
			venueQty = p.Quantity
			venueAvg = p.AvgPrice
		}
		if localQty.Equal(venueQty) {
			continue
		}

		issue := types.ReconciliationIssue{
			Symbol:        symbol,
			Venue:         m.cfg.VenueName,
			LocalQuantity: localQty.String(),
			VenueQuantity: venueQty.String(),
			Resolution:    "adopted venue quantity",
			DetectedAt:    time.Now(),
		}
		if err := m.store.InsertReconciliationIssue(ctx, issue); err != nil {
			logger.Errorf("reconcile: record position issue %s: %v", symbol, err)
		}
		logger.Warnf("reconcile: %s local=%s venue=%s, adopting venue", symbol, localQty, venueQty)

		if err := m.positions.AdoptVenueQuantity(ctx, symbol, m.cfg.VenueName, venueQty, venueAvg); err != nil {
			logger.Errorf("reconcile: adopt %s: %v", symbol, err)
		}
	}
	return nil
}
