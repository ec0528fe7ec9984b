package order

import (
	"context"
	"fmt"
	"time"

	"tradecore/internal/logger"
	"tradecore/internal/types"

	"github.com/shopspring/decimal"
)

// Snapshot assembles the account view the validator and risk monitor
// consume. Everything is derived from the store plus the latest quote
// for symbol; nothing comes from in-memory order state, so the numbers
// survive a restart.
//
// Equity is the initial equity plus lifetime realized P&L, minus fees,
// plus the current unrealized P&L of open positions. Balance is equity
// minus the notional tied up in open positions.
func (m *Manager) Snapshot(ctx context.Context, symbol string) (types.AccountSnapshot, error) {
	var snap types.AccountSnapshot

	realized, err := m.store.SumRealizedPnLSince(ctx, time.Time{})
	if err != nil {
		return snap, fmt.Errorf("sum realized pnl: %w", err)
	}
	fees, err := m.store.SumFeesSince(ctx, time.Time{})
	if err != nil {
		return snap, fmt.Errorf("sum fees: %w", err)
	}

	midnight := startOfDay(time.Now())
	todayRealized, err := m.store.SumRealizedPnLSince(ctx, midnight)
	if err != nil {
		return snap, fmt.Errorf("sum today realized pnl: %w", err)
	}
	todayFees, err := m.store.SumFeesSince(ctx, midnight)
	if err != nil {
		return snap, fmt.Errorf("sum today fees: %w", err)
	}

	open, err := m.store.ListOpenPositions(ctx)
	if err != nil {
		return snap, fmt.Errorf("list open positions: %w", err)
	}
	unrealized := decimal.Zero
	used := decimal.Zero
	for i := range open {
		unrealized = unrealized.Add(open[i].UnrealizedPnL)
		used = used.Add(open[i].AbsQuantity().Mul(open[i].AvgEntryPrice))
	}

	active, err := m.store.ListActiveOrders(ctx)
	if err != nil {
		return snap, fmt.Errorf("list active orders: %w", err)
	}

	equity := m.cfg.InitialEquity.Add(realized).Sub(fees).Add(unrealized)

	snap = types.AccountSnapshot{
		Equity:             equity,
		Balance:            equity.Sub(used),
		TodayRealizedPnL:   todayRealized.Sub(todayFees),
		TodayUnrealizedPnL: unrealized,
		OpenPositions:      len(open),
		PendingOrders:      len(active),
		Timestamp:          time.Now(),
	}

	if symbol != "" && m.market != nil {
		quote, err := m.market.LastPrice(ctx, symbol)
		if err != nil {
			logger.Warnf("snapshot: no quote for %s: %v", symbol, err)
		} else {
			snap.LastTradedPrice = quote.Last
		}
	}
	if m.killSwitch != nil {
		snap.KillSwitchTripped = m.killSwitch()
	}

	m.mu.Lock()
	if equity.GreaterThan(m.sessionPeak) {
		m.sessionPeak = equity
	}
	snap.SessionPeakEquity = m.sessionPeak
	m.mu.Unlock()

	return snap, nil
}

func startOfDay(t time.Time) time.Time {
	y, mo, d := t.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, t.Location())
}
