// Package position maintains the net signed position per (symbol, venue)
// and is the single writer of position rows. The order manager calls it
// synchronously for each fill, so the ledger can never run ahead of the
// position book.
package position

import (
	"context"
	"fmt"
	"time"

	"tradecore/internal/logger"
	"tradecore/internal/pkg/symbol"
	"tradecore/internal/store"
	"tradecore/internal/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Fill is the execution event the manager consumes. Quantity is the
// unsigned fill size; Side gives it direction.
type Fill struct {
	Symbol     string
	Venue      string
	Side       types.Side
	Quantity   decimal.Decimal
	Price      decimal.Decimal
	StopLoss   decimal.Decimal
	TakeProfit decimal.Decimal
	ExecutedAt time.Time
}

type Manager struct {
	store store.PositionStore
}

func NewManager(st store.PositionStore) *Manager {
	return &Manager{store: st}
}

// OnFill applies one fill to the position book and returns the realized
// P&L delta it produced (zero when the fill only opens or extends).
// Position math is netting: one signed row per (symbol, venue).
func (m *Manager) OnFill(ctx context.Context, fill Fill) (decimal.Decimal, error) {
	if m == nil || m.store == nil {
		return decimal.Zero, fmt.Errorf("position manager not initialized")
	}
	if !fill.Quantity.IsPositive() || !fill.Price.IsPositive() {
		return decimal.Zero, fmt.Errorf("fill quantity and price must be positive")
	}
	symbol := normalizeSymbol(fill.Symbol)
	signed := fill.Quantity
	if fill.Side == types.SideSell {
		signed = signed.Neg()
	}

	pos, err := m.store.GetOpenPosition(ctx, symbol, fill.Venue)
	if err != nil && err != store.ErrNotFound {
		return decimal.Zero, fmt.Errorf("load position %s/%s: %w", symbol, fill.Venue, err)
	}

	now := time.Now()
	if pos == nil {
		pos = &types.Position{
			ID:            uuid.NewString(),
			Symbol:        symbol,
			Venue:         fill.Venue,
			Quantity:      signed,
			AvgEntryPrice: fill.Price,
			StopLoss:      fill.StopLoss,
			TakeProfit:    fill.TakeProfit,
			HighSinceOpen: fill.Price,
			LowSinceOpen:  fill.Price,
			OpenedAt:      executedOr(fill.ExecutedAt, now),
			UpdatedAt:     now,
		}
		if err := m.store.SavePosition(ctx, pos); err != nil {
			return decimal.Zero, fmt.Errorf("save position %s/%s: %w", symbol, fill.Venue, err)
		}
		logger.Infof("position opened: %s/%s qty=%s avg=%s", symbol, fill.Venue, pos.Quantity, pos.AvgEntryPrice)
		return decimal.Zero, nil
	}

	realized, flipRemainder := m.applyFill(pos, signed, fill)
	pos.UpdatedAt = now
	if pos.Quantity.IsZero() {
		closedAt := executedOr(fill.ExecutedAt, now)
		pos.ClosedAt = &closedAt
		pos.UnrealizedPnL = decimal.Zero
	}
	if err := m.store.SavePosition(ctx, pos); err != nil {
		return decimal.Zero, fmt.Errorf("save position %s/%s: %w", symbol, fill.Venue, err)
	}
	if pos.Open() {
		logger.Infof("position updated: %s/%s qty=%s avg=%s realized_delta=%s",
			symbol, fill.Venue, pos.Quantity, pos.AvgEntryPrice, realized)
	} else {
		logger.Infof("position closed: %s/%s realized=%s", symbol, fill.Venue, pos.RealizedPnL)
	}

	// A fill bigger than the open exposure flips direction: the old row
	// is closed above and the remainder opens a fresh row at fill price.
	if flipRemainder != nil {
		fresh := &types.Position{
			ID:            uuid.NewString(),
			Symbol:        symbol,
			Venue:         fill.Venue,
			Quantity:      *flipRemainder,
			AvgEntryPrice: fill.Price,
			StopLoss:      fill.StopLoss,
			TakeProfit:    fill.TakeProfit,
			HighSinceOpen: fill.Price,
			LowSinceOpen:  fill.Price,
			OpenedAt:      executedOr(fill.ExecutedAt, now),
			UpdatedAt:     now,
		}
		if err := m.store.SavePosition(ctx, fresh); err != nil {
			return realized, fmt.Errorf("save flipped position %s/%s: %w", symbol, fill.Venue, err)
		}
		logger.Infof("position flipped: %s/%s qty=%s avg=%s", symbol, fill.Venue, fresh.Quantity, fresh.AvgEntryPrice)
	}
	return realized, nil
}

// applyFill mutates pos in place and returns the realized P&L delta,
// plus the signed remainder to reopen when the fill flips direction.
func (m *Manager) applyFill(pos *types.Position, signed decimal.Decimal, fill Fill) (decimal.Decimal, *decimal.Decimal) {
	sameDirection := pos.Quantity.Sign() == signed.Sign()
	if sameDirection {
		// Extend: volume-weighted re-average, nothing realized.
		notional := pos.Quantity.Abs().Mul(pos.AvgEntryPrice).Add(signed.Abs().Mul(fill.Price))
		pos.Quantity = pos.Quantity.Add(signed)
		pos.AvgEntryPrice = notional.Div(pos.Quantity.Abs())
		mergeProtection(pos, fill)
		return decimal.Zero, nil
	}

	closeQty := decimal.Min(pos.Quantity.Abs(), signed.Abs())
	realized := perUnitPnL(pos, fill.Price).Mul(closeQty)
	pos.RealizedPnL = pos.RealizedPnL.Add(realized)

	newQty := pos.Quantity.Add(signed)
	switch {
	case newQty.IsZero():
		pos.Quantity = decimal.Zero
		return realized, nil
	case newQty.Sign() == pos.Quantity.Sign():
		// Partial close: size shrinks, average entry is untouched.
		pos.Quantity = newQty
		mergeProtection(pos, fill)
		return realized, nil
	default:
		// Flip: this row fully closes; OnFill opens the remainder.
		pos.Quantity = decimal.Zero
		return realized, &newQty
	}
}

// perUnitPnL is the realized profit per closed unit at the given exit
// price: long avg 100 exit 110 yields +10, short avg 100 exit 110 yields
// -10.
func perUnitPnL(pos *types.Position, exit decimal.Decimal) decimal.Decimal {
	if pos.Long() {
		return exit.Sub(pos.AvgEntryPrice)
	}
	return pos.AvgEntryPrice.Sub(exit)
}

func mergeProtection(pos *types.Position, fill Fill) {
	if fill.StopLoss.IsPositive() {
		pos.StopLoss = fill.StopLoss
	}
	if fill.TakeProfit.IsPositive() {
		pos.TakeProfit = fill.TakeProfit
	}
}

// Close finalizes the open position for the symbol at the given mark
// price: the remaining quantity is realized at that price, closed_at is
// set and the row drops out of the open set. Returns the realized P&L
// delta from the closure; a flat symbol returns store.ErrNotFound.
func (m *Manager) Close(ctx context.Context, sym, venue string, markPrice decimal.Decimal) (decimal.Decimal, error) {
	if !markPrice.IsPositive() {
		return decimal.Zero, fmt.Errorf("close price must be positive")
	}
	sym = normalizeSymbol(sym)
	pos, err := m.store.GetOpenPosition(ctx, sym, venue)
	if err != nil {
		if err == store.ErrNotFound {
			return decimal.Zero, err
		}
		return decimal.Zero, fmt.Errorf("load position %s/%s: %w", sym, venue, err)
	}

	realized := perUnitPnL(pos, markPrice).Mul(pos.Quantity.Abs())
	pos.RealizedPnL = pos.RealizedPnL.Add(realized)
	pos.Quantity = decimal.Zero
	pos.UnrealizedPnL = decimal.Zero
	now := time.Now()
	pos.ClosedAt = &now
	pos.UpdatedAt = now
	if err := m.store.SavePosition(ctx, pos); err != nil {
		return decimal.Zero, fmt.Errorf("save position %s/%s: %w", sym, venue, err)
	}
	logger.Infof("position closed: %s/%s at %s realized=%s", sym, venue, markPrice, pos.RealizedPnL)
	return realized, nil
}

// MarkPrice re-marks the open position for the symbol at the latest
// traded price, refreshing unrealized P&L and the high/low watermarks.
// A missing position is not an error; quotes arrive for flat symbols too.
func (m *Manager) MarkPrice(ctx context.Context, symbol, venue string, price decimal.Decimal) (*types.Position, error) {
	if !price.IsPositive() {
		return nil, fmt.Errorf("mark price must be positive")
	}
	symbol = normalizeSymbol(symbol)
	pos, err := m.store.GetOpenPosition(ctx, symbol, venue)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("load position %s/%s: %w", symbol, venue, err)
	}

	pos.UnrealizedPnL = pos.MarkToMarket(price)
	if price.GreaterThan(pos.HighSinceOpen) {
		pos.HighSinceOpen = price
	}
	if pos.LowSinceOpen.IsZero() || price.LessThan(pos.LowSinceOpen) {
		pos.LowSinceOpen = price
	}
	pos.UpdatedAt = time.Now()
	if err := m.store.SavePosition(ctx, pos); err != nil {
		return nil, fmt.Errorf("save position %s/%s: %w", symbol, venue, err)
	}
	return pos, nil
}

// AdoptVenueQuantity overwrites the local position with the venue's
// authoritative quantity and average price. Reconciliation calls this
// after logging the divergence; the venue always wins.
func (m *Manager) AdoptVenueQuantity(ctx context.Context, symbol, venue string, qty, avgPrice decimal.Decimal) error {
	symbol = normalizeSymbol(symbol)
	pos, err := m.store.GetOpenPosition(ctx, symbol, venue)
	if err != nil && err != store.ErrNotFound {
		return fmt.Errorf("load position %s/%s: %w", symbol, venue, err)
	}
	now := time.Now()

	if pos == nil {
		if qty.IsZero() {
			return nil
		}
		pos = &types.Position{
			ID:            uuid.NewString(),
			Symbol:        symbol,
			Venue:         venue,
			Quantity:      qty,
			AvgEntryPrice: avgPrice,
			HighSinceOpen: avgPrice,
			LowSinceOpen:  avgPrice,
			OpenedAt:      now,
			UpdatedAt:     now,
		}
		return m.store.SavePosition(ctx, pos)
	}

	if qty.IsZero() {
		pos.Quantity = decimal.Zero
		pos.UnrealizedPnL = decimal.Zero
		pos.ClosedAt = &now
	} else {
		pos.Quantity = qty
		if avgPrice.IsPositive() {
			pos.AvgEntryPrice = avgPrice
		}
	}
	pos.UpdatedAt = now
	return m.store.SavePosition(ctx, pos)
}

func executedOr(t, fallback time.Time) time.Time {
	if t.IsZero() {
		return fallback
	}
	return t
}

func normalizeSymbol(s string) string {
	return symbol.Normalize(s)
}
