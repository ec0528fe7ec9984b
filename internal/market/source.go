// Package market supplies last-traded prices to the validator, the
// position marks and the risk monitor. Prices are pushed into the core
// from here; no core component polls a venue for quotes itself.
package market

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Quote is the latest known trade price for a symbol.
type Quote struct {
	Symbol    string          `json:"symbol"`
	Last      decimal.Decimal `json:"last"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Stale reports whether the quote is older than maxAge.
func (q Quote) Stale(maxAge time.Duration) bool {
	if q.UpdatedAt.IsZero() {
		return true
	}
	return time.Since(q.UpdatedAt) > maxAge
}

// Source produces last-price quotes.
type Source interface {
	LastPrice(ctx context.Context, symbol string) (Quote, error)
}
