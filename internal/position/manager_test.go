package position

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"tradecore/internal/store"
	"tradecore/internal/store/gormstore"
	"tradecore/internal/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func newTestManager(t *testing.T) (*Manager, store.Store) {
	t.Helper()
	st, err := gormstore.New(filepath.Join(t.TempDir(), "positions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return NewManager(st), st
}

func buyFill(qty, price string) Fill {
	return Fill{
		Symbol:     "BTCUSDT",
		Venue:      "paper",
		Side:       types.SideBuy,
		Quantity:   d(qty),
		Price:      d(price),
		ExecutedAt: time.Now(),
	}
}

func sellFill(qty, price string) Fill {
	f := buyFill(qty, price)
	f.Side = types.SideSell
	return f
}

func TestOnFillOpensPosition(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()

	realized, err := m.OnFill(ctx, buyFill("10", "100"))
	require.NoError(t, err)
	assert.True(t, realized.IsZero())

	pos, err := st.GetOpenPosition(ctx, "BTCUSDT", "paper")
	require.NoError(t, err)
	assert.True(t, pos.Quantity.Equal(d("10")))
	assert.True(t, pos.AvgEntryPrice.Equal(d("100")))
	assert.True(t, pos.Long())
}

func TestOnFillReAveragesSameDirection(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()

	_, err := m.OnFill(ctx, buyFill("10", "100"))
	require.NoError(t, err)
	realized, err := m.OnFill(ctx, buyFill("10", "110"))
	require.NoError(t, err)
	assert.True(t, realized.IsZero())

	pos, err := st.GetOpenPosition(ctx, "BTCUSDT", "paper")
	require.NoError(t, err)
	assert.True(t, pos.Quantity.Equal(d("20")), "got %s", pos.Quantity)
	assert.True(t, pos.AvgEntryPrice.Equal(d("105")), "got %s", pos.AvgEntryPrice)
}

func TestOnFillPartialClose(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()

	_, err := m.OnFill(ctx, buyFill("20", "100"))
	require.NoError(t, err)
	realized, err := m.OnFill(ctx, sellFill("10", "110"))
	require.NoError(t, err)
	assert.True(t, realized.Equal(d("100")), "got %s", realized)

	pos, err := st.GetOpenPosition(ctx, "BTCUSDT", "paper")
	require.NoError(t, err)
	assert.True(t, pos.Quantity.Equal(d("10")))
	assert.True(t, pos.AvgEntryPrice.Equal(d("100")), "partial close must not re-average")
	assert.True(t, pos.RealizedPnL.Equal(d("100")))
}

func TestOnFillFullClose(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()

	_, err := m.OnFill(ctx, buyFill("10", "100"))
	require.NoError(t, err)
	realized, err := m.OnFill(ctx, sellFill("10", "90"))
	require.NoError(t, err)
	assert.True(t, realized.Equal(d("-100")), "got %s", realized)

	_, err = st.GetOpenPosition(ctx, "BTCUSDT", "paper")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestOnFillFlipsThroughZero(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()

	_, err := m.OnFill(ctx, buyFill("10", "100"))
	require.NoError(t, err)
	// Sell 15 against a long 10: close 10 at 110 (+100) and open a
	// short 5 at 110.
	realized, err := m.OnFill(ctx, sellFill("15", "110"))
	require.NoError(t, err)
	assert.True(t, realized.Equal(d("100")), "got %s", realized)

	pos, err := st.GetOpenPosition(ctx, "BTCUSDT", "paper")
	require.NoError(t, err)
	assert.True(t, pos.Short())
	assert.True(t, pos.Quantity.Equal(d("-5")), "got %s", pos.Quantity)
	assert.True(t, pos.AvgEntryPrice.Equal(d("110")), "got %s", pos.AvgEntryPrice)
	assert.True(t, pos.RealizedPnL.IsZero(), "fresh row carries no realized history")
}

func TestOnFillShortSidePnL(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.OnFill(ctx, sellFill("10", "100"))
	require.NoError(t, err)
	realized, err := m.OnFill(ctx, buyFill("10", "90"))
	require.NoError(t, err)
	assert.True(t, realized.Equal(d("100")), "short covered lower must profit, got %s", realized)
}

func TestCloseFinalizesAtMark(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()

	_, err := m.OnFill(ctx, buyFill("10", "100"))
	require.NoError(t, err)

	realized, err := m.Close(ctx, "BTCUSDT", "paper", d("110"))
	require.NoError(t, err)
	assert.True(t, realized.Equal(d("100")), "got %s", realized)

	_, err = st.GetOpenPosition(ctx, "BTCUSDT", "paper")
	assert.ErrorIs(t, err, store.ErrNotFound)

	recent, err := st.ListRecentPositions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.True(t, recent[0].RealizedPnL.Equal(d("100")), "got %s", recent[0].RealizedPnL)
	assert.True(t, recent[0].Quantity.IsZero())
	assert.True(t, recent[0].UnrealizedPnL.IsZero())
	assert.NotNil(t, recent[0].ClosedAt)
}

func TestCloseShortAndFlatSymbol(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.OnFill(ctx, sellFill("5", "100"))
	require.NoError(t, err)

	realized, err := m.Close(ctx, "BTCUSDT", "paper", d("90"))
	require.NoError(t, err)
	assert.True(t, realized.Equal(d("50")), "short closed lower must profit, got %s", realized)

	_, err = m.Close(ctx, "BTCUSDT", "paper", d("90"))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMarkPriceUpdatesUnrealizedAndWatermarks(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.OnFill(ctx, buyFill("10", "100"))
	require.NoError(t, err)

	pos, err := m.MarkPrice(ctx, "BTCUSDT", "paper", d("120"))
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.True(t, pos.UnrealizedPnL.Equal(d("200")), "got %s", pos.UnrealizedPnL)
	assert.True(t, pos.HighSinceOpen.Equal(d("120")))

	pos, err = m.MarkPrice(ctx, "BTCUSDT", "paper", d("95"))
	require.NoError(t, err)
	assert.True(t, pos.UnrealizedPnL.Equal(d("-50")), "got %s", pos.UnrealizedPnL)
	assert.True(t, pos.HighSinceOpen.Equal(d("120")), "high watermark must stick")
	assert.True(t, pos.LowSinceOpen.Equal(d("95")))
}

func TestMarkPriceFlatSymbolIsNoop(t *testing.T) {
	m, _ := newTestManager(t)

	pos, err := m.MarkPrice(context.Background(), "ETHUSDT", "paper", d("3000"))
	require.NoError(t, err)
	assert.Nil(t, pos)
}

func TestAdoptVenueQuantity(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()

	_, err := m.OnFill(ctx, buyFill("10", "100"))
	require.NoError(t, err)

	require.NoError(t, m.AdoptVenueQuantity(ctx, "BTCUSDT", "paper", d("7"), d("101")))
	pos, err := st.GetOpenPosition(ctx, "BTCUSDT", "paper")
	require.NoError(t, err)
	assert.True(t, pos.Quantity.Equal(d("7")))
	assert.True(t, pos.AvgEntryPrice.Equal(d("101")))

	// Venue reports flat: the local row is closed out.
	require.NoError(t, m.AdoptVenueQuantity(ctx, "BTCUSDT", "paper", decimal.Zero, decimal.Zero))
	_, err = st.GetOpenPosition(ctx, "BTCUSDT", "paper")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAdoptVenueQuantityCreatesMissingPosition(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.AdoptVenueQuantity(ctx, "SOLUSDT", "paper", d("-3"), d("150")))
	pos, err := st.GetOpenPosition(ctx, "SOLUSDT", "paper")
	require.NoError(t, err)
	assert.True(t, pos.Short())
	assert.True(t, pos.Quantity.Equal(d("-3")))
}
