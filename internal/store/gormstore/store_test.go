package gormstore

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"tradecore/internal/store"
	"tradecore/internal/types"

	"github.com/google/uuid"
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

func newTestStore(t *testing.T) *GormStore {
	t.Helper()
	st, err := New(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func sampleOrder() *types.Order {
	return &types.Order{
		ID:         uuid.NewString(),
		Symbol:     "BTCUSDT",
		Venue:      "paper",
		Side:       types.SideBuy,
		Quantity:   d("10"),
		Kind:       types.OrderKindLimit,
		LimitPrice: d("100"),
		StopLoss:   d("95"),
		TakeProfit: d("110"),
		Status:     types.OrderStatusPending,
		CreatedAt:  time.Now(),
	}
}

func TestOrderRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	ord := sampleOrder()
	require.NoError(t, st.CreateOrder(ctx, ord))

	got, err := st.GetOrder(ctx, ord.ID)
	require.NoError(t, err)
	assert.Equal(t, ord.ID, got.ID)
	assert.True(t, got.Quantity.Equal(d("10")))
	assert.True(t, got.LimitPrice.Equal(d("100")))
	assert.Equal(t, types.OrderStatusPending, got.Status)

	_, err = st.GetOrder(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMutateOrderAppliesInsideTransaction(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	ord := sampleOrder()
	require.NoError(t, st.CreateOrder(ctx, ord))

	updated, err := st.MutateOrder(ctx, ord.ID, func(o *types.Order) error {
		o.Status = types.OrderStatusSubmitted
		o.ExternalID = "ext-1"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, types.OrderStatusSubmitted, updated.Status)

	got, err := st.GetOrderByExternalID(ctx, "ext-1")
	require.NoError(t, err)
	assert.Equal(t, ord.ID, got.ID)

	// A failing fn leaves the row untouched.
	_, err = st.MutateOrder(ctx, ord.ID, func(o *types.Order) error {
		o.Status = types.OrderStatusFilled
		return fmt.Errorf("nope")
	})
	require.Error(t, err)
	got, err = st.GetOrder(ctx, ord.ID)
	require.NoError(t, err)
	assert.Equal(t, types.OrderStatusSubmitted, got.Status)
}

func TestListActiveOrdersFiltersTerminal(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	active := sampleOrder()
	require.NoError(t, st.CreateOrder(ctx, active))

	done := sampleOrder()
	done.Status = types.OrderStatusFilled
	require.NoError(t, st.CreateOrder(ctx, done))

	list, err := st.ListActiveOrders(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, active.ID, list[0].ID)
}

func TestTradeSumsUseExactDecimals(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	yesterday := time.Now().Add(-24 * time.Hour)
	for i, row := range []struct {
		pnl, fee string
		at       time.Time
	}{
		{"0.1", "0.01", time.Now()},
		{"0.2", "0.02", time.Now()},
		{"-5", "0.03", yesterday},
	} {
		require.NoError(t, st.AppendTrade(ctx, types.Trade{
			ID:          fmt.Sprintf("t-%d", i),
			OrderID:     "o-1",
			Symbol:      "BTCUSDT",
			Venue:       "paper",
			Side:        types.SideBuy,
			Quantity:    d("1"),
			Price:       d("100"),
			Fee:         d(row.fee),
			RealizedPnL: d(row.pnl),
			ExecutedAt:  row.at,
		}))
	}

	total, err := st.SumRealizedPnLSince(ctx, time.Time{})
	require.NoError(t, err)
	assert.True(t, total.Equal(d("-4.7")), "got %s", total)

	today, err := st.SumRealizedPnLSince(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.True(t, today.Equal(d("0.3")), "0.1+0.2 must sum exactly, got %s", today)

	fees, err := st.SumFeesSince(ctx, time.Time{})
	require.NoError(t, err)
	assert.True(t, fees.Equal(d("0.06")), "got %s", fees)
}

func TestPositionUpsertAndSoftClose(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	pos := &types.Position{
		ID:            uuid.NewString(),
		Symbol:        "BTCUSDT",
		Venue:         "paper",
		Quantity:      d("10"),
		AvgEntryPrice: d("100"),
		OpenedAt:      time.Now(),
		UpdatedAt:     time.Now(),
	}
	require.NoError(t, st.SavePosition(ctx, pos))

	pos.Quantity = d("7")
	require.NoError(t, st.SavePosition(ctx, pos))

	got, err := st.GetOpenPosition(ctx, "BTCUSDT", "paper")
	require.NoError(t, err)
	assert.True(t, got.Quantity.Equal(d("7")), "upsert must overwrite, got %s", got.Quantity)

	now := time.Now()
	pos.ClosedAt = &now
	require.NoError(t, st.SavePosition(ctx, pos))

	_, err = st.GetOpenPosition(ctx, "BTCUSDT", "paper")
	assert.ErrorIs(t, err, store.ErrNotFound)

	recent, err := st.ListRecentPositions(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, recent, 1, "closed rows stay queryable")
}

func TestKillSwitchEventLog(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.LastKillSwitchEvent(ctx)
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, st.AppendKillSwitchEvent(ctx, types.KillSwitchEvent{
		Tripped: true, Actor: "desk", Reason: "drill", Timestamp: time.Now().Add(-time.Minute),
	}))
	require.NoError(t, st.AppendKillSwitchEvent(ctx, types.KillSwitchEvent{
		Tripped: false, Actor: "desk", Reason: "drill over", Timestamp: time.Now(),
	}))

	last, err := st.LastKillSwitchEvent(ctx)
	require.NoError(t, err)
	assert.False(t, last.Tripped)
	assert.Equal(t, "drill over", last.Reason)
}

func TestRiskAlertDetailsRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.InsertRiskAlert(ctx, types.RiskAlert{
		Severity:  types.AlertSeverityCritical,
		Type:      types.AlertTypeDailyLoss,
		Message:   "daily loss breached",
		Details:   map[string]any{"loss": "3100", "budget": "3000"},
		Timestamp: time.Now(),
	}))

	alerts, err := st.ListRecentRiskAlerts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, types.AlertTypeDailyLoss, alerts[0].Type)
	assert.Equal(t, "3100", alerts[0].Details["loss"])
}
