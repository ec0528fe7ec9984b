package validator

import (
	"testing"
	"time"

	"tradecore/internal/config"
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

func testSnapshot() types.AccountSnapshot {
	return types.AccountSnapshot{
		Equity:            d("100000"),
		Balance:           d("100000"),
		SessionPeakEquity: d("100000"),
		OpenPositions:     0,
		PendingOrders:     0,
		LastTradedPrice:   d("100"),
		Timestamp:         time.Now(),
	}
}

// A buy limit at 100 with stop 60 and take-profit 160: risk 40/unit,
// reward 60/unit, ratio 1.5.
func testRequest() types.OrderRequest {
	return types.OrderRequest{
		Symbol:     "BTCUSDT",
		Venue:      "paper",
		Side:       types.SideBuy,
		Quantity:   d("10"),
		Kind:       types.OrderKindLimit,
		LimitPrice: d("100"),
		StopLoss:   d("60"),
		TakeProfit: d("160"),
		StrategyID: "test",
	}
}

func newTestValidator() *Validator {
	return New(config.DefaultRiskPolicy)
}

func TestValidateHappyPath(t *testing.T) {
	res := newTestValidator().Validate(testRequest(), testSnapshot())
	require.True(t, res.Valid, "reason: %s", res.Reason)
	assert.Empty(t, res.FailedCheck)
}

func TestValidateBalanceInsufficient(t *testing.T) {
	snap := testSnapshot()
	snap.Balance = d("999")

	res := newTestValidator().Validate(testRequest(), snap)
	require.False(t, res.Valid)
	assert.Equal(t, CheckBalance, res.FailedCheck)
}

func TestValidateStopLossRequired(t *testing.T) {
	req := testRequest()
	req.StopLoss = decimal.Zero

	res := newTestValidator().Validate(req, testSnapshot())
	require.False(t, res.Valid)
	assert.Equal(t, CheckStopLoss, res.FailedCheck)
}

// With 100,000 equity and a 2% risk ceiling the budget is exactly 2,000.
// A 40/unit stop distance on 50 units risks exactly 2,000 and must pass;
// one extra unit of stop distance (41 x 50 = 2,050) must be rejected.
func TestValidateRiskPerTradeBoundary(t *testing.T) {
	v := newTestValidator()
	snap := testSnapshot()

	req := testRequest()
	req.Quantity = d("50")
	req.StopLoss = d("60")  // risk 40 x 50 = 2000
	req.TakeProfit = d("160")
	res := v.Validate(req, snap)
	require.True(t, res.Valid, "exact budget must pass, got: %s", res.Reason)

	req.StopLoss = d("59") // risk 41 x 50 = 2050
	req.TakeProfit = d("161.5")
	res = v.Validate(req, snap)
	require.False(t, res.Valid)
	assert.Equal(t, CheckRiskPerTrade, res.FailedCheck)
}

func TestValidateRewardRiskTooLow(t *testing.T) {
	req := testRequest()
	req.TakeProfit = d("150") // reward 50 vs risk 40: ratio 1.25 < 1.5

	res := newTestValidator().Validate(req, testSnapshot())
	require.False(t, res.Valid)
	assert.Equal(t, CheckRewardRisk, res.FailedCheck)
}

func TestValidateTakeProfitRequired(t *testing.T) {
	req := testRequest()
	req.TakeProfit = decimal.Zero

	res := newTestValidator().Validate(req, testSnapshot())
	require.False(t, res.Valid)
	assert.Equal(t, CheckRewardRisk, res.FailedCheck)
}

func TestValidateDailyLossBudget(t *testing.T) {
	snap := testSnapshot()
	// Daily budget is 3% of 100,000 = 3,000. Already down 2,700; a trade
	// risking 400 would overrun it.
	snap.TodayRealizedPnL = d("-2700")

	res := newTestValidator().Validate(testRequest(), snap)
	require.False(t, res.Valid)
	assert.Equal(t, CheckDailyLoss, res.FailedCheck)
}

func TestValidateDailyLossCountsUnrealized(t *testing.T) {
	snap := testSnapshot()
	snap.TodayRealizedPnL = d("-1500")
	snap.TodayUnrealizedPnL = d("-1200")

	res := newTestValidator().Validate(testRequest(), snap)
	require.False(t, res.Valid)
	assert.Equal(t, CheckDailyLoss, res.FailedCheck)
}

func TestValidateMaxOpenPositions(t *testing.T) {
	snap := testSnapshot()
	snap.OpenPositions = config.DefaultRiskPolicy().MaxOpenPositions

	res := newTestValidator().Validate(testRequest(), snap)
	require.False(t, res.Valid)
	assert.Equal(t, CheckMaxPositions, res.FailedCheck)
}

func TestValidatePriceBand(t *testing.T) {
	req := testRequest()
	req.LimitPrice = d("110") // 10% off a last of 100, band is 5%
	req.StopLoss = d("109")
	req.TakeProfit = d("112")

	res := newTestValidator().Validate(req, testSnapshot())
	require.False(t, res.Valid)
	assert.Equal(t, CheckPriceBand, res.FailedCheck)
}

func TestValidateMarketOrderSkipsPriceBand(t *testing.T) {
	req := testRequest()
	req.Kind = types.OrderKindMarket
	req.LimitPrice = decimal.Zero

	res := newTestValidator().Validate(req, testSnapshot())
	require.True(t, res.Valid, "reason: %s", res.Reason)
}

func TestValidateQuantityBounds(t *testing.T) {
	v := newTestValidator()
	snap := testSnapshot()

	req := testRequest()
	req.Quantity = d("0.00001")
	res := v.Validate(req, snap)
	require.False(t, res.Valid)
	assert.Equal(t, CheckQuantity, res.FailedCheck)

	req.Quantity = decimal.Zero
	res = v.Validate(req, snap)
	require.False(t, res.Valid)
	assert.Equal(t, CheckQuantity, res.FailedCheck)
}

func TestValidatePendingRatio(t *testing.T) {
	snap := testSnapshot()
	snap.OpenPositions = 1
	snap.PendingOrders = 3 // this order would make it 4 pending per 1 open, ceiling 3

	res := newTestValidator().Validate(testRequest(), snap)
	require.False(t, res.Valid)
	assert.Equal(t, CheckPendingRatio, res.FailedCheck)
}

func TestValidateKillSwitchRejectsEverything(t *testing.T) {
	snap := testSnapshot()
	snap.KillSwitchTripped = true

	res := newTestValidator().Validate(testRequest(), snap)
	require.False(t, res.Valid)
	assert.Equal(t, CheckKillSwitch, res.FailedCheck)
}

func TestValidateWrongSideStopWarns(t *testing.T) {
	req := testRequest()
	req.Side = types.SideSell
	req.StopLoss = d("60")   // below entry: wrong side for a short
	req.TakeProfit = d("40") // reward 60 vs risk 40

	res := newTestValidator().Validate(req, testSnapshot())
	require.True(t, res.Valid, "reason: %s", res.Reason)
	assert.NotEmpty(t, res.Warnings)
}

func TestValidateUsesLivePolicy(t *testing.T) {
	policy := config.DefaultRiskPolicy()
	v := New(func() config.RiskPolicy { return policy })
	snap := testSnapshot()

	res := v.Validate(testRequest(), snap)
	require.True(t, res.Valid)

	// Tighten the live policy; the same request must now be rejected.
	policy.RiskPerTradePct = 0.001
	res = v.Validate(testRequest(), snap)
	require.False(t, res.Valid)
	assert.Equal(t, CheckRiskPerTrade, res.FailedCheck)
}
