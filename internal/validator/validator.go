// Package validator is the stateless pre-trade gate. Every order request
// runs the same ordered check sequence against a policy and an account
// snapshot; the first failing check decides the result. The validator
// never returns an error: rejection is a value, not a failure.
package validator

import (
	"fmt"

	"tradecore/internal/config"
	"tradecore/internal/types"

	"github.com/shopspring/decimal"
)

// Check identifiers, stable for logging and API consumers.
const (
	CheckBalance      = "balance"
	CheckStopLoss     = "stop_loss"
	CheckRiskPerTrade = "risk_per_trade"
	CheckRewardRisk   = "reward_risk"
	CheckDailyLoss    = "daily_loss"
	CheckMaxPositions = "max_positions"
	CheckPriceBand    = "price_band"
	CheckQuantity     = "quantity_bounds"
	CheckPendingRatio = "pending_ratio"
	CheckKillSwitch   = "kill_switch"
)

// Validator gatekeeps order requests. The policy func returns the
// currently active limits so hot-reloaded policies apply immediately.
type Validator struct {
	policy func() config.RiskPolicy
}

func New(policy func() config.RiskPolicy) *Validator {
	if policy == nil {
		policy = config.DefaultRiskPolicy
	}
	return &Validator{policy: policy}
}

// Validate runs the check sequence. The snapshot carries everything
// external the checks need (balances, counts, last traded price, kill
// switch), which keeps the validator deterministic and trivially
// testable.
func (v *Validator) Validate(req types.OrderRequest, snap types.AccountSnapshot) types.ValidationResult {
	policy := v.policy()
	var warnings []string

	if !req.Quantity.IsPositive() {
		return types.Fail(CheckQuantity, "quantity must be positive, got %s", req.Quantity)
	}

	entry := req.EntryPrice(snap.LastTradedPrice)
	if !entry.IsPositive() {
		return types.Fail(CheckPriceBand, "no usable entry price: limit=%s last=%s", req.LimitPrice, snap.LastTradedPrice)
	}

	// 1. Balance sufficiency for the notional.
	notional := entry.Mul(req.Quantity)
	if notional.GreaterThan(snap.Balance) {
		return types.Fail(CheckBalance, "notional %s exceeds available balance %s", notional, snap.Balance)
	}

	// 2. Stop-loss is mandatory, no exceptions.
	if !req.StopLoss.IsPositive() {
		return types.Fail(CheckStopLoss, "stop-loss is required")
	}
	if wrongStopSide(req.Side, entry, req.StopLoss) {
		warnings = append(warnings, fmt.Sprintf("stop-loss %s is on the wrong side of entry %s", req.StopLoss, entry))
	}

	// 3. Risk-per-trade ceiling.
	risk := entry.Sub(req.StopLoss).Abs().Mul(req.Quantity)
	riskCeiling := snap.Equity.Mul(decimal.NewFromFloat(policy.RiskPerTradePct))
	if risk.GreaterThan(riskCeiling) {
		return types.Fail(CheckRiskPerTrade, "trade risk %s exceeds ceiling %s (%.2f%% of equity %s)",
			risk, riskCeiling, policy.RiskPerTradePct*100, snap.Equity)
	}

	// 4. Minimum reward:risk. A request without a take-profit cannot
	// satisfy the ratio, so it is rejected here rather than waved past.
	if !req.TakeProfit.IsPositive() {
		return types.Fail(CheckRewardRisk, "take-profit is required to satisfy the reward:risk minimum")
	}
	stopDistance := entry.Sub(req.StopLoss).Abs()
	if stopDistance.IsZero() {
		return types.Fail(CheckRewardRisk, "stop-loss equals entry price")
	}
	ratio := req.TakeProfit.Sub(entry).Abs().Div(stopDistance)
	minRatio := decimal.NewFromFloat(policy.MinRewardRisk)
	if ratio.LessThan(minRatio) {
		return types.Fail(CheckRewardRisk, "reward:risk %s below minimum %s", ratio.Round(4), minRatio)
	}

	// 5. Daily loss budget: today's loss plus the worst case of this
	// trade must stay inside the ceiling.
	dailyCeiling := snap.Equity.Mul(decimal.NewFromFloat(policy.DailyLossPct))
	if snap.TodayLoss().Add(risk).GreaterThan(dailyCeiling) {
		return types.Fail(CheckDailyLoss, "today's loss %s plus potential loss %s exceeds daily budget %s",
			snap.TodayLoss(), risk, dailyCeiling)
	}

	// 6. Open-position count ceiling.
	if snap.OpenPositions >= policy.MaxOpenPositions {
		return types.Fail(CheckMaxPositions, "open positions %d at ceiling %d", snap.OpenPositions, policy.MaxOpenPositions)
	}

	// 7. Price sanity: a limit price far from the market is almost
	// always a fat finger.
	if req.LimitPrice.IsPositive() {
		if snap.LastTradedPrice.IsPositive() {
			band := decimal.NewFromFloat(policy.PriceBandPct)
			deviation := req.LimitPrice.Sub(snap.LastTradedPrice).Abs().Div(snap.LastTradedPrice)
			if deviation.GreaterThan(band) {
				return types.Fail(CheckPriceBand, "limit price %s deviates %s from last %s (band %s)",
					req.LimitPrice, deviation.Round(4), snap.LastTradedPrice, band)
			}
		} else {
			warnings = append(warnings, "no last traded price available, price band not verified")
		}
	}

	// 8. Quantity bounds.
	minQty := decimal.NewFromFloat(policy.MinOrderQty)
	maxQty := decimal.NewFromFloat(policy.MaxOrderQty)
	if req.Quantity.LessThan(minQty) {
		return types.Fail(CheckQuantity, "quantity %s below minimum %s", req.Quantity, minQty)
	}
	if req.Quantity.GreaterThan(maxQty) {
		return types.Fail(CheckQuantity, "quantity %s above maximum %s", req.Quantity, maxQty)
	}

	// 9. Pending-orders-to-open-positions ratio.
	open := snap.OpenPositions
	if open < 1 {
		open = 1
	}
	pendingRatio := decimal.NewFromInt(int64(snap.PendingOrders + 1)).Div(decimal.NewFromInt(int64(open)))
	maxPending := decimal.NewFromFloat(policy.MaxPendingPerOpen)
	if pendingRatio.GreaterThan(maxPending) {
		return types.Fail(CheckPendingRatio, "pending:open ratio %s exceeds ceiling %s", pendingRatio.Round(2), maxPending)
	}

	// 10. Kill switch: tripped means nothing gets through.
	if snap.KillSwitchTripped {
		return types.Fail(CheckKillSwitch, "kill switch is tripped, all new orders rejected")
	}

	return types.Pass(warnings...)
}

func wrongStopSide(side types.Side, entry, stop decimal.Decimal) bool {
	if side == types.SideBuy {
		return stop.GreaterThanOrEqual(entry)
	}
	return stop.LessThanOrEqual(entry)
}
