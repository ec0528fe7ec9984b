// Package risk watches the account and every open position against the
// live policy, raises alerts on breaches, and owns the kill switch. The
// kill switch is a policy latch (NORMAL or TRIPPED, explicit reset only)
// and has nothing to do with the transport circuit breaker.
package risk

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tradecore/internal/config"
	"tradecore/internal/logger"
	"tradecore/internal/market"
	"tradecore/internal/order"
	"tradecore/internal/position"
	"tradecore/internal/scheduler"
	"tradecore/internal/store"
	"tradecore/internal/types"

	"github.com/shopspring/decimal"
)

// alertCooldown suppresses repeats of the same alert key between cycles;
// a breach that persists is re-announced after it elapses.
const alertCooldown = 5 * time.Minute

type Monitor struct {
	store     store.Store
	policy    func() config.RiskPolicy
	orders    *order.Manager
	positions *position.Manager
	market    market.Source
	interval  time.Duration

	mu          sync.Mutex
	tripped     bool
	lastAlertAt map[string]time.Time
	subscribers []chan types.RiskAlert
	reconSeenAt time.Time
}

func NewMonitor(st store.Store, policy func() config.RiskPolicy, om *order.Manager, pm *position.Manager, mkt market.Source, interval time.Duration) *Monitor {
	if policy == nil {
		policy = config.DefaultRiskPolicy
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Monitor{
		store:       st,
		policy:      policy,
		orders:      om,
		positions:   pm,
		market:      mkt,
		interval:    interval,
		lastAlertAt: make(map[string]time.Time),
		reconSeenAt: time.Now(),
	}
}

// Restore loads the persisted kill-switch state so a restart does not
// silently re-enable trading after a trip.
func (m *Monitor) Restore(ctx context.Context) error {
	event, err := m.store.LastKillSwitchEvent(ctx)
	if err != nil {
		if err == store.ErrNotFound {
			return nil
		}
		return fmt.Errorf("restore kill switch: %w", err)
	}
	m.mu.Lock()
	m.tripped = event.Tripped
	m.mu.Unlock()
	if event.Tripped {
		logger.Warnf("kill switch restored TRIPPED (by %s: %s)", event.Actor, event.Reason)
	}
	return nil
}

// Tripped reports the kill-switch state. The order manager consults it
// when building account snapshots.
func (m *Monitor) Tripped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tripped
}

// Trip latches the kill switch, records the audit event, cancels every
// resting order and flattens open positions. Tripping an already tripped
// switch is a no-op.
func (m *Monitor) Trip(ctx context.Context, actor, reason string) error {
	m.mu.Lock()
	if m.tripped {
		m.mu.Unlock()
		logger.Infof("kill switch already tripped, ignoring trip by %s", actor)
		return nil
	}
	m.tripped = true
	m.mu.Unlock()

	event := types.KillSwitchEvent{Tripped: true, Actor: actor, Reason: reason, Timestamp: time.Now()}
	if err := m.store.AppendKillSwitchEvent(ctx, event); err != nil {
		return fmt.Errorf("record kill switch trip: %w", err)
	}
	m.emit(ctx, types.RiskAlert{
		Severity:  types.AlertSeverityCritical,
		Type:      types.AlertTypeKillSwitch,
		Message:   fmt.Sprintf("kill switch TRIPPED by %s: %s", actor, reason),
		Timestamp: time.Now(),
	})

	if m.orders != nil {
		if err := m.orders.FlattenAll(ctx, reason); err != nil {
			logger.Errorf("kill switch: flatten failed: %v", err)
		}
	}
	return nil
}

// Reset releases the latch. Only an explicit call gets trading back;
// nothing in the monitor ever resets on its own.
func (m *Monitor) Reset(ctx context.Context, actor, reason string) error {
	m.mu.Lock()
	if !m.tripped {
		m.mu.Unlock()
		return nil
	}
	m.tripped = false
	m.mu.Unlock()

	event := types.KillSwitchEvent{Tripped: false, Actor: actor, Reason: reason, Timestamp: time.Now()}
	if err := m.store.AppendKillSwitchEvent(ctx, event); err != nil {
		return fmt.Errorf("record kill switch reset: %w", err)
	}
	m.emit(ctx, types.RiskAlert{
		Severity:  types.AlertSeverityInfo,
		Type:      types.AlertTypeKillSwitch,
		Message:   fmt.Sprintf("kill switch reset by %s: %s", actor, reason),
		Timestamp: time.Now(),
	})
	return nil
}

// Subscribe returns a channel receiving every alert the monitor emits.
// Delivery is best effort: a subscriber that stops draining loses alerts
// instead of stalling the monitor.
func (m *Monitor) Subscribe() <-chan types.RiskAlert {
	ch := make(chan types.RiskAlert, 16)
	m.mu.Lock()
	m.subscribers = append(m.subscribers, ch)
	m.mu.Unlock()
	return ch
}

// Run drives the periodic evaluation. Blocks until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	s := scheduler.NewIntervalScheduler("risk-monitor", m.interval)
	s.RunImmediately = true
	s.Start(ctx, m.CheckOnce)
}

// CheckOnce performs one evaluation cycle: re-mark every open position
// at the latest quote, then run account-level and position-level checks.
func (m *Monitor) CheckOnce(ctx context.Context) error {
	open, err := m.store.ListOpenPositions(ctx)
	if err != nil {
		return fmt.Errorf("list open positions: %w", err)
	}

	marked := make([]types.Position, 0, len(open))
	for i := range open {
		pos := open[i]
		if m.market != nil && m.positions != nil {
			quote, err := m.market.LastPrice(ctx, pos.Symbol)
			if err != nil {
				logger.Warnf("risk: no quote for %s: %v", pos.Symbol, err)
			} else if fresh, err := m.positions.MarkPrice(ctx, pos.Symbol, pos.Venue, quote.Last); err != nil {
				logger.Warnf("risk: mark %s: %v", pos.Symbol, err)
			} else if fresh != nil {
				pos = *fresh
			}
		}
		marked = append(marked, pos)
	}

	snap, err := m.orders.Snapshot(ctx, "")
	if err != nil {
		return fmt.Errorf("account snapshot: %w", err)
	}
	policy := m.policy()

	m.checkAccount(ctx, snap, policy)
	for i := range marked {
		m.checkPosition(ctx, marked[i], snap, policy)
	}
	m.checkReconciliation(ctx)
	return nil
}

// checkReconciliation turns ledger/venue divergences recorded since the
// last cycle into alerts, so subscribers see them without polling the
// issue log.
func (m *Monitor) checkReconciliation(ctx context.Context) {
	issues, err := m.store.ListReconciliationIssues(ctx, 50)
	if err != nil {
		logger.Warnf("risk: list reconciliation issues: %v", err)
		return
	}
	m.mu.Lock()
	seen := m.reconSeenAt
	m.mu.Unlock()

	latest := seen
	for _, issue := range issues {
		if !issue.DetectedAt.After(seen) {
			continue
		}
		if issue.DetectedAt.After(latest) {
			latest = issue.DetectedAt
		}
		m.emit(ctx, types.RiskAlert{
			Severity: types.AlertSeverityWarning,
			Type:     types.AlertTypeReconciliation,
			Message:  fmt.Sprintf("reconciliation: %s/%s local=%s venue=%s, %s", issue.Symbol, issue.Venue, issue.LocalQuantity, issue.VenueQuantity, issue.Resolution),
			Details: map[string]any{
				"local_quantity": issue.LocalQuantity,
				"venue_quantity": issue.VenueQuantity,
				"resolution":     issue.Resolution,
			},
			Timestamp: time.Now(),
		})
	}
	m.mu.Lock()
	m.reconSeenAt = latest
	m.mu.Unlock()
}

func (m *Monitor) checkAccount(ctx context.Context, snap types.AccountSnapshot, policy config.RiskPolicy) {
	dailyCeiling := snap.Equity.Mul(decimal.NewFromFloat(policy.DailyLossPct))
	if loss := snap.TodayLoss(); loss.GreaterThanOrEqual(dailyCeiling) && dailyCeiling.IsPositive() {
		m.emitOnce(ctx, "daily_loss", types.RiskAlert{
			Severity:  types.AlertSeverityCritical,
			Type:      types.AlertTypeDailyLoss,
			Message:   fmt.Sprintf("daily loss %s breached budget %s", loss, dailyCeiling),
			Details:   map[string]any{"loss": loss.String(), "budget": dailyCeiling.String()},
			Timestamp: time.Now(),
		})
		if err := m.Trip(ctx, "risk_monitor", fmt.Sprintf("daily loss %s >= budget %s", loss, dailyCeiling)); err != nil {
			logger.Errorf("risk: trip on daily loss: %v", err)
		}
	}

	if snap.SessionPeakEquity.IsPositive() {
		drawdown := snap.SessionPeakEquity.Sub(snap.Equity).Div(snap.SessionPeakEquity)
		limit := decimal.NewFromFloat(policy.MaxDrawdownPct)
		if drawdown.GreaterThanOrEqual(limit) && limit.IsPositive() {
			m.emitOnce(ctx, "drawdown", types.RiskAlert{
				Severity:  types.AlertSeverityCritical,
				Type:      types.AlertTypeDrawdown,
				Message:   fmt.Sprintf("drawdown %s from session peak %s breached limit %s", drawdown.Round(4), snap.SessionPeakEquity, limit),
				Details:   map[string]any{"drawdown": drawdown.String(), "peak": snap.SessionPeakEquity.String()},
				Timestamp: time.Now(),
			})
			if err := m.Trip(ctx, "risk_monitor", fmt.Sprintf("drawdown %s >= limit %s", drawdown.Round(4), limit)); err != nil {
				logger.Errorf("risk: trip on drawdown: %v", err)
			}
		}
	}
}

func (m *Monitor) checkPosition(ctx context.Context, pos types.Position, snap types.AccountSnapshot, policy config.RiskPolicy) {
	key := pos.Symbol + "/" + pos.Venue

	if !pos.StopLoss.IsPositive() {
		// No stop to check, but the loss ceiling below still applies;
		// unprotected positions are the ones that need it most.
		m.emitOnce(ctx, "missing_stop:"+key, types.RiskAlert{
			Severity:  types.AlertSeverityWarning,
			Type:      types.AlertTypeMissingStop,
			Message:   fmt.Sprintf("position %s has no stop-loss", key),
			Timestamp: time.Now(),
		})
	} else if price := markPriceOf(pos); price.IsPositive() {
		breached := (pos.Long() && price.LessThanOrEqual(pos.StopLoss)) ||
			(pos.Short() && price.GreaterThanOrEqual(pos.StopLoss))
		if breached {
			m.emitOnce(ctx, "stop_breach:"+key, types.RiskAlert{
				Severity:  types.AlertSeverityCritical,
				Type:      types.AlertTypeStopBreach,
				Message:   fmt.Sprintf("position %s trading through its stop: price=%s stop=%s", key, price, pos.StopLoss),
				Details:   map[string]any{"price": price.String(), "stop": pos.StopLoss.String()},
				Timestamp: time.Now(),
			})
			if err := m.Trip(ctx, "risk_monitor", fmt.Sprintf("position %s trading through its stop: price=%s stop=%s", key, price, pos.StopLoss)); err != nil {
				logger.Errorf("risk: trip on stop breach: %v", err)
			}
		} else {
			proximity := price.Sub(pos.StopLoss).Abs().Div(price)
			if proximity.LessThanOrEqual(decimal.NewFromFloat(policy.StopProximityPct)) {
				m.emitOnce(ctx, "stop_proximity:"+key, types.RiskAlert{
					Severity:  types.AlertSeverityWarning,
					Type:      types.AlertTypeStopProximity,
					Message:   fmt.Sprintf("position %s within %s of its stop: price=%s stop=%s", key, proximity.Round(4), price, pos.StopLoss),
					Timestamp: time.Now(),
				})
			}
		}
	}

	lossLimit := snap.Equity.Mul(decimal.NewFromFloat(policy.SinglePositionLossPct))
	if lossLimit.IsPositive() && pos.UnrealizedPnL.IsNegative() && pos.UnrealizedPnL.Neg().GreaterThanOrEqual(lossLimit) {
		m.emitOnce(ctx, "position_loss:"+key, types.RiskAlert{
			Severity:  types.AlertSeverityCritical,
			Type:      types.AlertTypePositionLoss,
			Message:   fmt.Sprintf("position %s unrealized loss %s breached limit %s", key, pos.UnrealizedPnL, lossLimit),
			Details:   map[string]any{"unrealized": pos.UnrealizedPnL.String(), "limit": lossLimit.String()},
			Timestamp: time.Now(),
		})
		if err := m.Trip(ctx, "risk_monitor", fmt.Sprintf("position %s unrealized loss %s >= limit %s", key, pos.UnrealizedPnL, lossLimit)); err != nil {
			logger.Errorf("risk: trip on position loss: %v", err)
		}
	}
}

// markPriceOf backs the mark price out of the stored unrealized P&L, so
// checks work even when no fresh quote was available this cycle.
func markPriceOf(pos types.Position) decimal.Decimal {
	if pos.Quantity.IsZero() {
		return decimal.Zero
	}
	perUnit := pos.UnrealizedPnL.Div(pos.Quantity.Abs())
	if pos.Long() {
		return pos.AvgEntryPrice.Add(perUnit)
	}
	return pos.AvgEntryPrice.Sub(perUnit)
}

// emitOnce emits the alert unless the same key fired within the cooldown.
func (m *Monitor) emitOnce(ctx context.Context, key string, alert types.RiskAlert) {
	m.mu.Lock()
	if last, ok := m.lastAlertAt[key]; ok && time.Since(last) < alertCooldown {
		m.mu.Unlock()
		return
	}
	m.lastAlertAt[key] = time.Now()
	m.mu.Unlock()
	m.emit(ctx, alert)
}

// emit persists the alert and fans it out to subscribers, best effort.
func (m *Monitor) emit(ctx context.Context, alert types.RiskAlert) {
	if err := m.store.InsertRiskAlert(ctx, alert); err != nil {
		logger.Errorf("risk: persist alert: %v", err)
	}
	switch alert.Severity {
	case types.AlertSeverityCritical:
		logger.Errorf("risk alert [%s] %s", alert.Type, alert.Message)
	case types.AlertSeverityWarning:
		logger.Warnf("risk alert [%s] %s", alert.Type, alert.Message)
	default:
		logger.Infof("risk alert [%s] %s", alert.Type, alert.Message)
	}

	m.mu.Lock()
	subs := make([]chan types.RiskAlert, len(m.subscribers))
	copy(subs, m.subscribers)
	m.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- alert:
		default:
		}
	}
}
