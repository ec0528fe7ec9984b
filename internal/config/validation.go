package config

import (
	"fmt"
	"strings"
)

func validate(c *Config) error {
	if err := c.Venue.validate(); err != nil {
		return err
	}
	if err := c.Market.validate(); err != nil {
		return err
	}
	if c.Risk.MonitorIntervalSeconds <= 0 {
		return fmt.Errorf("risk.monitor_interval_seconds must be > 0")
	}
	return nil
}

func (v VenueConfig) validate() error {
	if strings.TrimSpace(v.Name) == "" {
		return fmt.Errorf("venue.name is required")
	}
	if v.StatusPollSeconds <= 0 {
		return fmt.Errorf("venue.status_poll_seconds must be > 0")
	}
	if v.ReconcileSeconds < v.StatusPollSeconds {
		return fmt.Errorf("venue.reconcile_seconds must be >= venue.status_poll_seconds")
	}
	return nil
}

func (m MarketConfig) validate() error {
	if strings.TrimSpace(m.RESTBaseURL) == "" {
		return fmt.Errorf("market.rest_base_url is required")
	}
	return nil
}

// Validate rejects policies that would be impossible to trade under or
// silently disable a mandatory check.
func (p RiskPolicy) Validate() error {
	if p.RiskPerTradePct <= 0 || p.RiskPerTradePct > 1 {
		return fmt.Errorf("risk_per_trade_pct must be in (0, 1]")
	}
	if p.MinRewardRisk <= 0 {
		return fmt.Errorf("min_reward_risk must be > 0")
	}
	if p.DailyLossPct <= 0 || p.DailyLossPct > 1 {
		return fmt.Errorf("daily_loss_pct must be in (0, 1]")
	}
	if p.MaxOpenPositions <= 0 {
		return fmt.Errorf("max_open_positions must be > 0")
	}
	if p.PriceBandPct <= 0 {
		return fmt.Errorf("price_band_pct must be > 0")
	}
	if p.MinOrderQty <= 0 || p.MaxOrderQty <= 0 || p.MinOrderQty > p.MaxOrderQty {
		return fmt.Errorf("order quantity bounds invalid: min=%v max=%v", p.MinOrderQty, p.MaxOrderQty)
	}
	if p.MaxPendingPerOpen <= 0 {
		return fmt.Errorf("max_pending_per_open must be > 0")
	}
	if p.MaxDrawdownPct <= 0 || p.MaxDrawdownPct > 1 {
		return fmt.Errorf("max_drawdown_pct must be in (0, 1]")
	}
	if p.SinglePositionLossPct <= 0 {
		return fmt.Errorf("single_position_loss_pct must be > 0")
	}
	return nil
}
