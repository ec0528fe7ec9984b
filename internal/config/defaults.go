package config

import "strings"

const (
	defaultAppEnv          = "dev"
	defaultAppLogLevel     = "info"
	defaultAppHTTPAddr     = ":9980"
	defaultStorePath       = "data/tradecore.db"
	defaultInitialEquity   = 100_000
	defaultFeeRatePct      = 0.0005
	defaultVenueName       = "paper"
	defaultStatusPollSec   = 5
	defaultReconcileSec    = 60
	defaultCallTimeoutSec  = 10
	defaultBreakerFailures = 5
	defaultBreakerCooldown = 30
	defaultMarketREST      = "https://api.binance.com"
	defaultMarketTimeout   = 10
	defaultQuoteTTLSec     = 15
	defaultRiskPolicyPath  = "configs/risk_policy.yaml"
	defaultRiskIntervalSec = 10
)

func (c *Config) applyDefaults() {
	if c == nil {
		return
	}
	setString(&c.App.Env, defaultAppEnv)
	setString(&c.App.LogLevel, defaultAppLogLevel)
	setString(&c.App.HTTPAddr, defaultAppHTTPAddr)
	setString(&c.Store.Path, defaultStorePath)
	if c.Account.InitialEquity <= 0 {
		c.Account.InitialEquity = defaultInitialEquity
	}
	if c.Account.FeeRatePct < 0 {
		c.Account.FeeRatePct = defaultFeeRatePct
	}
	setString(&c.Venue.Name, defaultVenueName)
	setInt(&c.Venue.StatusPollSeconds, defaultStatusPollSec)
	setInt(&c.Venue.ReconcileSeconds, defaultReconcileSec)
	setInt(&c.Venue.CallTimeoutSeconds, defaultCallTimeoutSec)
	setInt(&c.Venue.BreakerThreshold, defaultBreakerFailures)
	setInt(&c.Venue.BreakerCooldownSeconds, defaultBreakerCooldown)
	setString(&c.Market.RESTBaseURL, defaultMarketREST)
	setInt(&c.Market.TimeoutSeconds, defaultMarketTimeout)
	setInt(&c.Market.QuoteTTLSeconds, defaultQuoteTTLSec)
	setString(&c.Risk.PolicyPath, defaultRiskPolicyPath)
	setInt(&c.Risk.MonitorIntervalSeconds, defaultRiskIntervalSec)
}

// DefaultRiskPolicy backs a missing or partially specified policy file.
func DefaultRiskPolicy() RiskPolicy {
	return RiskPolicy{
		RiskPerTradePct:       0.02,
		MinRewardRisk:         1.5,
		DailyLossPct:          0.03,
		MaxOpenPositions:      5,
		PriceBandPct:          0.05,
		MinOrderQty:           0.0001,
		MaxOrderQty:           1_000_000,
		MaxPendingPerOpen:     3,
		MaxDrawdownPct:        0.10,
		SinglePositionLossPct: 0.05,
		StopProximityPct:      0.005,
	}
}

func setString(dst *string, def string) {
	if strings.TrimSpace(*dst) == "" {
		*dst = def
	}
}

func setInt(dst *int, def int) {
	if *dst <= 0 {
		*dst = def
	}
}
