package config

// Config is the main configuration carrier for the execution core.
type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Store   StoreConfig   `mapstructure:"store"`
	Account AccountConfig `mapstructure:"account"`
	Venue   VenueConfig   `mapstructure:"venue"`
	Market  MarketConfig  `mapstructure:"market"`
	Risk    RiskConfig    `mapstructure:"risk"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
	LogPath  string `mapstructure:"log_path"`
	HTTPAddr string `mapstructure:"http_addr"`
}

type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// AccountConfig seeds the account ledger. Equity evolves from this base
// plus realized/unrealized P&L read back from the store.
type AccountConfig struct {
	InitialEquity float64 `mapstructure:"initial_equity"`
	FeeRatePct    float64 `mapstructure:"fee_rate_pct"`
}

type VenueConfig struct {
	Name                   string `mapstructure:"name"`
	StatusPollSeconds      int    `mapstructure:"status_poll_seconds"`
	ReconcileSeconds       int    `mapstructure:"reconcile_seconds"`
	CallTimeoutSeconds     int    `mapstructure:"call_timeout_seconds"`
	BreakerThreshold       int    `mapstructure:"breaker_threshold"`
	BreakerCooldownSeconds int    `mapstructure:"breaker_cooldown_seconds"`
}

type MarketConfig struct {
	RESTBaseURL     string `mapstructure:"rest_base_url"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
	QuoteTTLSeconds int    `mapstructure:"quote_ttl_seconds"`
}

type RiskConfig struct {
	PolicyPath             string `mapstructure:"policy_path"`
	MonitorIntervalSeconds int    `mapstructure:"monitor_interval_seconds"`
}

// RiskPolicy holds every validator and monitor ceiling. It lives in its
// own YAML file so the desk can tighten limits without a restart; the
// loader package watches and re-reads it.
type RiskPolicy struct {
	RiskPerTradePct       float64 `mapstructure:"risk_per_trade_pct"`
	MinRewardRisk         float64 `mapstructure:"min_reward_risk"`
	DailyLossPct          float64 `mapstructure:"daily_loss_pct"`
	MaxOpenPositions      int     `mapstructure:"max_open_positions"`
	PriceBandPct          float64 `mapstructure:"price_band_pct"`
	MinOrderQty           float64 `mapstructure:"min_order_qty"`
	MaxOrderQty           float64 `mapstructure:"max_order_qty"`
	MaxPendingPerOpen     float64 `mapstructure:"max_pending_per_open"`
	MaxDrawdownPct        float64 `mapstructure:"max_drawdown_pct"`
	SinglePositionLossPct float64 `mapstructure:"single_position_loss_pct"`
	StopProximityPct      float64 `mapstructure:"stop_proximity_pct"`
}
