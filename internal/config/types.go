package config

// Config is the top-level configuration carrier.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Instrument InstrumentConfig `mapstructure:"instrument"`
	Session    SessionConfig    `mapstructure:"session"`
	Intake     IntakeConfig     `mapstructure:"intake"`
	Hedge      HedgeConfig      `mapstructure:"hedge"`
	Exit       ExitConfig       `mapstructure:"exit"`
	Breakers   BreakersConfig   `mapstructure:"breakers"`
	Broker     EndpointConfig   `mapstructure:"broker"`
	MarketData MarketDataConfig `mapstructure:"marketdata"`
	Predictor  PredictorConfig  `mapstructure:"predictor"`
	Store      StoreConfig      `mapstructure:"store"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
	LogPath  string `mapstructure:"log_path"`
	HTTPAddr string `mapstructure:"http_addr"`
	// DryRun routes all orders to the in-process paper broker.
	DryRun bool `mapstructure:"dry_run"`
}

type InstrumentConfig struct {
	Symbol    string  `mapstructure:"symbol"`
	LotSize   int     `mapstructure:"lot_size"`
	StrikeGap float64 `mapstructure:"strike_gap"`
	// MinIndex/MaxIndex bound what counts as a sane index print.
	MinIndex float64 `mapstructure:"min_index"`
	MaxIndex float64 `mapstructure:"max_index"`
}

type SessionConfig struct {
	Timezone     string `mapstructure:"timezone"`
	Open         string `mapstructure:"open"`  // "09:15"
	Close        string `mapstructure:"close"` // "15:30"
	HolidaysFile string `mapstructure:"holidays_file"`
}

type IntakeConfig struct {
	WebhookSecret   string `mapstructure:"webhook_secret"`
	MaxLotsPerTrade int    `mapstructure:"max_lots_per_trade"`
	DedupWindow     string `mapstructure:"dedup_window"` // e.g. "5m"
	KillSwitchFile  string `mapstructure:"kill_switch_file"`
}

// HedgeMode selects the hedge sizing algorithm. Exactly one is used; the
// mode is never inferred from which fields happen to be set.
type HedgeMode string

const (
	HedgeModePercentage HedgeMode = "percentage"
	HedgeModePriceMatch HedgeMode = "price_match"
)

type HedgeConfig struct {
	Mode HedgeMode `mapstructure:"mode"`
	// Percentage of the main premium the hedge should cost (both modes).
	Percentage float64 `mapstructure:"percentage"`
	// MaxSearchSteps bounds the outward strike scan in price_match mode.
	MaxSearchSteps int `mapstructure:"max_search_steps"`
	// OffsetSteps fixes the hedge strike distance (in strike gaps) in
	// percentage mode.
	OffsetSteps int `mapstructure:"offset_steps"`
}

type ExitConfig struct {
	ProfitTargetPct float64 `mapstructure:"profit_target_pct"`
	ProfitLockPct   float64 `mapstructure:"profit_lock_pct"`
	TrailPct        float64 `mapstructure:"trail_pct"`
	TrailEnabled    bool    `mapstructure:"trail_enabled"`

	ModelThreshold     float64 `mapstructure:"model_threshold"`
	PreferModel        bool    `mapstructure:"prefer_model_when_confident"`
	ConsensusThreshold float64 `mapstructure:"consensus_threshold"`

	MinBreachMargin float64 `mapstructure:"min_breach_margin"`
	MaxCandleAge    string  `mapstructure:"max_candle_age"`

	ExitDayOffset int    `mapstructure:"exit_day_offset"`
	ExitTime      string `mapstructure:"exit_time"` // "15:15"

	MonitorInterval string `mapstructure:"monitor_interval"`
	HourlyOffset    string `mapstructure:"hourly_offset"`

	RulesFile string `mapstructure:"rules_file"`
}

type BreakerConfig struct {
	FailureThreshold int    `mapstructure:"failure_threshold"`
	SuccessThreshold int    `mapstructure:"success_threshold"`
	RecoveryTimeout  string `mapstructure:"recovery_timeout"`
}

type BreakersConfig struct {
	Broker     BreakerConfig `mapstructure:"broker"`
	MarketData BreakerConfig `mapstructure:"marketdata"`
	Predictor  BreakerConfig `mapstructure:"predictor"`
}

type EndpointConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	// FillPollInterval / FillPollAttempts bound the order confirmation wait.
	FillPollInterval string `mapstructure:"fill_poll_interval"`
	FillPollAttempts int    `mapstructure:"fill_poll_attempts"`
}

type MarketDataConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	WSURL          string `mapstructure:"ws_url"`
	APIKey         string `mapstructure:"api_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type PredictorConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type StoreConfig struct {
	PositionsPath string `mapstructure:"positions_path"`
	AuditPath     string `mapstructure:"audit_path"`
}
