package config

const (
	defaultAppEnv      = "dev"
	defaultAppLogLevel = "info"
	defaultAppHTTPAddr = ":9985"

	defaultInstrumentSymbol = "NIFTY"
	defaultLotSize          = 75
	defaultStrikeGap        = 50.0
	defaultMinIndex         = 5000.0
	defaultMaxIndex         = 60000.0

	defaultSessionTimezone = "Asia/Kolkata"
	defaultSessionOpen     = "09:15"
	defaultSessionClose    = "15:30"

	defaultMaxLotsPerTrade = 20
	defaultDedupWindow     = "5m"

	defaultHedgePercentage = 0.30
	defaultHedgeMaxSteps   = 10
	defaultHedgeOffset     = 10

	defaultProfitTargetPct    = 10.0
	defaultProfitLockPct      = 5.0
	defaultTrailPct           = 5.0
	defaultModelThreshold     = 0.7
	defaultConsensusThreshold = 0.6
	defaultMinBreachMargin    = 10.0
	defaultMaxCandleAge       = "2h"
	defaultExitDayOffset      = 2
	defaultExitTime           = "15:15"
	defaultMonitorInterval    = "30s"
	defaultHourlyOffset       = "10s"

	defaultFillPollInterval = "2s"
	defaultFillPollAttempts = 3
	defaultGatewayTimeout   = 10

	defaultPositionsPath = "data/positions.db"
	defaultAuditPath     = "data/audit.db"
)

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = defaultAppEnv
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = defaultAppLogLevel
	}
	if c.App.HTTPAddr == "" {
		c.App.HTTPAddr = defaultAppHTTPAddr
	}

	if c.Instrument.Symbol == "" {
		c.Instrument.Symbol = defaultInstrumentSymbol
	}
	if c.Instrument.LotSize <= 0 {
		c.Instrument.LotSize = defaultLotSize
	}
	if c.Instrument.StrikeGap <= 0 {
		c.Instrument.StrikeGap = defaultStrikeGap
	}
	if c.Instrument.MinIndex <= 0 {
		c.Instrument.MinIndex = defaultMinIndex
	}
	if c.Instrument.MaxIndex <= 0 {
		c.Instrument.MaxIndex = defaultMaxIndex
	}

	if c.Session.Timezone == "" {
		c.Session.Timezone = defaultSessionTimezone
	}
	if c.Session.Open == "" {
		c.Session.Open = defaultSessionOpen
	}
	if c.Session.Close == "" {
		c.Session.Close = defaultSessionClose
	}

	if c.Intake.MaxLotsPerTrade <= 0 {
		c.Intake.MaxLotsPerTrade = defaultMaxLotsPerTrade
	}
	if c.Intake.DedupWindow == "" {
		c.Intake.DedupWindow = defaultDedupWindow
	}

	if c.Hedge.Mode == "" {
		c.Hedge.Mode = HedgeModePercentage
	}
	if c.Hedge.Percentage <= 0 {
		c.Hedge.Percentage = defaultHedgePercentage
	}
	if c.Hedge.MaxSearchSteps <= 0 {
		c.Hedge.MaxSearchSteps = defaultHedgeMaxSteps
	}
	if c.Hedge.OffsetSteps <= 0 {
		c.Hedge.OffsetSteps = defaultHedgeOffset
	}

	if c.Exit.ProfitTargetPct <= 0 {
		c.Exit.ProfitTargetPct = defaultProfitTargetPct
	}
	if c.Exit.ProfitLockPct <= 0 {
		c.Exit.ProfitLockPct = defaultProfitLockPct
	}
	if c.Exit.TrailPct <= 0 {
		c.Exit.TrailPct = defaultTrailPct
	}
	if c.Exit.ModelThreshold <= 0 {
		c.Exit.ModelThreshold = defaultModelThreshold
	}
	if c.Exit.ConsensusThreshold <= 0 {
		c.Exit.ConsensusThreshold = defaultConsensusThreshold
	}
	if c.Exit.MinBreachMargin <= 0 {
		c.Exit.MinBreachMargin = defaultMinBreachMargin
	}
	if c.Exit.MaxCandleAge == "" {
		c.Exit.MaxCandleAge = defaultMaxCandleAge
	}
	if c.Exit.ExitDayOffset <= 0 {
		c.Exit.ExitDayOffset = defaultExitDayOffset
	}
	if c.Exit.ExitTime == "" {
		c.Exit.ExitTime = defaultExitTime
	}
	if c.Exit.MonitorInterval == "" {
		c.Exit.MonitorInterval = defaultMonitorInterval
	}
	if c.Exit.HourlyOffset == "" {
		c.Exit.HourlyOffset = defaultHourlyOffset
	}

	applyBreakerDefaults(&c.Breakers.Broker, 3, 2, "60s")
	applyBreakerDefaults(&c.Breakers.MarketData, 5, 2, "30s")
	applyBreakerDefaults(&c.Breakers.Predictor, 3, 2, "120s")

	if c.Broker.TimeoutSeconds <= 0 {
		c.Broker.TimeoutSeconds = defaultGatewayTimeout
	}
	if c.Broker.FillPollInterval == "" {
		c.Broker.FillPollInterval = defaultFillPollInterval
	}
	if c.Broker.FillPollAttempts <= 0 {
		c.Broker.FillPollAttempts = defaultFillPollAttempts
	}
	if c.MarketData.TimeoutSeconds <= 0 {
		c.MarketData.TimeoutSeconds = defaultGatewayTimeout
	}
	if c.Predictor.TimeoutSeconds <= 0 {
		c.Predictor.TimeoutSeconds = defaultGatewayTimeout
	}

	if c.Store.PositionsPath == "" {
		c.Store.PositionsPath = defaultPositionsPath
	}
	if c.Store.AuditPath == "" {
		c.Store.AuditPath = defaultAuditPath
	}
}

func applyBreakerDefaults(b *BreakerConfig, failures, successes int, recovery string) {
	if b.FailureThreshold <= 0 {
		b.FailureThreshold = failures
	}
	if b.SuccessThreshold <= 0 {
		b.SuccessThreshold = successes
	}
	if b.RecoveryTimeout == "" {
		b.RecoveryTimeout = recovery
	}
}
