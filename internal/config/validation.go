package config

import (
	"fmt"
	"time"

	"hedger/internal/scheduler"
)

func validate(c *Config) error {
	switch c.Hedge.Mode {
	case HedgeModePercentage, HedgeModePriceMatch:
	default:
		return fmt.Errorf("hedge.mode must be %q or %q, got %q",
			HedgeModePercentage, HedgeModePriceMatch, c.Hedge.Mode)
	}
	if c.Hedge.Percentage <= 0 || c.Hedge.Percentage >= 1 {
		return fmt.Errorf("hedge.percentage must be in (0,1), got %v", c.Hedge.Percentage)
	}
	if c.Exit.ProfitLockPct >= c.Exit.ProfitTargetPct {
		return fmt.Errorf("exit.profit_lock_pct (%v) must be below exit.profit_target_pct (%v)",
			c.Exit.ProfitLockPct, c.Exit.ProfitTargetPct)
	}
	if c.Exit.ModelThreshold < 0.5 || c.Exit.ModelThreshold > 1 {
		return fmt.Errorf("exit.model_threshold must be in [0.5,1], got %v", c.Exit.ModelThreshold)
	}
	if c.Instrument.MinIndex >= c.Instrument.MaxIndex {
		return fmt.Errorf("instrument.min_index must be below instrument.max_index")
	}
	if _, err := time.LoadLocation(c.Session.Timezone); err != nil {
		return fmt.Errorf("session.timezone invalid: %w", err)
	}
	for _, tt := range []struct {
		name, val string
	}{
		{"session.open", c.Session.Open},
		{"session.close", c.Session.Close},
		{"exit.exit_time", c.Exit.ExitTime},
	} {
		if _, err := time.Parse("15:04", tt.val); err != nil {
			return fmt.Errorf("%s must be HH:MM, got %q", tt.name, tt.val)
		}
	}
	for _, dd := range []struct {
		name, val string
	}{
		{"intake.dedup_window", c.Intake.DedupWindow},
		{"exit.max_candle_age", c.Exit.MaxCandleAge},
		{"exit.monitor_interval", c.Exit.MonitorInterval},
		{"exit.hourly_offset", c.Exit.HourlyOffset},
		{"broker.fill_poll_interval", c.Broker.FillPollInterval},
		{"breakers.broker.recovery_timeout", c.Breakers.Broker.RecoveryTimeout},
		{"breakers.marketdata.recovery_timeout", c.Breakers.MarketData.RecoveryTimeout},
		{"breakers.predictor.recovery_timeout", c.Breakers.Predictor.RecoveryTimeout},
	} {
		if _, ok := scheduler.ParseIntervalDuration(dd.val); !ok {
			return fmt.Errorf("%s must be a duration like 30s/5m/1h, got %q", dd.name, dd.val)
		}
	}
	if c.Intake.WebhookSecret == "" {
		return fmt.Errorf("intake.webhook_secret is required")
	}
	return nil
}

// Duration returns a previously validated duration field.
func Duration(val string) time.Duration {
	d, _ := scheduler.ParseIntervalDuration(val)
	return d
}
