package market

import (
	"fmt"
	"strings"
	"time"
)

// Candle is a completed hourly bar for the strike-defining index.
// Timestamp is the bar's open time.
type Candle struct {
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	IsMock    bool      `json:"is_mock"`
}

// liveSources are the upstream feeds trusted for stop decisions. Anything
// else (replays, fixtures, synthetic bars) must never trigger an exit.
var liveSources = map[string]bool{
	"breeze":  true,
	"kite":    true,
	"nse":     true,
	"binance": true,
}

// CandleValidator gates hourly-close evaluations. Every rejection reason is
// surfaced so suppressed checks land in the audit trail rather than being
// silently treated as "no breach".
type CandleValidator struct {
	MaxAge       time.Duration
	MinIndex     float64
	MaxIndex     float64
	InSessionFn  func(time.Time) bool
	nowFn        func() time.Time
	extraSources []string
}

func NewCandleValidator(maxAge time.Duration, minIndex, maxIndex float64, inSession func(time.Time) bool) *CandleValidator {
	return &CandleValidator{
		MaxAge:      maxAge,
		MinIndex:    minIndex,
		MaxIndex:    maxIndex,
		InSessionFn: inSession,
		nowFn:       time.Now,
	}
}

// AllowSource whitelists an additional live source name.
func (v *CandleValidator) AllowSource(name string) {
	v.extraSources = append(v.extraSources, strings.ToLower(strings.TrimSpace(name)))
}

func (v *CandleValidator) sourceTrusted(source string) bool {
	s := strings.ToLower(strings.TrimSpace(source))
	if liveSources[s] {
		return true
	}
	for _, extra := range v.extraSources {
		if extra == s {
			return true
		}
	}
	return false
}

// Validate returns nil when the candle may drive a stop decision.
func (v *CandleValidator) Validate(c Candle) error {
	if c.IsMock {
		return fmt.Errorf("candle flagged synthetic (source=%s)", c.Source)
	}
	if !v.sourceTrusted(c.Source) {
		return fmt.Errorf("candle source %q not a recognized live feed", c.Source)
	}
	if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
		return fmt.Errorf("candle has missing OHLC fields (o=%.2f h=%.2f l=%.2f c=%.2f)",
			c.Open, c.High, c.Low, c.Close)
	}
	if c.Timestamp.IsZero() {
		return fmt.Errorf("candle has no timestamp")
	}
	now := v.nowFn()
	closeTime := c.Timestamp.Add(time.Hour)
	if closeTime.After(now) {
		return fmt.Errorf("candle not yet completed (closes %s)", closeTime.Format(time.RFC3339))
	}
	if v.MaxAge > 0 && now.Sub(closeTime) > v.MaxAge {
		return fmt.Errorf("candle stale: closed %s ago (max %s)",
			now.Sub(closeTime).Truncate(time.Second), v.MaxAge)
	}
	if v.InSessionFn != nil && !v.InSessionFn(c.Timestamp) {
		return fmt.Errorf("candle outside trading session (open=%s)", c.Timestamp.Format(time.RFC3339))
	}
	if v.MaxIndex > 0 && (c.Close < v.MinIndex || c.Close > v.MaxIndex) {
		return fmt.Errorf("candle close %.2f outside sane index bounds [%.0f, %.0f]",
			c.Close, v.MinIndex, v.MaxIndex)
	}
	return nil
}
