package types

import (
	"fmt"
	"time"
)

// SignalType identifies the alerting source's directional setups.
type SignalType string

const (
	SignalS1 SignalType = "S1" // bear trap
	SignalS2 SignalType = "S2" // support hold
	SignalS3 SignalType = "S3" // resistance hold
	SignalS4 SignalType = "S4" // bias failure bull
	SignalS5 SignalType = "S5" // bias failure bear
	SignalS6 SignalType = "S6" // weakness confirmed
	SignalS7 SignalType = "S7" // breakout confirmed
	SignalS8 SignalType = "S8" // breakdown confirmed
)

func (s SignalType) Valid() bool {
	switch s {
	case SignalS1, SignalS2, SignalS3, SignalS4, SignalS5, SignalS6, SignalS7, SignalS8:
		return true
	}
	return false
}

type OptionType string

const (
	OptionCE OptionType = "CE"
	OptionPE OptionType = "PE"
)

func (o OptionType) Valid() bool { return o == OptionCE || o == OptionPE }

// Signal is the immutable inbound alert. It is created once at the intake
// boundary and never mutated afterwards.
type Signal struct {
	Type           SignalType `json:"signal_type"`
	Strike         float64    `json:"strike"`
	OptionType     OptionType `json:"option_type"`
	Lots           int        `json:"lots"`
	SpotPrice      float64    `json:"spot_price_at_signal"`
	Timestamp      time.Time  `json:"timestamp"`
	IdempotencyKey string     `json:"idempotency_key,omitempty"`
}

func (s Signal) String() string {
	return fmt.Sprintf("%s %s %.0f x%d", s.Type, s.OptionType, s.Strike, s.Lots)
}

// TradeRequest is the admitted, sized form of a Signal. It is produced by
// intake and consumed exactly once by the sequencer.
type TradeRequest struct {
	Signal
	Fingerprint   string  `json:"fingerprint"`
	MainQuantity  int     `json:"main_quantity"`
	HedgeQuantity int     `json:"hedge_quantity"`
	HedgeStrike   float64 `json:"hedge_strike"`
	MainPremium   float64 `json:"main_premium"`
	HedgePremium  float64 `json:"hedge_premium"`
}
