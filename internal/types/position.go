package types

import "time"

type LegRole string

const (
	LegMain  LegRole = "MAIN"
	LegHedge LegRole = "HEDGE"
)

type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderFilled    OrderStatus = "FILLED"
	OrderRejected  OrderStatus = "REJECTED"
	OrderCancelled OrderStatus = "CANCELLED"
)

// OrderLeg is one side of a hedged position. The sequencer owns it during
// placement; once confirmed it is persisted as part of the Position.
type OrderLeg struct {
	Role           LegRole     `json:"leg_role"`
	Direction      Direction   `json:"direction"`
	Strike         float64     `json:"strike"`
	OptionType     OptionType  `json:"option_type"`
	Quantity       int         `json:"quantity"`
	RequestedPrice float64     `json:"requested_price"`
	OrderID        string      `json:"order_id"`
	FillPrice      float64     `json:"fill_price"`
	Status         OrderStatus `json:"status"`

	// Exit bookkeeping. ExitOrderID is recorded before the fill confirms so
	// a crashed close can resume by polling instead of double-submitting.
	ExitOrderID   string  `json:"exit_order_id,omitempty"`
	ExitFillPrice float64 `json:"exit_fill_price,omitempty"`
	Closed        bool    `json:"closed,omitempty"`
}

type PositionStatus string

const (
	PositionPending PositionStatus = "PENDING"
	PositionOpen    PositionStatus = "OPEN"
	PositionActive  PositionStatus = "ACTIVE"
	PositionClosing PositionStatus = "CLOSING"
	PositionClosed  PositionStatus = "CLOSED"
	PositionFailed  PositionStatus = "FAILED"
)

// Terminal reports whether no further transitions are allowed.
func (s PositionStatus) Terminal() bool {
	return s == PositionClosed || s == PositionFailed
}

// Monitorable reports whether the exit engine should evaluate the position.
func (s PositionStatus) Monitorable() bool {
	return s == PositionOpen || s == PositionActive
}

// Position is the aggregate root: one MAIN leg, one HEDGE leg, and the
// ratchet state the exit engine maintains. ExitTime is set only once the
// status is CLOSED or FAILED.
type Position struct {
	ID            string         `json:"id"`
	SignalType    SignalType     `json:"signal_type"`
	Symbol        string         `json:"symbol"`
	MainLeg       OrderLeg       `json:"main_leg"`
	HedgeLeg      OrderLeg       `json:"hedge_leg"`
	EntryTime     time.Time      `json:"entry_time"`
	ExitTime      *time.Time     `json:"exit_time,omitempty"`
	Status        PositionStatus `json:"status"`
	RealizedPnL   float64        `json:"realized_pnl"`
	MaxProfitPct  float64        `json:"max_profit_seen"`
	ProfitLocked  bool           `json:"profit_locked"`
	LockLevelPct  float64        `json:"current_lock_level"`
	ExitReason    string         `json:"exit_reason,omitempty"`
	FailureReason string         `json:"failure_reason,omitempty"`
}

// EntryCredit is the premium collected on the main leg, the base for all
// percentage P&L figures.
func (p Position) EntryCredit() float64 {
	return p.MainLeg.FillPrice * float64(p.MainLeg.Quantity)
}
