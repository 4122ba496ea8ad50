package position

import (
	"encoding/json"
	"fmt"
	"time"

	"hedger/internal/types"

	"gorm.io/datatypes"
)

// positionModel is the persisted shape. Hot filter columns are flattened;
// the legs travel as JSON since they are only ever read whole.
type positionModel struct {
	ID            string         `gorm:"column:id;primaryKey"`
	SignalType    string         `gorm:"column:signal_type"`
	Symbol        string         `gorm:"column:symbol"`
	Status        string         `gorm:"column:status;index"`
	MainLegJSON   datatypes.JSON `gorm:"column:main_leg;type:TEXT"`
	HedgeLegJSON  datatypes.JSON `gorm:"column:hedge_leg;type:TEXT"`
	EntryTime     int64          `gorm:"column:entry_time"`
	ExitTime      *int64         `gorm:"column:exit_time"`
	RealizedPnL   float64        `gorm:"column:realized_pnl"`
	MaxProfitPct  float64        `gorm:"column:max_profit_pct"`
	ProfitLocked  bool           `gorm:"column:profit_locked"`
	LockLevelPct  float64        `gorm:"column:lock_level_pct"`
	ExitReason    string         `gorm:"column:exit_reason"`
	FailureReason string         `gorm:"column:failure_reason"`
	CreatedAtUnix int64          `gorm:"column:created_at"`
	UpdatedAtUnix int64          `gorm:"column:updated_at"`
}

func (positionModel) TableName() string { return "positions" }

func toModel(p types.Position) (positionModel, error) {
	mainRaw, err := json.Marshal(p.MainLeg)
	if err != nil {
		return positionModel{}, fmt.Errorf("encoding main leg: %w", err)
	}
	hedgeRaw, err := json.Marshal(p.HedgeLeg)
	if err != nil {
		return positionModel{}, fmt.Errorf("encoding hedge leg: %w", err)
	}
	m := positionModel{
		ID:            p.ID,
		SignalType:    string(p.SignalType),
		Symbol:        p.Symbol,
		Status:        string(p.Status),
		MainLegJSON:   datatypes.JSON(mainRaw),
		HedgeLegJSON:  datatypes.JSON(hedgeRaw),
		RealizedPnL:   p.RealizedPnL,
		MaxProfitPct:  p.MaxProfitPct,
		ProfitLocked:  p.ProfitLocked,
		LockLevelPct:  p.LockLevelPct,
		ExitReason:    p.ExitReason,
		FailureReason: p.FailureReason,
	}
	if !p.EntryTime.IsZero() {
		m.EntryTime = p.EntryTime.Unix()
	}
	if p.ExitTime != nil {
		ts := p.ExitTime.Unix()
		m.ExitTime = &ts
	}
	return m, nil
}

func fromModel(m positionModel) (types.Position, error) {
	p := types.Position{
		ID:            m.ID,
		SignalType:    types.SignalType(m.SignalType),
		Symbol:        m.Symbol,
		Status:        types.PositionStatus(m.Status),
		RealizedPnL:   m.RealizedPnL,
		MaxProfitPct:  m.MaxProfitPct,
		ProfitLocked:  m.ProfitLocked,
		LockLevelPct:  m.LockLevelPct,
		ExitReason:    m.ExitReason,
		FailureReason: m.FailureReason,
	}
	if len(m.MainLegJSON) > 0 {
		if err := json.Unmarshal(m.MainLegJSON, &p.MainLeg); err != nil {
			return p, fmt.Errorf("decoding main leg: %w", err)
		}
	}
	if len(m.HedgeLegJSON) > 0 {
		if err := json.Unmarshal(m.HedgeLegJSON, &p.HedgeLeg); err != nil {
			return p, fmt.Errorf("decoding hedge leg: %w", err)
		}
	}
	if m.EntryTime > 0 {
		p.EntryTime = time.Unix(m.EntryTime, 0).UTC()
	}
	if m.ExitTime != nil {
		ts := time.Unix(*m.ExitTime, 0).UTC()
		p.ExitTime = &ts
	}
	return p, nil
}
