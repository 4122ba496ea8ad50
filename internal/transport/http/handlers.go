package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"hedger/internal/gateway/broker"
	"hedger/internal/intake"
	"hedger/internal/metrics"
	"hedger/internal/sequencer"
	"hedger/internal/store/position"
	"hedger/internal/types"

	"github.com/gin-gonic/gin"
)

type entryPayload struct {
	SignalType     string  `json:"signal_type" binding:"required"`
	Strike         float64 `json:"strike" binding:"required"`
	OptionType     string  `json:"option_type" binding:"required"`
	Lots           int     `json:"lots" binding:"required"`
	SpotPrice      float64 `json:"spot_price_at_signal"`
	Timestamp      string  `json:"timestamp"`
	IdempotencyKey string  `json:"idempotency_key"`
}

// exitPayload matches the alerting source's exit webhook: the source knows
// the signal it fired, not internal position ids. position_id is an
// operator shortcut and wins when present.
type exitPayload struct {
	SignalType string `json:"signal_type"`
	PositionID string `json:"position_id"`
	Reason     string `json:"reason"`
	Timestamp  string `json:"timestamp"`
}

func (s *Server) handleEntry(c *gin.Context) {
	var payload entryPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		metrics.SignalsTotal.WithLabelValues("INVALID_PARAMETER").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"status": "INVALID_PARAMETER", "message": err.Error()})
		return
	}
	sig := types.Signal{
		Type:           types.SignalType(strings.ToUpper(payload.SignalType)),
		Strike:         payload.Strike,
		OptionType:     types.OptionType(strings.ToUpper(payload.OptionType)),
		Lots:           payload.Lots,
		SpotPrice:      payload.SpotPrice,
		Timestamp:      time.Now(),
		IdempotencyKey: payload.IdempotencyKey,
	}
	if payload.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339, payload.Timestamp)
		if err != nil {
			metrics.SignalsTotal.WithLabelValues("INVALID_PARAMETER").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"status": "INVALID_PARAMETER", "message": "timestamp must be RFC3339"})
			return
		}
		sig.Timestamp = ts
	}

	tr, err := s.intake.Admit(c.Request.Context(), sig)
	if err != nil {
		s.renderAdmitError(c, err)
		return
	}

	p, err := s.seq.Enter(c.Request.Context(), tr)
	if err != nil {
		s.renderEntryError(c, p, err)
		return
	}
	metrics.SignalsTotal.WithLabelValues("ACCEPTED").Inc()
	c.JSON(http.StatusOK, gin.H{
		"status":        "ACCEPTED",
		"position_id":   p.ID,
		"main_quantity": p.MainLeg.Quantity,
		"main_fill":     p.MainLeg.FillPrice,
		"hedge_strike":  p.HedgeLeg.Strike,
		"hedge_fill":    p.HedgeLeg.FillPrice,
		"entry_credit":  p.EntryCredit(),
	})
}

func (s *Server) renderAdmitError(c *gin.Context, err error) {
	var rej *intake.Rejection
	if !errors.As(err, &rej) {
		if errors.Is(err, broker.ErrUnavailable) {
			metrics.SignalsTotal.WithLabelValues("BROKER_UNAVAILABLE").Inc()
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "BROKER_UNAVAILABLE", "message": err.Error()})
			return
		}
		metrics.SignalsTotal.WithLabelValues("DEPENDENCY_ERROR").Inc()
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "DEPENDENCY_ERROR", "message": err.Error()})
		return
	}
	metrics.SignalsTotal.WithLabelValues(string(rej.Kind)).Inc()
	code := http.StatusBadRequest
	switch rej.Kind {
	case intake.RejectDuplicate:
		code = http.StatusConflict
	case intake.RejectMarketClosed, intake.RejectKillSwitch:
		code = http.StatusForbidden
	}
	c.JSON(code, gin.H{"status": string(rej.Kind), "message": rej.Reason})
}

func (s *Server) renderEntryError(c *gin.Context, p types.Position, err error) {
	var entryErr *sequencer.EntryError
	if errors.As(err, &entryErr) {
		metrics.SignalsTotal.WithLabelValues(string(entryErr.Kind)).Inc()
		code := http.StatusBadGateway
		if entryErr.Kind == sequencer.FailBrokerUnavailable {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":      string(entryErr.Kind),
			"position_id": entryErr.PositionID,
			"message":     entryErr.Err.Error(),
		})
		return
	}
	metrics.SignalsTotal.WithLabelValues("ENTRY_FAILED").Inc()
	c.JSON(http.StatusInternalServerError, gin.H{"status": "ENTRY_FAILED", "message": err.Error()})
}

func (s *Server) handleExit(c *gin.Context) {
	var payload exitPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "INVALID_PARAMETER", "message": err.Error()})
		return
	}
	id, ok := s.resolveExitTarget(c, payload)
	if !ok {
		return
	}
	reason := payload.Reason
	if reason == "" {
		reason = "MANUAL"
	}
	p, err := s.seq.Exit(c.Request.Context(), id, reason)
	if err != nil {
		var exitErr *sequencer.ExitError
		switch {
		case errors.Is(err, position.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"status": "NOT_FOUND", "message": err.Error()})
		case errors.As(err, &exitErr) && exitErr.Kind == sequencer.FailConflict:
			c.JSON(http.StatusConflict, gin.H{"status": "STATE_CONFLICT", "message": err.Error()})
		default:
			c.JSON(http.StatusBadGateway, gin.H{"status": "EXIT_FAILED", "message": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":       "CLOSED",
		"position_id":  p.ID,
		"realized_pnl": p.RealizedPnL,
		"exit_reason":  p.ExitReason,
	})
}

// resolveExitTarget maps an exit payload to a position id. Without an
// explicit id the oldest non-terminal position carrying the signal type is
// chosen; replies with the failure when nothing matches.
func (s *Server) resolveExitTarget(c *gin.Context, payload exitPayload) (string, bool) {
	if payload.PositionID != "" {
		return payload.PositionID, true
	}
	st := types.SignalType(strings.ToUpper(strings.TrimSpace(payload.SignalType)))
	if st == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": "INVALID_PARAMETER", "message": "signal_type or position_id required"})
		return "", false
	}
	open, err := s.positions.ListOpen(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "STORE_ERROR", "message": err.Error()})
		return "", false
	}
	var match *types.Position
	for i := range open {
		p := &open[i]
		if p.SignalType != st {
			continue
		}
		if match == nil || p.EntryTime.Before(match.EntryTime) {
			match = p
		}
	}
	if match == nil {
		c.JSON(http.StatusNotFound, gin.H{"status": "NOT_FOUND", "message": "no open position for signal " + string(st)})
		return "", false
	}
	return match.ID, true
}

func (s *Server) handleListPositions(c *gin.Context) {
	var (
		out []types.Position
		err error
	)
	if raw := c.Query("status"); raw != "" {
		statuses := make([]types.PositionStatus, 0, 4)
		for _, part := range strings.Split(raw, ",") {
			statuses = append(statuses, types.PositionStatus(strings.ToUpper(strings.TrimSpace(part))))
		}
		out, err = s.positions.ListByStatus(c.Request.Context(), statuses...)
	} else {
		out, err = s.positions.ListOpen(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "STORE_ERROR", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"positions": out, "count": len(out)})
}

func (s *Server) handleGetPosition(c *gin.Context) {
	id := c.Param("id")
	p, err := s.positions.Get(c.Request.Context(), id)
	if errors.Is(err, position.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"status": "NOT_FOUND", "message": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "STORE_ERROR", "message": err.Error()})
		return
	}
	resp := gin.H{"position": p}
	if c.Query("audit") == "true" {
		decisions, derr := s.audits.ListDecisions(c.Request.Context(), id, 50)
		failures, ferr := s.audits.ListFailures(c.Request.Context(), id, 50)
		if derr == nil && ferr == nil {
			resp["decisions"] = decisions
			resp["failures"] = failures
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleKillState(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"engaged": s.kill.Engaged()})
}

func (s *Server) handleKillToggle(c *gin.Context) {
	var payload struct {
		Engaged bool   `json:"engaged"`
		Reason  string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "INVALID_PARAMETER", "message": err.Error()})
		return
	}
	var err error
	if payload.Engaged {
		if payload.Reason == "" {
			payload.Reason = "manual engage via API"
		}
		err = s.kill.Engage(payload.Reason)
	} else {
		err = s.kill.Disengage()
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "KILL_SWITCH_ERROR", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"engaged": s.kill.Engaged()})
}

func (s *Server) handleHealth(c *gin.Context) {
	states := map[string]string{}
	for name, st := range s.breakers.States() {
		states[name] = st.String()
	}
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"kill_switch": s.kill.Engaged(),
		"breakers":    states,
	})
}
