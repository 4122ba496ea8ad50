// Package predictor is the client for the external exit-model service. The
// engine only consumes the model's fused output; feature engineering and
// training live elsewhere.
package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"hedger/internal/pkg/circuit"
	"hedger/internal/types"

	"github.com/tidwall/gjson"
)

type Port interface {
	Predict(ctx context.Context, req PredictRequest) (types.ModelPrediction, error)
}

// PredictRequest carries the position snapshot the model scores.
type PredictRequest struct {
	PositionID   string  `json:"position_id"`
	SignalType   string  `json:"signal_type"`
	OptionType   string  `json:"option_type"`
	Strike       float64 `json:"strike"`
	NetPnLPct    float64 `json:"net_pnl_pct"`
	MaxProfitPct float64 `json:"max_profit_pct"`
	MinutesOpen  int     `json:"minutes_open"`
	SpotPrice    float64 `json:"spot_price"`
}

// Client calls the model service over HTTP, guarded by its own breaker. Any
// failure degrades to "no prediction" so the rule engine keeps running.
type Client struct {
	baseURL string
	http    *http.Client
	cb      *circuit.CircuitBreaker
}

func NewClient(baseURL string, timeout time.Duration, cb *circuit.CircuitBreaker) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		cb:      cb,
	}
}

func (c *Client) Predict(ctx context.Context, req PredictRequest) (types.ModelPrediction, error) {
	var pred types.ModelPrediction
	err := c.cb.Do(func() error {
		var err error
		pred, err = c.predict(ctx, req)
		return err
	})
	if err == circuit.ErrOpen {
		return types.ModelPrediction{}, nil
	}
	return pred, err
}

func (c *Client) predict(ctx context.Context, req PredictRequest) (types.ModelPrediction, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return types.ModelPrediction{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict/exit", bytes.NewReader(raw))
	if err != nil {
		return types.ModelPrediction{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return types.ModelPrediction{}, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return types.ModelPrediction{}, err
	}
	if resp.StatusCode >= 400 {
		return types.ModelPrediction{}, fmt.Errorf("predictor: http %d", resp.StatusCode)
	}
	parsed := gjson.ParseBytes(body)
	conf := parsed.Get("confidence").Float()
	if conf < 0 || conf > 1 {
		return types.ModelPrediction{}, fmt.Errorf("predictor: confidence %v out of [0,1]", conf)
	}
	return types.ModelPrediction{
		Available:  true,
		ShouldExit: parsed.Get("should_exit").Bool(),
		Confidence: conf,
		Reason:     parsed.Get("reason").String(),
	}, nil
}

// Disabled is the predictor used when no model service is configured.
type Disabled struct{}

func (Disabled) Predict(context.Context, PredictRequest) (types.ModelPrediction, error) {
	return types.ModelPrediction{}, nil
}
