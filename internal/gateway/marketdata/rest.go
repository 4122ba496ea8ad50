package marketdata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"hedger/internal/market"

	"github.com/tidwall/gjson"
)

// RESTClient reads quotes and hourly candles from the data vendor's HTTP
// API. A WSUpdater can sit in front of it to serve last prices from a
// streaming cache.
type RESTClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewRESTClient(baseURL, apiKey string, timeout time.Duration) *RESTClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RESTClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *RESTClient) GetLastPrice(ctx context.Context, inst Instrument) (float64, error) {
	body, err := c.get(ctx, "/quote?instrument="+url.QueryEscape(inst.Key()))
	if err != nil {
		return 0, err
	}
	last := gjson.GetBytes(body, "last_price")
	if !last.Exists() || last.Float() <= 0 {
		return 0, fmt.Errorf("marketdata: no last price for %s", inst.Key())
	}
	return last.Float(), nil
}

func (c *RESTClient) GetCompletedHourlyCandle(ctx context.Context, symbol string, hour time.Time) (market.Candle, error) {
	path := fmt.Sprintf("/candles/hourly?symbol=%s&hour=%d", url.QueryEscape(symbol), hour.UTC().Unix())
	body, err := c.get(ctx, path)
	if err != nil {
		return market.Candle{}, err
	}
	parsed := gjson.ParseBytes(body)
	candle := market.Candle{
		Open:   parsed.Get("open").Float(),
		High:   parsed.Get("high").Float(),
		Low:    parsed.Get("low").Float(),
		Close:  parsed.Get("close").Float(),
		Source: parsed.Get("source").String(),
		IsMock: parsed.Get("is_mock").Bool(),
	}
	if ts := parsed.Get("timestamp").Int(); ts > 0 {
		candle.Timestamp = time.Unix(ts, 0).UTC()
	}
	return candle, nil
}

func (c *RESTClient) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		msg := gjson.GetBytes(body, "error").String()
		if msg == "" {
			msg = strings.TrimSpace(string(body))
		}
		return nil, fmt.Errorf("marketdata %s: http %d: %s", req.URL.Path, resp.StatusCode, msg)
	}
	return body, nil
}
