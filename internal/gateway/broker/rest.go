package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"hedger/internal/types"

	"github.com/tidwall/gjson"
)

// RESTClient talks to the broker's order HTTP API. Responses are read with
// gjson so upstream field drift does not require regenerated bindings.
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

func (c *RESTClient) PlaceOrder(ctx context.Context, req OrderRequest) (OrderAck, error) {
	payload := map[string]any{
		"contract":  req.Contract(),
		"side":      string(req.Direction),
		"quantity":  req.Quantity,
		"price":     req.Price,
		"tag":       req.Tag,
		"validity":  "DAY",
		"ordertype": orderType(req.Price),
	}
	body, err := c.post(ctx, "/orders", payload)
	if err != nil {
		return OrderAck{}, err
	}
	parsed := gjson.ParseBytes(body)
	orderID := parsed.Get("order_id").String()
	if orderID == "" {
		return OrderAck{}, fmt.Errorf("broker place order: missing order_id in response")
	}
	return OrderAck{OrderID: orderID, Status: mapStatus(parsed.Get("status").String())}, nil
}

func (c *RESTClient) GetOrderStatus(ctx context.Context, orderID string) (OrderState, error) {
	body, err := c.get(ctx, "/orders/"+orderID)
	if err != nil {
		return OrderState{}, err
	}
	parsed := gjson.ParseBytes(body)
	return OrderState{
		Status:    mapStatus(parsed.Get("status").String()),
		FillPrice: parsed.Get("average_price").Float(),
	}, nil
}

func (c *RESTClient) CancelOrder(ctx context.Context, orderID string) (bool, error) {
	body, err := c.post(ctx, "/orders/"+orderID+"/cancel", nil)
	if err != nil {
		return false, err
	}
	return gjson.GetBytes(body, "cancelled").Bool(), nil
}

func orderType(price float64) string {
	if price > 0 {
		return "LIMIT"
	}
	return "MARKET"
}

func mapStatus(raw string) types.OrderStatus {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "COMPLETE", "FILLED", "EXECUTED":
		return types.OrderFilled
	case "REJECTED":
		return types.OrderRejected
	case "CANCELLED", "CANCELED":
		return types.OrderCancelled
	default:
		return types.OrderPending
	}
}

func (c *RESTClient) post(ctx context.Context, path string, payload any) ([]byte, error) {
	var rd io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *RESTClient) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *RESTClient) do(req *http.Request) ([]byte, error) {
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
		return nil, fmt.Errorf("broker %s %s: http %d: %s", req.Method, req.URL.Path, resp.StatusCode, msg)
	}
	return body, nil
}
