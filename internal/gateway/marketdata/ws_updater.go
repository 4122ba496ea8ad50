package marketdata

import (
	"context"
	"sync"
	"time"

	"hedger/internal/logger"
	"hedger/internal/market"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
)

// WSUpdater keeps a last-price cache fed by the vendor's websocket tick
// stream. GetLastPrice serves from the cache when the tick is fresh and
// falls through to the REST client otherwise, so the monitoring loop does
// not hammer the quote endpoint every 30 seconds.
type WSUpdater struct {
	wsURL    string
	rest     Port
	staleCap time.Duration

	mu    sync.RWMutex
	ticks map[string]tick

	subMu sync.Mutex
	subs  map[string]bool
	conn  *websocket.Conn
}

type tick struct {
	price float64
	at    time.Time
}

func NewWSUpdater(wsURL string, rest Port) *WSUpdater {
	return &WSUpdater{
		wsURL:    wsURL,
		rest:     rest,
		staleCap: 15 * time.Second,
		ticks:    make(map[string]tick),
		subs:     make(map[string]bool),
	}
}

// Subscribe registers interest in an instrument's tick stream.
func (u *WSUpdater) Subscribe(inst Instrument) {
	key := inst.Key()
	u.subMu.Lock()
	defer u.subMu.Unlock()
	if u.subs[key] {
		return
	}
	u.subs[key] = true
	if u.conn != nil {
		if err := u.conn.WriteJSON(map[string]any{"op": "subscribe", "instrument": key}); err != nil {
			logger.Warnf("marketdata ws: subscribe %s failed: %v", key, err)
		}
	}
}

// Run maintains the websocket connection until ctx is cancelled,
// reconnecting with a flat backoff on failure.
func (u *WSUpdater) Run(ctx context.Context) {
	if u.wsURL == "" {
		logger.Infof("marketdata ws: no ws_url configured, REST-only mode")
		return
	}
	for {
		if ctx.Err() != nil {
			return
		}
		if err := u.connectAndRead(ctx); err != nil && ctx.Err() == nil {
			logger.Warnf("marketdata ws: connection lost: %v, reconnecting in 5s", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Second):
		}
	}
}

func (u *WSUpdater) connectAndRead(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, u.wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	u.subMu.Lock()
	u.conn = conn
	for key := range u.subs {
		if err := conn.WriteJSON(map[string]any{"op": "subscribe", "instrument": key}); err != nil {
			u.conn = nil
			u.subMu.Unlock()
			return err
		}
	}
	u.subMu.Unlock()
	logger.Infof("marketdata ws: connected to %s", u.wsURL)

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			u.subMu.Lock()
			u.conn = nil
			u.subMu.Unlock()
			return err
		}
		parsed := gjson.ParseBytes(raw)
		key := parsed.Get("instrument").String()
		price := parsed.Get("last_price").Float()
		if key == "" || price <= 0 {
			continue
		}
		u.mu.Lock()
		u.ticks[key] = tick{price: price, at: time.Now()}
		u.mu.Unlock()
	}
}

func (u *WSUpdater) GetLastPrice(ctx context.Context, inst Instrument) (float64, error) {
	u.mu.RLock()
	tk, ok := u.ticks[inst.Key()]
	u.mu.RUnlock()
	if ok && time.Since(tk.at) <= u.staleCap {
		return tk.price, nil
	}
	return u.rest.GetLastPrice(ctx, inst)
}

func (u *WSUpdater) GetCompletedHourlyCandle(ctx context.Context, symbol string, hour time.Time) (market.Candle, error) {
	return u.rest.GetCompletedHourlyCandle(ctx, symbol, hour)
}
