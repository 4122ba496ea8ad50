package marketdata

import (
	"context"
	"errors"
	"time"

	"hedger/internal/market"
	"hedger/internal/pkg/circuit"
)

// ErrUnavailable is surfaced when the market data breaker refuses a call.
var ErrUnavailable = errors.New("market data unavailable")

// BreakerPort wraps a Port with a circuit breaker.
type BreakerPort struct {
	inner Port
	cb    *circuit.CircuitBreaker
}

func WithBreaker(inner Port, cb *circuit.CircuitBreaker) *BreakerPort {
	return &BreakerPort{inner: inner, cb: cb}
}

func (b *BreakerPort) GetLastPrice(ctx context.Context, inst Instrument) (float64, error) {
	var price float64
	err := b.cb.Do(func() error {
		var err error
		price, err = b.inner.GetLastPrice(ctx, inst)
		return err
	})
	if err == circuit.ErrOpen {
		return 0, ErrUnavailable
	}
	return price, err
}

func (b *BreakerPort) GetCompletedHourlyCandle(ctx context.Context, symbol string, hour time.Time) (market.Candle, error) {
	var candle market.Candle
	err := b.cb.Do(func() error {
		var err error
		candle, err = b.inner.GetCompletedHourlyCandle(ctx, symbol, hour)
		return err
	})
	if err == circuit.ErrOpen {
		return market.Candle{}, ErrUnavailable
	}
	return candle, err
}
