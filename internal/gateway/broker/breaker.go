package broker

import (
	"context"

	"hedger/internal/pkg/circuit"
)

// BreakerPort wraps a Port with a circuit breaker. When the breaker is open
// every call fails fast with ErrUnavailable and the underlying client is
// never touched.
type BreakerPort struct {
	inner Port
	cb    *circuit.CircuitBreaker
}

func WithBreaker(inner Port, cb *circuit.CircuitBreaker) *BreakerPort {
	return &BreakerPort{inner: inner, cb: cb}
}

func (b *BreakerPort) PlaceOrder(ctx context.Context, req OrderRequest) (OrderAck, error) {
	var ack OrderAck
	err := b.cb.Do(func() error {
		var err error
		ack, err = b.inner.PlaceOrder(ctx, req)
		return err
	})
	if err == circuit.ErrOpen {
		return OrderAck{}, ErrUnavailable
	}
	return ack, err
}

func (b *BreakerPort) GetOrderStatus(ctx context.Context, orderID string) (OrderState, error) {
	var state OrderState
	err := b.cb.Do(func() error {
		var err error
		state, err = b.inner.GetOrderStatus(ctx, orderID)
		return err
	})
	if err == circuit.ErrOpen {
		return OrderState{}, ErrUnavailable
	}
	return state, err
}

func (b *BreakerPort) CancelOrder(ctx context.Context, orderID string) (bool, error) {
	var ok bool
	err := b.cb.Do(func() error {
		var err error
		ok, err = b.inner.CancelOrder(ctx, orderID)
		return err
	})
	if err == circuit.ErrOpen {
		return false, ErrUnavailable
	}
	return ok, err
}
