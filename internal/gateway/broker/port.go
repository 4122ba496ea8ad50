// Package broker defines the order-execution port and its adapters. The
// sequencer only ever sees the Port interface; broker wire formats stay
// behind the REST adapter.
package broker

import (
	"context"
	"errors"
	"fmt"

	"hedger/internal/types"
)

// ErrUnavailable is surfaced when the broker circuit breaker refuses a call.
var ErrUnavailable = errors.New("broker unavailable")

// OrderRequest describes a single option order.
type OrderRequest struct {
	Symbol     string
	Strike     float64
	OptionType types.OptionType
	Direction  types.Direction
	Quantity   int
	Price      float64 // limit hint; 0 = market
	Tag        string  // position id + leg role, for broker-side audit
}

func (r OrderRequest) Contract() string {
	return fmt.Sprintf("%s%.0f%s", r.Symbol, r.Strike, r.OptionType)
}

// OrderAck is the immediate placement response.
type OrderAck struct {
	OrderID string
	Status  types.OrderStatus
}

// OrderState is a later status poll result.
type OrderState struct {
	Status    types.OrderStatus
	FillPrice float64
}

type Port interface {
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderAck, error)
	GetOrderStatus(ctx context.Context, orderID string) (OrderState, error)
	CancelOrder(ctx context.Context, orderID string) (bool, error)
}
