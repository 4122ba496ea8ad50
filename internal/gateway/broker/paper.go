package broker

import (
	"context"
	"fmt"
	"sync"

	"hedger/internal/types"

	"github.com/google/uuid"
)

// PaperBroker fills orders in memory. It backs dry-run mode and the test
// suites; fills happen at the requested price, or at the quote function's
// price for market orders.
type PaperBroker struct {
	mu      sync.Mutex
	orders  map[string]OrderState
	QuoteFn func(req OrderRequest) float64
	// RejectContracts forces a rejection for the named contracts.
	RejectContracts map[string]bool
}

func NewPaperBroker() *PaperBroker {
	return &PaperBroker{
		orders:          make(map[string]OrderState),
		RejectContracts: make(map[string]bool),
	}
}

func (p *PaperBroker) PlaceOrder(_ context.Context, req OrderRequest) (OrderAck, error) {
	if req.Quantity <= 0 {
		return OrderAck{}, fmt.Errorf("paper broker: quantity must be positive")
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	id := uuid.NewString()
	if p.RejectContracts[req.Contract()] {
		p.orders[id] = OrderState{Status: types.OrderRejected}
		return OrderAck{OrderID: id, Status: types.OrderRejected}, nil
	}
	price := req.Price
	if price <= 0 && p.QuoteFn != nil {
		price = p.QuoteFn(req)
	}
	p.orders[id] = OrderState{Status: types.OrderFilled, FillPrice: price}
	return OrderAck{OrderID: id, Status: types.OrderPending}, nil
}

func (p *PaperBroker) GetOrderStatus(_ context.Context, orderID string) (OrderState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	state, ok := p.orders[orderID]
	if !ok {
		return OrderState{}, fmt.Errorf("paper broker: unknown order %s", orderID)
	}
	return state, nil
}

func (p *PaperBroker) CancelOrder(_ context.Context, orderID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	state, ok := p.orders[orderID]
	if !ok {
		return false, fmt.Errorf("paper broker: unknown order %s", orderID)
	}
	if state.Status == types.OrderFilled {
		return false, nil
	}
	state.Status = types.OrderCancelled
	p.orders[orderID] = state
	return true, nil
}
