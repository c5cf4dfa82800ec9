package application

import (
	"context"
	"sync"

	orchestrator "github.com/dmehra2102/vending-machine/internal/orchestrator/domain"
	order "github.com/dmehra2102/vending-machine/internal/order/domain"
)

type fakeGateway struct {
	mu           sync.Mutex
	deliverFn    func(recipientID string, p orchestrator.Payload) error
	delivered    []orchestrator.Payload
	admins       []order.OrderSummary
	achievements []order.OrderSummary
	cancels      []order.OrderSummary
	notifyErr    error
}

func (g *fakeGateway) Deliver(_ context.Context, recipientID string, p orchestrator.Payload) error {
	g.mu.Lock()
	fn := g.deliverFn
	g.mu.Unlock()
	if fn != nil {
		if err := fn(recipientID, p); err != nil {
			return err
		}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.delivered = append(g.delivered, p)
	return nil
}

func (g *fakeGateway) NotifyAdmins(_ context.Context, _ string, _ []string, s order.OrderSummary) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.admins = append(g.admins, s)
	return g.notifyErr
}

func (g *fakeGateway) NotifyAchievement(_ context.Context, _, _ string, s order.OrderSummary) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.achievements = append(g.achievements, s)
	return g.notifyErr
}

func (g *fakeGateway) NotifyCancelled(_ context.Context, _ string, s order.OrderSummary) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancels = append(g.cancels, s)
	return g.notifyErr
}

func (g *fakeGateway) setDeliver(fn func(string, orchestrator.Payload) error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deliverFn = fn
}

func (g *fakeGateway) deliveredCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.delivered)
}
