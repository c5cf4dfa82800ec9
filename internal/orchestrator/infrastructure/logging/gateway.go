package logging

import (
	"context"
	"log/slog"

	orchestrator "github.com/dmehra2102/vending-machine/internal/orchestrator/domain"
	order "github.com/dmehra2102/vending-machine/internal/order/domain"
)

// Gateway writes notifications to the log instead of a broker. It is used
// when no KAFKA_ADDR is configured. Delivered units are never logged.
type Gateway struct {
	log *slog.Logger
}

func NewGateway(log *slog.Logger) *Gateway {
	return &Gateway{log: log.With("component", "log-gateway")}
}

func (g *Gateway) Deliver(_ context.Context, recipientID string, p orchestrator.Payload) error {
	g.log.Info("delivery", "recipient_id", recipientID, "delivery_key", p.DeliveryKey, "product", p.ProductKey, "attempt", p.Attempt)
	return nil
}

func (g *Gateway) NotifyAdmins(_ context.Context, tenantID string, targets []string, s order.OrderSummary) error {
	g.log.Info("admin notice", "tenant_id", tenantID, "targets", targets, "order_id", s.OrderID, "buyer_id", s.BuyerID, "remaining_stock", s.RemainingStock)
	return nil
}

func (g *Gateway) NotifyAchievement(_ context.Context, tenantID, target string, s order.OrderSummary) error {
	g.log.Info("achievement notice", "tenant_id", tenantID, "target", target, "order_id", s.OrderID, "processor_id", s.ProcessorID)
	return nil
}

func (g *Gateway) NotifyCancelled(_ context.Context, recipientID string, s order.OrderSummary) error {
	g.log.Info("cancellation notice", "recipient_id", recipientID, "tenant_id", s.TenantID, "order_id", s.OrderID)
	return nil
}
