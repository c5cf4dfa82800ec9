package kafka

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	orchestrator "github.com/dmehra2102/vending-machine/internal/orchestrator/domain"
	order "github.com/dmehra2102/vending-machine/internal/order/domain"
	"github.com/dmehra2102/vending-machine/pkg/outbox"
	"github.com/dmehra2102/vending-machine/pkg/tracing"
)

const (
	TypeDelivery     = "delivery"
	TypeAdminNotice  = "admin_notice"
	TypeAchievement  = "achievement_notice"
	TypeCancellation = "cancellation_notice"
)

type Notification struct {
	Type        string                `json:"type"`
	RecipientID string                `json:"recipient_id,omitempty"`
	Targets     []string              `json:"targets,omitempty"`
	Delivery    *orchestrator.Payload `json:"delivery,omitempty"`
	Summary     *order.OrderSummary   `json:"summary,omitempty"`
}

// Gateway publishes notifications to a Kafka topic. Deliveries are written
// synchronously so a nil error means the broker has the message; everything
// else goes through the outbox and is sent by the relay.
type Gateway struct {
	log      *slog.Logger
	dispatch *outbox.Dispatcher
	outbox   *outbox.MemoryStore
}

func NewGateway(log *slog.Logger, dispatch *outbox.Dispatcher, store *outbox.MemoryStore) *Gateway {
	return &Gateway{log: log, dispatch: dispatch, outbox: store}
}

func (g *Gateway) Deliver(ctx context.Context, recipientID string, payload orchestrator.Payload) error {
	body, err := json.Marshal(Notification{Type: TypeDelivery, RecipientID: recipientID, Delivery: &payload})
	if err != nil {
		return err
	}
	return g.dispatch.Dispatch(ctx, outbox.Event{
		MessageID:     uuid.NewString(),
		AggregateType: "order",
		AggregateID:   payload.DeliveryKey,
		Type:          TypeDelivery,
		Payload:       body,
		Headers:       map[string]string{"recipient_id": recipientID, "delivery_key": payload.DeliveryKey},
		Traceparent:   tracing.Traceparent(ctx),
	})
}

func (g *Gateway) NotifyAdmins(ctx context.Context, tenantID string, targets []string, summary order.OrderSummary) error {
	return g.enqueue(ctx, tenantID, Notification{Type: TypeAdminNotice, Targets: targets, Summary: &summary})
}

func (g *Gateway) NotifyAchievement(ctx context.Context, tenantID, target string, summary order.OrderSummary) error {
	return g.enqueue(ctx, tenantID, Notification{Type: TypeAchievement, Targets: []string{target}, Summary: &summary})
}

func (g *Gateway) NotifyCancelled(ctx context.Context, recipientID string, summary order.OrderSummary) error {
	return g.enqueue(ctx, summary.TenantID, Notification{Type: TypeCancellation, RecipientID: recipientID, Summary: &summary})
}

func (g *Gateway) enqueue(ctx context.Context, tenantID string, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return err
	}
	ev := g.outbox.Enqueue(outbox.Event{
		AggregateType: "tenant",
		AggregateID:   tenantID,
		Type:          n.Type,
		Payload:       body,
		Headers:       map[string]string{"tenant_id": tenantID},
		Traceparent:   tracing.Traceparent(ctx),
	})
	g.log.Debug("notification queued", "type", n.Type, "tenant_id", tenantID, "event_id", ev.ID)
	return nil
}
