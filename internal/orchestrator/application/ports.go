package application

import (
	"context"

	orchestrator "github.com/dmehra2102/vending-machine/internal/orchestrator/domain"
	order "github.com/dmehra2102/vending-machine/internal/order/domain"
	tenant "github.com/dmehra2102/vending-machine/internal/tenant/domain"
)

// NotificationGateway is the transport to buyers and operator channels.
// Deliver must return nil only when the payload definitely reached the
// recipient; any error is treated as "not delivered". The Notify methods are
// fire-and-forget and their errors are only logged.
type NotificationGateway interface {
	Deliver(ctx context.Context, recipientID string, payload orchestrator.Payload) error
	NotifyAdmins(ctx context.Context, tenantID string, targets []string, summary order.OrderSummary) error
	NotifyAchievement(ctx context.Context, tenantID, target string, summary order.OrderSummary) error
	NotifyCancelled(ctx context.Context, recipientID string, summary order.OrderSummary) error
}

type TenantRegistry interface {
	GetOrCreate(id string) *tenant.Tenant
	Get(id string) (*tenant.Tenant, bool)
}
