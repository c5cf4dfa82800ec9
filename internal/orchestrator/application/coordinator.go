package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	inventory "github.com/dmehra2102/vending-machine/internal/inventory/domain"
	orchestrator "github.com/dmehra2102/vending-machine/internal/orchestrator/domain"
	order "github.com/dmehra2102/vending-machine/internal/order/domain"
	payment "github.com/dmehra2102/vending-machine/internal/payment/domain"
	tenant "github.com/dmehra2102/vending-machine/internal/tenant/domain"
	"github.com/dmehra2102/vending-machine/pkg/apperr"
	"github.com/dmehra2102/vending-machine/pkg/metrics"
)

var ErrMissingActor = fmt.Errorf("%w: buyer or operator id required", apperr.ErrInvalidInput)

type CreateOrderRequest struct {
	BuyerID     string
	ProductKey  string
	ContextRef  string
	PaymentLink string
}

// Coordinator is the only writer that touches a tenant's pools and ledger
// together. Each status change is a compare-and-set on the ledger, and the
// gateway is always called with the tenant lock released.
type Coordinator struct {
	log     *slog.Logger
	tenants TenantRegistry
	gateway NotificationGateway
	metrics *metrics.Registry
	tracer  trace.Tracer
}

func NewCoordinator(log *slog.Logger, tenants TenantRegistry, gateway NotificationGateway, m *metrics.Registry) *Coordinator {
	return &Coordinator{
		log:     log,
		tenants: tenants,
		gateway: gateway,
		metrics: m,
		tracer:  otel.Tracer("orchestrator"),
	}
}

// CreateOrder takes the oldest unit of the product and records a
// pending_payment order holding it. This is the only place a unit leaves the
// pool for a new order.
func (c *Coordinator) CreateOrder(ctx context.Context, tenantID string, req CreateOrderRequest) (order.Order, error) {
	_, span := c.tracer.Start(ctx, "CreateOrder", trace.WithAttributes(
		attribute.String("tenant.id", tenantID),
		attribute.String("product.key", req.ProductKey),
	))
	defer span.End()

	if strings.TrimSpace(req.BuyerID) == "" {
		return order.Order{}, spanErr(span, ErrMissingActor)
	}

	t := c.tenants.GetOrCreate(tenantID)
	var o order.Order
	err := t.Update(func(cat *inventory.Catalog, led *order.Ledger) error {
		p, ok := cat.Get(req.ProductKey)
		if !ok {
			return inventory.ErrProductNotFound
		}
		pay, err := payment.NewPayment(req.PaymentLink, p.PriceCents)
		if err != nil {
			return err
		}
		unit, ok := p.Pool().TryTake()
		if !ok {
			return inventory.ErrOutOfStock
		}
		o = order.NewOrder(led.NextID(), req.BuyerID, p.Key, p.Name, unit, req.ContextRef, pay)
		led.Put(o)
		return nil
	})
	if err != nil {
		if errors.Is(err, apperr.ErrOutOfStock) {
			c.metrics.OutOfStock.Inc()
		}
		return order.Order{}, spanErr(span, err)
	}

	c.metrics.OrdersCreated.Inc()
	span.SetAttributes(attribute.Int64("order.id", o.ID))
	c.log.Info("order created", "tenant_id", tenantID, "order_id", o.ID, "product", o.ProductKey, "buyer", o.BuyerID)
	return o, nil
}

// NotifyAdmins tells the tenant's admin targets about a new order. Failures
// are logged and do not affect the order.
func (c *Coordinator) NotifyAdmins(ctx context.Context, tenantID string, o order.Order) {
	t, ok := c.tenants.Get(tenantID)
	if !ok {
		return
	}
	targets := t.AdminTargets()
	if len(targets) == 0 {
		return
	}
	summary := o.Summary(tenantID)
	if level, err := t.Product(o.ProductKey); err == nil {
		summary.RemainingStock = level.Stock
	}
	if err := c.gateway.NotifyAdmins(ctx, tenantID, targets, summary); err != nil {
		c.log.Error("admin notification failed", "tenant_id", tenantID, "order_id", o.ID, "err", err)
	}
}

// ApproveAndDeliver claims the order, delivers its unit to the buyer and
// commits. Only one concurrent caller can win the claim; the rest get
// ErrOrderAlreadyProcessed without touching inventory or the gateway. When
// the gateway fails the unit goes back to the front of the pool and the order
// returns to pending_payment so it can be retried.
func (c *Coordinator) ApproveAndDeliver(ctx context.Context, tenantID string, orderID int64, processorID string) (string, error) {
	ctx, span := c.tracer.Start(ctx, "ApproveAndDeliver", trace.WithAttributes(
		attribute.String("tenant.id", tenantID),
		attribute.Int64("order.id", orderID),
	))
	defer span.End()

	if strings.TrimSpace(processorID) == "" {
		return "", spanErr(span, ErrMissingActor)
	}
	t, ok := c.tenants.Get(tenantID)
	if !ok {
		return "", spanErr(span, order.ErrOrderNotFound)
	}

	claim, err := c.claim(t, orderID)
	if err != nil {
		switch {
		case errors.Is(err, order.ErrOrderAlreadyProcessed):
			c.metrics.ClaimConflicts.Inc()
			c.log.Info("approval rejected, order already claimed", "tenant_id", tenantID, "order_id", orderID, "processor", processorID)
		case errors.Is(err, apperr.ErrOutOfStock):
			c.metrics.OutOfStock.Inc()
		}
		return "", spanErr(span, err)
	}
	span.SetAttributes(attribute.Int("delivery.attempt", claim.Attempt))

	start := time.Now()
	deliverErr := c.gateway.Deliver(ctx, claim.BuyerID, claim.Payload())
	c.metrics.DeliverySeconds.Observe(time.Since(start).Seconds())
	if deliverErr != nil {
		return "", spanErr(span, c.rollback(t, claim, deliverErr))
	}

	summary, committed := c.commit(t, claim, processorID)
	if !committed {
		return claim.Unit, nil
	}
	c.metrics.OrdersCompleted.Inc()
	c.log.Info("order delivered", "tenant_id", tenantID, "order_id", orderID, "processor", processorID, "attempt", claim.Attempt)

	if target := t.AchievementTarget(); target != "" {
		if err := c.gateway.NotifyAchievement(ctx, tenantID, target, summary); err != nil {
			c.log.Error("achievement notification failed", "tenant_id", tenantID, "order_id", orderID, "err", err)
		}
	}
	return claim.Unit, nil
}

// claim moves the order from pending_payment to processing and makes sure it
// holds a unit, taking a fresh one if an earlier delivery attempt gave its
// unit back.
func (c *Coordinator) claim(t *tenant.Tenant, orderID int64) (orchestrator.Claim, error) {
	var claim orchestrator.Claim
	err := t.Update(func(cat *inventory.Catalog, led *order.Ledger) error {
		o, ok := led.Get(orderID)
		if !ok {
			return order.ErrOrderNotFound
		}
		if !led.CompareAndSetStatus(orderID, order.StatusPendingPayment, order.StatusProcessing) {
			return order.ErrOrderAlreadyProcessed
		}

		unit := o.Unit
		if !o.HoldsUnit {
			p, ok := cat.Get(o.ProductKey)
			if ok {
				unit, ok = p.Pool().TryTake()
			}
			if !ok {
				led.CompareAndSetStatus(orderID, order.StatusProcessing, order.StatusPendingPayment)
				return inventory.ErrOutOfStock
			}
		}

		led.Update(orderID, func(o *order.Order) {
			o.Unit = unit
			o.HoldsUnit = true
			o.DeliveryAttempts++
			claim = orchestrator.Claim{
				TenantID:    t.ID,
				OrderID:     o.ID,
				BuyerID:     o.BuyerID,
				ProductKey:  o.ProductKey,
				ProductName: o.ProductName,
				Unit:        unit,
				Attempt:     o.DeliveryAttempts,
			}
		})
		return nil
	})
	return claim, err
}

func (c *Coordinator) rollback(t *tenant.Tenant, claim orchestrator.Claim, cause error) error {
	err := t.Update(func(cat *inventory.Catalog, led *order.Ledger) error {
		if p, ok := cat.Get(claim.ProductKey); ok {
			p.Pool().Return(claim.Unit)
		}
		led.Update(claim.OrderID, func(o *order.Order) { o.HoldsUnit = false })
		led.CompareAndSetStatus(claim.OrderID, order.StatusProcessing, order.StatusPendingPayment)
		return nil
	})
	if err != nil {
		c.log.Warn("rollback skipped", "tenant_id", claim.TenantID, "order_id", claim.OrderID, "err", err)
	}

	c.metrics.DeliveryFailures.Inc()
	c.log.Warn("delivery failed, unit restored", "tenant_id", claim.TenantID, "order_id", claim.OrderID, "attempt", claim.Attempt, "err", cause)
	return &orchestrator.DeliveryFailedError{OrderID: claim.OrderID, Reason: cause.Error(), Err: cause}
}

// commit finalizes a delivered claim. It reports false when the tenant was
// removed while the delivery was in flight.
func (c *Coordinator) commit(t *tenant.Tenant, claim orchestrator.Claim, processorID string) (order.OrderSummary, bool) {
	var summary order.OrderSummary
	err := t.Update(func(cat *inventory.Catalog, led *order.Ledger) error {
		led.CompareAndSetStatus(claim.OrderID, order.StatusProcessing, order.StatusCompleted)
		led.Update(claim.OrderID, func(o *order.Order) {
			o.HoldsUnit = false
			o.MarkProcessed(processorID, time.Now().UTC())
			summary = o.Summary(claim.TenantID)
		})
		if p, ok := cat.Get(claim.ProductKey); ok {
			summary.RemainingStock = p.Stock()
		}
		return nil
	})
	if err != nil {
		c.log.Warn("delivered order for a removed tenant", "tenant_id", claim.TenantID, "order_id", claim.OrderID, "err", err)
		return summary, false
	}
	return summary, true
}

// Cancel closes a pending_payment order and puts its unit, if it still holds
// one, back at the front of the pool. The buyer notice is best effort.
func (c *Coordinator) Cancel(ctx context.Context, tenantID string, orderID int64, actorID string) error {
	ctx, span := c.tracer.Start(ctx, "Cancel", trace.WithAttributes(
		attribute.String("tenant.id", tenantID),
		attribute.Int64("order.id", orderID),
	))
	defer span.End()

	if strings.TrimSpace(actorID) == "" {
		return spanErr(span, ErrMissingActor)
	}
	t, ok := c.tenants.Get(tenantID)
	if !ok {
		return spanErr(span, order.ErrOrderNotFound)
	}

	var summary order.OrderSummary
	err := t.Update(func(cat *inventory.Catalog, led *order.Ledger) error {
		o, ok := led.Get(orderID)
		if !ok {
			return order.ErrOrderNotFound
		}
		if !led.CompareAndSetStatus(orderID, order.StatusPendingPayment, order.StatusCancelled) {
			return order.ErrOrderAlreadyProcessed
		}
		p, hasProduct := cat.Get(o.ProductKey)
		if o.HoldsUnit && hasProduct {
			p.Pool().Return(o.Unit)
		}
		led.Update(orderID, func(o *order.Order) {
			o.HoldsUnit = false
			o.MarkProcessed(actorID, time.Now().UTC())
			summary = o.Summary(tenantID)
		})
		if hasProduct {
			summary.RemainingStock = p.Stock()
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, order.ErrOrderAlreadyProcessed) {
			c.metrics.ClaimConflicts.Inc()
		}
		return spanErr(span, err)
	}

	c.metrics.OrdersCancelled.Inc()
	c.log.Info("order cancelled", "tenant_id", tenantID, "order_id", orderID, "actor", actorID)

	if err := c.gateway.NotifyCancelled(ctx, summary.BuyerID, summary); err != nil {
		c.log.Error("cancellation notice failed", "tenant_id", tenantID, "order_id", orderID, "err", err)
	}
	return nil
}

// AddProduct registers a product with an optional first batch of units.
func (c *Coordinator) AddProduct(tenantID, key, name string, priceCents int64, description string, units []string) (inventory.StockLevel, error) {
	level, err := c.tenants.GetOrCreate(tenantID).AddProduct(key, name, priceCents, description, units...)
	if err != nil {
		return inventory.StockLevel{}, err
	}
	c.metrics.InventoryAppended.Add(float64(level.Stock))
	c.log.Info("product added", "tenant_id", tenantID, "product", level.Key, "stock", level.Stock)
	return level, nil
}

// AppendInventory adds units through the tenant and counts them.
func (c *Coordinator) AppendInventory(tenantID, productKey string, units []string) (int, error) {
	n, err := c.tenants.GetOrCreate(tenantID).AppendInventory(productKey, units)
	if err != nil {
		return 0, err
	}
	c.metrics.InventoryAppended.Add(float64(n))
	return n, nil
}

func spanErr(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
