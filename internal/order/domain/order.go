package domain

import (
	"time"

	payment "github.com/dmehra2102/vending-machine/internal/payment/domain"
)

type OrderStatus string

const (
	StatusPendingPayment OrderStatus = "pending_payment"
	// StatusProcessing marks an order claimed by one approver while the
	// delivery call is in flight.
	StatusProcessing OrderStatus = "processing"
	StatusCompleted  OrderStatus = "completed"
	StatusCancelled  OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPendingPayment, StatusProcessing, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

type Order struct {
	ID          int64           `json:"id"`
	BuyerID     string          `json:"buyer_id"`
	ProductKey  string          `json:"product_key"`
	ProductName string          `json:"product_name"`
	Payment     payment.Payment `json:"payment"`
	ContextRef  string          `json:"context_ref,omitempty"`
	Status      OrderStatus     `json:"status"`

	// Unit is the inventory payload this order claimed. HoldsUnit is true
	// while the unit is out of the pool on this order's behalf; once the
	// order completes the unit is consumed and HoldsUnit goes false.
	Unit      string `json:"-"`
	HoldsUnit bool   `json:"-"`

	DeliveryAttempts int        `json:"delivery_attempts"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	ProcessedBy      string     `json:"processed_by,omitempty"`
	ProcessedAt      *time.Time `json:"processed_at,omitempty"`
}

func NewOrder(id int64, buyerID, productKey, productName, unit, contextRef string, p payment.Payment) Order {
	now := time.Now().UTC()
	return Order{
		ID:          id,
		BuyerID:     buyerID,
		ProductKey:  productKey,
		ProductName: productName,
		Payment:     p,
		ContextRef:  contextRef,
		Status:      StatusPendingPayment,
		Unit:        unit,
		HoldsUnit:   true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// MarkProcessed stamps who finished the order and when.
func (o *Order) MarkProcessed(processorID string, at time.Time) {
	o.ProcessedBy = processorID
	o.ProcessedAt = &at
	o.UpdatedAt = at
}
