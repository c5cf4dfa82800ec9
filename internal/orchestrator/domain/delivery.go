package domain

import (
	"fmt"

	"github.com/dmehra2102/vending-machine/pkg/apperr"
)

// Claim is what an approver holds between winning the processing CAS and
// committing or rolling back the delivery.
type Claim struct {
	TenantID    string
	OrderID     int64
	BuyerID     string
	ProductKey  string
	ProductName string
	Unit        string
	Attempt     int
}

// Payload is handed to the notification gateway for delivery to the buyer.
// DeliveryKey stays the same across retries of one order so a gateway can
// drop duplicates; Attempt tells retries apart.
type Payload struct {
	DeliveryKey string `json:"delivery_key"`
	TenantID    string `json:"tenant_id"`
	OrderID     int64  `json:"order_id"`
	ProductKey  string `json:"product_key"`
	ProductName string `json:"product_name"`
	Unit        string `json:"unit"`
	Attempt     int    `json:"attempt"`
}

func DeliveryKey(tenantID string, orderID int64) string {
	return fmt.Sprintf("%s/%d", tenantID, orderID)
}

func (c Claim) Payload() Payload {
	return Payload{
		DeliveryKey: DeliveryKey(c.TenantID, c.OrderID),
		TenantID:    c.TenantID,
		OrderID:     c.OrderID,
		ProductKey:  c.ProductKey,
		ProductName: c.ProductName,
		Unit:        c.Unit,
		Attempt:     c.Attempt,
	}
}

// DeliveryFailedError reports a gateway failure after the unit has been put
// back and the order reopened. It matches apperr.ErrDeliveryFailed.
type DeliveryFailedError struct {
	OrderID int64
	Reason  string
	Err     error
}

func (e *DeliveryFailedError) Error() string {
	return fmt.Sprintf("delivery of order %d failed: %s", e.OrderID, e.Reason)
}

func (e *DeliveryFailedError) Unwrap() []error {
	return []error{apperr.ErrDeliveryFailed, e.Err}
}
