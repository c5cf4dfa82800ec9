package domain

// OrderSummary is what notifications carry about an order: enough for an
// admin or achievement message without exposing the delivered unit.
type OrderSummary struct {
	TenantID       string `json:"tenant_id"`
	OrderID        int64  `json:"order_id"`
	BuyerID        string `json:"buyer_id"`
	ProductKey     string `json:"product_key"`
	ProductName    string `json:"product_name"`
	PriceCents     int64  `json:"price"`
	PaymentLink    string `json:"payment_link,omitempty"`
	ContextRef     string `json:"context_ref,omitempty"`
	ProcessorID    string `json:"processor_id,omitempty"`
	RemainingStock int    `json:"remaining_stock"`
}

func (o Order) Summary(tenantID string) OrderSummary {
	return OrderSummary{
		TenantID:    tenantID,
		OrderID:     o.ID,
		BuyerID:     o.BuyerID,
		ProductKey:  o.ProductKey,
		ProductName: o.ProductName,
		PriceCents:  o.Payment.AmountCents,
		PaymentLink: o.Payment.Link,
		ContextRef:  o.ContextRef,
		ProcessorID: o.ProcessedBy,
	}
}
