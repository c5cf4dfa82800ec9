package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	payment "github.com/dmehra2102/vending-machine/internal/payment/domain"
)

func newTestOrder(l *Ledger, unit string) Order {
	o := NewOrder(l.NextID(), "buyer", "p1", "Product", unit, "chan-1", payment.Payment{AmountCents: 500})
	l.Put(o)
	return o
}

func TestLedger_NextIDMonotonic(t *testing.T) {
	l := NewLedger()
	prev := int64(0)
	for i := 0; i < 50; i++ {
		id := l.NextID()
		assert.Greater(t, id, prev)
		prev = id
	}
	assert.Equal(t, int64(1), NewLedger().NextID())
}

func TestLedger_GetReturnsCopy(t *testing.T) {
	l := NewLedger()
	o := newTestOrder(l, "A")

	got, ok := l.Get(o.ID)
	require.True(t, ok)
	got.Status = StatusCompleted

	again, _ := l.Get(o.ID)
	assert.Equal(t, StatusPendingPayment, again.Status)

	_, ok = l.Get(99)
	assert.False(t, ok)
}

func TestLedger_CompareAndSetStatus(t *testing.T) {
	l := NewLedger()
	o := newTestOrder(l, "A")

	assert.True(t, l.CompareAndSetStatus(o.ID, StatusPendingPayment, StatusProcessing))
	assert.False(t, l.CompareAndSetStatus(o.ID, StatusPendingPayment, StatusProcessing))
	assert.False(t, l.CompareAndSetStatus(o.ID, StatusPendingPayment, StatusCancelled))

	got, _ := l.Get(o.ID)
	assert.Equal(t, StatusProcessing, got.Status)

	assert.False(t, l.CompareAndSetStatus(42, StatusPendingPayment, StatusProcessing))
}

func TestLedger_UpdateAndList(t *testing.T) {
	l := NewLedger()
	a := newTestOrder(l, "A")
	b := newTestOrder(l, "B")
	c := newTestOrder(l, "C")

	now := time.Now().UTC()
	require.True(t, l.Update(b.ID, func(o *Order) {
		o.Status = StatusCompleted
		o.HoldsUnit = false
		o.MarkProcessed("op", now)
	}))
	assert.False(t, l.Update(100, func(*Order) {}))

	all := l.List()
	require.Len(t, all, 3)
	assert.Equal(t, []int64{a.ID, b.ID, c.ID}, []int64{all[0].ID, all[1].ID, all[2].ID})

	pending := l.List(StatusPendingPayment)
	require.Len(t, pending, 2)
	assert.Equal(t, c.ID, pending[1].ID)

	done := l.List(StatusCompleted)
	require.Len(t, done, 1)
	assert.Equal(t, "op", done[0].ProcessedBy)
	require.NotNil(t, done[0].ProcessedAt)

	assert.Equal(t, 2, l.HeldUnits())
	assert.Equal(t, 3, l.Len())
}

func TestOrderStatus(t *testing.T) {
	assert.True(t, StatusPendingPayment.Valid())
	assert.False(t, OrderStatus("shipped").Valid())
}

func TestOrder_Summary(t *testing.T) {
	o := NewOrder(7, "buyer", "p1", "Product", "secret", "ctx", payment.Payment{Link: "https://pay", AmountCents: 500})
	s := o.Summary("guild")
	assert.Equal(t, "guild", s.TenantID)
	assert.Equal(t, int64(7), s.OrderID)
	assert.Equal(t, int64(500), s.PriceCents)
	assert.Equal(t, "https://pay", s.PaymentLink)
}
