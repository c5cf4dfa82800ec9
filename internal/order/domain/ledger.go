package domain

import (
	"sort"
	"time"
)

// Ledger holds a tenant's orders and issues their ids. It is guarded by the
// tenant lock, so the counter and the order map always move together.
type Ledger struct {
	orders map[int64]*Order
	nextID int64
}

func NewLedger() *Ledger {
	return &Ledger{orders: make(map[int64]*Order), nextID: 1}
}

// NextID returns the next order id. Ids are never handed out twice, even for
// orders that are later cancelled.
func (l *Ledger) NextID() int64 {
	id := l.nextID
	l.nextID++
	return id
}

func (l *Ledger) Put(o Order) {
	l.orders[o.ID] = &o
}

func (l *Ledger) Get(id int64) (Order, bool) {
	o, ok := l.orders[id]
	if !ok {
		return Order{}, false
	}
	return *o, true
}

// CompareAndSetStatus moves order id from expected to next and reports
// whether it did. Nothing changes when the current status differs.
func (l *Ledger) CompareAndSetStatus(id int64, expected, next OrderStatus) bool {
	o, ok := l.orders[id]
	if !ok || o.Status != expected {
		return false
	}
	o.Status = next
	o.UpdatedAt = time.Now().UTC()
	return true
}

// Update applies fn to the stored order. It reports false if id is unknown.
func (l *Ledger) Update(id int64, fn func(o *Order)) bool {
	o, ok := l.orders[id]
	if !ok {
		return false
	}
	fn(o)
	return true
}

// List returns orders sorted by id. With no statuses given every order is
// returned.
func (l *Ledger) List(statuses ...OrderStatus) []Order {
	out := make([]Order, 0, len(l.orders))
	for _, o := range l.orders {
		if len(statuses) > 0 && !containsStatus(statuses, o.Status) {
			continue
		}
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// HeldUnits counts orders that currently have a unit out of the pool.
func (l *Ledger) HeldUnits() int {
	n := 0
	for _, o := range l.orders {
		if o.HoldsUnit {
			n++
		}
	}
	return n
}

func (l *Ledger) Len() int { return len(l.orders) }

func containsStatus(list []OrderStatus, s OrderStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
