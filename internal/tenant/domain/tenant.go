package domain

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	inventory "github.com/dmehra2102/vending-machine/internal/inventory/domain"
	order "github.com/dmehra2102/vending-machine/internal/order/domain"
	"github.com/dmehra2102/vending-machine/pkg/apperr"
)

var ErrTenantRemoved = fmt.Errorf("%w: tenant removed", apperr.ErrNotFound)

// Tenant is the isolation boundary for one community. Its catalog, pools and
// ledger are only touched while holding mu, so each tenant is serialized on
// its own and tenants never block each other.
type Tenant struct {
	ID        string
	CreatedAt time.Time

	mu                sync.RWMutex
	catalog           *inventory.Catalog
	ledger            *order.Ledger
	adminTargets      map[string]struct{}
	achievementTarget string
	removed           bool
}

func New(id string) *Tenant {
	return &Tenant{
		ID:           id,
		CreatedAt:    time.Now().UTC(),
		catalog:      inventory.NewCatalog(),
		ledger:       order.NewLedger(),
		adminTargets: make(map[string]struct{}),
	}
}

// Update runs fn with exclusive access to the tenant's catalog and ledger.
func (t *Tenant) Update(fn func(c *inventory.Catalog, l *order.Ledger) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.removed {
		return ErrTenantRemoved
	}
	return fn(t.catalog, t.ledger)
}

// View runs fn under the shared lock. fn must not mutate anything.
func (t *Tenant) View(fn func(c *inventory.Catalog, l *order.Ledger) error) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.removed {
		return ErrTenantRemoved
	}
	return fn(t.catalog, t.ledger)
}

// Discard drops all state. It waits for whoever holds the lock, so an
// in-flight critical section finishes before the tenant goes away.
func (t *Tenant) Discard() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.removed = true
	t.catalog = inventory.NewCatalog()
	t.ledger = order.NewLedger()
	t.adminTargets = make(map[string]struct{})
	t.achievementTarget = ""
}

// AddProduct registers a product and stocks it with units in the same lock
// hold, so no reader sees the product before its first batch. Blank units
// are dropped.
func (t *Tenant) AddProduct(key, name string, priceCents int64, description string, units ...string) (inventory.StockLevel, error) {
	units = inventory.ParseUnits(strings.Join(units, "\n"))
	var level inventory.StockLevel
	err := t.Update(func(c *inventory.Catalog, _ *order.Ledger) error {
		p, err := c.AddProduct(key, name, priceCents, description)
		if err != nil {
			return err
		}
		if len(units) > 0 {
			p.Pool().Append(units...)
		}
		level = p.Level()
		return nil
	})
	return level, err
}

// AppendInventory adds a whole batch under one lock hold, so readers never
// see it half applied.
func (t *Tenant) AppendInventory(key string, units []string) (int, error) {
	var added int
	err := t.Update(func(c *inventory.Catalog, _ *order.Ledger) error {
		n, err := c.AppendInventory(key, units)
		added = n
		return err
	})
	return added, err
}

func (t *Tenant) ListAvailable() []inventory.StockLevel {
	var out []inventory.StockLevel
	_ = t.View(func(c *inventory.Catalog, _ *order.Ledger) error {
		out = c.ListAvailable()
		return nil
	})
	return out
}

func (t *Tenant) Product(key string) (inventory.StockLevel, error) {
	var level inventory.StockLevel
	err := t.View(func(c *inventory.Catalog, _ *order.Ledger) error {
		p, ok := c.Get(key)
		if !ok {
			return inventory.ErrProductNotFound
		}
		level = p.Level()
		return nil
	})
	return level, err
}

func (t *Tenant) GetOrder(id int64) (order.Order, error) {
	var o order.Order
	err := t.View(func(_ *inventory.Catalog, l *order.Ledger) error {
		var ok bool
		if o, ok = l.Get(id); !ok {
			return order.ErrOrderNotFound
		}
		return nil
	})
	return o, err
}

func (t *Tenant) ListOrders(statuses ...order.OrderStatus) []order.Order {
	var out []order.Order
	_ = t.View(func(_ *inventory.Catalog, l *order.Ledger) error {
		out = l.List(statuses...)
		return nil
	})
	return out
}

func (t *Tenant) AddAdminTarget(target string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.adminTargets[target] = struct{}{}
}

func (t *Tenant) RemoveAdminTarget(target string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.adminTargets, target)
}

// AdminTargets returns the admin notification targets in sorted order.
func (t *Tenant) AdminTargets() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.adminTargets))
	for k := range t.adminTargets {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// SetAchievementTarget replaces the achievement target. Empty clears it.
func (t *Tenant) SetAchievementTarget(target string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.achievementTarget = target
}

func (t *Tenant) AchievementTarget() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.achievementTarget
}
