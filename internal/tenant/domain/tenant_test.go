package domain

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	inventory "github.com/dmehra2102/vending-machine/internal/inventory/domain"
	order "github.com/dmehra2102/vending-machine/internal/order/domain"
)

func TestTenant_ProductsAndInventory(t *testing.T) {
	tn := New("guild-1")

	level, err := tn.AddProduct("p1", "Gift code", 500, "a code")
	require.NoError(t, err)
	assert.Equal(t, 0, level.Stock)

	n, err := tn.AppendInventory("p1", []string{"A", "B"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := tn.Product("p1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Stock)

	_, err = tn.Product("nope")
	assert.ErrorIs(t, err, inventory.ErrProductNotFound)

	_, err = tn.GetOrder(1)
	assert.ErrorIs(t, err, order.ErrOrderNotFound)
	assert.Empty(t, tn.ListOrders())
}

func TestTenant_BatchAppendIsAtomicForReaders(t *testing.T) {
	tn := New("guild-1")
	_, err := tn.AddProduct("p1", "Gift code", 500, "")
	require.NoError(t, err)

	const batch = 10
	units := make([]string, batch)
	for i := range units {
		units[i] = "unit"
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			for _, l := range tn.ListAvailable() {
				if l.Stock%batch != 0 {
					t.Errorf("observed partial batch: stock=%d", l.Stock)
					return
				}
			}
		}
	}()

	for i := 0; i < 200; i++ {
		_, err := tn.AppendInventory("p1", units)
		require.NoError(t, err)
	}
	close(stop)
	wg.Wait()

	got, _ := tn.Product("p1")
	assert.Equal(t, 200*batch, got.Stock)
}

func TestTenant_Settings(t *testing.T) {
	tn := New("guild-1")
	tn.AddAdminTarget("chan-b")
	tn.AddAdminTarget("chan-a")
	tn.AddAdminTarget("chan-a")
	assert.Equal(t, []string{"chan-a", "chan-b"}, tn.AdminTargets())

	tn.RemoveAdminTarget("chan-b")
	tn.RemoveAdminTarget("missing")
	assert.Equal(t, []string{"chan-a"}, tn.AdminTargets())

	assert.Empty(t, tn.AchievementTarget())
	tn.SetAchievementTarget("chan-x")
	tn.SetAchievementTarget("chan-y")
	assert.Equal(t, "chan-y", tn.AchievementTarget())
	tn.SetAchievementTarget("")
	assert.Empty(t, tn.AchievementTarget())
}

func TestTenant_Discard(t *testing.T) {
	tn := New("guild-1")
	_, _ = tn.AddProduct("p1", "Gift code", 500, "")
	tn.AddAdminTarget("chan")

	tn.Discard()
	assert.ErrorIs(t, tn.View(func(*inventory.Catalog, *order.Ledger) error { return nil }), ErrTenantRemoved)
	assert.Empty(t, tn.AdminTargets())

	_, err := tn.AddProduct("p2", "Other", 100, "")
	assert.ErrorIs(t, err, ErrTenantRemoved)
	assert.Empty(t, tn.ListAvailable())
}
