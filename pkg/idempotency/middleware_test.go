package idempotency

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type memChecker struct {
	mu   sync.Mutex
	keys map[string]bool
	err  error
}

func (m *memChecker) Seen(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	if m.keys[key] {
		return true, nil
	}
	m.keys[key] = true
	return false, nil
}

func (m *memChecker) Forget(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

func counting() (http.Handler, *int) {
	n := 0
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n++
		w.WriteHeader(http.StatusCreated)
	}), &n
}

func do(h http.Handler, path, key string) int {
	req := httptest.NewRequest(http.MethodPost, path, nil)
	if key != "" {
		req.Header.Set(Header, key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestMiddleware_RejectsReplay(t *testing.T) {
	next, calls := counting()
	h := Middleware(&memChecker{keys: map[string]bool{}}, slog.New(slog.DiscardHandler))(next)

	assert.Equal(t, http.StatusCreated, do(h, "/tenants/g/orders", "k1"))
	assert.Equal(t, http.StatusConflict, do(h, "/tenants/g/orders", "k1"))
	assert.Equal(t, http.StatusCreated, do(h, "/tenants/g/orders", "k2"))
	assert.Equal(t, http.StatusCreated, do(h, "/tenants/h/orders", "k1"))
	assert.Equal(t, 3, *calls)
}

func TestMiddleware_FailedRequestReleasesKey(t *testing.T) {
	statuses := []int{http.StatusBadGateway, http.StatusCreated}
	calls := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(statuses[calls])
		calls++
	})
	h := Middleware(&memChecker{keys: map[string]bool{}}, slog.New(slog.DiscardHandler))(next)

	assert.Equal(t, http.StatusBadGateway, do(h, "/tenants/g/orders/1/approve", "a-1"))
	assert.Equal(t, http.StatusCreated, do(h, "/tenants/g/orders/1/approve", "a-1"))
	assert.Equal(t, http.StatusConflict, do(h, "/tenants/g/orders/1/approve", "a-1"))
	assert.Equal(t, 2, calls)
}

func TestMiddleware_ImplicitOKKeepsKey(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	h := Middleware(&memChecker{keys: map[string]bool{}}, slog.New(slog.DiscardHandler))(next)

	assert.Equal(t, http.StatusOK, do(h, "/x", "k"))
	assert.Equal(t, http.StatusConflict, do(h, "/x", "k"))
}

func TestMiddleware_WithoutHeaderPassesThrough(t *testing.T) {
	next, calls := counting()
	h := Middleware(&memChecker{keys: map[string]bool{}}, slog.New(slog.DiscardHandler))(next)

	do(h, "/x", "")
	do(h, "/x", "")
	assert.Equal(t, 2, *calls)
}

func TestMiddleware_CheckerErrorFailsOpen(t *testing.T) {
	next, calls := counting()
	h := Middleware(&memChecker{err: errors.New("redis down")}, slog.New(slog.DiscardHandler))(next)

	assert.Equal(t, http.StatusCreated, do(h, "/x", "k"))
	assert.Equal(t, http.StatusCreated, do(h, "/x", "k"))
	assert.Equal(t, 2, *calls)
}

func TestMiddleware_NilChecker(t *testing.T) {
	next, _ := counting()
	h := Middleware(nil, slog.New(slog.DiscardHandler))(next)
	assert.Equal(t, http.StatusCreated, do(h, "/x", "k"))
	assert.Equal(t, http.StatusCreated, do(h, "/x", "k"))
}

func TestStoreKey(t *testing.T) {
	s := NewStore(nil, 0)
	assert.Equal(t, "idem:vending.commands:2:17", s.Key("vending.commands", 2, 17))
}
