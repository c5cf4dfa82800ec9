package http

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	inventory "github.com/dmehra2102/vending-machine/internal/inventory/domain"
	"github.com/dmehra2102/vending-machine/internal/orchestrator/application"
	order "github.com/dmehra2102/vending-machine/internal/order/domain"
	tenantapp "github.com/dmehra2102/vending-machine/internal/tenant/application"
	"github.com/dmehra2102/vending-machine/pkg/apperr"
	"github.com/dmehra2102/vending-machine/pkg/idempotency"
	"github.com/dmehra2102/vending-machine/pkg/metrics"
)

const maxBody = 1 << 20

type Handler struct {
	log     *slog.Logger
	coord   *application.Coordinator
	tenants *tenantapp.Store
	metrics *metrics.Registry
	idem    idempotency.Checker
	service string
	started time.Time
	tracer  trace.Tracer
}

// NewHandler wires the HTTP surface. idem may be nil, which disables
// Idempotency-Key checks.
func NewHandler(log *slog.Logger, service string, coord *application.Coordinator, tenants *tenantapp.Store, m *metrics.Registry, idem idempotency.Checker) *Handler {
	return &Handler{
		log:     log,
		coord:   coord,
		tenants: tenants,
		metrics: m,
		idem:    idem,
		service: service,
		started: time.Now(),
		tracer:  otel.Tracer("vending-http"),
	}
}

type createProductReq struct {
	Key         string   `json:"key"`
	Name        string   `json:"name"`
	PriceCents  int64    `json:"price"`
	Description string   `json:"description"`
	Units       []string `json:"units"`
}

type appendInventoryReq struct {
	Units []string `json:"units"`
}

type createOrderReq struct {
	BuyerID     string `json:"buyer_id"`
	ProductKey  string `json:"product_key"`
	ContextRef  string `json:"context_ref"`
	PaymentLink string `json:"payment_link"`
}

type actorReq struct {
	ProcessorID string `json:"processor_id"`
	ActorID     string `json:"actor_id"`
}

type targetReq struct {
	Target string `json:"target"`
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/", h.index)
	r.Get("/health", h.health)
	r.Get("/ping", h.ping)
	r.Get("/status", h.status)
	r.Method(http.MethodGet, "/metrics", h.metrics.Handler())

	r.Route("/tenants/{tenant}", func(r chi.Router) {
		r.Delete("/", h.removeTenant)

		r.Get("/products", h.listProducts)
		r.Put("/admin-targets/{target}", h.addAdminTarget)
		r.Delete("/admin-targets/{target}", h.removeAdminTarget)
		r.Put("/achievement-target", h.setAchievementTarget)
		r.Get("/orders", h.listOrders)
		r.Get("/orders/{id}", h.getOrder)

		r.Group(func(r chi.Router) {
			r.Use(idempotency.Middleware(h.idem, h.log))
			r.Post("/products", h.createProduct)
			r.Post("/products/{key}/inventory", h.appendInventory)
			r.Post("/orders", h.createOrder)
			r.Post("/orders/{id}/approve", h.approve)
			r.Post("/orders/{id}/cancel", h.cancel)
		})
	})

	return r
}

func (h *Handler) index(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"service": h.service})
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) ping(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("pong"))
}

func (h *Handler) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service":        h.service,
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
		"tenants":        h.tenants.Len(),
		"tenant_ids":     h.tenants.IDs(),
	})
}

func (h *Handler) removeTenant(w http.ResponseWriter, r *http.Request) {
	h.tenants.Remove(chi.URLParam(r, "tenant"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenant")
	_, span := h.tracer.Start(r.Context(), "CreateProduct", trace.WithAttributes(attribute.String("tenant.id", tenantID)))
	defer span.End()

	var req createProductReq
	if err := decode(r, &req); err != nil {
		h.fail(w, span, err)
		return
	}
	level, err := h.coord.AddProduct(tenantID, req.Key, req.Name, req.PriceCents, req.Description, req.Units)
	if err != nil {
		h.fail(w, span, err)
		return
	}
	writeJSON(w, http.StatusCreated, level)
}

func (h *Handler) appendInventory(w http.ResponseWriter, r *http.Request) {
	tenantID, key := chi.URLParam(r, "tenant"), chi.URLParam(r, "key")
	_, span := h.tracer.Start(r.Context(), "AppendInventory", trace.WithAttributes(
		attribute.String("tenant.id", tenantID),
		attribute.String("product.key", key),
	))
	defer span.End()

	var units []string
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "text/plain" {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
		if err != nil {
			h.fail(w, span, fmt.Errorf("%w: read body: %v", apperr.ErrInvalidInput, err))
			return
		}
		units = inventory.ParseUnits(string(body))
	} else {
		var req appendInventoryReq
		if err := decode(r, &req); err != nil {
			h.fail(w, span, err)
			return
		}
		units = req.Units
	}

	n, err := h.coord.AppendInventory(tenantID, key, units)
	if err != nil {
		h.fail(w, span, err)
		return
	}
	level, err := h.tenants.GetOrCreate(tenantID).Product(key)
	if err != nil {
		h.fail(w, span, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"added": n, "stock": level.Stock})
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	levels := []inventory.StockLevel{}
	if t, ok := h.tenants.Get(chi.URLParam(r, "tenant")); ok {
		levels = append(levels, t.ListAvailable()...)
	}
	writeJSON(w, http.StatusOK, levels)
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenant")
	ctx, span := h.tracer.Start(r.Context(), "CreateOrderHTTP", trace.WithAttributes(attribute.String("tenant.id", tenantID)))
	defer span.End()

	var req createOrderReq
	if err := decode(r, &req); err != nil {
		h.fail(w, span, err)
		return
	}
	o, err := h.coord.CreateOrder(ctx, tenantID, application.CreateOrderRequest{
		BuyerID:     req.BuyerID,
		ProductKey:  req.ProductKey,
		ContextRef:  req.ContextRef,
		PaymentLink: req.PaymentLink,
	})
	if err != nil {
		h.fail(w, span, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
	h.coord.NotifyAdmins(ctx, tenantID, o)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		h.fail(w, nil, err)
		return
	}
	t, ok := h.tenants.Get(chi.URLParam(r, "tenant"))
	if !ok {
		h.fail(w, nil, order.ErrOrderNotFound)
		return
	}
	o, err := t.GetOrder(id)
	if err != nil {
		h.fail(w, nil, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	var statuses []order.OrderStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			st := order.OrderStatus(strings.TrimSpace(s))
			if !st.Valid() {
				h.fail(w, nil, fmt.Errorf("%w: unknown status %q", apperr.ErrInvalidInput, s))
				return
			}
			statuses = append(statuses, st)
		}
	}
	orders := []order.Order{}
	if t, ok := h.tenants.Get(chi.URLParam(r, "tenant")); ok {
		orders = append(orders, t.ListOrders(statuses...)...)
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenant")
	ctx, span := h.tracer.Start(r.Context(), "ApproveHTTP", trace.WithAttributes(attribute.String("tenant.id", tenantID)))
	defer span.End()

	id, err := orderID(r)
	if err != nil {
		h.fail(w, span, err)
		return
	}
	var req actorReq
	if err := decode(r, &req); err != nil {
		h.fail(w, span, err)
		return
	}
	if _, err := h.coord.ApproveAndDeliver(ctx, tenantID, id, req.ProcessorID); err != nil {
		h.fail(w, span, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order_id": id, "status": order.StatusCompleted})
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenant")
	ctx, span := h.tracer.Start(r.Context(), "CancelHTTP", trace.WithAttributes(attribute.String("tenant.id", tenantID)))
	defer span.End()

	id, err := orderID(r)
	if err != nil {
		h.fail(w, span, err)
		return
	}
	var req actorReq
	if err := decode(r, &req); err != nil {
		h.fail(w, span, err)
		return
	}
	if err := h.coord.Cancel(ctx, tenantID, id, req.ActorID); err != nil {
		h.fail(w, span, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order_id": id, "status": order.StatusCancelled})
}

func (h *Handler) addAdminTarget(w http.ResponseWriter, r *http.Request) {
	h.tenants.GetOrCreate(chi.URLParam(r, "tenant")).AddAdminTarget(chi.URLParam(r, "target"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeAdminTarget(w http.ResponseWriter, r *http.Request) {
	if t, ok := h.tenants.Get(chi.URLParam(r, "tenant")); ok {
		t.RemoveAdminTarget(chi.URLParam(r, "target"))
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) setAchievementTarget(w http.ResponseWriter, r *http.Request) {
	var req targetReq
	if err := decode(r, &req); err != nil {
		h.fail(w, nil, err)
		return
	}
	h.tenants.GetOrCreate(chi.URLParam(r, "tenant")).SetAchievementTarget(strings.TrimSpace(req.Target))
	w.WriteHeader(http.StatusNoContent)
}

// fail maps err to a status and writes it. span may be nil.
func (h *Handler) fail(w http.ResponseWriter, span trace.Span, err error) {
	status := apperr.HTTPStatus(err)
	if span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if status >= http.StatusInternalServerError && status != http.StatusBadGateway {
		h.log.Error("request failed", "err", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	if err := dec.Decode(v); err != nil && err != io.EOF {
		return fmt.Errorf("%w: invalid body: %v", apperr.ErrInvalidInput, err)
	}
	return nil
}

func orderID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("%w: invalid order id %q", apperr.ErrInvalidInput, chi.URLParam(r, "id"))
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
