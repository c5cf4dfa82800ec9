package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg *prometheus.Registry

	OrdersCreated     prometheus.Counter
	OrdersCompleted   prometheus.Counter
	OrdersCancelled   prometheus.Counter
	DeliveryFailures  prometheus.Counter
	OutOfStock        prometheus.Counter
	ClaimConflicts    prometheus.Counter
	InventoryAppended prometheus.Counter
	DeliverySeconds   prometheus.Histogram
	OutboxDropped     prometheus.Counter
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	created := prometheus.NewCounter(prometheus.CounterOpts{Name: "vending_orders_created_total"})
	completed := prometheus.NewCounter(prometheus.CounterOpts{Name: "vending_orders_completed_total"})
	cancelled := prometheus.NewCounter(prometheus.CounterOpts{Name: "vending_orders_cancelled_total"})
	failures := prometheus.NewCounter(prometheus.CounterOpts{Name: "vending_delivery_failures_total"})
	outOfStock := prometheus.NewCounter(prometheus.CounterOpts{Name: "vending_out_of_stock_total"})
	conflicts := prometheus.NewCounter(prometheus.CounterOpts{Name: "vending_claim_conflicts_total"})
	appended := prometheus.NewCounter(prometheus.CounterOpts{Name: "vending_inventory_appended_total"})
	deliverySec := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "vending_delivery_seconds",
		Buckets: prometheus.DefBuckets,
	})

	dropped := prometheus.NewCounter(prometheus.CounterOpts{Name: "vending_outbox_dropped_total"})

	r.MustRegister(created, completed, cancelled, failures, outOfStock, conflicts, appended, deliverySec, dropped)
	return &Registry{
		reg:               r,
		OrdersCreated:     created,
		OrdersCompleted:   completed,
		OrdersCancelled:   cancelled,
		DeliveryFailures:  failures,
		OutOfStock:        outOfStock,
		ClaimConflicts:    conflicts,
		InventoryAppended: appended,
		DeliverySeconds:   deliverySec,
		OutboxDropped:     dropped,
	}
}

// TrackOutbox exposes the number of unsent outbox events as a gauge.
func (r *Registry) TrackOutbox(pending func() int) {
	r.reg.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Name: "vending_outbox_pending"},
		func() float64 { return float64(pending()) },
	))
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
