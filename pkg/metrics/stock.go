package metrics

import (
	"time"

	"github.com/keystock/keystock-backend/pkg/enums"
	"github.com/prometheus/client_golang/prometheus"
)

// StockMetrics records how the ledger moves accessory quantities.
type StockMetrics struct {
	units      *prometheus.CounterVec
	operations *prometheus.HistogramVec
	rejected   *prometheus.CounterVec
	lowStock   prometheus.Gauge
}

// NewStockMetrics registers the stock metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewStockMetrics(reg prometheus.Registerer) *StockMetrics {
	if reg == nil {
		return &StockMetrics{}
	}
	units := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "keystock",
		Name:      "stock_units_total",
		Help:      "Accessory units moved by ledger operations.",
	}, []string{"movement"})
	operations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "keystock",
		Name:      "ledger_operation_duration_seconds",
		Help:      "Duration of ledger operations in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation", "outcome"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "keystock",
		Name:      "ledger_rejections_total",
		Help:      "Ledger operations rejected before any write.",
	}, []string{"reason"})
	lowStock := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "keystock",
		Name:      "low_stock_accessories",
		Help:      "Accessories at or below their alert threshold at the last evaluation.",
	})
	reg.MustRegister(units, operations, rejected, lowStock)
	return &StockMetrics{
		units:      units,
		operations: operations,
		rejected:   rejected,
		lowStock:   lowStock,
	}
}

// AddUnits records qty units moved in the given direction.
func (s *StockMetrics) AddUnits(movement enums.StockMovement, qty int) {
	if s == nil || s.units == nil || qty <= 0 {
		return
	}
	s.units.WithLabelValues(string(movement)).Add(float64(qty))
}

// ObserveOperation records the duration of a ledger operation.
func (s *StockMetrics) ObserveOperation(operation string, err error, duration time.Duration) {
	if s == nil || s.operations == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.operations.WithLabelValues(normalizeLabel(operation), outcome).Observe(duration.Seconds())
}

// IncRejected counts a rejected operation by reason.
func (s *StockMetrics) IncRejected(reason string) {
	if s == nil || s.rejected == nil {
		return
	}
	s.rejected.WithLabelValues(normalizeLabel(reason)).Inc()
}

// SetLowStock publishes the size of the current low-stock set.
func (s *StockMetrics) SetLowStock(count int) {
	if s == nil || s.lowStock == nil {
		return
	}
	s.lowStock.Set(float64(count))
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
