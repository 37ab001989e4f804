package observability

import "github.com/prometheus/client_golang/prometheus"

// StockMetrics counts document and inventory count outcomes. It satisfies
// documents.Metrics and counts.Metrics; a nil receiver records nothing.
type StockMetrics struct {
	confirmed   *prometheus.CounterVec
	unitsMoved  *prometheus.CounterVec
	cancelled   *prometheus.CounterVec
	completed   prometheus.Counter
	adjustments prometheus.Counter
	abandoned   prometheus.Counter
}

// NewStockMetrics registers the stock collectors against registerer.
func NewStockMetrics(registerer prometheus.Registerer) *StockMetrics {
	m := &StockMetrics{
		confirmed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "odyssey_documents_confirmed_total",
			Help: "Confirmed stock documents by type.",
		}, []string{"type"}),
		unitsMoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "odyssey_stock_units_moved_total",
			Help: "Units applied to the ledger by confirmed documents, by document type.",
		}, []string{"type"}),
		cancelled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "odyssey_documents_cancelled_total",
			Help: "Cancelled stock documents by type.",
		}, []string{"type"}),
		completed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "odyssey_inventory_counts_completed_total",
			Help: "Completed inventory counts.",
		}),
		adjustments: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "odyssey_inventory_adjustments_total",
			Help: "Count lines that changed the ledger on completion.",
		}),
		abandoned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "odyssey_inventory_counts_cancelled_total",
			Help: "Cancelled inventory counts.",
		}),
	}
	registerer.MustRegister(m.confirmed, m.unitsMoved, m.cancelled, m.completed, m.adjustments, m.abandoned)
	return m
}

func (m *StockMetrics) DocumentConfirmed(docType string, units int64) {
	if m == nil {
		return
	}
	m.confirmed.WithLabelValues(docType).Inc()
	if units > 0 {
		m.unitsMoved.WithLabelValues(docType).Add(float64(units))
	}
}

func (m *StockMetrics) DocumentCancelled(docType string) {
	if m == nil {
		return
	}
	m.cancelled.WithLabelValues(docType).Inc()
}

func (m *StockMetrics) CountCompleted(adjustments int) {
	if m == nil {
		return
	}
	m.completed.Inc()
	if adjustments > 0 {
		m.adjustments.Add(float64(adjustments))
	}
}

func (m *StockMetrics) CountCancelled() {
	if m == nil {
		return
	}
	m.abandoned.Inc()
}
