package metrics

import "github.com/prometheus/client_golang/prometheus"

// VisitMetrics exposes counters for visit lifecycle outcomes.
type VisitMetrics struct {
	bookedTotal     prometheus.Counter
	startedTotal    prometheus.Counter
	completedTotal  prometheus.Counter
	treatmentsTotal prometheus.Counter
	conflictsTotal  *prometheus.CounterVec
}

func NewVisitMetrics(reg prometheus.Registerer) *VisitMetrics {
	m := &VisitMetrics{
		bookedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "visitdesk",
			Subsystem: "visits",
			Name:      "booked_total",
			Help:      "Total visits booked",
		}),
		startedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "visitdesk",
			Subsystem: "visits",
			Name:      "started_total",
			Help:      "Total visits started",
		}),
		completedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "visitdesk",
			Subsystem: "visits",
			Name:      "completed_total",
			Help:      "Total visits completed",
		}),
		treatmentsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "visitdesk",
			Subsystem: "visits",
			Name:      "treatments_added_total",
			Help:      "Total treatments recorded",
		}),
		conflictsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "visitdesk",
			Subsystem: "visits",
			Name:      "lifecycle_conflicts_total",
			Help:      "Lifecycle guard rejections by operation",
		}, []string{"operation"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookedTotal, m.startedTotal, m.completedTotal, m.treatmentsTotal, m.conflictsTotal)
	return m
}

func (m *VisitMetrics) ObserveBooked() {
	if m == nil {
		return
	}
	m.bookedTotal.Inc()
}

func (m *VisitMetrics) ObserveStarted() {
	if m == nil {
		return
	}
	m.startedTotal.Inc()
}

func (m *VisitMetrics) ObserveCompleted() {
	if m == nil {
		return
	}
	m.completedTotal.Inc()
}

func (m *VisitMetrics) ObserveTreatmentAdded() {
	if m == nil {
		return
	}
	m.treatmentsTotal.Inc()
}

func (m *VisitMetrics) ObserveConflict(operation string) {
	if m == nil {
		return
	}
	m.conflictsTotal.WithLabelValues(operation).Inc()
}
