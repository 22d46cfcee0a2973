package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for scheduling flows.
type BookingMetrics struct {
	operationsTotal   *prometheus.CounterVec
	slotLatency       prometheus.Histogram
	notificationTotal *prometheus.CounterVec
	sessionsPurged    prometheus.Counter
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		operationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "operations_total",
			Help:      "Booking operations by kind and outcome",
		}, []string{"operation", "outcome"}),
		slotLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "slot_computation_seconds",
			Help:      "Latency of available slot computation",
			Buckets:   prometheus.DefBuckets,
		}),
		notificationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "notify",
			Name:      "emails_total",
			Help:      "Appointment emails by template and status",
		}, []string{"template", "status"}),
		sessionsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "auth",
			Name:      "sessions_purged_total",
			Help:      "Expired sessions deleted by the cleaner",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.operationsTotal, m.slotLatency, m.notificationTotal, m.sessionsPurged)
	return m
}

func (m *BookingMetrics) ObserveOperation(operation, outcome string) {
	if m == nil {
		return
	}
	m.operationsTotal.WithLabelValues(operation, outcome).Inc()
}

func (m *BookingMetrics) ObserveSlotComputation(seconds float64) {
	if m == nil {
		return
	}
	m.slotLatency.Observe(seconds)
}

func (m *BookingMetrics) ObserveNotification(template, status string) {
	if m == nil {
		return
	}
	m.notificationTotal.WithLabelValues(template, status).Inc()
}

func (m *BookingMetrics) ObserveSessionsPurged(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.sessionsPurged.Add(float64(n))
}
