package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metricLoop:
		for _, metric := range mf.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue metricLoop
				}
			}
			return metric.GetCounter().GetValue()
		}
	}
	return 0
}

func TestBookingMetricsCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)

	m.ObserveOperation("reserve", "success")
	m.ObserveOperation("reserve", "success")
	m.ObserveOperation("reserve", "slot_no_longer_available")
	m.ObserveNotification("scheduled", "sent")
	m.ObserveSlotComputation(0.01)
	m.ObserveSessionsPurged(3)
	m.ObserveSessionsPurged(0)

	if got := counterValue(t, reg, "clinic_booking_operations_total", map[string]string{"operation": "reserve", "outcome": "success"}); got != 2 {
		t.Fatalf("expected 2 successful reservations, got %v", got)
	}
	if got := counterValue(t, reg, "clinic_booking_operations_total", map[string]string{"operation": "reserve", "outcome": "slot_no_longer_available"}); got != 1 {
		t.Fatalf("expected 1 conflict, got %v", got)
	}
	if got := counterValue(t, reg, "clinic_auth_sessions_purged_total", nil); got != 3 {
		t.Fatalf("expected 3 purged sessions, got %v", got)
	}
}

func TestBookingMetricsNilSafe(t *testing.T) {
	var m *BookingMetrics
	m.ObserveOperation("reserve", "success")
	m.ObserveSlotComputation(0.1)
	m.ObserveNotification("cancelled", "failed")
	m.ObserveSessionsPurged(1)
}
