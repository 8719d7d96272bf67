package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name, label, value string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == label && lp.GetValue() == value {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	t.Fatalf("metric %s{%s=%q} not found", name, label, value)
	return 0
}

func TestNewBotMetricsWithRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBotMetricsWithRegistry(reg)

	m.EventsTotal.WithLabelValues("message").Inc()
	m.EventsTotal.WithLabelValues("message").Inc()
	m.ActivityFlushesTotal.WithLabelValues("REGULAR_UPDATE").Inc()

	if got := counterValue(t, reg, "tctk_chat_events_total", "kind", "message"); got != 2 {
		t.Errorf("expected 2 message events, got %v", got)
	}
	if got := counterValue(t, reg, "tctk_activity_writes_total", "reason", "REGULAR_UPDATE"); got != 1 {
		t.Errorf("expected 1 regular update, got %v", got)
	}
}

func TestNewBotMetrics_Shared(t *testing.T) {
	if NewBotMetrics() != NewBotMetrics() {
		t.Error("expected the process-wide metrics to be shared")
	}
}
