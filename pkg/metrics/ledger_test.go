package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestLedgerMetricsCountsByLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewLedgerMetrics(reg)
	m.IncCallback("credit", "applied")
	m.IncCallback("credit", "applied")
	m.IncCallback("reverse", "")
	m.IncTransition("paid", "sweep")
	m.IncProviderError("get_payout")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got := counterWithLabels(t, mfs, "reward_callbacks_total", map[string]string{"direction": "credit", "outcome": "applied"}); got != 2 {
		t.Fatalf("expected 2 applied credits, got %f", got)
	}
	if got := counterWithLabels(t, mfs, "reward_callbacks_total", map[string]string{"direction": "reverse", "outcome": "unknown"}); got != 1 {
		t.Fatalf("expected empty outcome normalized to unknown, got %f", got)
	}
	if got := counterWithLabels(t, mfs, "withdrawal_transitions_total", map[string]string{"status": "paid", "trigger": "sweep"}); got != 1 {
		t.Fatalf("expected 1 paid transition, got %f", got)
	}
	if got := counterWithLabels(t, mfs, "payout_provider_errors_total", map[string]string{"operation": "get_payout"}); got != 1 {
		t.Fatalf("expected 1 provider error, got %f", got)
	}
}

func TestLedgerMetricsNilSafe(t *testing.T) {
	var m *LedgerMetrics
	m.IncCallback("credit", "applied")
	m.IncTransition("paid", "sweep")
	NewLedgerMetrics(nil).IncProviderError("create_payout")
}

func counterWithLabels(t *testing.T, mfs []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		t.Fatalf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		matched := true
		for k, v := range labels {
			if !matchesLabel(metric.GetLabel(), k, v) {
				matched = false
				break
			}
		}
		if matched {
			return metric.GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %q missing labels %v", name, labels)
	return 0
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
