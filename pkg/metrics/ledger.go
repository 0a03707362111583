package metrics

import "github.com/prometheus/client_golang/prometheus"

// LedgerMetrics counts reward callback outcomes and withdrawal transitions.
type LedgerMetrics struct {
	callbacks   *prometheus.CounterVec
	transitions *prometheus.CounterVec
	provider    *prometheus.CounterVec
}

// NewLedgerMetrics registers the ledger metrics on the provided registerer.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	callbacks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reward_callbacks_total",
		Help: "Reward callbacks by direction and outcome.",
	}, []string{"direction", "outcome"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "withdrawal_transitions_total",
		Help: "Withdrawal status transitions by target status and trigger.",
	}, []string{"status", "trigger"})
	provider := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payout_provider_errors_total",
		Help: "Payout provider call failures by operation.",
	}, []string{"operation"})
	reg.MustRegister(callbacks, transitions, provider)
	return &LedgerMetrics{
		callbacks:   callbacks,
		transitions: transitions,
		provider:    provider,
	}
}

// IncCallback records one processed reward callback.
func (m *LedgerMetrics) IncCallback(direction, outcome string) {
	if m == nil || m.callbacks == nil {
		return
	}
	m.callbacks.WithLabelValues(labelOrUnknown(direction), labelOrUnknown(outcome)).Inc()
}

// IncTransition records a withdrawal entering status via trigger.
func (m *LedgerMetrics) IncTransition(status, trigger string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(labelOrUnknown(status), labelOrUnknown(trigger)).Inc()
}

// IncProviderError records a failed payout provider call.
func (m *LedgerMetrics) IncProviderError(operation string) {
	if m == nil || m.provider == nil {
		return
	}
	m.provider.WithLabelValues(labelOrUnknown(operation)).Inc()
}
