// Package metrics defines the Prometheus collectors exported by the server.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "smartsplit"

// Metrics groups the server's collectors. A nil *Metrics, or one built
// with a nil registerer, records nothing.
type Metrics struct {
	rpcRequests        *prometheus.CounterVec
	rpcDuration        *prometheus.HistogramVec
	expensesRecorded   *prometheus.CounterVec
	settlementPlanSize prometheus.Histogram
	idempotentReplays  prometheus.Counter
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return &Metrics{}
	}
	m := &Metrics{
		rpcRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_requests_total",
			Help:      "Connect RPCs handled, by procedure and result code.",
		}, []string{"procedure", "code"}),
		rpcDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_duration_seconds",
			Help:      "Duration of Connect RPCs in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"procedure"}),
		expensesRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expenses_recorded_total",
			Help:      "Expenses written to the ledger, by split type.",
		}, []string{"split_type"}),
		settlementPlanSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "settlement_plan_transfers",
			Help:      "Number of transfers in computed settlement plans.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21, 34},
		}),
		idempotentReplays: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "idempotent_replays_total",
			Help:      "Requests answered from a completed idempotency record.",
		}),
	}
	reg.MustRegister(m.rpcRequests, m.rpcDuration, m.expensesRecorded, m.settlementPlanSize, m.idempotentReplays)
	return m
}

// ObserveRPC records one finished RPC.
func (m *Metrics) ObserveRPC(procedure, code string, duration time.Duration) {
	if m == nil || m.rpcRequests == nil {
		return
	}
	procedure = normalizeLabel(procedure)
	m.rpcRequests.WithLabelValues(procedure, normalizeLabel(code)).Inc()
	m.rpcDuration.WithLabelValues(procedure).Observe(duration.Seconds())
}

func (m *Metrics) IncExpenseRecorded(splitType string) {
	if m == nil || m.expensesRecorded == nil {
		return
	}
	m.expensesRecorded.WithLabelValues(normalizeLabel(splitType)).Inc()
}

func (m *Metrics) ObserveSettlementPlan(transfers int) {
	if m == nil || m.settlementPlanSize == nil {
		return
	}
	m.settlementPlanSize.Observe(float64(transfers))
}

func (m *Metrics) IncIdempotentReplay() {
	if m == nil || m.idempotentReplays == nil {
		return
	}
	m.idempotentReplays.Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
