package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsExport(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveRPC("/smartsplit.v1.LedgerService/GetBalances", "ok", 20*time.Millisecond)
	m.ObserveRPC("/smartsplit.v1.LedgerService/GetBalances", "ok", 30*time.Millisecond)
	m.ObserveRPC("/smartsplit.v1.LedgerService/RecordExpense", "invalid_argument", time.Millisecond)
	m.IncExpenseRecorded("equal")
	m.ObserveSettlementPlan(2)
	m.IncIdempotentReplay()

	mfs, err := reg.Gather()
	require.NoError(t, err)

	assert.Equal(t, 2.0, counterValue(t, mfs, "smartsplit_rpc_requests_total", map[string]string{
		"procedure": "/smartsplit.v1.LedgerService/GetBalances", "code": "ok",
	}))
	assert.Equal(t, 1.0, counterValue(t, mfs, "smartsplit_rpc_requests_total", map[string]string{
		"procedure": "/smartsplit.v1.LedgerService/RecordExpense", "code": "invalid_argument",
	}))
	assert.Equal(t, 1.0, counterValue(t, mfs, "smartsplit_expenses_recorded_total", map[string]string{"split_type": "equal"}))
	assert.Equal(t, 1.0, counterValue(t, mfs, "smartsplit_idempotent_replays_total", nil))

	plan := family(mfs, "smartsplit_settlement_plan_transfers")
	require.NotNil(t, plan)
	assert.Equal(t, uint64(1), plan.GetMetric()[0].GetHistogram().GetSampleCount())
	assert.Equal(t, 2.0, plan.GetMetric()[0].GetHistogram().GetSampleSum())
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRPC("p", "ok", time.Second)
		m.IncExpenseRecorded("equal")
		m.ObserveSettlementPlan(1)
		m.IncIdempotentReplay()
	})

	unregistered := New(nil)
	assert.NotPanics(t, func() { unregistered.ObserveRPC("p", "ok", time.Second) })
}

func family(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func counterValue(t *testing.T, mfs []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	mf := family(mfs, name)
	require.NotNil(t, mf, "metric %s not found", name)
	for _, metric := range mf.GetMetric() {
		if hasLabels(metric.GetLabel(), labels) {
			return metric.GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s has no series with labels %v", name, labels)
	return 0
}

func hasLabels(pairs []*dto.LabelPair, want map[string]string) bool {
	matched := 0
	for _, p := range pairs {
		if v, ok := want[p.GetName()]; ok && v == p.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
