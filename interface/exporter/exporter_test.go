package exporter

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestHelpersBeforeInit(t *testing.T) {
	counters, counterVecs, gauges = nil, nil, nil

	assert.NotPanics(t, func() {
		IncErrorCount()
		IncPoll("found")
		IncAction("approve", "success")
		IncCorrection("executed", "success")
		SetTrackers(3)
	})
	assert.Nil(t, GetCounter(METRIC_ERROR_COUNT))
}

func TestMetrics(t *testing.T) {
	InitWith(prometheus.NewRegistry())

	IncErrorCount()
	IncErrorCount()
	IncPoll("found")
	IncPoll("not_found")
	IncPoll("found")
	IncAction("approve", "success")
	IncCorrection("refunded", "failed")
	SetTrackers(4)

	assert.Equal(t, 2.0, testutil.ToFloat64(GetCounter(METRIC_ERROR_COUNT)))
	assert.Equal(t, 2.0, testutil.ToFloat64(GetCounterVec(METRIC_POLLS_TOTAL).WithLabelValues("found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(GetCounterVec(METRIC_POLLS_TOTAL).WithLabelValues("not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(GetCounterVec(METRIC_ACTIONS_TOTAL).WithLabelValues("approve", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(GetCounterVec(METRIC_CORRECTIONS_TOTAL).WithLabelValues("refunded", "failed")))
	assert.Equal(t, 4.0, testutil.ToFloat64(gauges[METRIC_TRACKERS]))
}

func TestInitWithRegistersOnce(t *testing.T) {
	registry := prometheus.NewRegistry()
	InitWith(registry)
	assert.Panics(t, func() { InitWith(registry) })
}
