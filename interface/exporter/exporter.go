package exporter

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	METRIC_POLLS_TOTAL       = "polls_total"
	METRIC_ACTIONS_TOTAL     = "actions_total"
	METRIC_CORRECTIONS_TOTAL = "corrections_total"
	METRIC_ERROR_COUNT       = "error_count"
	METRIC_TRACKERS          = "trackers"
)

var (
	counters    map[string]prometheus.Counter
	counterVecs map[string]*prometheus.CounterVec
	gauges      map[string]prometheus.Gauge
)

// Init registers the metrics on the default registry. Until it is called
// every helper below is a no-op.
func Init() {
	InitWith(prometheus.DefaultRegisterer)
}

func InitWith(registerer prometheus.Registerer) {

	// Create metric spaces
	counters = make(map[string]prometheus.Counter)
	counterVecs = make(map[string]*prometheus.CounterVec)
	gauges = make(map[string]prometheus.Gauge)

	// Register metrics
	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gmp",
		Subsystem: "tracker",
		Name:      METRIC_ERROR_COUNT,
		Help:      "Counts the number of failed requests to external APIs",
	})
	registerer.MustRegister(counter)
	counters[METRIC_ERROR_COUNT] = counter

	polls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gmp",
		Subsystem: "tracker",
		Name:      METRIC_POLLS_TOTAL,
		Help:      "Counts finished polls by result (found, not_found, failed)",
	}, []string{"result"})
	registerer.MustRegister(polls)
	counterVecs[METRIC_POLLS_TOTAL] = polls

	actions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gmp",
		Subsystem: "tracker",
		Name:      METRIC_ACTIONS_TOTAL,
		Help:      "Counts settled recovery actions by action and final state",
	}, []string{"action", "state"})
	registerer.MustRegister(actions)
	counterVecs[METRIC_ACTIONS_TOTAL] = actions

	corrections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gmp",
		Subsystem: "tracker",
		Name:      METRIC_CORRECTIONS_TOTAL,
		Help:      "Counts manual corrections by step and result",
	}, []string{"step", "result"})
	registerer.MustRegister(corrections)
	counterVecs[METRIC_CORRECTIONS_TOTAL] = corrections

	trackers := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "gmp",
		Subsystem: "tracker",
		Name:      METRIC_TRACKERS,
		Help:      "Number of transaction hashes being tracked",
	})
	registerer.MustRegister(trackers)
	gauges[METRIC_TRACKERS] = trackers
}

func GetCounter(name string) prometheus.Counter {
	return counters[name]
}

func GetCounterVec(name string) *prometheus.CounterVec {
	return counterVecs[name]
}

func IncErrorCount() {
	if counter, exist := counters[METRIC_ERROR_COUNT]; exist {
		counter.Inc()
	}
}

func IncPoll(result string) {
	if vec, exist := counterVecs[METRIC_POLLS_TOTAL]; exist {
		vec.WithLabelValues(result).Inc()
	}
}

func IncAction(action, state string) {
	if vec, exist := counterVecs[METRIC_ACTIONS_TOTAL]; exist {
		vec.WithLabelValues(action, state).Inc()
	}
}

func IncCorrection(step, result string) {
	if vec, exist := counterVecs[METRIC_CORRECTIONS_TOTAL]; exist {
		vec.WithLabelValues(step, result).Inc()
	}
}

func SetTrackers(n int) {
	if gauge, exist := gauges[METRIC_TRACKERS]; exist {
		gauge.Set(float64(n))
	}
}
