// Package metrics records harness runs as Prometheus metrics.
//
// The harness is a short-lived process, so metrics are not served over HTTP.
// They are written in the text exposition format to a file that a node
// exporter textfile collector (or a CI step) can pick up.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RunRecord is the part of a scenario result the metrics care about.
type RunRecord struct {
	Scenario string
	// Result is PASSED, FAILED, ERROR or INTERRUPTED.
	Result    string
	Duration  time.Duration
	Checks    []CheckRecord
	Lines     map[string]int
	Anomalies int
	BuildFail bool
	Finished  time.Time
}

// CheckRecord is the outcome of one verification check.
type CheckRecord struct {
	Kind   string
	Passed bool
}

// Collector owns the metric vectors and their registry.
type Collector struct {
	registry *prometheus.Registry

	runsTotal       *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
	checksTotal     *prometheus.CounterVec
	linesTotal      *prometheus.CounterVec
	anomaliesTotal  *prometheus.CounterVec
	buildFailures   prometheus.Counter
	lastRunSuccess  *prometheus.GaugeVec
	lastRunFinished *prometheus.GaugeVec
}

// New creates a Collector with its own registry.
func New() *Collector {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry creates a Collector registered on registry.
func NewWithRegistry(registry *prometheus.Registry) *Collector {
	c := &Collector{
		registry: registry,
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ipcrunner_runs_total",
				Help: "Scenario runs by result",
			},
			[]string{"scenario", "result"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ipcrunner_run_duration_seconds",
				Help:    "Wall time of a scenario run",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
			[]string{"scenario"},
		),
		checksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ipcrunner_checks_total",
				Help: "Verification checks by kind and outcome",
			},
			[]string{"scenario", "kind", "outcome"},
		),
		linesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ipcrunner_captured_lines_total",
				Help: "Output lines captured per stream label",
			},
			[]string{"scenario", "label"},
		),
		anomaliesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ipcrunner_anomalies_total",
				Help: "Run-level anomalies such as process wait timeouts",
			},
			[]string{"scenario"},
		),
		buildFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ipcrunner_build_failures_total",
				Help: "Failed build steps",
			},
		),
		lastRunSuccess: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ipcrunner_last_run_success",
				Help: "1 if the last run of the scenario passed, 0 otherwise",
			},
			[]string{"scenario"},
		),
		lastRunFinished: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ipcrunner_last_run_timestamp_seconds",
				Help: "Unix time the last run of the scenario finished",
			},
			[]string{"scenario"},
		),
	}

	registry.MustRegister(
		c.runsTotal,
		c.runDuration,
		c.checksTotal,
		c.linesTotal,
		c.anomaliesTotal,
		c.buildFailures,
		c.lastRunSuccess,
		c.lastRunFinished,
	)
	return c
}

// Registry returns the registry the collector writes to.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordRun adds one scenario run.
func (c *Collector) RecordRun(r RunRecord) {
	c.runsTotal.WithLabelValues(r.Scenario, r.Result).Inc()
	c.runDuration.WithLabelValues(r.Scenario).Observe(r.Duration.Seconds())

	for _, chk := range r.Checks {
		outcome := "failed"
		if chk.Passed {
			outcome = "passed"
		}
		c.checksTotal.WithLabelValues(r.Scenario, chk.Kind, outcome).Inc()
	}
	for label, n := range r.Lines {
		c.linesTotal.WithLabelValues(r.Scenario, label).Add(float64(n))
	}
	if r.Anomalies > 0 {
		c.anomaliesTotal.WithLabelValues(r.Scenario).Add(float64(r.Anomalies))
	}
	if r.BuildFail {
		c.buildFailures.Inc()
	}

	success := 0.0
	if r.Result == "PASSED" {
		success = 1
	}
	c.lastRunSuccess.WithLabelValues(r.Scenario).Set(success)

	finished := r.Finished
	if finished.IsZero() {
		finished = time.Now()
	}
	c.lastRunFinished.WithLabelValues(r.Scenario).Set(float64(finished.Unix()))
}

// WriteTextfile writes every metric to path atomically.
func (c *Collector) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}
