package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_RecordRun(t *testing.T) {
	c := New()

	c.RecordRun(RunRecord{
		Scenario: "basic",
		Result:   "FAILED",
		Duration: 3 * time.Second,
		Checks: []CheckRecord{
			{Kind: "server-log", Passed: true},
			{Kind: "output", Passed: false},
		},
		Lines:     map[string]int{"SERVER": 4, "CLIENT0": 2},
		Anomalies: 1,
		Finished:  time.Unix(1700000000, 0),
	})
	c.RecordRun(RunRecord{Scenario: "basic", Result: "PASSED", Lines: map[string]int{"SERVER": 1}})

	assert.Equal(t, 1.0, testutil.ToFloat64(c.runsTotal.WithLabelValues("basic", "FAILED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.runsTotal.WithLabelValues("basic", "PASSED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.checksTotal.WithLabelValues("basic", "output", "failed")))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.linesTotal.WithLabelValues("basic", "SERVER")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.anomaliesTotal.WithLabelValues("basic")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.lastRunSuccess.WithLabelValues("basic")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.buildFailures))
}

func TestCollector_BuildFailure(t *testing.T) {
	c := New()
	c.RecordRun(RunRecord{Scenario: "s", Result: "ERROR", BuildFail: true})

	assert.Equal(t, 1.0, testutil.ToFloat64(c.buildFailures))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.lastRunSuccess.WithLabelValues("s")))
}

func TestCollector_WriteTextfile(t *testing.T) {
	c := New()
	c.RecordRun(RunRecord{Scenario: "basic", Result: "PASSED", Duration: time.Second})

	path := filepath.Join(t.TempDir(), "ipcrunner.prom")
	require.NoError(t, c.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `ipcrunner_runs_total{result="PASSED",scenario="basic"} 1`)
	assert.Contains(t, string(data), "ipcrunner_run_duration_seconds_bucket")
}
