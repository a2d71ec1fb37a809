//go:build !windows

package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const harnessTemplate = `workdir: %s
build:
  enabled: false
server:
  path: /bin/sh
  args: ["-c", "echo '10:00:00.000 Server up'; echo done > output.txt; exec sleep 30"]
client:
  path: /bin/sh
  args: ["-c", "echo \"10:00:01.000 client $0 ready\""]
queues:
  dir: %s
  count: 3
timing:
  server_warmup: 20ms
  client_stagger: 5ms
  shutdown_grace: 20ms
  server_exit_timeout: 2s
  run_timeout: 20s
`

// useHarness writes a harness configuration driving /bin/sh programs and
// points the global flags at it.
func useHarness(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	queueDir := filepath.Join(dir, "mqueue")
	require.NoError(t, os.MkdirAll(queueDir, 0755))

	cfgPath := filepath.Join(dir, "ipcrunner.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf(harnessTemplate, dir, queueDir)), 0644))

	original := global
	t.Cleanup(func() { global = original })
	global = globalFlags{configPath: cfgPath, logFormat: "text"}
	return dir
}

func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const passingScenario = `{
  "test_name": "basic",
  "num_clients": 2,
  "input": ["CREATE doc"],
  "expected_logs": {
    "server": ["Server up"],
    "clients": {"0": ["client 0 ready"], "1": ["client 1 ready"]}
  },
  "expected_output": "done"
}`

const failingScenario = `{
  "test_name": "wrong output",
  "num_clients": 1,
  "input": ["CREATE doc"],
  "expected_output": "something else"
}`

func TestRunScenarios(t *testing.T) {
	dir := useHarness(t)
	scenarios := filepath.Join(dir, "scenarios")
	require.NoError(t, os.MkdirAll(scenarios, 0755))
	pass := writeScenario(t, scenarios, "a_pass.json", passingScenario)
	writeScenario(t, scenarios, "b_fail.json", failingScenario)

	t.Run("passing file", func(t *testing.T) {
		var out bytes.Buffer
		err := runScenarios(context.Background(), &out, &runOptions{format: "text"}, pass)
		require.NoError(t, err)
		assert.Contains(t, out.String(), "CHRONOLOGICAL EXECUTION LOG")
		assert.Contains(t, out.String(), "PASSED")
	})

	t.Run("directory with a failure", func(t *testing.T) {
		var out bytes.Buffer
		err := runScenarios(context.Background(), &out, &runOptions{format: "quiet"}, scenarios)
		assert.ErrorIs(t, err, errScenariosFailed)
		assert.Contains(t, out.String(), "wrong output")
		assert.Contains(t, out.String(), "1/2 tests failed")
	})

	t.Run("scenario filter", func(t *testing.T) {
		var out bytes.Buffer
		err := runScenarios(context.Background(), &out, &runOptions{format: "quiet", scenario: "basic"}, scenarios)
		require.NoError(t, err)
		assert.Contains(t, out.String(), "All 1 tests passed")
	})

	t.Run("unknown scenario name", func(t *testing.T) {
		err := runScenarios(context.Background(), &bytes.Buffer{}, &runOptions{format: "quiet", scenario: "nope"}, scenarios)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no scenario named")
	})

	t.Run("interrupted run is not an error", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := runScenarios(ctx, &bytes.Buffer{}, &runOptions{format: "quiet"}, pass)
		assert.NoError(t, err)
	})
}

func TestRunScenarios_InvalidScenarioFile(t *testing.T) {
	dir := useHarness(t)
	path := writeScenario(t, dir, "bad.json", `{"test_name": "bad", "num_clients": 1}`)

	err := runScenarios(context.Background(), &bytes.Buffer{}, &runOptions{format: "text"}, path)
	require.Error(t, err)
	assert.Equal(t, ExitCodeError, getExitCode(err))
}

func TestRunOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    runOptions
		wantErr bool
	}{
		{name: "text", opts: runOptions{format: "text"}},
		{name: "json", opts: runOptions{format: "json"}},
		{name: "quiet", opts: runOptions{format: "quiet"}},
		{name: "unknown format", opts: runOptions{format: "xml"}, wantErr: true},
		{name: "negative timeout", opts: runOptions{format: "text", timeout: -1}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateScenarios(t *testing.T) {
	dir := useHarness(t)
	scenarios := filepath.Join(dir, "scenarios")
	require.NoError(t, os.MkdirAll(scenarios, 0755))
	writeScenario(t, scenarios, "a_pass.json", passingScenario)

	var out bytes.Buffer
	require.NoError(t, validateScenarios(&out, scenarios))
	assert.Contains(t, out.String(), "basic")
	assert.Contains(t, out.String(), "per-client")
	assert.Contains(t, out.String(), "1 scenario(s) valid")

	writeScenario(t, scenarios, "b_bad.yaml", "test_name: [unclosed")
	out.Reset()
	err := validateScenarios(&out, scenarios)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 invalid file(s)")
	assert.Contains(t, out.String(), "b_bad.yaml")
}

func TestClean(t *testing.T) {
	dir := useHarness(t)
	leftovers := []string{
		filepath.Join(dir, "input.txt"),
		filepath.Join(dir, "output.txt"),
		filepath.Join(dir, "output_client3.txt"),
		filepath.Join(dir, "mqueue", "client_queue_1"),
	}
	for _, f := range leftovers {
		require.NoError(t, os.WriteFile(f, []byte("x"), 0644))
	}

	var out bytes.Buffer
	require.NoError(t, clean(&out))
	for _, f := range leftovers {
		assert.NoFileExists(t, f)
	}
	assert.Contains(t, out.String(), "3 message queue(s)")

	require.NoError(t, clean(&out), "clean is idempotent")
}
