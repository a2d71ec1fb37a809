package config

import (
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// HarnessConfig is the top-level configuration structure for ipcrunner.
// Every field has a default (see GetDefaultConfig); a config file only
// needs to mention the values it overrides.
type HarnessConfig struct {
	// WorkDir is where the application under test runs and where artifacts live.
	WorkDir   string          `yaml:"workdir"`
	Build     BuildConfig     `yaml:"build"`
	Server    ProgramConfig   `yaml:"server"`
	Client    ProgramConfig   `yaml:"client"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	Queues    QueuesConfig    `yaml:"queues"`
	Timing    TimingConfig    `yaml:"timing"`
	Ordering  OrderingConfig  `yaml:"ordering"`
	Verify    VerifyConfig    `yaml:"verify"`
	// LockFile guards the fixed-name resources against concurrent runs.
	LockFile string `yaml:"lock_file"`
}

// BuildConfig describes the build step executed before any process is spawned.
type BuildConfig struct {
	Enabled bool     `yaml:"enabled"`
	Command []string `yaml:"command"`
}

// ProgramConfig describes one of the binaries under test.
type ProgramConfig struct {
	Path string   `yaml:"path"`
	Args []string `yaml:"args,omitempty"`
}

// ArtifactsConfig names the files shared with the application under test.
type ArtifactsConfig struct {
	// Commands is the file the scenario's command list is written to.
	Commands string `yaml:"commands"`
	// Output is the primary output file written by the server.
	Output string `yaml:"output"`
	// ClientOutput is the per-client output file name; "{id}" is replaced
	// with the client id.
	ClientOutput string `yaml:"client_output"`
	// ClientOutputGlob matches every per-client output file for cleanup.
	ClientOutputGlob string `yaml:"client_output_glob"`
}

// QueuesConfig describes the message queues the application creates.
type QueuesConfig struct {
	Dir        string `yaml:"dir"`
	NameFormat string `yaml:"name_format"`
	Count      int    `yaml:"count"`
}

// TimingConfig holds every delay and bound used during a run.
type TimingConfig struct {
	ServerWarmup      time.Duration `yaml:"server_warmup"`
	ClientStagger     time.Duration `yaml:"client_stagger"`
	ShutdownGrace     time.Duration `yaml:"shutdown_grace"`
	ServerExitTimeout time.Duration `yaml:"server_exit_timeout"`
	// RunTimeout bounds the whole capture phase; zero disables it.
	RunTimeout time.Duration `yaml:"run_timeout"`
}

// OrderingConfig controls the chronological merge.
type OrderingConfig struct {
	// Rollover lets timestamps that jump back by more than twelve hours
	// (a midnight rollover) sort after the earlier ones.
	Rollover bool `yaml:"rollover"`
}

// VerifyConfig controls the server log suppression rule.
type VerifyConfig struct {
	SuppressMarker string `yaml:"suppress_marker"`
	KeepMarker     string `yaml:"keep_marker"`
}

// Path resolves name relative to the work directory.
func (c HarnessConfig) Path(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.WorkDir, name)
}

// ClientOutputFile returns the per-client output file name for a client id.
func (a ArtifactsConfig) ClientOutputFile(clientID string) string {
	return strings.ReplaceAll(a.ClientOutput, "{id}", clientID)
}

// QueuePaths returns the paths of every message queue the harness owns.
func (q QueuesConfig) QueuePaths() []string {
	paths := make([]string, 0, q.Count)
	for i := 0; i < q.Count; i++ {
		name := strings.ReplaceAll(q.NameFormat, "%d", strconv.Itoa(i))
		paths = append(paths, filepath.Join(q.Dir, name))
	}
	return paths
}
