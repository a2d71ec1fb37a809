package config

import "time"

const (
	// DefaultConfigFileName is looked up in the working directory when no
	// --config flag is given.
	DefaultConfigFileName = "ipcrunner.yaml"

	DefaultServerWarmup      = 1 * time.Second
	DefaultClientStagger     = 200 * time.Millisecond
	DefaultShutdownGrace     = 1 * time.Second
	DefaultServerExitTimeout = 2 * time.Second
	DefaultRunTimeout        = 5 * time.Minute
)

// GetDefaultConfig returns the configuration matching the course assignment
// layout: make-built binaries in ./build and artifacts in the working directory.
func GetDefaultConfig() HarnessConfig {
	return HarnessConfig{
		WorkDir: ".",
		Build: BuildConfig{
			Enabled: true,
			Command: []string{"make"},
		},
		Server: ProgramConfig{Path: "./build/server"},
		Client: ProgramConfig{Path: "./build/client"},
		Artifacts: ArtifactsConfig{
			Commands:         "input.txt",
			Output:           "output.txt",
			ClientOutput:     "output_client{id}.txt",
			ClientOutputGlob: "output_client*.txt",
		},
		Queues: QueuesConfig{
			Dir:        "/dev/mqueue",
			NameFormat: "client_queue_%d",
			Count:      10,
		},
		Timing: TimingConfig{
			ServerWarmup:      DefaultServerWarmup,
			ClientStagger:     DefaultClientStagger,
			ShutdownGrace:     DefaultShutdownGrace,
			ServerExitTimeout: DefaultServerExitTimeout,
			RunTimeout:        DefaultRunTimeout,
		},
		Verify: VerifyConfig{
			SuppressMarker: "PRINT_DOC READ",
			KeepMarker:     "DROPPED",
		},
		LockFile: ".ipcrunner.lock",
	}
}
