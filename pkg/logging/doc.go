// Package logging provides the structured, subsystem-tagged logger used by
// every ipcrunner component.
//
// It is a thin layer over log/slog. Each entry carries a subsystem attribute
// so harness diagnostics (supervisor, capture, verifier ...) can be filtered
// independently of the report that the runner prints to stdout.
//
// # Usage
//
//	logging.Init(logging.Options{Level: logging.LevelDebug, Format: logging.FormatText})
//
//	logging.Info("Supervisor", "Started %s (pid %d)", label, pid)
//	logging.Warn("Capture", "Server did not exit within %s", timeout)
//	logging.Error("Runner", err, "Build failed")
//
// Text output is colored when the destination is a terminal. JSON output is
// meant for CI systems that ingest structured logs.
//
// Diagnostics go to stderr by default. Captured process output and the
// verification report never go through this package.
package logging
