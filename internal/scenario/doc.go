// Package scenario loads declarative test scenarios for the IPC application.
//
// A scenario names how many clients to start, the commands written to the
// command artifact, and what the run is expected to produce: the primary
// output artifact, per-client output artifacts, and log patterns that must
// appear in the merged execution log.
//
// Files are JSON (the historical format) or YAML; both decode through the
// same json-tagged structures. A directory is walked recursively and every
// *.json, *.yaml and *.yml file is loaded in path order.
//
// Log expectations come in two shapes: the per-client form
//
//	"expected_logs": {"server": ["..."], "clients": {"0": ["..."]}}
//
// and the legacy flat form where every client pattern sits in one "client"
// list. The shape is resolved once at load time into LogExpectations so the
// verifier never has to inspect the raw document.
package scenario
