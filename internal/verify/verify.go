// Package verify checks the outcome of a run against a scenario's
// expectations.
//
// Three families of checks exist: log patterns searched in the merged
// execution log, the primary output artifact, and per-client output
// artifacts. Every requested check runs regardless of the others; the
// verdict is the conjunction of all of them.
package verify

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"ipcrunner/internal/chrono"
	"ipcrunner/internal/scenario"

	"github.com/pmezard/go-difflib/difflib"
)

// CheckKind identifies a check group.
type CheckKind string

const (
	KindServerLog       CheckKind = "server-log"
	KindClientLog       CheckKind = "client-log"
	KindLegacyClientLog CheckKind = "legacy-client-log"
	KindOutput          CheckKind = "output"
	KindClientOutput    CheckKind = "client-output"
)

// CheckResult is the outcome of one check group.
type CheckResult struct {
	Kind     CheckKind `json:"kind"`
	ClientID string    `json:"clientId,omitempty"`
	Passed   bool      `json:"passed"`

	// Log checks.
	Expected int      `json:"expected,omitempty"`
	Matched  int      `json:"matched,omitempty"`
	Missing  []string `json:"missing,omitempty"`

	// Artifact checks.
	File   string `json:"file,omitempty"`
	Want   string `json:"want,omitempty"`
	Got    string `json:"got,omitempty"`
	Diff   string `json:"diff,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Name is a short human readable name for the check.
func (c CheckResult) Name() string {
	switch c.Kind {
	case KindServerLog:
		return "server log"
	case KindClientLog:
		return fmt.Sprintf("client %s log", c.ClientID)
	case KindLegacyClientLog:
		return "client log"
	case KindOutput, KindClientOutput:
		return filepath.Base(c.File)
	default:
		return string(c.Kind)
	}
}

// Result collects every check of one run in execution order.
type Result struct {
	Checks []CheckResult `json:"checks"`
}

// Passed is true when every check passed. No checks is a pass.
func (r Result) Passed() bool {
	for _, c := range r.Checks {
		if !c.Passed {
			return false
		}
	}
	return true
}

// Failed returns the failing checks.
func (r Result) Failed() []CheckResult {
	var failed []CheckResult
	for _, c := range r.Checks {
		if !c.Passed {
			failed = append(failed, c)
		}
	}
	return failed
}

// Options locate the artifacts and configure the server suppression rule.
type Options struct {
	WorkDir string
	// OutputFile is the primary artifact, relative to WorkDir.
	OutputFile string
	// ClientOutputFile names the artifact of a client id, relative to WorkDir.
	ClientOutputFile func(id string) string

	// Server lines containing SuppressMarker are left out of the server pool
	// unless they also contain KeepMarker. An empty SuppressMarker disables
	// the rule.
	SuppressMarker string
	KeepMarker     string
}

// Verifier runs the checks of a scenario.
type Verifier struct {
	opts Options
}

// New creates a Verifier.
func New(opts Options) *Verifier {
	if opts.ClientOutputFile == nil {
		opts.ClientOutputFile = func(id string) string { return "output_client" + id + ".txt" }
	}
	return &Verifier{opts: opts}
}

// Verify runs every check requested by s: log groups first, then the
// primary artifact, then the per-client artifacts.
func (v *Verifier) Verify(s scenario.Scenario, log chrono.MergedLog) Result {
	var res Result
	res.Checks = append(res.Checks, v.VerifyLogs(s.ExpectedLogs, log)...)
	if s.ExpectedOutput != "" {
		res.Checks = append(res.Checks, v.VerifyOutput(s.ExpectedOutput))
	}
	for _, id := range s.ClientOutputIDs() {
		res.Checks = append(res.Checks, v.VerifyClientOutput(id, s.ExpectedOutputClients[id]))
	}
	return res
}

// VerifyLogs checks the log pattern groups against the timestamped part of
// the merged log.
func (v *Verifier) VerifyLogs(expect scenario.LogExpectations, log chrono.MergedLog) []CheckResult {
	var checks []CheckResult

	if expect.HasServer {
		pool := log.Messages(func(l chrono.TimestampedLine) bool {
			return l.Label == chrono.ServerLabel && !v.suppressed(l.Message())
		})
		checks = append(checks, patternCheck(KindServerLog, "", expect.Server, pool))
	}

	switch expect.ClientKind {
	case scenario.ClientLogsPerClient:
		for _, id := range expect.ClientIDs() {
			label := chrono.ClientLabelPrefix + id
			pool := log.Messages(func(l chrono.TimestampedLine) bool { return l.Label == label })
			checks = append(checks, patternCheck(KindClientLog, id, expect.PerClient[id], pool))
		}
	case scenario.ClientLogsLegacy:
		pool := log.Messages(func(l chrono.TimestampedLine) bool { return chrono.IsClientLabel(l.Label) })
		checks = append(checks, patternCheck(KindLegacyClientLog, "", expect.Legacy, pool))
	case scenario.ClientLogsAbsent:
	}

	return checks
}

func (v *Verifier) suppressed(msg string) bool {
	if v.opts.SuppressMarker == "" || !strings.Contains(msg, v.opts.SuppressMarker) {
		return false
	}
	return v.opts.KeepMarker == "" || !strings.Contains(msg, v.opts.KeepMarker)
}

func patternCheck(kind CheckKind, id string, patterns, pool []string) CheckResult {
	missing := MissingPatterns(patterns, pool)
	return CheckResult{
		Kind:     kind,
		ClientID: id,
		Passed:   len(missing) == 0,
		Expected: len(patterns),
		Matched:  len(patterns) - len(missing),
		Missing:  missing,
	}
}

// MissingPatterns returns, in order, the patterns that no line equals or
// contains. A line may satisfy any number of patterns.
func MissingPatterns(patterns, lines []string) []string {
	var missing []string
	for _, p := range patterns {
		if !matchesAny(p, lines) {
			missing = append(missing, p)
		}
	}
	return missing
}

func matchesAny(pattern string, lines []string) bool {
	for _, l := range lines {
		if l == pattern || strings.Contains(l, pattern) {
			return true
		}
	}
	return false
}

// VerifyOutput compares the primary artifact with want.
func (v *Verifier) VerifyOutput(want string) CheckResult {
	return v.artifactCheck(KindOutput, "", v.opts.OutputFile, want)
}

// VerifyClientOutput compares the artifact of client id with want.
func (v *Verifier) VerifyClientOutput(id, want string) CheckResult {
	return v.artifactCheck(KindClientOutput, id, v.opts.ClientOutputFile(id), want)
}

func (v *Verifier) artifactCheck(kind CheckKind, id, name, want string) CheckResult {
	check := CheckResult{Kind: kind, ClientID: id, File: name, Want: want}

	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(v.opts.WorkDir, name)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			check.Reason = fmt.Sprintf("%s not found", name)
		} else {
			check.Reason = fmt.Sprintf("cannot read %s: %v", name, err)
		}
		return check
	}

	check.Got = strings.TrimSpace(string(data))
	check.Passed = check.Got == want
	if !check.Passed {
		check.Diff = Diff(want, check.Got)
	}
	return check
}

// Diff returns a unified diff between the expected and actual artifact text.
func Diff(want, got string) string {
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(want + "\n"),
		B:        difflib.SplitLines(got + "\n"),
		FromFile: "expected",
		ToFile:   "actual",
		Context:  3,
	})
	if err != nil {
		return ""
	}
	return text
}
