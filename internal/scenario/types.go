package scenario

import (
	"fmt"
	"sort"
	"strconv"
)

// DefaultName is used for scenarios that do not set test_name.
const DefaultName = "Unnamed Test"

// Scenario is one loaded, validated test case. It is not modified after
// Load returns.
type Scenario struct {
	Name        string
	Description string
	ClientCount int
	Commands    []string

	// ExpectedOutput is the expected primary artifact; empty means no check.
	ExpectedOutput string
	// ExpectedOutputClients maps client id to the expected per-client artifact.
	ExpectedOutputClients map[string]string
	ExpectedLogs          LogExpectations

	// Source is the file the scenario was loaded from.
	Source string
	// Warnings lists non-fatal problems found while loading.
	Warnings []string
}

// HasExpectations reports whether any check is requested. A scenario
// without expectations passes vacuously.
func (s Scenario) HasExpectations() bool {
	return s.ExpectedOutput != "" || len(s.ExpectedOutputClients) > 0 || s.ExpectedLogs.Present()
}

// ClientOutputIDs returns the ids with an artifact expectation in numeric order.
func (s Scenario) ClientOutputIDs() []string {
	return sortedIDs(s.ExpectedOutputClients)
}

// ClientLogsKind discriminates the client part of LogExpectations.
type ClientLogsKind int

const (
	// ClientLogsAbsent means no client log checks.
	ClientLogsAbsent ClientLogsKind = iota
	// ClientLogsPerClient means patterns are keyed by client id.
	ClientLogsPerClient
	// ClientLogsLegacy means one flat list checked against every client line.
	ClientLogsLegacy
)

func (k ClientLogsKind) String() string {
	switch k {
	case ClientLogsAbsent:
		return "absent"
	case ClientLogsPerClient:
		return "per-client"
	case ClientLogsLegacy:
		return "legacy"
	default:
		return fmt.Sprintf("ClientLogsKind(%d)", int(k))
	}
}

// LogExpectations is the resolved form of expected_logs.
type LogExpectations struct {
	// HasServer is true when a server group was given, even with no patterns.
	HasServer bool
	Server    []string

	ClientKind ClientLogsKind
	// PerClient is set when ClientKind is ClientLogsPerClient.
	PerClient map[string][]string
	// Legacy is set when ClientKind is ClientLogsLegacy.
	Legacy []string
}

// Present reports whether any log group is expected.
func (l LogExpectations) Present() bool {
	return l.HasServer || l.ClientKind != ClientLogsAbsent
}

// ClientIDs returns the per-client ids in numeric order.
func (l LogExpectations) ClientIDs() []string {
	return sortedIDs(l.PerClient)
}

// PatternCount is the total number of log patterns across all groups.
func (l LogExpectations) PatternCount() int {
	n := len(l.Server) + len(l.Legacy)
	for _, p := range l.PerClient {
		n += len(p)
	}
	return n
}

func sortedIDs[V any](m map[string]V) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, errA := strconv.Atoi(ids[i])
		b, errB := strconv.Atoi(ids[j])
		if errA == nil && errB == nil && a != b {
			return a < b
		}
		return ids[i] < ids[j]
	})
	return ids
}

// rawScenario mirrors the scenario document. Pointers distinguish a missing
// key from an empty value where that matters.
type rawScenario struct {
	TestName              string            `json:"test_name"`
	Description           string            `json:"description"`
	NumClients            *int              `json:"num_clients"`
	Input                 *[]string         `json:"input"`
	ExpectedOutput        string            `json:"expected_output"`
	ExpectedOutputClients map[string]string `json:"expected_output_clients"`
	ExpectedLogs          *rawLogs          `json:"expected_logs"`
}

type rawLogs struct {
	Server  *[]string            `json:"server"`
	Clients *map[string][]string `json:"clients"`
	Client  *[]string            `json:"client"`
}
