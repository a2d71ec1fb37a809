package verify

import (
	"os"
	"path/filepath"
	"testing"

	"ipcrunner/internal/chrono"
	"ipcrunner/internal/scenario"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newVerifier(dir string) *Verifier {
	return New(Options{
		WorkDir:          dir,
		OutputFile:       "output.txt",
		ClientOutputFile: func(id string) string { return "output_client" + id + ".txt" },
		SuppressMarker:   "PRINT_DOC READ",
		KeepMarker:       "DROPPED",
	})
}

func mergedLog(lines ...[2]string) chrono.MergedLog {
	events := make([]chrono.Event, 0, len(lines))
	for i, l := range lines {
		events = append(events, chrono.Event{Seq: i, Label: l[0], Line: l[1]})
	}
	return chrono.Merge(events, chrono.Options{})
}

func TestMissingPatterns(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		lines    []string
		want     []string
	}{
		{name: "substring", patterns: []string{"connected"}, lines: []string{"client 0 connected"}},
		{name: "exact", patterns: []string{"ok"}, lines: []string{"ok"}},
		{name: "one line satisfies many", patterns: []string{"a", "b", "ab"}, lines: []string{"xaby"}},
		{name: "missing in order", patterns: []string{"z", "a", "y"}, lines: []string{"a"}, want: []string{"z", "y"}},
		{name: "empty pool", patterns: []string{"x"}, want: []string{"x"}},
		{name: "no patterns", lines: []string{"x"}},
		{name: "empty pattern matches any line", patterns: []string{""}, lines: []string{"x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MissingPatterns(tt.patterns, tt.lines))
		})
	}
}

func TestVerifyLogs_ServerSuppression(t *testing.T) {
	v := newVerifier(t.TempDir())
	log := mergedLog(
		[2]string{"SERVER", "10:00:00.000 PRINT_DOC READ doc1"},
		[2]string{"SERVER", "10:00:00.001 PRINT_DOC READ doc2 DROPPED"},
	)

	checks := v.VerifyLogs(scenario.LogExpectations{
		HasServer: true,
		Server:    []string{"PRINT_DOC READ doc1", "doc2 DROPPED"},
	}, log)

	require.Len(t, checks, 1)
	assert.False(t, checks[0].Passed)
	assert.Equal(t, []string{"PRINT_DOC READ doc1"}, checks[0].Missing)
	assert.Equal(t, 2, checks[0].Expected)
	assert.Equal(t, 1, checks[0].Matched)
}

func TestVerifyLogs_UsesOnlyTimestampedLines(t *testing.T) {
	v := newVerifier(t.TempDir())
	log := mergedLog(
		[2]string{"SERVER", "server started"},
		[2]string{"SERVER", "10:00:00.000 client 0 connected"},
	)

	checks := v.VerifyLogs(scenario.LogExpectations{HasServer: true, Server: []string{"started"}}, log)
	require.Len(t, checks, 1)
	assert.Equal(t, []string{"started"}, checks[0].Missing)
}

func TestVerifyLogs_PerClientGroupsAreIndependent(t *testing.T) {
	v := newVerifier(t.TempDir())
	log := mergedLog(
		[2]string{"SERVER", "10:00:00.000 client 0 connected"},
		[2]string{"CLIENT0", "10:00:00.001 registered"},
		[2]string{"CLIENT1", "10:00:00.002 hello"},
	)

	checks := v.VerifyLogs(scenario.LogExpectations{
		HasServer:  true,
		Server:     []string{"client 0 connected"},
		ClientKind: scenario.ClientLogsPerClient,
		PerClient: map[string][]string{
			"0": {"registered"},
			"1": {"registered"},
		},
	}, log)

	require.Len(t, checks, 3)
	assert.True(t, checks[0].Passed)
	assert.Equal(t, KindClientLog, checks[1].Kind)
	assert.Equal(t, "0", checks[1].ClientID)
	assert.True(t, checks[1].Passed)
	assert.Equal(t, "1", checks[2].ClientID)
	assert.False(t, checks[2].Passed)
	assert.Equal(t, []string{"registered"}, checks[2].Missing)
}

func TestVerifyLogs_LegacyPoolsAllClients(t *testing.T) {
	v := newVerifier(t.TempDir())
	log := mergedLog(
		[2]string{"CLIENT0", "10:00:00.001 alpha"},
		[2]string{"CLIENT1", "10:00:00.002 beta"},
		[2]string{"SERVER", "10:00:00.003 gamma"},
	)

	checks := v.VerifyLogs(scenario.LogExpectations{
		ClientKind: scenario.ClientLogsLegacy,
		Legacy:     []string{"alpha", "beta", "gamma"},
	}, log)

	require.Len(t, checks, 1)
	assert.Equal(t, KindLegacyClientLog, checks[0].Kind)
	assert.Equal(t, []string{"gamma"}, checks[0].Missing)
}

func TestVerifyOutput(t *testing.T) {
	dir := t.TempDir()
	v := newVerifier(dir)

	missing := v.VerifyOutput("a:created")
	assert.False(t, missing.Passed)
	assert.Equal(t, "output.txt not found", missing.Reason)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "output.txt"), []byte("\n  a:created \n\n"), 0644))
	ok := v.VerifyOutput("a:created")
	assert.True(t, ok.Passed)
	assert.Empty(t, ok.Diff)

	bad := v.VerifyOutput("b:created")
	assert.False(t, bad.Passed)
	assert.Equal(t, "a:created", bad.Got)
	assert.Contains(t, bad.Diff, "-b:created")
	assert.Contains(t, bad.Diff, "+a:created")
}

func TestVerify_VacuousPass(t *testing.T) {
	v := newVerifier(t.TempDir())
	res := v.Verify(scenario.Scenario{Name: "empty"}, chrono.MergedLog{})
	assert.Empty(t, res.Checks)
	assert.True(t, res.Passed())
}

func TestVerify_AllChecksRunAndClientsWithoutExpectationsAreIgnored(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "output.txt"), []byte("wrong"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "output_client0.txt"), []byte("zero\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "output_client1.txt"), []byte("garbage"), 0644))

	v := newVerifier(dir)
	s := scenario.Scenario{
		ClientCount:           3,
		ExpectedOutput:        "right",
		ExpectedOutputClients: map[string]string{"0": "zero", "2": "two"},
		ExpectedLogs:          scenario.LogExpectations{HasServer: true, Server: []string{"x"}},
	}

	res := v.Verify(s, mergedLog([2]string{"SERVER", "10:00:00.000 x"}))
	require.Len(t, res.Checks, 4)

	assert.Equal(t, KindServerLog, res.Checks[0].Kind)
	assert.True(t, res.Checks[0].Passed)
	assert.Equal(t, KindOutput, res.Checks[1].Kind)
	assert.False(t, res.Checks[1].Passed)
	assert.Equal(t, "output_client0.txt", res.Checks[2].Name())
	assert.True(t, res.Checks[2].Passed)
	assert.Equal(t, "output_client2.txt not found", res.Checks[3].Reason)

	assert.False(t, res.Passed())
	assert.Len(t, res.Failed(), 2)
}

func TestCheckResult_Name(t *testing.T) {
	assert.Equal(t, "server log", CheckResult{Kind: KindServerLog}.Name())
	assert.Equal(t, "client 2 log", CheckResult{Kind: KindClientLog, ClientID: "2"}.Name())
	assert.Equal(t, "output.txt", CheckResult{Kind: KindOutput, File: "output.txt"}.Name())
}
