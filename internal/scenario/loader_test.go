package scenario

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile_PerClientShape(t *testing.T) {
	s, err := LoadFile("testdata/basic.json")
	require.NoError(t, err)

	assert.Equal(t, "Create and read", s.Name)
	assert.Equal(t, 2, s.ClientCount)
	assert.Equal(t, []string{"CREATE a", "READ a"}, s.Commands)
	assert.Equal(t, "a:created", s.ExpectedOutput)
	assert.Equal(t, "testdata/basic.json", s.Source)
	assert.Empty(t, s.Warnings)

	logs := s.ExpectedLogs
	assert.True(t, logs.HasServer)
	assert.Equal(t, []string{"client 0 connected"}, logs.Server)
	assert.Equal(t, ClientLogsPerClient, logs.ClientKind)
	assert.Equal(t, []string{"0", "1"}, logs.ClientIDs())
	assert.Empty(t, logs.PerClient["1"])
	assert.True(t, s.HasExpectations())
}

func TestLoadFile_LegacyYAML(t *testing.T) {
	s, err := LoadFile("testdata/legacy.yaml")
	require.NoError(t, err)

	assert.Equal(t, 1, s.ClientCount)
	assert.Equal(t, ClientLogsLegacy, s.ExpectedLogs.ClientKind)
	assert.Equal(t, []string{"registered", "done"}, s.ExpectedLogs.Legacy)
	assert.False(t, s.ExpectedLogs.HasServer)
	assert.Equal(t, map[string]string{"0": "a"}, s.ExpectedOutputClients)
}

func TestParse_Shapes(t *testing.T) {
	tests := []struct {
		name         string
		doc          string
		wantKind     ClientLogsKind
		wantServer   bool
		wantPresent  bool
		wantWarnings int
	}{
		{
			name:     "no expected_logs",
			doc:      `{"input": []}`,
			wantKind: ClientLogsAbsent,
		},
		{
			name:     "empty expected_logs",
			doc:      `{"input": [], "expected_logs": {}}`,
			wantKind: ClientLogsAbsent,
		},
		{
			name:        "server only",
			doc:         `{"input": [], "expected_logs": {"server": []}}`,
			wantKind:    ClientLogsAbsent,
			wantServer:  true,
			wantPresent: true,
		},
		{
			name:        "legacy",
			doc:         `{"input": [], "expected_logs": {"client": ["x"]}}`,
			wantKind:    ClientLogsLegacy,
			wantPresent: true,
		},
		{
			name:         "clients win over legacy",
			doc:          `{"input": [], "expected_logs": {"clients": {"0": ["x"]}, "client": ["y"]}}`,
			wantKind:     ClientLogsPerClient,
			wantPresent:  true,
			wantWarnings: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Parse([]byte(tt.doc))
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, s.ExpectedLogs.ClientKind)
			assert.Equal(t, tt.wantServer, s.ExpectedLogs.HasServer)
			assert.Equal(t, tt.wantPresent, s.ExpectedLogs.Present())
			assert.Len(t, s.Warnings, tt.wantWarnings)
		})
	}
}

func TestParse_Defaults(t *testing.T) {
	s, err := Parse([]byte(`{"input": ["A"]}`))
	require.NoError(t, err)

	assert.Equal(t, DefaultName, s.Name)
	assert.Equal(t, 1, s.ClientCount)
	assert.False(t, s.HasExpectations())
}

func TestParse_EmptyExpectationsAreAbsent(t *testing.T) {
	s, err := Parse([]byte(`{"input": [], "expected_output": "", "expected_output_clients": {}}`))
	require.NoError(t, err)
	assert.False(t, s.HasExpectations())
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{name: "malformed", doc: `{"input": [`, wantErr: "malformed"},
		{name: "missing input", doc: `{"test_name": "x"}`, wantErr: "input is required"},
		{name: "zero clients", doc: `{"input": [], "num_clients": 0}`, wantErr: "num_clients"},
		{
			name:    "bad log client id",
			doc:     `{"input": [], "expected_logs": {"clients": {"a": ["x"]}}}`,
			wantErr: `invalid client id "a"`,
		},
		{
			name:    "negative output client id",
			doc:     `{"input": [], "expected_output_clients": {"-1": "x"}}`,
			wantErr: `invalid client id "-1"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)

			var le *LoadError
			require.True(t, errors.As(err, &le))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParse_OutOfRangeClientWarns(t *testing.T) {
	s, err := Parse([]byte(`{"input": [], "num_clients": 1, "expected_output_clients": {"3": "x"}}`))
	require.NoError(t, err)
	require.Len(t, s.Warnings, 1)
	assert.Contains(t, s.Warnings[0], "client 3 is never started")
}

func TestLoad_Directory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.json"), []byte(`{"test_name": "b", "input": []}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "a.yml"), []byte("test_name: a\ninput: []\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("not a scenario"), 0644))

	scenarios, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, Names(scenarios))
}

func TestLoad_DirectoryStopsAtInvalidFile(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"num_clients": 2}`), 0644))

	_, err := Load(dir)
	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, bad, le.Path)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestFilter(t *testing.T) {
	scenarios := []Scenario{{Name: "a"}, {Name: "b"}, {Name: "a"}}

	assert.Len(t, Filter(scenarios, ""), 3)
	assert.Len(t, Filter(scenarios, "a"), 2)
	assert.Empty(t, Filter(scenarios, "c"))
}

func TestClientOutputIDs_NumericOrder(t *testing.T) {
	s := Scenario{ExpectedOutputClients: map[string]string{"10": "", "2": "", "0": ""}}
	assert.Equal(t, []string{"0", "2", "10"}, s.ClientOutputIDs())
}

func TestIsClientID(t *testing.T) {
	for id, want := range map[string]bool{"0": true, "12": true, "": false, "-1": false, "+1": false, "a": false, "1.0": false} {
		assert.Equal(t, want, IsClientID(id), id)
	}
}

func TestParse_JSONEscapes(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{name: "escaped slash", doc: `{"input": ["CREATE a\/b"]}`, want: "CREATE a/b"},
		{name: "surrogate pair", doc: `{"input": ["emoji \uD83D\uDE00"]}`, want: "emoji 😀"},
		{name: "lower case surrogate pair", doc: `{"input": ["emoji \ud83d\ude00"]}`, want: "emoji 😀"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Parse([]byte(tt.doc))
			require.NoError(t, err)
			assert.Equal(t, []string{tt.want}, s.Commands)
		})
	}
}

func TestLoadFile_FormatByExtension(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "escapes.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"test_name": "a\/b", "input": ["PRINT \uD83D\uDE00"]}`), 0644))
	s, err := LoadFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "a/b", s.Name)
	assert.Equal(t, []string{"PRINT 😀"}, s.Commands)

	yamlPath := filepath.Join(dir, "plain.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("test_name: y\ninput:\n  - CREATE x\n"), 0644))
	s, err = LoadFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "y", s.Name)

	badJSON := filepath.Join(dir, "flow.json")
	require.NoError(t, os.WriteFile(badJSON, []byte("test_name: not json\ninput: []\n"), 0644))
	_, err = LoadFile(badJSON)
	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, badJSON, le.Path)
}

func TestFormatOf(t *testing.T) {
	assert.Equal(t, FormatJSON, FormatOf("a/b.json"))
	assert.Equal(t, FormatJSON, FormatOf("B.JSON"))
	assert.Equal(t, FormatYAML, FormatOf("a.yaml"))
	assert.Equal(t, FormatYAML, FormatOf("a.yml"))
}
