package scenario

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"ipcrunner/pkg/logging"

	"sigs.k8s.io/yaml"
)

// Load reads the scenario at path. A directory is walked recursively and
// yields every scenario file under it in lexical path order. The first
// invalid file aborts loading.
func Load(path string) ([]Scenario, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &LoadError{Path: path, Reason: "file not found", Err: err}
		}
		return nil, &LoadError{Path: path, Reason: "cannot access", Err: err}
	}

	if !info.IsDir() {
		s, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		return []Scenario{s}, nil
	}

	files, err := Files(path)
	if err != nil {
		return nil, err
	}

	var scenarios []Scenario
	for _, f := range files {
		s, err := LoadFile(f)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	if len(scenarios) == 0 {
		return nil, &LoadError{Path: path, Reason: "no scenario files found"}
	}

	logging.Debug("ScenarioLoader", "Loaded %d scenarios from %s", len(scenarios), path)
	return scenarios, nil
}

// Files lists the scenario files under dir in lexical path order.
func Files(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && IsScenarioFile(p) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, &LoadError{Path: dir, Reason: "cannot walk directory", Err: err}
	}
	return files, nil
}

// LoadFile reads and validates a single scenario file.
func LoadFile(path string) (Scenario, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Scenario{}, &LoadError{Path: path, Reason: "file not found", Err: err}
		}
		return Scenario{}, &LoadError{Path: path, Reason: "cannot read file", Err: err}
	}

	s, err := ParseFormat(content, FormatOf(path))
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.Path = path
			return Scenario{}, le
		}
		return Scenario{}, &LoadError{Path: path, Reason: "invalid scenario", Err: err}
	}
	s.Source = path

	for _, w := range s.Warnings {
		logging.Warn("ScenarioLoader", "%s: %s", path, w)
	}
	return s, nil
}

// Format is the encoding of a scenario document.
type Format int

const (
	// FormatJSON documents are decoded as strict JSON.
	FormatJSON Format = iota
	// FormatYAML documents go through the YAML parser.
	FormatYAML
)

// FormatOf picks the format from the file extension; only .json is JSON.
func FormatOf(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// Parse decodes and validates a scenario document held in memory. Content
// that is valid JSON is decoded as JSON, anything else as YAML.
func Parse(content []byte) (Scenario, error) {
	if json.Valid(content) {
		return ParseFormat(content, FormatJSON)
	}
	return ParseFormat(content, FormatYAML)
}

// ParseFormat decodes content in the given format and validates it. JSON
// bypasses the YAML parser, which rejects escapes such as \/ and surrogate
// pairs that JSON allows.
func ParseFormat(content []byte, format Format) (Scenario, error) {
	var raw rawScenario
	var err error
	if format == FormatJSON {
		err = json.Unmarshal(content, &raw)
	} else {
		err = yaml.Unmarshal(content, &raw)
	}
	if err != nil {
		return Scenario{}, &LoadError{Reason: "malformed scenario document", Err: err}
	}
	return resolve(raw)
}

// resolve validates the raw document and turns it into a Scenario.
func resolve(raw rawScenario) (Scenario, error) {
	s := Scenario{
		Name:           raw.TestName,
		Description:    raw.Description,
		ClientCount:    1,
		ExpectedOutput: raw.ExpectedOutput,
	}
	if s.Name == "" {
		s.Name = DefaultName
	}

	if raw.NumClients != nil {
		if *raw.NumClients < 1 {
			return Scenario{}, &LoadError{Reason: fmt.Sprintf("num_clients must be at least 1, got %d", *raw.NumClients)}
		}
		s.ClientCount = *raw.NumClients
	}

	if raw.Input == nil {
		return Scenario{}, &LoadError{Reason: "input is required"}
	}
	s.Commands = append([]string{}, *raw.Input...)

	if len(raw.ExpectedOutputClients) > 0 {
		s.ExpectedOutputClients = make(map[string]string, len(raw.ExpectedOutputClients))
		for id, want := range raw.ExpectedOutputClients {
			if !IsClientID(id) {
				return Scenario{}, &LoadError{Reason: fmt.Sprintf("expected_output_clients: invalid client id %q", id)}
			}
			s.warnOutOfRange("expected_output_clients", id)
			s.ExpectedOutputClients[id] = want
		}
	}

	if raw.ExpectedLogs != nil {
		logs, err := s.resolveLogs(*raw.ExpectedLogs)
		if err != nil {
			return Scenario{}, err
		}
		s.ExpectedLogs = logs
	}

	return s, nil
}

func (s *Scenario) resolveLogs(raw rawLogs) (LogExpectations, error) {
	var logs LogExpectations

	if raw.Server != nil {
		logs.HasServer = true
		logs.Server = append([]string{}, *raw.Server...)
	}

	switch {
	case raw.Clients != nil:
		if raw.Client != nil {
			s.Warnings = append(s.Warnings, "expected_logs has both clients and client; the legacy client list is ignored")
		}
		logs.ClientKind = ClientLogsPerClient
		logs.PerClient = make(map[string][]string, len(*raw.Clients))
		for id, patterns := range *raw.Clients {
			if !IsClientID(id) {
				return LogExpectations{}, &LoadError{Reason: fmt.Sprintf("expected_logs.clients: invalid client id %q", id)}
			}
			s.warnOutOfRange("expected_logs.clients", id)
			logs.PerClient[id] = append([]string{}, patterns...)
		}
	case raw.Client != nil:
		logs.ClientKind = ClientLogsLegacy
		logs.Legacy = append([]string{}, *raw.Client...)
	}

	return logs, nil
}

func (s *Scenario) warnOutOfRange(field, id string) {
	n, _ := strconv.Atoi(id)
	if n >= s.ClientCount {
		s.Warnings = append(s.Warnings,
			fmt.Sprintf("%s: client %s is never started (num_clients is %d)", field, id, s.ClientCount))
	}
}

// IsClientID reports whether id is a non-negative decimal integer.
func IsClientID(id string) bool {
	if id == "" {
		return false
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return false
		}
	}
	_, err := strconv.Atoi(id)
	return err == nil
}

// IsScenarioFile checks if a file has a scenario extension.
func IsScenarioFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}

// Filter returns the scenarios whose name equals name. An empty name keeps all.
func Filter(scenarios []Scenario, name string) []Scenario {
	if name == "" {
		return scenarios
	}
	var filtered []Scenario
	for _, s := range scenarios {
		if s.Name == name {
			filtered = append(filtered, s)
		}
	}
	return filtered
}

// Names returns all scenario names in load order.
func Names(scenarios []Scenario) []string {
	names := make([]string, 0, len(scenarios))
	for _, s := range scenarios {
		names = append(names, s.Name)
	}
	return names
}
