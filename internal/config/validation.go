package config

import (
	"fmt"
	"strings"
	"time"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   val,
		Message: message,
	})
}

// Validate checks a harness configuration for values the runner cannot work with.
// All problems are reported together.
func Validate(c HarnessConfig) error {
	var errs ValidationErrors

	if strings.TrimSpace(c.WorkDir) == "" {
		errs.Add("workdir", "is required")
	}
	if c.Build.Enabled && len(c.Build.Command) == 0 {
		errs.Add("build.command", "must not be empty when build is enabled")
	}
	if c.Server.Path == "" {
		errs.Add("server.path", "is required")
	}
	if c.Client.Path == "" {
		errs.Add("client.path", "is required")
	}

	if c.Artifacts.Commands == "" {
		errs.Add("artifacts.commands", "is required")
	}
	if c.Artifacts.Output == "" {
		errs.Add("artifacts.output", "is required")
	}
	if !strings.Contains(c.Artifacts.ClientOutput, "{id}") {
		errs.Add("artifacts.client_output", "must contain the {id} placeholder", c.Artifacts.ClientOutput)
	}

	if c.Queues.Count < 0 {
		errs.Add("queues.count", "must not be negative", c.Queues.Count)
	}
	if c.Queues.Count > 0 && !strings.Contains(c.Queues.NameFormat, "%d") {
		errs.Add("queues.name_format", "must contain %d", c.Queues.NameFormat)
	}

	durations := []struct {
		field string
		value time.Duration
	}{
		{"timing.server_warmup", c.Timing.ServerWarmup},
		{"timing.client_stagger", c.Timing.ClientStagger},
		{"timing.shutdown_grace", c.Timing.ShutdownGrace},
		{"timing.run_timeout", c.Timing.RunTimeout},
	}
	for _, d := range durations {
		if d.value < 0 {
			errs.Add(d.field, "must not be negative", d.value)
		}
	}
	if c.Timing.ServerExitTimeout <= 0 {
		errs.Add("timing.server_exit_timeout", "must be positive", c.Timing.ServerExitTimeout)
	}

	if c.LockFile == "" {
		errs.Add("lock_file", "is required")
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}
