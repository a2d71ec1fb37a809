package scenario

import "fmt"

// LoadError reports a scenario file that cannot be used. It is fatal for the
// whole invocation: no run is attempted.
type LoadError struct {
	Path   string
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("scenario %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("scenario %s: %s", e.Path, e.Reason)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
