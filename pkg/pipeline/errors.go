package pipeline

import "fmt"

// FatalPipelineError stops the run: an evaluation failure while skip_errors
// is disabled, or an internal invariant violation. In-flight work is always
// drained before the error is returned to the caller.
type FatalPipelineError struct {
	Reason string
	Err    error
}

func (e *FatalPipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("pipeline fatal (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("pipeline fatal (%s)", e.Reason)
}

func (e *FatalPipelineError) Unwrap() error { return e.Err }
