package mutation

import "fmt"

// ValidationError reports a required field missing before any network call is
// attempted. It never touches the cache.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s %s", e.Field, e.Reason)
}

// CompositeError reports a multi-step create that failed partway. The
// remaining steps were not invoked and no optimistic state was committed.
type CompositeError struct {
	Step string
	Err  error
}

func (e *CompositeError) Error() string {
	return fmt.Sprintf("create aborted at %s: %v", e.Step, e.Err)
}

func (e *CompositeError) Unwrap() error { return e.Err }
