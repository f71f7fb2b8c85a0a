package fetch

import "fmt"

// TransportError wraps a failure of one fetch so it can cross the task
// boundary without aborting sibling tasks.
type TransportError struct {
	ID    Identifier
	Cause error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("fetch %s: %s", e.ID, e.Detail())
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TransportError) Unwrap() error {
	return e.Cause
}

// Detail returns the message of the underlying cause, falling back to the
// cause's type name when the message is empty.
func (e *TransportError) Detail() string {
	if e.Cause == nil {
		return "unknown error"
	}
	if msg := e.Cause.Error(); msg != "" {
		return msg
	}
	return fmt.Sprintf("%T", e.Cause)
}

// SaveError reports that a fetched payload could not be persisted.
type SaveError struct {
	Name string
	Err  error
}

// Error implements the error interface.
func (e *SaveError) Error() string {
	return fmt.Sprintf("save %s: %v", e.Name, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *SaveError) Unwrap() error {
	return e.Err
}
