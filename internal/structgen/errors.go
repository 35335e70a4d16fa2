package structgen

import (
	"errors"
	"fmt"
)

// MissingVariableError indicates a prompt template referenced a placeholder
// that the supplied variables did not cover. This is a programmer error and
// is never worth retrying.
type MissingVariableError struct {
	Variable string
}

func (e *MissingVariableError) Error() string {
	return fmt.Sprintf("prompt template references undefined variable %q", e.Variable)
}

// SchemaError indicates the model responded, but its output could not be
// parsed into the expected structure. Callers decide whether to substitute
// a default value or abort.
type SchemaError struct {
	// Raw is the model output that failed to parse, truncated for logging.
	Raw string
	Err error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("model output did not match expected schema: %v", e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// InvocationError indicates the model call itself failed (transport, auth,
// rate limit). Candidate for an external retry policy; none is applied here.
type InvocationError struct {
	Err error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("model invocation failed: %v", e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }

// IsSchemaError reports whether err is or wraps a SchemaError.
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}

// IsInvocationError reports whether err is or wraps an InvocationError.
func IsInvocationError(err error) bool {
	var ie *InvocationError
	return errors.As(err, &ie)
}
