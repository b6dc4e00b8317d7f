package projectcfg

import (
	"errors"
	"fmt"
)

// ErrConfigNotFound is returned when no manifest or env file exists at or
// above the requested directory.
var ErrConfigNotFound = errors.New("projectcfg: config not found")

// SchemaError reports a manifest that does not have the expected shape.
type SchemaError struct {
	// Path is the manifest file.
	Path string
	// Field is the offending key, dotted from the document root.
	Field string
	// Err is the underlying error.
	Err error
}

// Error returns a formatted error message
func (e *SchemaError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("projectcfg: %s: %v", e.Path, e.Err)
	}

	return fmt.Sprintf("projectcfg: %s: %s: %v", e.Path, e.Field, e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *SchemaError) Unwrap() error {
	return e.Err
}

func notFound(what, dir string) error {
	return fmt.Errorf("%w: no %s at or above %s", ErrConfigNotFound, what, dir)
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrConfigNotFound)
}
