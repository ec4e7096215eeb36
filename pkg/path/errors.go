package path

import "fmt"

// ShapeError reports a violation of the shape contract for grids or path
// tensors: a non-increasing time grid, mismatched channel counts, a batch
// dimension where none is allowed, and so on. Shape checks run before any
// numeric work and are never silently coerced.
type ShapeError struct {
	Op     string // operation that rejected the input, e.g. "l2.Compute"
	Detail string
}

// Error implements the error interface.
func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Detail)
}

// Errorf builds a ShapeError with a formatted detail message.
func Errorf(op, format string, args ...interface{}) *ShapeError {
	return &ShapeError{Op: op, Detail: fmt.Sprintf(format, args...)}
}
