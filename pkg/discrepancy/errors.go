package discrepancy

import "fmt"

// ConfigError reports an invalid configuration at construction time: an
// unrecognized metric type, a p-norm parameter below 1, a non-positive
// depth. Construction fails fast; no partially-configured instance is ever
// returned.
type ConfigError struct {
	Detail string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "discrepancy: " + e.Detail
}

func configErrorf(format string, args ...interface{}) *ConfigError {
	return &ConfigError{Detail: fmt.Sprintf(format, args...)}
}

// MissingDependencyError reports that an external capability the instance
// needs is absent. Raised eagerly at construction (or at the first call
// that needs an optional capability), never deferred past the point where
// the capability is required.
type MissingDependencyError struct {
	Capability string
	Hint       string
}

// Error implements the error interface.
func (e *MissingDependencyError) Error() string {
	msg := "discrepancy: missing capability " + e.Capability
	if e.Hint != "" {
		msg += ": " + e.Hint
	}
	return msg
}
