package variconf

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for use with errors.Is.
var (
	// ErrUnsupportedFormat indicates a file extension or format name with
	// no registered decoder.
	ErrUnsupportedFormat = errors.New("unsupported config format")

	// ErrFileNotFound indicates a config file that does not exist in any
	// of the searched locations.
	ErrFileNotFound = errors.New("config file not found")

	// ErrXDGUnsupported indicates that XDG config discovery was requested
	// on a platform without the XDG base directory convention.
	ErrXDGUnsupported = errors.New("XDG config discovery is not supported on this platform")

	// ErrUnresolvedReference indicates a ${...} reference whose target
	// does not exist or has no value.
	ErrUnresolvedReference = errors.New("unresolved reference")

	// ErrInterpolationCycle indicates mutually-referencing ${...} values.
	ErrInterpolationCycle = errors.New("interpolation cycle")
)

// UnknownParameterError occurs in strict mode when a source provides a
// parameter that is not declared in the schema.
type UnknownParameterError struct {
	Path string
}

// Error implements the error interface.
func (e *UnknownParameterError) Error() string {
	return fmt.Sprintf("unknown configuration parameter %q", e.Path)
}

// TypeValidationError occurs when a value cannot be coerced to the type
// the schema declares for its path.
type TypeValidationError struct {
	Path     string
	Value    any
	Expected string
	Cause    error
}

// Error implements the error interface.
func (e *TypeValidationError) Error() string {
	return fmt.Sprintf("invalid value %v for %q: expected %s", e.Value, e.Path, e.Expected)
}

// Unwrap supports errors.Is and errors.As on the underlying cause.
func (e *TypeValidationError) Unwrap() error {
	return e.Cause
}

// DecodeError occurs when a file decoder fails on malformed content.
type DecodeError struct {
	Path   string
	Format string
	Cause  error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("failed to decode %s config: %s", e.Format, e.Cause)
	}
	return fmt.Sprintf("failed to decode %s config file '%s': %s", e.Format, e.Path, e.Cause)
}

// Unwrap supports errors.Is and errors.As on the underlying cause.
func (e *DecodeError) Unwrap() error {
	return e.Cause
}

// MissingValueError occurs when the configuration is materialized while
// one or more required parameters still have no value.
type MissingValueError struct {
	Paths []string
}

// Error implements the error interface.
func (e *MissingValueError) Error() string {
	return fmt.Sprintf("missing required configuration value(s): %s", strings.Join(e.Paths, ", "))
}

// InterpolationError occurs when a ${...} reference cannot be resolved.
type InterpolationError struct {
	Ref   string
	Cause error
}

// Error implements the error interface.
func (e *InterpolationError) Error() string {
	return fmt.Sprintf("cannot resolve ${%s}: %s", e.Ref, e.Cause)
}

// Unwrap supports errors.Is and errors.As on the underlying cause.
func (e *InterpolationError) Unwrap() error {
	return e.Cause
}
