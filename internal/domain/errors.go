package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInputValidation        = errors.New("input validation")
	ErrFeatureUnavailable     = errors.New("feature unavailable")
	ErrEntityNotFound         = errors.New("entity not found")
	ErrParentMissing          = fmt.Errorf("parent missing: %w", ErrEntityNotFound)
	ErrEntityAlreadyExists    = errors.New("entity already exists")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrUnsafeRemoval          = errors.New("unsafe removal")
	ErrCannotModifyLinked     = errors.New("cannot modify linked entity")
	ErrExternalFetch          = errors.New("external fetch error")
	ErrExternalParse          = errors.New("external parse error")
	ErrGenLogClosed           = errors.New("log entry is closed")
)

// ValidationError reports a malformed value at the domain boundary.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInputValidation }

// Invalid builds a ValidationError for field.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// FeatureUnavailableError names the disabled feature.
type FeatureUnavailableError struct {
	Feature string
}

func (e *FeatureUnavailableError) Error() string {
	return fmt.Sprintf("feature %s is not available in this workspace", e.Feature)
}

func (e *FeatureUnavailableError) Unwrap() error { return ErrFeatureUnavailable }

// ErrorKind returns a short, stable name for the error's taxonomy bucket.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInputValidation):
		return "input-validation"
	case errors.Is(err, ErrFeatureUnavailable):
		return "feature-unavailable"
	case errors.Is(err, ErrParentMissing):
		return "parent-missing"
	case errors.Is(err, ErrEntityNotFound):
		return "entity-not-found"
	case errors.Is(err, ErrEntityAlreadyExists):
		return "entity-already-exists"
	case errors.Is(err, ErrConcurrentModification):
		return "concurrent-modification"
	case errors.Is(err, ErrUnsafeRemoval):
		return "unsafe-removal"
	case errors.Is(err, ErrCannotModifyLinked):
		return "cannot-modify-linked"
	case errors.Is(err, ErrExternalFetch):
		return "external-fetch"
	case errors.Is(err, ErrExternalParse):
		return "external-parse"
	case errors.Is(err, ErrGenLogClosed):
		return "log-closed"
	default:
		return "internal"
	}
}
