package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound       = errors.New("resource not found")
	ErrRunSetNotFound = fmt.Errorf("%w: run set", ErrNotFound)
	ErrReportNotFound = fmt.Errorf("%w: report", ErrNotFound)

	// Input errors
	ErrMalformedRecord  = errors.New("malformed run record")
	ErrInsufficientData = errors.New("insufficient data for analysis")
	ErrNoFeatures       = errors.New("no feature columns")
	ErrShapeMismatch    = errors.New("feature vector shape mismatch")

	// Numerical errors
	ErrSingularMatrix = errors.New("singular design matrix")
)

// Error constructors with context
func NewValidationError(field string, reason string) error {
	return fmt.Errorf("validation failed for %s: %s", field, reason)
}

func NewMalformedRecordError(label, reason string) error {
	return fmt.Errorf("%w %q: %s", ErrMalformedRecord, label, reason)
}

func NewInsufficientDataError(phase string, have, need int) error {
	return fmt.Errorf("%w: %s needs %d rows, have %d", ErrInsufficientData, phase, need, have)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsInsufficientData(err error) bool {
	return errors.Is(err, ErrInsufficientData) || errors.Is(err, ErrNoFeatures)
}
