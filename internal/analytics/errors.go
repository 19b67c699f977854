package analytics

import (
	"errors"
	"fmt"
)

// ErrMalformedRecord is returned when a raw report item is not a key-value structure.
// Callers count and skip such records instead of aborting the batch.
var ErrMalformedRecord = errors.New("malformed record: not a key-value structure")

// ConfigError reports an invalid caller-supplied parameter (thresholds, rates, windows).
// It is returned before any computation starts.
type ConfigError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

func configErrorf(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsConfigError reports whether err is (or wraps) a ConfigError.
func IsConfigError(err error) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr)
}

func requireNonNegative(field string, v float64) error {
	if v < 0 {
		return configErrorf(field, "must not be negative, got %v", v)
	}
	return nil
}

func requirePercent(field string, v float64) error {
	if v < 0 || v > 100 {
		return configErrorf(field, "must be between 0 and 100, got %v", v)
	}
	return nil
}
