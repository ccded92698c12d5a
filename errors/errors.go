// Package errors provides error handling for autojson.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging (printed with %+v)
//   - Error wrapping and context
//   - Hints shown to the user next to fatal errors
//
// Usage:
//
//	if err := loadPackages(); err != nil {
//	    return errors.Wrap(err, "failed to load packages")
//	}
//
//	// Mark an error with one of the sentinels below so callers can classify it
//	return errors.Mark(errors.Newf("marker %s not found", name), errors.ErrMarkerNotFound)
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
	Mark         = crdb.Mark
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	UnwrapAll      = crdb.UnwrapAll
	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails
)

// Sentinels for the fatal error classes of a generation run.
// Use these with errors.Is() and attach them with errors.Mark() or errors.Wrap().
var (
	// ErrUsage indicates missing or malformed command line arguments
	ErrUsage = New("usage error")

	// ErrToolchainNotFound indicates the Go toolchain could not be located by any strategy
	ErrToolchainNotFound = New("go toolchain not found")

	// ErrMarkerNotFound indicates the marker type is not part of the loaded program
	ErrMarkerNotFound = New("marker type not found")

	// ErrConfigParse indicates a generator config file exists but cannot be parsed
	ErrConfigParse = New("config parse failure")

	// ErrInvalidConfig indicates a parsed config violates an invariant
	ErrInvalidConfig = New("invalid config")
)

// IsUsageError checks if an error is or wraps ErrUsage
func IsUsageError(err error) bool {
	return err != nil && Is(err, ErrUsage)
}

// IsMarkerNotFoundError checks if an error is or wraps ErrMarkerNotFound
func IsMarkerNotFoundError(err error) bool {
	return err != nil && Is(err, ErrMarkerNotFound)
}

// NewUsageError creates a usage error with a formatted message
func NewUsageError(format string, args ...interface{}) error {
	return Mark(Newf(format, args...), ErrUsage)
}

// NewConfigParseError wraps a decoding failure for the named config file
func NewConfigParseError(err error, path string) error {
	return Mark(Wrapf(err, "failed to parse %s", path), ErrConfigParse)
}

// NewInvalidConfigError creates an invalid-config error with a formatted message
func NewInvalidConfigError(format string, args ...interface{}) error {
	return Mark(Newf(format, args...), ErrInvalidConfig)
}
