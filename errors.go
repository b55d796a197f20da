package docconv

import (
	"errors"
	"fmt"
)

// ErrWorkerNotConfigured is returned by NewConverter when no worker
// executable is set explicitly or by any settings source.
var ErrWorkerNotConfigured = errors.New("worker executable not configured")

// Sentinel errors, one per failure Code. A *ConversionError unwraps to the
// sentinel of its code, so callers can use errors.Is.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnsupportedFormat  = errors.New("unsupported format")
	ErrFileNotFound       = errors.New("file not found")
	ErrConversionFailed   = errors.New("conversion failed")
	ErrUnsupportedFeature = errors.New("unsupported feature")
	ErrPasswordRequired   = errors.New("password required")
	ErrInvalidPageRange   = errors.New("invalid page range")
	ErrOutputWriteFailed  = errors.New("output write failed")
	ErrTimeout            = errors.New("conversion timed out")
	ErrWorkerCrashed      = errors.New("worker crashed")
	ErrCanceled           = errors.New("conversion canceled")
	ErrPoolClosed         = errors.New("converter is closed")
)

var sentinels = map[Code]error{
	CodeInvalidInput:       ErrInvalidInput,
	CodeUnsupportedFormat:  ErrUnsupportedFormat,
	CodeFileNotFound:       ErrFileNotFound,
	CodeConversionFailed:   ErrConversionFailed,
	CodeUnsupportedFeature: ErrUnsupportedFeature,
	CodePasswordRequired:   ErrPasswordRequired,
	CodeInvalidPageRange:   ErrInvalidPageRange,
	CodeOutputWriteFailed:  ErrOutputWriteFailed,
	CodeTimeout:            ErrTimeout,
	CodeWorkerCrashed:      ErrWorkerCrashed,
	CodeCanceled:           ErrCanceled,
	CodePoolClosed:         ErrPoolClosed,
}

// ConversionError is a failed Result turned into an error by Result.Err.
type ConversionError struct {
	Code        Code
	Message     string
	Diagnostics []Diagnostic
}

func (e *ConversionError) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the sentinel for e.Code, or ErrConversionFailed for codes
// a worker invented.
func (e *ConversionError) Unwrap() error {
	if err, ok := sentinels[e.Code]; ok {
		return err
	}
	return ErrConversionFailed
}
