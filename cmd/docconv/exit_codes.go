package main

import (
	"errors"
	"os"

	docconv "github.com/alnah/go-docconv"
	"github.com/alnah/go-docconv/internal/config"
	"github.com/alnah/go-docconv/internal/diag"
)

// Exit codes for the docconv CLI.
// Follows Unix conventions: 0=success, 1=general, 2=usage, and custom codes < 126.
const (
	ExitSuccess = 0 // Every input converted
	ExitGeneral = 1 // General/unexpected error
	ExitUsage   = 2 // Invalid flags, config, or validation
	ExitIO      = 3 // File not found, permission denied
	ExitWorker  = 4 // Conversion, timeout or worker failure
)

// exitCodeFor returns the appropriate exit code for an error.
// It uses errors.Is to check wrapped errors, so callers must use fmt.Errorf("%w", err).
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	// Worker-side failures (exit 4)
	if errors.Is(err, docconv.ErrConversionFailed) ||
		errors.Is(err, docconv.ErrUnsupportedFeature) ||
		errors.Is(err, docconv.ErrPasswordRequired) ||
		errors.Is(err, docconv.ErrInvalidPageRange) ||
		errors.Is(err, docconv.ErrTimeout) ||
		errors.Is(err, docconv.ErrWorkerCrashed) {
		return ExitWorker
	}

	// I/O errors (exit 3)
	if errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, os.ErrPermission) ||
		errors.Is(err, docconv.ErrFileNotFound) ||
		errors.Is(err, docconv.ErrOutputWriteFailed) ||
		errors.Is(err, ErrReadInput) ||
		errors.Is(err, ErrWriteOutput) ||
		errors.Is(err, ErrNoInput) {
		return ExitIO
	}

	// Usage/config/validation errors (exit 2)
	if errors.Is(err, ErrUsage) ||
		errors.Is(err, config.ErrConfigNotFound) ||
		errors.Is(err, config.ErrConfigParse) ||
		errors.Is(err, config.ErrConfigTooLarge) ||
		errors.Is(err, config.ErrInvalidValue) ||
		errors.Is(err, config.ErrEmptyConfigName) ||
		errors.Is(err, diag.ErrInvalidRule) ||
		errors.Is(err, diag.ErrPatternsParse) ||
		errors.Is(err, diag.ErrPatternsTooBig) ||
		errors.Is(err, diag.ErrNoPatternsRules) ||
		errors.Is(err, docconv.ErrWorkerNotConfigured) ||
		errors.Is(err, docconv.ErrInvalidInput) ||
		errors.Is(err, docconv.ErrUnsupportedFormat) {
		return ExitUsage
	}

	return ExitGeneral
}
