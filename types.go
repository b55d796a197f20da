package docconv

import (
	"time"

	"github.com/alnah/go-docconv/internal/diag"
)

// Code classifies a failed conversion. Worker-reported codes pass through
// unchanged, so the set is open; the constants below are the known ones.
type Code string

// Failure codes.
const (
	// Rejected before reaching a worker.
	CodeInvalidInput      Code = "invalid_input"
	CodeUnsupportedFormat Code = "unsupported_format"
	CodeFileNotFound      Code = "file_not_found"

	// Reported by the worker: the conversion ran and failed.
	CodeConversionFailed   Code = "conversion_failed"
	CodeUnsupportedFeature Code = "unsupported_feature"
	CodePasswordRequired   Code = "password_required"
	CodeInvalidPageRange   Code = "invalid_page_range"
	CodeOutputWriteFailed  Code = "output_write_failed"

	// The worker did not answer.
	CodeTimeout       Code = "timeout"
	CodeWorkerCrashed Code = "worker_crashed"
	CodeCanceled      Code = "canceled"
	CodePoolClosed    Code = "pool_closed"
)

// Diagnostic is one recognised line of worker stderr.
type Diagnostic = diag.Diagnostic

// Severity ranks a Diagnostic.
type Severity = diag.Severity

// Category groups diagnostics by subject.
type Category = diag.Category

// Diagnostic severities and categories.
const (
	SeverityInfo    = diag.SeverityInfo
	SeverityWarning = diag.SeverityWarning
	SeverityError   = diag.SeverityError

	CategoryGeneral = diag.CategoryGeneral
	CategoryFont    = diag.CategoryFont
	CategoryLayout  = diag.CategoryLayout
)

// Options tunes one conversion. The zero value means engine defaults.
type Options struct {
	PDFVersion string // one of 1.4, 1.5, 1.6, 1.7, 2.0
	Quality    int    // image quality, 1-100
	DPI        int    // 1-2400
	Tagged     bool   // request a tagged (accessible) PDF
	PageRange  string // e.g. "1-3, 5"
	Password   string // open password for encrypted input
	// Timeout overrides the converter timeout for this request.
	Timeout time.Duration
}

// Result is the outcome of a conversion. Failures are values, not errors:
// check Success, or call Err to opt in to an error.
type Result struct {
	Success     bool
	Code        Code   // empty on success
	Message     string // human-readable failure description
	Output      []byte // PDF bytes, buffer conversions only
	Diagnostics []Diagnostic
	Duration    time.Duration
}

// Err returns nil on success and a *ConversionError otherwise.
func (r *Result) Err() error {
	if r.Success {
		return nil
	}
	return &ConversionError{Code: r.Code, Message: r.Message, Diagnostics: r.Diagnostics}
}

// Warnings returns the diagnostics of at least warning severity.
func (r *Result) Warnings() []Diagnostic {
	var out []Diagnostic
	for _, d := range r.Diagnostics {
		if d.Severity >= SeverityWarning {
			out = append(out, d)
		}
	}
	return out
}

// WorkerStats describes one pool slot.
type WorkerStats struct {
	Slot   int
	State  string
	PID    int
	Served int
	Queued int
}
