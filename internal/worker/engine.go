package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/alnah/go-docconv/internal/wire"
)

// Engine is the document engine hosted by a worker process. Serve calls it
// from a single goroutine, one request at a time, so implementations need not
// be reentrant.
type Engine interface {
	Init(ctx context.Context, params InitParams) error
	ConvertFile(ctx context.Context, input, output, format string, opts wire.Options) error
	Convert(ctx context.Context, doc []byte, format string, opts wire.Options) ([]byte, error)
	Close() error
}

// InitParams configures an Engine once per process.
type InitParams struct {
	ResourcePath    string
	FontDirectories []string
	// Diagnostics receives free-text lines (font substitutions, layout
	// warnings) for the caller to parse. It is the worker's stderr.
	Diagnostics io.Writer
}

// Code classifies a failed conversion reported in a result frame.
type Code string

// Error codes reported by workers.
const (
	CodeConversionFailed   Code = "conversion_failed"
	CodeUnsupportedFormat  Code = "unsupported_format"
	CodeUnsupportedFeature Code = "unsupported_feature"
	CodePasswordRequired   Code = "password_required"
	CodeInvalidPageRange   Code = "invalid_page_range"
	CodeFileNotFound       Code = "file_not_found"
	CodeOutputWriteFailed  Code = "output_write_failed"
	CodeProtocol           Code = "protocol_error"
)

// Error is an engine failure carrying a wire error code.
type Error struct {
	Code Code
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// Errorf builds an *Error with a formatted message.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Err: fmt.Errorf(format, args...)}
}

// CodeOf picks the wire code for err.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	if errors.Is(err, os.ErrNotExist) {
		return CodeFileNotFound
	}
	return CodeConversionFailed
}
