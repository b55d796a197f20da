// Package workertest provides a scriptable fake engine and lets a test binary
// act as a worker process, so pool and façade tests exercise real processes,
// pipes and kills without a browser.
//
// Wire it from TestMain:
//
//	func TestMain(m *testing.M) {
//	    workertest.RunIfHelper()
//	    os.Exit(m.Run())
//	}
//
// and spawn os.Args[0] with Env(ModeNormal) appended to the environment.
package workertest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/alnah/go-docconv/internal/wire"
	"github.com/alnah/go-docconv/internal/worker"
)

// EnvMode selects helper behaviour when set in the environment.
const EnvMode = "DOCCONV_WORKERTEST_MODE"

// Helper process modes.
const (
	ModeNormal   = "normal"
	ModeFailInit = "fail-init"
	ModeHangInit = "hang-init"
	ModeSilent   = "silent" // exits right after spawn
)

// Formats understood by the fake engine. Any other format echoes the document.
// The same scripts can be selected with a first document line of the form
// "!<format> [argument]", which keeps the declared format realistic.
const (
	FormatHang  = "hang"  // never answers
	FormatCrash = "crash" // exits the process mid-request
	FormatFail  = "fail"  // reports password_required
	FormatSlow  = "slow"  // document is a duration to sleep before answering
)

// OutputPrefix starts every fake PDF.
const OutputPrefix = "%PDF-fake\n"

// StderrPrefix marks document lines the fake engine copies to stderr.
const StderrPrefix = "stderr:"

// Env returns the environment entry that turns the test binary into a worker.
func Env(mode string) []string {
	return []string{EnvMode + "=" + mode}
}

// Path returns the executable to spawn as a fake worker.
func Path() string {
	if exe, err := os.Executable(); err == nil {
		return exe
	}
	return os.Args[0]
}

// RunIfHelper serves the protocol on stdio and exits when EnvMode is set.
// It returns immediately otherwise.
func RunIfHelper() {
	mode := os.Getenv(EnvMode)
	if mode == "" {
		return
	}

	switch mode {
	case ModeSilent:
		os.Exit(0)
	case ModeHangInit:
		time.Sleep(time.Hour)
	}

	eng := &Engine{FailInit: mode == ModeFailInit}
	if err := worker.Serve(context.Background(), os.Stdin, os.Stdout, os.Stderr, eng); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	os.Exit(0)
}

// Engine is a scriptable worker.Engine driven by the request format.
type Engine struct {
	FailInit bool

	diag        io.Writer
	fonts       []string
	initialized bool
}

// Init records params, or fails when FailInit is set.
func (e *Engine) Init(_ context.Context, params worker.InitParams) error {
	if e.FailInit {
		return fmt.Errorf("engine resources unavailable at %q", params.ResourcePath)
	}
	e.diag = params.Diagnostics
	if e.diag == nil {
		e.diag = io.Discard
	}
	e.fonts = params.FontDirectories
	e.initialized = true
	return nil
}

// Convert runs the script selected by format.
func (e *Engine) Convert(_ context.Context, doc []byte, format string, opts wire.Options) ([]byte, error) {
	if !e.initialized {
		return nil, worker.Errorf(worker.CodeProtocol, "engine not initialized")
	}

	script, arg := format, string(doc)
	if first, rest, _ := strings.Cut(string(doc), "\n"); strings.HasPrefix(first, "!") {
		script, arg, _ = strings.Cut(strings.TrimPrefix(first, "!"), " ")
		doc = []byte(rest)
	}

	switch script {
	case FormatHang:
		time.Sleep(time.Hour)
	case FormatCrash:
		fmt.Fprintln(e.diag, "error: simulated engine crash")
		os.Exit(3)
	case FormatFail:
		return nil, worker.Errorf(worker.CodePasswordRequired, "document is encrypted")
	case FormatSlow:
		d, err := time.ParseDuration(strings.TrimSpace(arg))
		if err != nil {
			return nil, worker.Errorf(worker.CodeConversionFailed, "bad duration %q", arg)
		}
		time.Sleep(d)
	}

	for line := range strings.Lines(string(doc)) {
		if rest, ok := strings.CutPrefix(line, StderrPrefix); ok {
			fmt.Fprint(e.diag, rest)
		}
	}
	if opts.Tagged {
		fmt.Fprintln(e.diag, "info: tagged output is simulated")
	}

	var out bytes.Buffer
	out.WriteString(OutputPrefix)
	out.Write(doc)
	return out.Bytes(), nil
}

// ConvertFile reads input, runs Convert and writes output.
func (e *Engine) ConvertFile(ctx context.Context, input, output, format string, opts wire.Options) error {
	doc, err := os.ReadFile(input) // #nosec G304 -- test helper
	if err != nil {
		return err
	}
	pdf, err := e.Convert(ctx, doc, format, opts)
	if err != nil {
		return err
	}
	if err := os.WriteFile(output, pdf, 0o600); err != nil {
		return worker.Errorf(worker.CodeOutputWriteFailed, "writing %s: %v", output, err)
	}
	return nil
}

// Close is a no-op.
func (e *Engine) Close() error { return nil }

// FontDirectories returns the directories received at Init.
func (e *Engine) FontDirectories() []string { return e.fonts }
