package main

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	docconv "github.com/alnah/go-docconv"
	"github.com/alnah/go-docconv/internal/config"
)

// ---------------------------------------------------------------------------
// Test Infrastructure - Mock converter
// ---------------------------------------------------------------------------

type mockConverter struct {
	workers int

	mu      sync.Mutex
	files   []string
	formats []string

	inFlight, peak atomic.Int32
}

func (m *mockConverter) ConvertFile(_ context.Context, input, _ string, _ *docconv.Options) *docconv.Result {
	m.track()
	m.mu.Lock()
	m.files = append(m.files, input)
	m.mu.Unlock()
	if strings.Contains(input, "bad") {
		return &docconv.Result{Code: docconv.CodeConversionFailed, Message: "boom"}
	}
	return &docconv.Result{Success: true}
}

func (m *mockConverter) ConvertBuffer(_ context.Context, data []byte, format string, _ *docconv.Options) *docconv.Result {
	m.track()
	m.mu.Lock()
	m.formats = append(m.formats, format)
	m.mu.Unlock()
	return &docconv.Result{Success: true, Output: append([]byte("%PDF-mock\n"), data...)}
}

func (m *mockConverter) Workers() int { return m.workers }

func (m *mockConverter) track() {
	n := m.inFlight.Add(1)
	for {
		p := m.peak.Load()
		if n <= p || m.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)
	m.inFlight.Add(-1)
}

// ---------------------------------------------------------------------------
// TestConvertBatch
// ---------------------------------------------------------------------------

func TestConvertBatch_BoundedByWorkers(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	var files []FileToConvert
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		files = append(files, FileToConvert{
			InputPath:  filepath.Join(dir, name+".md"),
			OutputPath: filepath.Join(dir, "out", name+".pdf"),
		})
	}

	conv := &mockConverter{workers: 2}
	results := convertBatch(context.Background(), conv, files, &jobParams{}, newTestEnv().Environment)

	if len(results) != len(files) {
		t.Fatalf("got %d results, want %d", len(results), len(files))
	}
	for i, r := range results {
		if r.InputPath != files[i].InputPath || r.Err != nil {
			t.Errorf("results[%d] = %+v, want success in input order", i, r)
		}
	}
	if peak := conv.peak.Load(); peak > 2 {
		t.Errorf("peak concurrency = %d, want at most 2", peak)
	}
}

func TestConvertBatch_Empty(t *testing.T) {
	t.Parallel()

	if got := convertBatch(context.Background(), &mockConverter{workers: 1}, nil, &jobParams{}, newTestEnv().Environment); got != nil {
		t.Errorf("convertBatch(nil) = %v, want nil", got)
	}
}

func TestConvertOne_BufferMode(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	input := filepath.Join(dir, "notes.MD")
	writeFile(t, input, "# notes")
	f := FileToConvert{InputPath: input, OutputPath: filepath.Join(dir, "pdf", "notes.pdf")}

	conv := &mockConverter{workers: 1}
	res := convertOne(context.Background(), conv, f, &jobParams{buffer: true})
	if res.Err != nil {
		t.Fatalf("convertOne() error = %v", res.Err)
	}
	if got := readOutput(t, f.OutputPath); got != "%PDF-mock\n# notes" {
		t.Errorf("output = %q", got)
	}
	if len(conv.formats) != 1 || conv.formats[0] != "MD" {
		t.Errorf("formats = %v, want extension passed through", conv.formats)
	}
}

func TestConvertOne_ReadError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	f := FileToConvert{InputPath: filepath.Join(dir, "gone.md"), OutputPath: filepath.Join(dir, "gone.pdf")}

	res := convertOne(context.Background(), &mockConverter{workers: 1}, f, &jobParams{format: "markdown"})
	if !errors.Is(res.Err, ErrReadInput) {
		t.Errorf("convertOne() error = %v, want ErrReadInput", res.Err)
	}
}

func TestConvertOne_OutputDirError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	writeFile(t, blocker, "a file, not a directory")
	f := FileToConvert{InputPath: filepath.Join(dir, "a.md"), OutputPath: filepath.Join(blocker, "a.pdf")}

	res := convertOne(context.Background(), &mockConverter{workers: 1}, f, &jobParams{})
	if !errors.Is(res.Err, ErrWriteOutput) {
		t.Errorf("convertOne() error = %v, want ErrWriteOutput", res.Err)
	}
}

// ---------------------------------------------------------------------------
// TestReport
// ---------------------------------------------------------------------------

func TestReport(t *testing.T) {
	t.Parallel()

	results := []ConversionResult{
		{InputPath: "ok.md", OutputPath: "ok.pdf", Result: &docconv.Result{
			Success: true,
			Diagnostics: []docconv.Diagnostic{
				{Severity: docconv.SeverityInfo, Category: docconv.CategoryGeneral, Message: "quiet"},
				{Severity: docconv.SeverityWarning, Category: docconv.CategoryLayout, Message: "table overflows"},
			},
		}},
		{InputPath: "slow.md", Err: docconv.ErrTimeout},
		{InputPath: "gone.md", Err: ErrReadInput},
	}

	env := newTestEnv()
	code := report(env.Environment, results, false)
	if code != ExitWorker {
		t.Errorf("report() = %d, want exit code of the first failure (%d)", code, ExitWorker)
	}

	stderr := env.stderr.String()
	for _, want := range []string{"ok.md: warning/layout: table overflows", "error: slow.md", "--timeout", "converted 1/3"} {
		if !strings.Contains(stderr, want) {
			t.Errorf("stderr missing %q:\n%s", want, stderr)
		}
	}
	if strings.Contains(stderr, "quiet") {
		t.Error("info diagnostic printed without --verbose")
	}
	if env.stdout.String() != "ok.md -> ok.pdf\n" {
		t.Errorf("stdout = %q", env.stdout)
	}
}

// ---------------------------------------------------------------------------
// TestApplyFlags - flags override config only when set
// ---------------------------------------------------------------------------

func TestApplyFlags(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Pool:       config.PoolConfig{Workers: 4, Timeout: time.Minute},
		Worker:     config.WorkerConfig{Path: "/from/config"},
		Conversion: config.ConversionConfig{Quality: 80, PageRange: "1-2"},
	}
	flags, err := parseFlags([]string{"--workers", "2", "--quality", "50", "--font-dir", "/a", "--font-dir", "/b", "in.md"}, newTestEnv().Stderr)
	if err != nil {
		t.Fatalf("parseFlags() error = %v", err)
	}
	applyFlags(cfg, flags)

	if cfg.Pool.Workers != 2 || cfg.Conversion.Quality != 50 {
		t.Errorf("set flags not applied: workers %d quality %d", cfg.Pool.Workers, cfg.Conversion.Quality)
	}
	if cfg.Pool.Timeout != time.Minute || cfg.Worker.Path != "/from/config" || cfg.Conversion.PageRange != "1-2" {
		t.Errorf("unset flags overrode config: %+v", cfg)
	}
	if len(cfg.Worker.FontDirectories) != 2 {
		t.Errorf("FontDirectories = %v, want repeated flag values", cfg.Worker.FontDirectories)
	}

	opts := conversionOptions(cfg, flags)
	if opts.Quality != 50 || opts.PageRange != "1-2" {
		t.Errorf("conversionOptions() = %+v", opts)
	}
}

// ---------------------------------------------------------------------------
// TestParseFlags
// ---------------------------------------------------------------------------

func TestParseFlags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		args    []string
		wantErr bool
		check   func(*testing.T, *cliFlags)
	}{
		{
			name: "short forms",
			args: []string{"-w", "3", "-t", "45s", "-o", "out", "-f", "html", "a", "b"},
			check: func(t *testing.T, f *cliFlags) {
				if f.pool.workers != 3 || f.pool.timeout != 45*time.Second || f.outputDir != "out" || f.conversion.format != "html" {
					t.Errorf("flags = %+v", f)
				}
				if len(f.inputs) != 2 {
					t.Errorf("inputs = %v", f.inputs)
				}
			},
		},
		{
			name: "changed tracks only given flags",
			args: []string{"--tagged", "x"},
			check: func(t *testing.T, f *cliFlags) {
				if !f.changed("tagged") || f.changed("workers") {
					t.Error("changed() does not reflect the command line")
				}
			},
		},
		{name: "bad duration", args: []string{"--timeout", "soon"}, wantErr: true},
		{name: "negative timeout", args: []string{"--timeout", "-1s"}, wantErr: true},
		{name: "negative max conversions", args: []string{"--max-conversions", "-2"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f, err := parseFlags(tt.args, newTestEnv().Stderr)
			if tt.wantErr {
				if !errors.Is(err, ErrUsage) {
					t.Errorf("parseFlags() error = %v, want ErrUsage", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseFlags() error = %v", err)
			}
			tt.check(t, f)
		})
	}
}
