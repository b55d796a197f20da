package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	docconv "github.com/alnah/go-docconv"
	"github.com/alnah/go-docconv/internal/config"
	"github.com/alnah/go-docconv/internal/hints"
)

// File permission constants.
const (
	dirPermissions  = 0o750 // rwxr-x---: owner full, group read+execute
	filePermissions = 0o644 // rw-r--r--: owner read+write, others read
)

// Sentinel errors for batch operations.
var (
	ErrReadInput   = errors.New("failed to read input file")
	ErrWriteOutput = errors.New("failed to write PDF file")
)

// CLIConverter is the part of docconv.Converter the CLI drives.
type CLIConverter interface {
	ConvertFile(ctx context.Context, input, output string, opts *docconv.Options) *docconv.Result
	ConvertBuffer(ctx context.Context, data []byte, format string, opts *docconv.Options) *docconv.Result
	Workers() int
}

// Compile-time interface implementation check.
var _ CLIConverter = (*docconv.Converter)(nil)

// jobParams are shared by every conversion of a run.
type jobParams struct {
	options *docconv.Options
	buffer  bool
	format  string // forces buffer mode when set
}

// ConversionResult holds the outcome of a single conversion.
type ConversionResult struct {
	InputPath  string
	OutputPath string
	Result     *docconv.Result // nil when the CLI failed before converting
	Err        error
	Duration   time.Duration
}

// convert loads the configuration, builds the converter and runs the batch.
// A returned error aborts before any conversion; per-file failures are
// reported and folded into the exit code.
func convert(ctx context.Context, flags *cliFlags, env *Environment, logger *zap.Logger) (int, error) {
	cfg := &config.Config{}
	if flags.config != "" {
		var err error
		if cfg, err = config.LoadConfig(flags.config); err != nil {
			return 0, err
		}
	}
	applyFlags(cfg, flags)
	if err := cfg.Validate(); err != nil {
		return 0, err
	}

	files, err := discoverAll(flags.inputs, cfg.Output.DefaultDir)
	if err != nil {
		return 0, err
	}

	conv, err := docconv.NewConverter(converterOptions(cfg, logger)...)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := conv.Close(); err != nil {
			logger.Warn("closing converter", zap.Error(err))
		}
	}()
	logger.Debug("converting",
		zap.Int("files", len(files)),
		zap.Int("workers", conv.Workers()),
	)

	params := &jobParams{
		options: conversionOptions(cfg, flags),
		buffer:  flags.conversion.buffer,
		format:  flags.conversion.format,
	}
	results := convertBatch(ctx, conv, files, params, env)
	for _, s := range conv.Stats() {
		logger.Debug("worker",
			zap.Int("slot", s.Slot),
			zap.String("state", s.State),
			zap.Int("pid", s.PID),
			zap.Int("served", s.Served),
		)
	}
	return report(env, results, flags.verbose), nil
}

// applyFlags overrides cfg with every flag set on the command line.
func applyFlags(cfg *config.Config, f *cliFlags) {
	changed := f.changed
	if changed == nil {
		changed = func(string) bool { return false }
	}

	if changed("workers") {
		cfg.Pool.Workers = f.pool.workers
	}
	if changed("timeout") {
		cfg.Pool.Timeout = f.pool.timeout
	}
	if changed("max-conversions") {
		cfg.Pool.MaxConversionsPerWorker = f.pool.maxConversions
	}
	if changed("warm-up") {
		cfg.Pool.WarmUp = f.pool.warmUp
	}
	if changed("worker") {
		cfg.Worker.Path = f.worker.path
	}
	if changed("resource") {
		cfg.Worker.ResourcePath = f.worker.resource
	}
	if changed("font-dir") {
		cfg.Worker.FontDirectories = f.worker.fontDirs
	}
	if changed("patterns") {
		cfg.Diagnostics.Patterns = f.worker.patterns
	}
	if changed("output-dir") {
		cfg.Output.DefaultDir = f.outputDir
	}
	if changed("pdf-version") {
		cfg.Conversion.PDFVersion = f.conversion.pdfVersion
	}
	if changed("quality") {
		cfg.Conversion.Quality = f.conversion.quality
	}
	if changed("dpi") {
		cfg.Conversion.DPI = f.conversion.dpi
	}
	if changed("tagged") {
		cfg.Conversion.Tagged = f.conversion.tagged
	}
	if changed("pages") {
		cfg.Conversion.PageRange = f.conversion.pages
	}
}

func converterOptions(cfg *config.Config, logger *zap.Logger) []docconv.Option {
	opts := []docconv.Option{
		docconv.WithWorkers(cfg.Pool.Workers),
		docconv.WithMaxConversionsPerWorker(cfg.Pool.MaxConversionsPerWorker),
		docconv.WithTimeout(cfg.Pool.Timeout),
		docconv.WithStartTimeout(cfg.Pool.StartTimeout),
		docconv.WithShutdownTimeout(cfg.Pool.ShutdownTimeout),
		docconv.WithWarmUp(cfg.Pool.WarmUp),
		docconv.WithWorkerPath(cfg.Worker.Path),
		docconv.WithResourcePath(cfg.Worker.ResourcePath),
		docconv.WithFontDirectories(cfg.Worker.FontDirectories...),
		docconv.WithWorkerEnv(cfg.Worker.Env...),
		docconv.WithLogger(logger),
	}
	if cfg.Diagnostics.Patterns != "" {
		opts = append(opts, docconv.WithDiagnosticPatterns(cfg.Diagnostics.Patterns))
	}
	return opts
}

func conversionOptions(cfg *config.Config, f *cliFlags) *docconv.Options {
	c := cfg.Conversion
	return &docconv.Options{
		PDFVersion: c.PDFVersion,
		Quality:    c.Quality,
		DPI:        c.DPI,
		Tagged:     c.Tagged,
		PageRange:  c.PageRange,
		Password:   f.conversion.password,
	}
}

// convertBatch converts files concurrently, at most one in flight per worker.
// A failed file never stops the others.
func convertBatch(ctx context.Context, conv CLIConverter, files []FileToConvert, p *jobParams, env *Environment) []ConversionResult {
	if len(files) == 0 {
		return nil
	}

	results := make([]ConversionResult, len(files))
	var g errgroup.Group
	g.SetLimit(max(conv.Workers(), 1))
	for i, f := range files {
		g.Go(func() error {
			start := env.Now()
			results[i] = convertOne(ctx, conv, f, p)
			results[i].Duration = env.Now().Sub(start)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func convertOne(ctx context.Context, conv CLIConverter, f FileToConvert, p *jobParams) ConversionResult {
	res := ConversionResult{InputPath: f.InputPath, OutputPath: f.OutputPath}

	if err := os.MkdirAll(filepath.Dir(f.OutputPath), dirPermissions); err != nil {
		res.Err = fmt.Errorf("%w: %w", ErrWriteOutput, err)
		return res
	}

	if !p.buffer && p.format == "" {
		res.Result = conv.ConvertFile(ctx, f.InputPath, f.OutputPath, p.options)
		res.Err = res.Result.Err()
		return res
	}

	data, err := os.ReadFile(f.InputPath) // #nosec G304 -- path is user-provided
	if err != nil {
		res.Err = fmt.Errorf("%w: %w", ErrReadInput, err)
		return res
	}
	format := p.format
	if format == "" {
		format = strings.TrimPrefix(filepath.Ext(f.InputPath), ".")
	}

	res.Result = conv.ConvertBuffer(ctx, data, format, p.options)
	if res.Err = res.Result.Err(); res.Err != nil {
		return res
	}
	if err := os.WriteFile(f.OutputPath, res.Result.Output, filePermissions); err != nil { // #nosec G306 -- PDF output is meant to be shared
		res.Err = fmt.Errorf("%w: %w", ErrWriteOutput, err)
	}
	return res
}

// report prints one line per file, diagnostics included, and returns the
// exit code of the first failure in input order.
func report(env *Environment, results []ConversionResult, verbose bool) int {
	code := ExitSuccess
	failed := 0
	for _, r := range results {
		if r.Result != nil {
			for _, d := range r.Result.Diagnostics {
				if d.Severity < docconv.SeverityWarning && !verbose {
					continue
				}
				fmt.Fprintf(env.Stderr, "%s: %s\n", r.InputPath, d)
			}
		}

		if r.Err != nil {
			failed++
			fmt.Fprintf(env.Stderr, "error: %s: %v%s\n", r.InputPath, r.Err, hintFor(r.Err))
			if code == ExitSuccess {
				code = exitCodeFor(r.Err)
			}
			continue
		}

		if verbose {
			fmt.Fprintf(env.Stdout, "%s -> %s (%s)\n", r.InputPath, r.OutputPath, r.Duration.Round(time.Millisecond))
		} else {
			fmt.Fprintf(env.Stdout, "%s -> %s\n", r.InputPath, r.OutputPath)
		}
	}

	if len(results) > 1 {
		fmt.Fprintf(env.Stderr, "converted %d/%d\n", len(results)-failed, len(results))
	}
	return code
}

// hintFor returns an actionable hint for err, or "".
func hintFor(err error) string {
	switch {
	case errors.Is(err, docconv.ErrWorkerNotConfigured):
		return hints.ForWorkerNotConfigured()
	case errors.Is(err, docconv.ErrTimeout):
		return hints.ForTimeout()
	case errors.Is(err, docconv.ErrWorkerCrashed):
		return hints.ForWorkerCrash()
	case errors.Is(err, docconv.ErrUnsupportedFormat):
		return hints.ForUnsupportedFormat(docconv.SupportedFormats)
	case errors.Is(err, config.ErrConfigNotFound):
		return hints.ForConfigNotFound(err.Error())
	case errors.Is(err, ErrWriteOutput):
		return hints.ForOutputDirectory()
	}
	return ""
}
