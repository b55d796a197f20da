package docconv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/alnah/go-docconv/internal/diag"
	"github.com/alnah/go-docconv/internal/metrics"
	"github.com/alnah/go-docconv/internal/pool"
	"github.com/alnah/go-docconv/internal/wire"
)

// Converter converts documents to PDF on a pool of worker processes.
// It is safe for concurrent use. Create with NewConverter and Close when done.
type Converter struct {
	pool   *pool.Pool
	parser *diag.Parser
	logger *zap.Logger
}

// NewConverter builds a converter. Options set explicitly win over settings
// sources; by default the environment is read with EnvSource("DOCCONV").
// No worker is started unless WithWarmUp is given.
func NewConverter(opts ...Option) (*Converter, error) {
	cfg := converterConfig{sources: []SettingsSource{EnvSource(DefaultEnvPrefix)}}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}

	settings, err := resolveSettings(Settings{
		WorkerPath:      cfg.workerPath,
		ResourcePath:    cfg.resourcePath,
		FontDirectories: cfg.fontDirectories,
	}, cfg.sources)
	if err != nil {
		return nil, err
	}
	if settings.WorkerPath == "" {
		return nil, ErrWorkerNotConfigured
	}

	patterns := diag.DefaultPatterns()
	if cfg.patternsPath != "" {
		if patterns, err = diag.LoadPatterns(cfg.patternsPath); err != nil {
			return nil, err
		}
	}
	parser, err := diag.NewParser(patterns)
	if err != nil {
		return nil, err
	}

	p, err := pool.New(pool.Config{
		Size:                    pool.ResolvePoolSize(cfg.workers),
		MaxConversionsPerWorker: cfg.maxConversionsPerWorker,
		Timeout:                 cfg.timeout,
		ShutdownTimeout:         cfg.shutdownTimeout,
		Worker: pool.WorkerConfig{
			Path:            settings.WorkerPath,
			Env:             cfg.workerEnv,
			ResourcePath:    settings.ResourcePath,
			FontDirectories: settings.FontDirectories,
			StartTimeout:    cfg.startTimeout,
		},
	}, pool.WithLogger(cfg.logger), pool.WithMetrics(metrics.New(cfg.registerer)))
	if err != nil {
		return nil, err
	}

	c := &Converter{pool: p, parser: parser, logger: cfg.logger}
	if cfg.warmUp {
		p.WarmUp(context.Background())
	}
	return c, nil
}

// ConvertFile converts the document at input and writes the PDF to output.
// The format comes from the input extension. The worker reads and writes the
// files itself, so Result.Output is empty.
func (c *Converter) ConvertFile(ctx context.Context, input, output string, opts *Options) *Result {
	start := time.Now()
	if input == "" || output == "" {
		return failed(CodeInvalidInput, "input and output paths are required")
	}
	format := formatFromPath(input)
	if r := checkFormat(format); r != nil {
		return r
	}
	if r := validateOptions(opts); r != nil {
		return r
	}

	absIn, err := filepath.Abs(input)
	if err != nil {
		return failed(CodeInvalidInput, "resolving %s: %v", input, err)
	}
	absOut, err := filepath.Abs(output)
	if err != nil {
		return failed(CodeInvalidInput, "resolving %s: %v", output, err)
	}
	info, err := os.Stat(absIn)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return failed(CodeFileNotFound, "input not found: %s", input)
	case err != nil:
		return failed(CodeInvalidInput, "checking %s: %v", input, err)
	case info.IsDir():
		return failed(CodeInvalidInput, "input is a directory: %s", input)
	}

	req := pool.Request{
		Message: &wire.ConvertFile{
			InputPath:  absIn,
			OutputPath: absOut,
			Format:     format,
			Options:    wireOptions(opts),
		},
		Timeout: timeoutOf(opts),
	}
	return c.execute(ctx, req, start)
}

// ConvertBuffer converts data and returns the PDF in Result.Output. An empty
// format is detected from the content.
func (c *Converter) ConvertBuffer(ctx context.Context, data []byte, format string, opts *Options) *Result {
	start := time.Now()
	if len(data) == 0 {
		return failed(CodeInvalidInput, "document is empty")
	}
	format = normalizeFormat(format)
	if format == "" {
		var r *Result
		if format, r = sniffFormat(data); r != nil {
			return r
		}
	}
	if r := checkFormat(format); r != nil {
		return r
	}
	if r := validateOptions(opts); r != nil {
		return r
	}

	req := pool.Request{
		Message: &wire.ConvertBuffer{Format: format, Options: wireOptions(opts)},
		Payload: data,
		Timeout: timeoutOf(opts),
	}
	return c.execute(ctx, req, start)
}

// execute dispatches req and folds every outcome into a Result.
func (c *Converter) execute(ctx context.Context, req pool.Request, start time.Time) *Result {
	resp, err := c.pool.Execute(ctx, req)
	if err != nil {
		code := codeForPoolError(err)
		c.logger.Debug("conversion failed", zap.String("code", string(code)), zap.Error(err))
		return &Result{Code: code, Message: err.Error(), Duration: time.Since(start)}
	}

	res := &Result{
		Success:     resp.Result.Success,
		Diagnostics: c.parser.Parse(resp.Stderr),
		Duration:    time.Since(start),
	}
	if res.Success {
		res.Output = resp.Output
	} else {
		res.Code = Code(resp.Result.ErrorCode)
		if res.Code == "" {
			res.Code = CodeConversionFailed
		}
		res.Message = resp.Result.Error
	}

	c.logger.Debug("conversion done",
		zap.String("request_id", resp.Result.ID),
		zap.Int("slot", resp.Slot),
		zap.Int("pid", resp.PID),
		zap.Bool("success", res.Success),
		zap.Int("diagnostics", len(res.Diagnostics)),
		zap.Duration("duration", res.Duration),
	)
	return res
}

// codeForPoolError maps pool failures to codes. Cancellation is checked
// first: a canceled start is the caller's doing, not a crash.
func codeForPoolError(err error) Code {
	switch {
	case errors.Is(err, pool.ErrPoolClosed):
		return CodePoolClosed
	case errors.Is(err, pool.ErrCanceled):
		return CodeCanceled
	case errors.Is(err, pool.ErrStartFailed):
		return CodeWorkerCrashed
	case errors.Is(err, pool.ErrTimeout):
		return CodeTimeout
	default:
		return CodeWorkerCrashed
	}
}

func timeoutOf(o *Options) time.Duration {
	if o == nil {
		return 0
	}
	return o.Timeout
}

// Stats returns a snapshot of every worker slot.
func (c *Converter) Stats() []WorkerStats {
	slots := c.pool.Stats()
	out := make([]WorkerStats, len(slots))
	for i, s := range slots {
		out[i] = WorkerStats{Slot: s.Slot, State: s.State.String(), PID: s.PID, Served: s.Served, Queued: s.Queued}
	}
	return out
}

// Workers returns the number of worker slots.
func (c *Converter) Workers() int {
	return c.pool.Size()
}

// Close stops every worker. Conversions after Close fail with
// CodePoolClosed. Safe to call more than once.
func (c *Converter) Close() error {
	if err := c.pool.Shutdown(context.Background()); err != nil {
		return fmt.Errorf("closing converter: %w", err)
	}
	return nil
}
