package docconv

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// converterConfig holds everything Option values set.
type converterConfig struct {
	workers                 int
	maxConversionsPerWorker int
	timeout                 time.Duration
	startTimeout            time.Duration
	shutdownTimeout         time.Duration
	warmUp                  bool

	workerPath      string
	resourcePath    string
	fontDirectories []string
	workerEnv       []string

	logger       *zap.Logger
	registerer   prometheus.Registerer
	patternsPath string
	sources      []SettingsSource
}

// Option configures a Converter.
type Option func(*converterConfig)

// WithWorkers sets the number of worker processes. Zero or less picks
// GOMAXPROCS/2 bounded to [1, 8].
func WithWorkers(n int) Option {
	return func(c *converterConfig) { c.workers = n }
}

// WithMaxConversionsPerWorker recycles a worker after n conversions.
// Zero disables recycling.
func WithMaxConversionsPerWorker(n int) Option {
	return func(c *converterConfig) { c.maxConversionsPerWorker = n }
}

// WithTimeout sets the default per-conversion timeout. An expired
// conversion kills its worker.
func WithTimeout(d time.Duration) Option {
	return func(c *converterConfig) { c.timeout = d }
}

// WithStartTimeout bounds worker spawn plus handshake.
func WithStartTimeout(d time.Duration) Option {
	return func(c *converterConfig) { c.startTimeout = d }
}

// WithShutdownTimeout bounds Close.
func WithShutdownTimeout(d time.Duration) Option {
	return func(c *converterConfig) { c.shutdownTimeout = d }
}

// WithWarmUp starts every worker during NewConverter instead of on first use.
// Workers that fail to start are retried on first use.
func WithWarmUp(enabled bool) Option {
	return func(c *converterConfig) { c.warmUp = enabled }
}

// WithWorkerPath sets the worker executable.
func WithWorkerPath(path string) Option {
	return func(c *converterConfig) { c.workerPath = path }
}

// WithResourcePath sets the engine resource path sent to workers at init.
func WithResourcePath(path string) Option {
	return func(c *converterConfig) { c.resourcePath = path }
}

// WithFontDirectories sets the font directories registered by workers.
func WithFontDirectories(dirs ...string) Option {
	return func(c *converterConfig) { c.fontDirectories = dirs }
}

// WithWorkerEnv appends KEY=VALUE entries to the worker environment.
func WithWorkerEnv(env ...string) Option {
	return func(c *converterConfig) { c.workerEnv = append(c.workerEnv, env...) }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(c *converterConfig) { c.logger = l }
}

// WithMetricsRegisterer registers the pool metrics with reg.
func WithMetricsRegisterer(reg prometheus.Registerer) Option {
	return func(c *converterConfig) { c.registerer = reg }
}

// WithDiagnosticPatterns replaces the built-in stderr pattern table with the
// YAML file at path.
func WithDiagnosticPatterns(path string) Option {
	return func(c *converterConfig) { c.patternsPath = path }
}

// WithSettingsSource replaces the default EnvSource("DOCCONV"). Sources are
// consulted in order and only fill settings still empty.
func WithSettingsSource(sources ...SettingsSource) Option {
	return func(c *converterConfig) { c.sources = sources }
}
