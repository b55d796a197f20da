// Package config loads the YAML configuration file of the docconv CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alnah/go-docconv/internal/yamlutil"
)

// Sentinel errors for config operations.
var (
	ErrConfigNotFound  = errors.New("config file not found")
	ErrEmptyConfigName = errors.New("config name cannot be empty")
	ErrConfigParse     = errors.New("failed to parse config")
	ErrConfigTooLarge  = errors.New("config file too large")
	ErrInvalidValue    = errors.New("invalid config value")
)

// MaxConfigSize bounds the config file read into memory.
const MaxConfigSize = 1 << 20

// appDir is the directory searched under the user config dir.
const appDir = "docconv"

// Config holds the CLI configuration. Zero values mean "use the default".
type Config struct {
	Pool        PoolConfig        `yaml:"pool"`
	Worker      WorkerConfig      `yaml:"worker"`
	Output      OutputConfig      `yaml:"output"`
	Conversion  ConversionConfig  `yaml:"conversion"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
}

// PoolConfig sizes and times the worker pool.
type PoolConfig struct {
	Workers                 int           `yaml:"workers"`                 // 0 = GOMAXPROCS/2 in [1,8]
	MaxConversionsPerWorker int           `yaml:"maxConversionsPerWorker"` // 0 = never recycle
	Timeout                 time.Duration `yaml:"timeout"`
	StartTimeout            time.Duration `yaml:"startTimeout"`
	ShutdownTimeout         time.Duration `yaml:"shutdownTimeout"`
	WarmUp                  bool          `yaml:"warmUp"`
}

// WorkerConfig locates the worker binary and what it needs at init.
type WorkerConfig struct {
	Path            string   `yaml:"path"`
	ResourcePath    string   `yaml:"resourcePath"`
	FontDirectories []string `yaml:"fontDirectories"`
	Env             []string `yaml:"env"` // KEY=VALUE entries
}

// OutputConfig defines output destination options.
type OutputConfig struct {
	DefaultDir string `yaml:"defaultDir"` // empty = next to the source
}

// ConversionConfig holds default conversion options.
type ConversionConfig struct {
	PDFVersion string `yaml:"pdfVersion"`
	Quality    int    `yaml:"quality"`
	DPI        int    `yaml:"dpi"`
	Tagged     bool   `yaml:"tagged"`
	PageRange  string `yaml:"pageRange"`
}

// DiagnosticsConfig points at an alternative stderr pattern table.
type DiagnosticsConfig struct {
	Patterns string `yaml:"patterns"`
}

// Validate checks ranges and shapes. Called by LoadConfig, but available to
// callers that build a Config by hand.
func (c *Config) Validate() error {
	p := c.Pool
	switch {
	case p.Workers < 0:
		return fmt.Errorf("%w: pool.workers must not be negative, got %d", ErrInvalidValue, p.Workers)
	case p.MaxConversionsPerWorker < 0:
		return fmt.Errorf("%w: pool.maxConversionsPerWorker must not be negative, got %d", ErrInvalidValue, p.MaxConversionsPerWorker)
	case p.Timeout < 0:
		return fmt.Errorf("%w: pool.timeout must not be negative", ErrInvalidValue)
	case p.StartTimeout < 0:
		return fmt.Errorf("%w: pool.startTimeout must not be negative", ErrInvalidValue)
	case p.ShutdownTimeout < 0:
		return fmt.Errorf("%w: pool.shutdownTimeout must not be negative", ErrInvalidValue)
	}

	for i, kv := range c.Worker.Env {
		if k, _, ok := strings.Cut(kv, "="); !ok || k == "" {
			return fmt.Errorf("%w: worker.env[%d]: want KEY=VALUE, got %q", ErrInvalidValue, i, kv)
		}
	}

	cv := c.Conversion
	if cv.Quality != 0 && (cv.Quality < 1 || cv.Quality > 100) {
		return fmt.Errorf("%w: conversion.quality must be between 1 and 100, got %d", ErrInvalidValue, cv.Quality)
	}
	if cv.DPI != 0 && (cv.DPI < 1 || cv.DPI > 2400) {
		return fmt.Errorf("%w: conversion.dpi must be between 1 and 2400, got %d", ErrInvalidValue, cv.DPI)
	}
	return nil
}

// LoadConfig loads configuration from a file path or config name.
// A value containing a path separator is read as is; a bare name is searched
// as <name>.yaml / <name>.yml in the current directory, then in the user
// config directory under docconv/. There is no silent fallback.
func LoadConfig(nameOrPath string) (*Config, error) {
	if nameOrPath == "" {
		return nil, ErrEmptyConfigName
	}

	path := nameOrPath
	if !strings.ContainsAny(nameOrPath, `/\`) {
		var err error
		if path, err = resolveConfigPath(nameOrPath); err != nil {
			return nil, err
		}
	}

	data, err := yamlutil.ReadFile(path, MaxConfigSize)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
	case errors.Is(err, yamlutil.ErrInputTooLarge):
		return nil, fmt.Errorf("%w: %v", ErrConfigTooLarge, err)
	case err != nil:
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates YAML, rejecting unknown keys.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yamlutil.DecodeStrict(data, &cfg, MaxConfigSize); err != nil {
		if errors.Is(err, yamlutil.ErrInputTooLarge) {
			return nil, fmt.Errorf("%w: %v", ErrConfigTooLarge, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// resolveConfigPath searches for name in the standard locations.
func resolveConfigPath(name string) (string, error) {
	extensions := []string{".yaml", ".yml"}
	dirs := []string{"."}
	if userDir, err := os.UserConfigDir(); err == nil {
		dirs = append(dirs, filepath.Join(userDir, appDir))
	}

	var tried []string
	for _, dir := range dirs {
		for _, ext := range extensions {
			p := filepath.Join(dir, name+ext)
			if info, err := os.Stat(p); err == nil && !info.IsDir() {
				return p, nil
			}
			tried = append(tried, p)
		}
	}
	return "", fmt.Errorf("%w: tried %s", ErrConfigNotFound, strings.Join(tried, ", "))
}
