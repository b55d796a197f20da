// Package yamlutil decodes the YAML files docconv reads from disk, the CLI
// configuration and diagnostic pattern tables, under one set of rules:
// unknown keys are errors and inputs are size-capped.
package yamlutil

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
)

// Sentinel errors for YAML decoding.
var (
	ErrNilDestination = errors.New("yamlutil: nil destination pointer")
	ErrInputTooLarge  = errors.New("yamlutil: input exceeds maximum size")
)

// DecodeStrict decodes data into v, rejecting unknown fields and inputs
// larger than limit bytes. Blank input leaves v untouched.
func DecodeStrict(data []byte, v any, limit int) error {
	if v == nil {
		return ErrNilDestination
	}
	if len(data) > limit {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrInputTooLarge, len(data), limit)
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil
	}
	if err := yaml.UnmarshalWithOptions(data, v, yaml.Strict()); err != nil {
		return fmt.Errorf("yamlutil: %w", err)
	}
	return nil
}

// ReadFile reads path, refusing files larger than limit bytes before
// loading them.
func ReadFile(path string, limit int64) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > limit {
		return nil, fmt.Errorf("%w: %s is %d bytes (max %d)", ErrInputTooLarge, path, info.Size(), limit)
	}
	return os.ReadFile(path) // #nosec G304 -- callers pass operator-provided paths
}
