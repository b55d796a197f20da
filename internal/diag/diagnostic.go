// Package diag turns free-text worker stderr into structured diagnostics.
//
// Recognition is driven by a pattern table rather than fixed logic, because
// the wording depends on the engine and changes across its versions. The
// default table is embedded; LoadPatterns reads a replacement from YAML.
package diag

import (
	"fmt"
	"strings"
)

// Severity ranks a diagnostic.
type Severity int

// Severity levels.
const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

// String returns the lowercase severity name.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseSeverity parses a severity name (case-insensitive).
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(s) {
	case "info":
		return SeverityInfo, nil
	case "warning", "warn":
		return SeverityWarning, nil
	case "error":
		return SeverityError, nil
	}
	return 0, fmt.Errorf("%w: severity %q", ErrInvalidRule, s)
}

// Category groups diagnostics by subject.
type Category int

// Diagnostic categories.
const (
	CategoryGeneral Category = iota
	CategoryFont
	CategoryLayout
)

// String returns the lowercase category name.
func (c Category) String() string {
	switch c {
	case CategoryGeneral:
		return "general"
	case CategoryFont:
		return "font"
	case CategoryLayout:
		return "layout"
	default:
		return "unknown"
	}
}

// ParseCategory parses a category name (case-insensitive).
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(s) {
	case "general", "":
		return CategoryGeneral, nil
	case "font":
		return CategoryFont, nil
	case "layout":
		return CategoryLayout, nil
	}
	return 0, fmt.Errorf("%w: category %q", ErrInvalidRule, s)
}

// Diagnostic is one recognised stderr line.
type Diagnostic struct {
	Severity   Severity
	Category   Category
	Message    string
	Font       string // original font, font diagnostics only
	Substitute string // font used instead, substitution diagnostics only
}

// String formats d as "severity/category: message".
func (d Diagnostic) String() string {
	return fmt.Sprintf("%s/%s: %s", d.Severity, d.Category, d.Message)
}
