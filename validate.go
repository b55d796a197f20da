package docconv

import (
	"fmt"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/alnah/go-docconv/internal/wire"
)

// SupportedFormats lists the document formats accepted by the converter,
// extension spellings included.
var SupportedFormats = []string{"html", "htm", "xhtml", "markdown", "md", "text", "txt"}

// PDFVersions lists the accepted Options.PDFVersion values.
var PDFVersions = []string{"1.4", "1.5", "1.6", "1.7", "2.0"}

var (
	pageRangePattern = regexp.MustCompile(`^\s*\d+\s*(-\s*\d+\s*)?(,\s*\d+\s*(-\s*\d+\s*)?)*$`)

	// markdownHint matches line starts typical of Markdown.
	markdownHint = regexp.MustCompile("(?m)^(#{1,6} |[-*+] |\\d+\\. |```|> |\\|.*\\|\\s*$)")
)

// normalizeFormat lowercases format and strips a leading dot.
func normalizeFormat(format string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(format), "."))
}

func checkFormat(format string) *Result {
	if slices.Contains(SupportedFormats, format) {
		return nil
	}
	return failed(CodeUnsupportedFormat, "unsupported format %q (supported: %s)",
		format, strings.Join(SupportedFormats, ", "))
}

// formatFromPath derives a format from the file extension.
func formatFromPath(path string) string {
	return normalizeFormat(filepath.Ext(path))
}

// sniffFormat guesses the format of an undeclared buffer.
func sniffFormat(data []byte) (string, *Result) {
	mt := mimetype.Detect(data)
	switch {
	case mt.Is("text/html"):
		return "html", nil
	case mt.Is("text/plain"):
		if markdownHint.Match(data) {
			return "markdown", nil
		}
		return "text", nil
	}
	return "", failed(CodeUnsupportedFormat, "cannot convert %s content", mt.String())
}

// validateOptions checks ranges and syntax before anything reaches a worker.
func validateOptions(o *Options) *Result {
	if o == nil {
		return nil
	}
	switch {
	case o.Quality != 0 && (o.Quality < 1 || o.Quality > 100):
		return failed(CodeInvalidInput, "quality must be between 1 and 100, got %d", o.Quality)
	case o.DPI != 0 && (o.DPI < 1 || o.DPI > 2400):
		return failed(CodeInvalidInput, "dpi must be between 1 and 2400, got %d", o.DPI)
	case o.PDFVersion != "" && !slices.Contains(PDFVersions, o.PDFVersion):
		return failed(CodeInvalidInput, "unknown pdf version %q (known: %s)", o.PDFVersion, strings.Join(PDFVersions, ", "))
	case o.PageRange != "" && !pageRangePattern.MatchString(o.PageRange):
		return failed(CodeInvalidInput, "malformed page range %q", o.PageRange)
	case o.Timeout < 0:
		return failed(CodeInvalidInput, "timeout must not be negative")
	}
	return nil
}

// wireOptions translates o into its wire shape; nil when nothing is set.
func wireOptions(o *Options) *wire.Options {
	if o == nil {
		return nil
	}
	w := wire.Options{
		PDFVersion: o.PDFVersion,
		Quality:    o.Quality,
		DPI:        o.DPI,
		Tagged:     o.Tagged,
		PageRange:  strings.TrimSpace(o.PageRange),
		Password:   o.Password,
	}
	if w == (wire.Options{}) {
		return nil
	}
	return &w
}

func failed(code Code, format string, args ...any) *Result {
	return &Result{Code: code, Message: fmt.Sprintf(format, args...)}
}
