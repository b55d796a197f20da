package engine

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/alnah/go-docconv/internal/wire"
	"github.com/alnah/go-docconv/internal/worker"
)

// errPageRange marks a page range the renderer rejected.
var errPageRange = errors.New("invalid page range")

// chromePDFVersion is what Chrome's printer emits regardless of request.
const chromePDFVersion = "1.4"

// cssDPI is the resolution CSS pixels are defined against.
const cssDPI = 96

// pageRangePattern accepts "1-5, 8, 11-13" style lists.
var pageRangePattern = regexp.MustCompile(`^\s*\d+\s*(-\s*\d+\s*)?(,\s*\d+\s*(-\s*\d+\s*)?)*$`)

// supportedFormats maps accepted format names to the canonical one.
var supportedFormats = map[string]string{
	"html":     "html",
	"htm":      "html",
	"xhtml":    "html",
	"markdown": "markdown",
	"md":       "markdown",
	"text":     "text",
	"txt":      "text",
}

// canonicalFormat resolves a request format, ignoring case and a leading dot.
func canonicalFormat(format string) (string, error) {
	key := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(format), "."))
	if f, ok := supportedFormats[key]; ok {
		return f, nil
	}
	return "", worker.Errorf(worker.CodeUnsupportedFormat, "unsupported format %q (supported: %s)",
		format, strings.Join(formats(), ", "))
}

// planPage validates opts and turns them into print settings. Options the
// renderer cannot honour are reported on diag as info lines.
func planPage(opts wire.Options, diag io.Writer) (pageSetup, error) {
	var setup pageSetup

	if opts.Password != "" {
		return setup, worker.Errorf(worker.CodeUnsupportedFeature, "PDF encryption is not supported by this engine")
	}
	if opts.PageRange != "" {
		if err := validatePageRange(opts.PageRange); err != nil {
			return setup, err
		}
		setup.PageRanges = strings.ReplaceAll(opts.PageRange, " ", "")
	}

	if opts.PDFVersion != "" && opts.PDFVersion != chromePDFVersion {
		fmt.Fprintf(diag, "info: pdf_version %s requested, renderer produces %s\n", opts.PDFVersion, chromePDFVersion)
	}
	if opts.Quality > 0 {
		fmt.Fprintf(diag, "info: quality %d ignored, images are embedded as-is\n", opts.Quality)
	}
	if opts.DPI > 0 && opts.DPI != cssDPI {
		fmt.Fprintf(diag, "info: dpi %d ignored, layout uses %d CSS pixels per inch\n", opts.DPI, cssDPI)
	}
	if opts.Tagged {
		fmt.Fprintln(diag, "info: tagged PDF requested, output is untagged")
	}
	return setup, nil
}

// validatePageRange checks syntax and that every span is ascending and
// starts at page 1 or later.
func validatePageRange(r string) error {
	if !pageRangePattern.MatchString(r) {
		return worker.Errorf(worker.CodeInvalidPageRange, "invalid page range %q", r)
	}
	for span := range strings.SplitSeq(strings.ReplaceAll(r, " ", ""), ",") {
		lo, hi, isSpan := strings.Cut(span, "-")
		first, _ := strconv.Atoi(lo)
		last := first
		if isSpan {
			last, _ = strconv.Atoi(hi)
		}
		if first < 1 || last < first {
			return worker.Errorf(worker.CodeInvalidPageRange, "invalid page span %q in %q", span, r)
		}
	}
	return nil
}

// classify attaches a wire code to a render failure.
func classify(err error) error {
	var we *worker.Error
	switch {
	case errors.As(err, &we):
		return err
	case errors.Is(err, errPageRange):
		return &worker.Error{Code: worker.CodeInvalidPageRange, Err: err}
	default:
		return &worker.Error{Code: worker.CodeConversionFailed, Err: err}
	}
}

// formats lists the canonical names.
func formats() []string {
	var out []string
	for _, f := range supportedFormats {
		if !slices.Contains(out, f) {
			out = append(out, f)
		}
	}
	slices.Sort(out)
	return out
}
