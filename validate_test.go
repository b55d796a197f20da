package docconv

import (
	"errors"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// TestValidateOptions
// ---------------------------------------------------------------------------

func TestValidateOptions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts *Options
		ok   bool
	}{
		{name: "nil", opts: nil, ok: true},
		{name: "zero value", opts: &Options{}, ok: true},
		{name: "full", opts: &Options{PDFVersion: "1.7", Quality: 90, DPI: 300, Tagged: true, PageRange: "1-3, 5", Timeout: time.Second}, ok: true},
		{name: "quality lower bound", opts: &Options{Quality: 1}, ok: true},
		{name: "quality above 100", opts: &Options{Quality: 101}},
		{name: "quality negative", opts: &Options{Quality: -5}},
		{name: "dpi upper bound", opts: &Options{DPI: 2400}, ok: true},
		{name: "dpi too high", opts: &Options{DPI: 2401}},
		{name: "pdf 2.0", opts: &Options{PDFVersion: "2.0"}, ok: true},
		{name: "pdf 1.3", opts: &Options{PDFVersion: "1.3"}},
		{name: "single page", opts: &Options{PageRange: "4"}, ok: true},
		{name: "open range", opts: &Options{PageRange: "2-"}},
		{name: "letters", opts: &Options{PageRange: "one"}},
		{name: "trailing comma", opts: &Options{PageRange: "1,"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := validateOptions(tt.opts)
			if tt.ok {
				if r != nil {
					t.Errorf("validateOptions() = %s %s, want nil", r.Code, r.Message)
				}
				return
			}
			if r == nil || r.Code != CodeInvalidInput {
				t.Errorf("validateOptions() = %v, want invalid_input", r)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestFormats
// ---------------------------------------------------------------------------

func TestFormatFromPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want string
	}{
		{path: "a.html", want: "html"},
		{path: "dir/B.MD", want: "md"},
		{path: "notes.txt", want: "txt"},
		{path: "report.docx", want: "docx"},
		{path: "README", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			if got := formatFromPath(tt.path); got != tt.want {
				t.Errorf("formatFromPath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestNormalizeFormat(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]string{" .HTML ": "html", "Markdown": "markdown", "": ""} {
		if got := normalizeFormat(in); got != want {
			t.Errorf("normalizeFormat(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWireOptions(t *testing.T) {
	t.Parallel()

	if wireOptions(nil) != nil {
		t.Error("wireOptions(nil) != nil")
	}
	if wireOptions(&Options{Timeout: time.Second}) != nil {
		t.Error("timeout-only options should not reach the wire")
	}
	w := wireOptions(&Options{PageRange: " 1-2 ", Tagged: true})
	if w == nil || w.PageRange != "1-2" || !w.Tagged {
		t.Errorf("wireOptions() = %+v", w)
	}
}

// ---------------------------------------------------------------------------
// TestConversionError
// ---------------------------------------------------------------------------

func TestConversionError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code Code
		want error
	}{
		{code: CodeTimeout, want: ErrTimeout},
		{code: CodeInvalidPageRange, want: ErrInvalidPageRange},
		{code: "engine_specific", want: ErrConversionFailed},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			t.Parallel()

			err := (&Result{Code: tt.code, Message: "boom"}).Err()
			if !errors.Is(err, tt.want) {
				t.Errorf("errors.Is(%v, %v) = false", err, tt.want)
			}
			if got := err.Error(); got != string(tt.code)+": boom" {
				t.Errorf("Error() = %q", got)
			}
		})
	}

	if (&Result{Success: true}).Err() != nil {
		t.Error("successful Result.Err() != nil")
	}
}
