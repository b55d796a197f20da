package diag

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func newDefaultParser(t *testing.T) *Parser {
	t.Helper()
	p, err := NewParser(nil)
	if err != nil {
		t.Fatalf("NewParser(nil) error = %v", err)
	}
	return p
}

// ---------------------------------------------------------------------------
// TestParse - Default Table
// ---------------------------------------------------------------------------

func TestParse_DefaultRules(t *testing.T) {
	t.Parallel()

	p := newDefaultParser(t)

	tests := []struct {
		name string
		line string
		want []Diagnostic
	}{
		{
			name: "font substitution",
			line: `font "Garamond" not found, substituting "Liberation Serif"`,
			want: []Diagnostic{{
				Severity: SeverityWarning, Category: CategoryFont,
				Message: `font "Garamond" not found, substituting "Liberation Serif"`,
				Font:    "Garamond", Substitute: "Liberation Serif",
			}},
		},
		{
			name: "substitution phrased as replacement",
			line: "Substituting font Arial with Helvetica",
			want: []Diagnostic{{
				Severity: SeverityWarning, Category: CategoryFont,
				Message: "Substituting font Arial with Helvetica",
				Font:    "Arial", Substitute: "Helvetica",
			}},
		},
		{
			name: "missing font without substitute",
			line: "warning: font 'Comic Sans' not found",
			want: []Diagnostic{{
				Severity: SeverityWarning, Category: CategoryFont,
				Message: "warning: font 'Comic Sans' not found",
				Font:    "Comic Sans",
			}},
		},
		{
			name: "missing font directory",
			line: "warning: font directory not found: /srv/fonts",
			want: []Diagnostic{{
				Severity: SeverityWarning, Category: CategoryFont,
				Message: "font directory not found: /srv/fonts",
			}},
		},
		{
			name: "layout",
			line: "layout: table exceeds page width",
			want: []Diagnostic{{
				Severity: SeverityWarning, Category: CategoryLayout,
				Message: "table exceeds page width",
			}},
		},
		{
			name: "overflow wording",
			line: "image img-3 overflows the printable area",
			want: []Diagnostic{{
				Severity: SeverityWarning, Category: CategoryLayout,
				Message: "image img-3 overflows the printable area",
			}},
		},
		{
			name: "info",
			line: "info: dpi is not supported by this engine, ignored",
			want: []Diagnostic{{
				Severity: SeverityInfo, Category: CategoryGeneral,
				Message: "dpi is not supported by this engine, ignored",
			}},
		},
		{
			name: "error",
			line: "ERROR: renderer restarted",
			want: []Diagnostic{{
				Severity: SeverityError, Category: CategoryGeneral,
				Message: "renderer restarted",
			}},
		},
		{
			name: "unrecognised",
			line: "[0611/120000.000:INFO:CONSOLE(1)] hello",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := p.Parse(tt.line + "\n")
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Parse(%q) =\n  %#v\nwant\n  %#v", tt.line, got, tt.want)
			}
		})
	}
}

func TestParse_PreservesOrderAndSkipsNoise(t *testing.T) {
	t.Parallel()

	p := newDefaultParser(t)
	text := "noise\r\n" +
		"info: first\n" +
		"\n" +
		"more noise\n" +
		"layout: second\n" +
		"warning: third" // no trailing newline

	got := p.Parse(text)
	want := []string{"first", "second", "third"}
	if len(got) != len(want) {
		t.Fatalf("Parse() returned %d diagnostics, want %d: %v", len(got), len(want), got)
	}
	for i, w := range want {
		if got[i].Message != w {
			t.Errorf("diagnostic %d message = %q, want %q", i, got[i].Message, w)
		}
	}
}

func TestParse_Empty(t *testing.T) {
	t.Parallel()

	if got := newDefaultParser(t).Parse(""); got != nil {
		t.Errorf("Parse(\"\") = %v, want nil", got)
	}
}

// ---------------------------------------------------------------------------
// TestPatterns - Custom Tables
// ---------------------------------------------------------------------------

func TestLoadPatterns_CustomTable(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "patterns.yaml")
	content := `rules:
  - name: fontconfig
    pattern: 'Fontconfig: using (?P<substitute>\S+) for (?P<font>\S+)'
    severity: warning
    category: font
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	patterns, err := LoadPatterns(path)
	if err != nil {
		t.Fatalf("LoadPatterns() error = %v", err)
	}
	p, err := NewParser(patterns)
	if err != nil {
		t.Fatalf("NewParser() error = %v", err)
	}

	got := p.Parse("Fontconfig: using DejaVuSans for Verdana\ninfo: not in this table\n")
	if len(got) != 1 {
		t.Fatalf("Parse() = %v, want exactly one diagnostic", got)
	}
	if got[0].Font != "Verdana" || got[0].Substitute != "DejaVuSans" {
		t.Errorf("Parse() = %+v, want Verdana -> DejaVuSans", got[0])
	}
}

func TestParsePatterns_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		wantErr error
	}{
		{
			name:    "bad regexp",
			yaml:    "rules:\n  - name: x\n    pattern: '(unclosed'\n    severity: info\n",
			wantErr: ErrInvalidRule,
		},
		{
			name:    "bad severity",
			yaml:    "rules:\n  - name: x\n    pattern: 'a'\n    severity: fatal\n",
			wantErr: ErrInvalidRule,
		},
		{
			name:    "bad category",
			yaml:    "rules:\n  - name: x\n    pattern: 'a'\n    severity: info\n    category: color\n",
			wantErr: ErrInvalidRule,
		},
		{
			name:    "unknown field",
			yaml:    "rules:\n  - name: x\n    regex: 'a'\n",
			wantErr: ErrPatternsParse,
		},
		{
			name:    "no rules",
			yaml:    "rules: []\n",
			wantErr: ErrNoPatternsRules,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := ParsePatterns([]byte(tt.yaml))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ParsePatterns() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadPatterns_Missing(t *testing.T) {
	t.Parallel()

	_, err := LoadPatterns(filepath.Join(t.TempDir(), "absent.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("LoadPatterns() error = %v, want os.ErrNotExist", err)
	}
}
