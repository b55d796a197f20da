package hints

// Notes:
// - ForWorkerCrash tests cannot use t.Parallel() because they:
//   1. Use t.Setenv() which modifies process environment
//   2. Modify the package-level IsInContainer variable

import (
	"strings"
	"testing"
)

func stubContainer(t *testing.T, in bool) {
	t.Helper()
	orig := IsInContainer
	t.Cleanup(func() { IsInContainer = orig })
	IsInContainer = func() bool { return in }
}

func clearCI(t *testing.T) {
	t.Helper()
	for _, k := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL"} {
		t.Setenv(k, "")
	}
}

// ---------------------------------------------------------------------------
// TestForWorkerCrash
// ---------------------------------------------------------------------------

func TestForWorkerCrash_InCI(t *testing.T) {
	stubContainer(t, false)
	clearCI(t)
	t.Setenv("CI", "true")
	t.Setenv("ROD_NO_SANDBOX", "")
	t.Setenv("ROD_BROWSER_BIN", "")

	hint := ForWorkerCrash()

	if !strings.HasPrefix(hint, "\n  hint: ") {
		t.Errorf("hint = %q, want hint prefix", hint)
	}
	if !strings.Contains(hint, "ROD_NO_SANDBOX") {
		t.Error("expected ROD_NO_SANDBOX suggestion in CI")
	}
	if !strings.Contains(hint, "ROD_BROWSER_BIN") {
		t.Error("expected ROD_BROWSER_BIN suggestion")
	}
}

func TestForWorkerCrash_InDocker(t *testing.T) {
	stubContainer(t, true)
	clearCI(t)
	t.Setenv("ROD_NO_SANDBOX", "")

	if hint := ForWorkerCrash(); !strings.Contains(hint, "ROD_NO_SANDBOX") {
		t.Errorf("hint = %q, want ROD_NO_SANDBOX suggestion in Docker", hint)
	}
}

func TestForWorkerCrash_AllConfigured(t *testing.T) {
	stubContainer(t, true)
	clearCI(t)
	t.Setenv("ROD_NO_SANDBOX", "1")
	t.Setenv("ROD_BROWSER_BIN", "/usr/bin/chromium")

	hint := ForWorkerCrash()

	if strings.Contains(hint, "ROD_") {
		t.Errorf("hint = %q, want no browser env suggestions", hint)
	}
	if !strings.Contains(hint, "--verbose") {
		t.Errorf("hint = %q, want --verbose suggestion", hint)
	}
}

// ---------------------------------------------------------------------------
// TestStaticHints
// ---------------------------------------------------------------------------

func TestForConfigNotFound(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		searched string
		want     string
		reject   string
	}{
		{
			name:     "suggests user config",
			searched: "work.yaml, work.yml, /home/u/.config/docconv/work.yaml, /home/u/.config/docconv/work.yml",
			want:     "or create /home/u/.config/docconv/work.yaml",
		},
		{
			name:     "local only",
			searched: "work.yaml, work.yml",
			want:     "--config",
			reject:   "or create",
		},
		{
			name: "empty",
			want: "--config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := ForConfigNotFound(tt.searched)
			if !strings.Contains(got, tt.want) {
				t.Errorf("ForConfigNotFound() = %q, want substring %q", got, tt.want)
			}
			if tt.reject != "" && strings.Contains(got, tt.reject) {
				t.Errorf("ForConfigNotFound() = %q, must not contain %q", got, tt.reject)
			}
		})
	}
}

func TestForUnsupportedFormat(t *testing.T) {
	t.Parallel()

	if got := ForUnsupportedFormat(nil); got != "" {
		t.Errorf("ForUnsupportedFormat(nil) = %q, want empty", got)
	}
	got := ForUnsupportedFormat([]string{"html", "md"})
	if !strings.Contains(got, "html, md") || !strings.Contains(got, "--format") {
		t.Errorf("ForUnsupportedFormat() = %q", got)
	}
}

func TestFormat_Consistency(t *testing.T) {
	t.Parallel()

	for name, hint := range map[string]string{
		"timeout":        ForTimeout(),
		"output dir":     ForOutputDirectory(),
		"not configured": ForWorkerNotConfigured(),
	} {
		if !strings.HasPrefix(hint, "\n  hint: ") {
			t.Errorf("%s: hint = %q, want consistent prefix", name, hint)
		}
	}
	if format("") != "" {
		t.Error("format(\"\") should be empty")
	}
	if formatHints(nil) != "" {
		t.Error("formatHints(nil) should be empty")
	}
}
