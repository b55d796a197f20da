// Package hints provides actionable error hints for common failure scenarios.
// Hints are formatted consistently as "\n  hint: <text>" for appending to error messages.
package hints

import (
	"os"
	"path/filepath"
	"strings"
)

// IsInContainer detects if running inside a Docker container or similar.
// Checks for /.dockerenv file which Docker creates automatically.
var IsInContainer = func() bool {
	_, err := os.Stat("/.dockerenv")
	return err == nil
}

// ForWorkerCrash returns hints for workers that die or fail to start.
// Workers drive a headless browser, so the usual causes are sandboxing and
// a missing browser binary.
func ForWorkerCrash() string {
	var hints []string

	inCI := os.Getenv("CI") != "" ||
		os.Getenv("GITHUB_ACTIONS") != "" ||
		os.Getenv("GITLAB_CI") != "" ||
		os.Getenv("JENKINS_URL") != ""

	if (inCI || IsInContainer()) && os.Getenv("ROD_NO_SANDBOX") != "1" {
		hints = append(hints, "set ROD_NO_SANDBOX=1 for Docker/CI")
	}
	if os.Getenv("ROD_BROWSER_BIN") == "" {
		hints = append(hints, "set ROD_BROWSER_BIN or --resource to use a specific Chrome")
	}
	hints = append(hints, "rerun with --verbose to see worker logs")

	return formatHints(hints)
}

// ForWorkerNotConfigured explains how to point docconv at a worker.
func ForWorkerNotConfigured() string {
	return format("use --worker /path/to/docworker, set DOCCONV_WORKER_PATH, or worker.path in the config file")
}

// ForTimeout returns a hint about increasing timeout for slow operations.
func ForTimeout() string {
	return format("for large documents, use --timeout flag")
}

// ForConfigNotFound returns hints for config file not found errors.
// Suggests --config and, when one was searched, the user config location.
func ForConfigNotFound(searched string) string {
	hint := "use --config /path/to/file.yaml"
	for p := range strings.SplitSeq(searched, ", ") {
		if strings.Contains(filepath.ToSlash(p), "/docconv/") {
			hint += " or create " + p
			break
		}
	}
	return format(hint)
}

// ForOutputDirectory returns hints for output directory creation errors.
func ForOutputDirectory() string {
	return format("check parent directory exists and is writable")
}

// ForUnsupportedFormat lists the accepted formats.
func ForUnsupportedFormat(formats []string) string {
	if len(formats) == 0 {
		return ""
	}
	return format("supported: " + strings.Join(formats, ", ") + "; use --format to override the extension")
}

// format creates a single hint string with consistent formatting.
func format(hint string) string {
	if hint == "" {
		return ""
	}
	return "\n  hint: " + hint
}

// formatHints joins multiple hints with consistent formatting.
func formatHints(hints []string) string {
	if len(hints) == 0 {
		return ""
	}
	return format(strings.Join(hints, "; "))
}
