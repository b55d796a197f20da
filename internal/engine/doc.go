// Package engine is the document engine hosted by the docworker binary.
//
// It turns HTML, Markdown and plain text into PDF through a headless Chrome
// driven by go-rod. One browser is launched lazily per worker process and
// lives until the process exits, which is why the pool never shares a worker
// between concurrent requests.
//
// Pipeline:
//
//	document → HTML (goldmark for Markdown, <pre> for text)
//	         → relative paths rewritten against the source directory
//	         → @font-face rules for the configured font directories
//	         → temp file → Chrome print-to-PDF
//
// Everything the renderer wants to tell the caller (missing fonts,
// substitutions, options it cannot honour) goes to the diagnostics writer as
// one line per event.
package engine
