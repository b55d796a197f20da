package engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/alnah/go-docconv/internal/wire"
	"github.com/alnah/go-docconv/internal/worker"
)

var _ worker.Engine = (*Engine)(nil)

// Engine converts documents to PDF through headless Chrome.
// It is not safe for concurrent use; a worker serves one request at a time.
type Engine struct {
	newRenderer func(bin string) renderer

	renderer renderer
	md       *markdown
	fonts    *fontSet
	diag     io.Writer
}

// New returns an engine backed by go-rod.
func New() *Engine {
	return &Engine{
		newRenderer: func(bin string) renderer { return newRodRenderer(bin) },
	}
}

// Init launches the browser and registers fonts. ResourcePath names the
// browser binary.
func (e *Engine) Init(_ context.Context, params worker.InitParams) error {
	e.diag = params.Diagnostics
	if e.diag == nil {
		e.diag = io.Discard
	}
	e.md = newMarkdown()
	e.fonts = loadFonts(params.FontDirectories, e.diag)

	r := e.newRenderer(params.ResourcePath)
	if err := r.Start(); err != nil {
		return err
	}
	e.renderer = r
	return nil
}

// Convert renders doc and returns the PDF bytes.
func (e *Engine) Convert(ctx context.Context, doc []byte, format string, opts wire.Options) ([]byte, error) {
	return e.convert(ctx, doc, format, "", opts)
}

// ConvertFile renders input to output. Relative links and images resolve
// against the input's directory. An empty format is taken from the input
// extension.
func (e *Engine) ConvertFile(ctx context.Context, input, output, format string, opts wire.Options) error {
	doc, err := os.ReadFile(input) // #nosec G304 -- path supplied by the caller
	if err != nil {
		if os.IsNotExist(err) {
			return worker.Errorf(worker.CodeFileNotFound, "input not found: %s", input)
		}
		return worker.Errorf(worker.CodeConversionFailed, "reading input: %v", err)
	}
	if format == "" {
		format = filepath.Ext(input)
	}

	pdf, err := e.convert(ctx, doc, format, filepath.Dir(input), opts)
	if err != nil {
		return err
	}
	if err := os.WriteFile(output, pdf, 0o644); err != nil { // #nosec G306 -- output is a user document
		return worker.Errorf(worker.CodeOutputWriteFailed, "writing %s: %v", output, err)
	}
	return nil
}

func (e *Engine) convert(ctx context.Context, doc []byte, format, sourceDir string, opts wire.Options) ([]byte, error) {
	if e.renderer == nil {
		return nil, worker.Errorf(worker.CodeProtocol, "%v", ErrNotInitialized)
	}
	format, err := canonicalFormat(format)
	if err != nil {
		return nil, err
	}
	setup, err := planPage(opts, e.diag)
	if err != nil {
		return nil, err
	}

	page, err := e.toHTML(ctx, doc, format, sourceDir)
	if err != nil {
		return nil, classify(err)
	}

	path, cleanup, err := writeTempFile(page, "html")
	if err != nil {
		return nil, classify(err)
	}
	defer cleanup()

	pdf, err := e.renderer.RenderFromFile(ctx, path, setup)
	if err != nil {
		return nil, classify(err)
	}
	return pdf, nil
}

// toHTML builds the printable page and reports unresolved fonts.
func (e *Engine) toHTML(ctx context.Context, doc []byte, format, sourceDir string) (string, error) {
	var (
		d   *document
		err error
	)
	switch format {
	case "markdown":
		var fragment string
		if fragment, err = e.md.toHTML(ctx, string(doc)); err == nil {
			d, err = parseDocument(fragment)
		}
	case "text":
		d, err = textDocument(string(doc))
	default:
		d, err = parseDocument(string(doc))
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrHTMLConversion, err)
	}

	if err := d.rewriteRelativePaths(sourceDir); err != nil {
		return "", fmt.Errorf("%w: %v", ErrHTMLConversion, err)
	}
	e.fonts.reportMissing(d.fontDeclarations(), e.diag)
	d.injectCSS(e.fonts.css() + baseCSS)
	return d.render()
}

// Close shuts the browser down.
func (e *Engine) Close() error {
	if e.renderer == nil {
		return nil
	}
	return e.renderer.Close()
}

// writeTempFile stores content in a temp file and returns a cleanup func.
func writeTempFile(content, extension string) (path string, cleanup func(), err error) {
	f, err := os.CreateTemp("", "docconv-*."+extension)
	if err != nil {
		return "", nil, fmt.Errorf("creating temp file: %w", err)
	}
	path = f.Name()
	cleanup = func() { _ = os.Remove(path) }

	if _, err := f.WriteString(content); err != nil {
		_ = f.Close()
		cleanup()
		return "", nil, fmt.Errorf("writing temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("closing temp file: %w", err)
	}
	return path, cleanup, nil
}
