package engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// renderer prints an HTML file to PDF. Tests substitute a fake.
type renderer interface {
	Start() error
	RenderFromFile(ctx context.Context, path string, page pageSetup) ([]byte, error)
	Close() error
}

var _ renderer = (*rodRenderer)(nil)

// PDF page dimensions in inches (US Letter).
const (
	paperWidthInches  = 8.5
	paperHeightInches = 11
	marginInches      = 0.5
)

// defaultLoadTimeout applies when ctx carries no deadline.
const defaultLoadTimeout = 60 * time.Second

// pageSetup is the subset of print settings an Options value controls.
type pageSetup struct {
	PageRanges string
}

// rodRenderer renders through a headless Chrome launched on first use.
type rodRenderer struct {
	bin     string // browser binary; empty lets rod resolve one
	browser *rod.Browser
}

func newRodRenderer(bin string) *rodRenderer {
	return &rodRenderer{bin: bin}
}

// Start launches and connects to the browser if not already running.
func (r *rodRenderer) Start() error {
	if r.browser != nil {
		return nil
	}

	l := launcher.New()
	bin := r.bin
	if bin == "" {
		bin = os.Getenv("ROD_BROWSER_BIN")
	}
	if bin != "" {
		l = l.Bin(bin)
	}
	// Sandboxing needs privileges containers and CI rarely grant.
	if os.Getenv("CI") == "true" || os.Getenv("ROD_NO_SANDBOX") == "1" || bin != "" {
		l = l.NoSandbox(true)
	}

	u, err := l.Launch()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}
	r.browser = rod.New().ControlURL(u)
	if err := r.browser.Connect(); err != nil {
		r.browser = nil
		return fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}
	return nil
}

// Close shuts the browser down.
func (r *rodRenderer) Close() error {
	if r.browser == nil {
		return nil
	}
	err := r.browser.Close()
	r.browser = nil
	return err
}

// RenderFromFile opens path in a new tab and prints it.
func (r *rodRenderer) RenderFromFile(ctx context.Context, path string, setup pageSetup) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := r.Start(); err != nil {
		return nil, err
	}

	page, err := r.browser.Page(proto.TargetCreateTarget{URL: fileURL(path)})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPageCreate, err)
	}
	defer func() { _ = page.Close() }()

	timeout := defaultLoadTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if timeout = time.Until(deadline); timeout <= 0 {
			return nil, context.DeadlineExceeded
		}
	}
	page = page.Context(ctx).Timeout(timeout)

	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPageLoad, err)
	}

	reader, err := page.PDF(buildPDFOptions(setup))
	if err != nil {
		if isPageRangeError(err) {
			return nil, fmt.Errorf("%w: %v", errPageRange, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrPDFGeneration, err)
	}
	pdf, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: reading PDF stream: %v", ErrPDFGeneration, err)
	}
	return pdf, nil
}

func buildPDFOptions(setup pageSetup) *proto.PagePrintToPDF {
	opts := &proto.PagePrintToPDF{
		PaperWidth:      floatPtr(paperWidthInches),
		PaperHeight:     floatPtr(paperHeightInches),
		MarginTop:       floatPtr(marginInches),
		MarginBottom:    floatPtr(marginInches),
		MarginLeft:      floatPtr(marginInches),
		MarginRight:     floatPtr(marginInches),
		PrintBackground: true,
		PageRanges:      setup.PageRanges,
	}
	return opts
}

// isPageRangeError recognises Chrome's rejection of ranges beyond the
// document ("Page range exceeds page count").
func isPageRangeError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "page range")
}

func floatPtr(v float64) *float64 {
	return &v
}
