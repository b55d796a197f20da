package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	flag "github.com/spf13/pflag"
)

// ErrUsage marks command-line errors.
var ErrUsage = errors.New("usage error")

// poolFlags size and time the worker pool.
type poolFlags struct {
	workers        int
	timeout        time.Duration
	maxConversions int
	warmUp         bool
}

// workerFlags locate the worker executable and its resources.
type workerFlags struct {
	path     string
	resource string
	fontDirs []string
	patterns string
}

// conversionFlags map to docconv.Options.
type conversionFlags struct {
	format     string
	pdfVersion string
	quality    int
	dpi        int
	tagged     bool
	pages      string
	password   string
	buffer     bool
}

// cliFlags holds every docconv flag plus the positional inputs.
type cliFlags struct {
	config     string
	outputDir  string
	verbose    bool
	version    bool
	pool       poolFlags
	worker     workerFlags
	conversion conversionFlags

	inputs  []string
	changed func(name string) bool
}

func addPoolFlags(fs *flag.FlagSet, f *poolFlags) {
	fs.IntVarP(&f.workers, "workers", "w", 0, "worker processes (0 = auto)")
	fs.DurationVarP(&f.timeout, "timeout", "t", 0, "per-conversion timeout (e.g. 30s, 2m)")
	fs.IntVar(&f.maxConversions, "max-conversions", 0, "recycle a worker after n conversions (0 = never)")
	fs.BoolVar(&f.warmUp, "warm-up", false, "start every worker before converting")
}

func addWorkerFlags(fs *flag.FlagSet, f *workerFlags) {
	fs.StringVar(&f.path, "worker", "", "worker executable (default $DOCCONV_WORKER_PATH)")
	fs.StringVar(&f.resource, "resource", "", "engine resource path sent to workers")
	fs.StringSliceVar(&f.fontDirs, "font-dir", nil, "font directory (repeatable)")
	fs.StringVar(&f.patterns, "patterns", "", "YAML file of stderr diagnostic patterns")
}

func addConversionFlags(fs *flag.FlagSet, f *conversionFlags) {
	fs.StringVarP(&f.format, "format", "f", "", "input format, overrides the extension (implies --buffer)")
	fs.StringVar(&f.pdfVersion, "pdf-version", "", "PDF version: 1.4, 1.5, 1.6, 1.7, 2.0")
	fs.IntVar(&f.quality, "quality", 0, "image quality (1-100)")
	fs.IntVar(&f.dpi, "dpi", 0, "resolution (1-2400)")
	fs.BoolVar(&f.tagged, "tagged", false, "produce a tagged PDF")
	fs.StringVar(&f.pages, "pages", "", "page range, e.g. 1-3,5")
	fs.StringVar(&f.password, "password", "", "open password for encrypted input")
	fs.BoolVar(&f.buffer, "buffer", false, "send document bytes over the pipe instead of paths")
}

// parseFlags parses args, program name excluded. Help returns flag.ErrHelp.
func parseFlags(args []string, stderr io.Writer) (*cliFlags, error) {
	fs := flag.NewFlagSet("docconv", flag.ContinueOnError)
	fs.SetOutput(stderr)
	f := &cliFlags{}

	fs.StringVarP(&f.config, "config", "c", "", "config file name or path")
	fs.StringVarP(&f.outputDir, "output-dir", "o", "", "output directory (default: next to each input)")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "debug logging and timings")
	fs.BoolVar(&f.version, "version", false, "print version and exit")
	addPoolFlags(fs, &f.pool)
	addWorkerFlags(fs, &f.worker)
	addConversionFlags(fs, &f.conversion)

	fs.Usage = func() { printUsage(stderr, fs) }

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrUsage, err)
	}

	if f.pool.workers < 0 {
		return nil, fmt.Errorf("%w: --workers must not be negative, got %d", ErrUsage, f.pool.workers)
	}
	if f.pool.timeout < 0 {
		return nil, fmt.Errorf("%w: --timeout must not be negative", ErrUsage)
	}
	if f.pool.maxConversions < 0 {
		return nil, fmt.Errorf("%w: --max-conversions must not be negative", ErrUsage)
	}

	f.inputs = fs.Args()
	f.changed = fs.Changed
	return f, nil
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(w, "Usage: docconv [flags] <input>...")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Convert HTML, Markdown and text documents to PDF.")
	fmt.Fprintln(w, "Inputs may be files or directories; directories are scanned recursively.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprint(w, fs.FlagUsages())
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Exit codes: 0 ok, 1 general, 2 usage, 3 I/O, 4 conversion or worker failure.")
}
