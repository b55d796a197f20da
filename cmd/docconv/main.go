// Command docconv converts HTML, Markdown and text documents to PDF on a
// pool of isolated docworker processes.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], DefaultEnv())
	stop()
	os.Exit(code)
}

// run executes the CLI and returns the process exit code.
func run(ctx context.Context, args []string, env *Environment) int {
	flags, err := parseFlags(args, env.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return ExitSuccess
	}
	if err != nil {
		fmt.Fprintln(env.Stderr, "error:", err)
		return exitCodeFor(err)
	}
	if flags.version {
		fmt.Fprintln(env.Stdout, "docconv", Version)
		return ExitSuccess
	}

	// maxprocs.Set only fails on an invalid GOMAXPROCS; runtime defaults apply then.
	if flags.verbose {
		_, _ = maxprocs.Set(maxprocs.Logger(func(format string, args ...interface{}) {
			fmt.Fprintf(env.Stderr, format+"\n", args...)
		}))
	} else {
		_, _ = maxprocs.Set(maxprocs.Logger(func(string, ...interface{}) {}))
	}

	logger := newLogger(flags.verbose, env)
	defer func() { _ = logger.Sync() }()

	code, err := convert(ctx, flags, env, logger)
	if err != nil {
		fmt.Fprintf(env.Stderr, "error: %v%s\n", err, hintFor(err))
		return exitCodeFor(err)
	}
	return code
}

// newLogger builds a development logger when verbose, otherwise a
// production logger that only reports warnings and above.
func newLogger(verbose bool, env *Environment) *zap.Logger {
	var (
		enc   zapcore.Encoder
		level zapcore.Level
	)
	if verbose {
		enc = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		level = zapcore.DebugLevel
	} else {
		enc = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		level = zapcore.WarnLevel
	}
	core := zapcore.NewCore(enc, zapcore.AddSync(env.Stderr), level)
	return zap.New(core).Named("docconv")
}
