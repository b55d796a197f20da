// Package docconv converts documents to PDF in isolated worker processes.
//
// Document engines are native code that can hang or crash on hostile input.
// docconv never runs one in the caller's process: each conversion goes to a
// docworker process over a framed stdin/stdout protocol, and a crash or
// timeout costs that one process, which is respawned on the next request.
//
// # Quick Start
//
//	conv, err := docconv.NewConverter(
//	    docconv.WithWorkerPath("/usr/local/bin/docworker"),
//	    docconv.WithWorkers(4),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer conv.Close()
//
//	res := conv.ConvertBuffer(ctx, []byte("# Hello"), "markdown", nil)
//	if err := res.Err(); err != nil {
//	    log.Fatal(err)
//	}
//	os.WriteFile("hello.pdf", res.Output, 0o644)
//
// # Results, not errors
//
// ConvertFile and ConvertBuffer never return an error. Every outcome,
// including validation failures, timeouts and worker crashes, is a *Result
// with Success false and a machine-checkable Code. Call Result.Err to turn a
// failure into an error that matches the sentinels with errors.Is:
//
//	if errors.Is(res.Err(), docconv.ErrTimeout) { ... }
//
// # Diagnostics
//
// Whatever the worker writes to stderr while a conversion runs is scoped to
// that conversion and parsed into Result.Diagnostics: font substitutions,
// missing fonts, layout warnings. The pattern table is data; replace it with
// WithDiagnosticPatterns when the engine words things differently.
//
// # Configuration
//
// Worker path, resource path and font directories may come from options or
// from settings sources. EnvSource("DOCCONV") is the default source and reads
// DOCCONV_WORKER_PATH, DOCCONV_RESOURCE_PATH and DOCCONV_FONT_DIRS.
package docconv
