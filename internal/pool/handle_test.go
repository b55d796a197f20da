package pool

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alnah/go-docconv/internal/process"
	"github.com/alnah/go-docconv/internal/wire"
	"github.com/alnah/go-docconv/internal/worker/workertest"
)

func startHandle(t *testing.T, cfg WorkerConfig) *Handle {
	t.Helper()
	h := NewHandle(cfg, 0, nil)
	if err := h.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { h.Stop(time.Second) })
	return h
}

func bufferRequest(format, doc string) Request {
	return Request{
		Message: &wire.ConvertBuffer{Format: format},
		Payload: []byte(doc),
	}
}

// ---------------------------------------------------------------------------
// TestHandle_Start
// ---------------------------------------------------------------------------

func TestHandle_Start(t *testing.T) {
	t.Parallel()

	h := startHandle(t, fakeWorker(workertest.ModeNormal))

	if got := h.State(); got != StateIdle {
		t.Errorf("State() = %s, want idle", got)
	}
	if h.PID() <= 0 {
		t.Errorf("PID() = %d, want a live pid", h.PID())
	}
	if !process.Alive(h.PID()) {
		t.Error("worker process is not alive after Start")
	}
}

func TestHandle_StartFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     WorkerConfig
		wantErr error
	}{
		{
			name:    "missing executable",
			cfg:     WorkerConfig{Path: "/nonexistent/docworker"},
			wantErr: ErrStartFailed,
		},
		{
			name:    "engine init rejected",
			cfg:     fakeWorker(workertest.ModeFailInit),
			wantErr: ErrStartFailed,
		},
		{
			name:    "exits before handshake",
			cfg:     fakeWorker(workertest.ModeSilent),
			wantErr: ErrStartFailed,
		},
		{
			name: "handshake timeout",
			cfg: func() WorkerConfig {
				c := fakeWorker(workertest.ModeHangInit)
				c.StartTimeout = 200 * time.Millisecond
				return c
			}(),
			wantErr: ErrTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := NewHandle(tt.cfg, 0, nil)
			defer h.Stop(time.Second)

			err := h.Start(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Start() error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, ErrStartFailed) {
				t.Errorf("Start() error = %v, want it to wrap ErrStartFailed", err)
			}
			if got := h.State(); got != StateDead {
				t.Errorf("State() = %s, want dead", got)
			}
		})
	}
}

func TestHandle_StartTwice(t *testing.T) {
	t.Parallel()

	h := startHandle(t, fakeWorker(workertest.ModeNormal))
	if err := h.Start(context.Background()); !errors.Is(err, ErrStartFailed) {
		t.Errorf("second Start() error = %v, want ErrStartFailed", err)
	}
}

// ---------------------------------------------------------------------------
// TestHandle_Execute
// ---------------------------------------------------------------------------

func TestHandle_ExecuteBuffer(t *testing.T) {
	t.Parallel()

	h := startHandle(t, fakeWorker(workertest.ModeNormal))

	resp, err := h.Execute(context.Background(), bufferRequest("html", "<p>hi</p>"), 5*time.Second)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !resp.Result.Success {
		t.Fatalf("Result.Success = false: %s", resp.Result.Error)
	}
	if want := workertest.OutputPrefix + "<p>hi</p>"; string(resp.Output) != want {
		t.Errorf("Output = %q, want %q", resp.Output, want)
	}
	if resp.Result.ID == "" {
		t.Error("request id was not assigned")
	}
	if resp.PID != h.PID() {
		t.Errorf("Response.PID = %d, want %d", resp.PID, h.PID())
	}
	if h.State() != StateIdle || h.Served() != 1 {
		t.Errorf("after Execute: state %s served %d, want idle 1", h.State(), h.Served())
	}
}

func TestHandle_ExecuteWorkerReportedFailure(t *testing.T) {
	t.Parallel()

	h := startHandle(t, fakeWorker(workertest.ModeNormal))

	resp, err := h.Execute(context.Background(), bufferRequest(workertest.FormatFail, "x"), 5*time.Second)
	if err != nil {
		t.Fatalf("Execute() error = %v, want a failed result instead", err)
	}
	if resp.Result.Success || resp.Result.ErrorCode != "password_required" {
		t.Errorf("Result = %+v, want password_required failure", resp.Result)
	}
	if h.State() != StateIdle {
		t.Errorf("State() = %s, want idle; worker-reported failures keep the process", h.State())
	}
}

func TestHandle_ExecuteScopesStderr(t *testing.T) {
	t.Parallel()

	h := startHandle(t, fakeWorker(workertest.ModeNormal))

	first, err := h.Execute(context.Background(),
		bufferRequest("html", "stderr:warning: font 'Inter' not found\n"), 5*time.Second)
	if err != nil {
		t.Fatalf("first Execute() error = %v", err)
	}
	second, err := h.Execute(context.Background(),
		bufferRequest("html", "stderr:layout: table overflows page\n"), 5*time.Second)
	if err != nil {
		t.Fatalf("second Execute() error = %v", err)
	}

	if !strings.Contains(first.Stderr, "Inter") || strings.Contains(first.Stderr, "layout") {
		t.Errorf("first Stderr = %q, want only its own font warning", first.Stderr)
	}
	if !strings.Contains(second.Stderr, "layout") || strings.Contains(second.Stderr, "Inter") {
		t.Errorf("second Stderr = %q, want only its own layout warning", second.Stderr)
	}
	if strings.Contains(first.Stderr+second.Stderr, wire.EndMarkerPrefix) {
		t.Error("end markers leaked into request stderr")
	}
}

func TestHandle_ExecuteDrainsAtLimit(t *testing.T) {
	t.Parallel()

	cfg := fakeWorker(workertest.ModeNormal)
	cfg.MaxConversions = 2
	h := startHandle(t, cfg)

	for i, want := range []State{StateIdle, StateDraining} {
		if _, err := h.Execute(context.Background(), bufferRequest("html", "x"), 5*time.Second); err != nil {
			t.Fatalf("Execute() #%d error = %v", i+1, err)
		}
		if got := h.State(); got != want {
			t.Errorf("after request %d: State() = %s, want %s", i+1, got, want)
		}
	}

	if _, err := h.Execute(context.Background(), bufferRequest("html", "x"), 5*time.Second); !errors.Is(err, ErrNotIdle) {
		t.Errorf("Execute() on draining handle error = %v, want ErrNotIdle", err)
	}
}

func TestHandle_ExecuteTerminalFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		req     Request
		ctx     func() (context.Context, context.CancelFunc)
		timeout time.Duration
		wantErr error
	}{
		{
			name:    "timeout kills the worker",
			req:     bufferRequest(workertest.FormatHang, ""),
			timeout: 200 * time.Millisecond,
			wantErr: ErrTimeout,
		},
		{
			name: "cancellation kills the worker",
			req:  bufferRequest(workertest.FormatHang, ""),
			ctx: func() (context.Context, context.CancelFunc) {
				return context.WithTimeout(context.Background(), 200*time.Millisecond)
			},
			timeout: time.Minute,
			wantErr: ErrCanceled,
		},
		{
			name:    "engine crash",
			req:     bufferRequest(workertest.FormatCrash, ""),
			timeout: 5 * time.Second,
			wantErr: ErrCrashed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := startHandle(t, fakeWorker(workertest.ModeNormal))
			pid := h.PID()

			ctx, cancel := context.Background(), context.CancelFunc(func() {})
			if tt.ctx != nil {
				ctx, cancel = tt.ctx()
			}
			defer cancel()

			_, err := h.Execute(ctx, tt.req, tt.timeout)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Execute() error = %v, want %v", err, tt.wantErr)
			}
			if got := h.State(); got != StateDead {
				t.Errorf("State() = %s, want dead", got)
			}
			if process.Alive(pid) {
				t.Errorf("worker %d still alive after %v", pid, tt.wantErr)
			}
		})
	}
}

func TestHandle_ExternalKillWhileIdle(t *testing.T) {
	t.Parallel()

	h := startHandle(t, fakeWorker(workertest.ModeNormal))
	pid := h.PID()
	process.KillProcessGroup(pid)

	waitForState(t, h, StateDead)
	if !h.hasExited() {
		t.Error("hasExited() = false after the process was reaped")
	}

	_, err := h.Execute(context.Background(), bufferRequest("html", "x"), 5*time.Second)
	if !errors.Is(err, ErrNotIdle) {
		t.Errorf("Execute() error = %v, want ErrNotIdle", err)
	}
}

// waitForState polls until h reaches want or the test deadline passes.
func waitForState(t *testing.T, h *Handle, want State) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for h.State() != want {
		if time.Now().After(deadline) {
			t.Fatalf("State() = %s, want %s", h.State(), want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// ---------------------------------------------------------------------------
// TestHandle_Stop
// ---------------------------------------------------------------------------

func TestHandle_StopIsIdempotent(t *testing.T) {
	t.Parallel()

	h := startHandle(t, fakeWorker(workertest.ModeNormal))
	pid := h.PID()

	h.Stop(time.Second)
	h.Stop(time.Second)

	if h.State() != StateDead {
		t.Errorf("State() = %s, want dead", h.State())
	}
	if process.Alive(pid) {
		t.Errorf("worker %d alive after Stop", pid)
	}
}

func TestHandle_StopKillsBusyWorkerAfterGrace(t *testing.T) {
	t.Parallel()

	h := startHandle(t, fakeWorker(workertest.ModeNormal))
	pid := h.PID()

	errc := make(chan error, 1)
	go func() {
		_, err := h.Execute(context.Background(), bufferRequest(workertest.FormatHang, ""), time.Minute)
		errc <- err
	}()
	time.Sleep(100 * time.Millisecond)

	h.Stop(100 * time.Millisecond)
	if process.Alive(pid) {
		t.Errorf("worker %d alive after Stop grace expired", pid)
	}
	if err := <-errc; !errors.Is(err, ErrCrashed) {
		t.Errorf("in-flight Execute() error = %v, want ErrCrashed", err)
	}
}

func TestState_String(t *testing.T) {
	t.Parallel()

	tests := map[State]string{
		StateStarting: "starting",
		StateIdle:     "idle",
		StateBusy:     "busy",
		StateDraining: "draining",
		StateDead:     "dead",
		State(42):     "unknown",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(s), got, want)
		}
	}
}
