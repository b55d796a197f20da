package pool

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alnah/go-docconv/internal/process"
	"github.com/alnah/go-docconv/internal/wire"
)

// State is the lifecycle position of a Handle.
type State int

// Handle states. Dead is terminal.
const (
	StateStarting State = iota
	StateIdle
	StateBusy
	StateDraining
	StateDead
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateIdle:
		return "idle"
	case StateBusy:
		return "busy"
	case StateDraining:
		return "draining"
	case StateDead:
		return "dead"
	default:
		return "unknown"
	}
}

// Timing defaults for a handle.
const (
	DefaultStartTimeout = 30 * time.Second
	DefaultStopGrace    = 2 * time.Second

	// killWait bounds how long we wait for the OS to reap a killed worker.
	killWait = 5 * time.Second

	// stderrSettle bounds the wait for a request's end marker on stderr.
	stderrSettle = 250 * time.Millisecond
)

// WorkerConfig describes how to launch one worker process.
type WorkerConfig struct {
	Path            string   // worker executable, run without arguments
	Env             []string // appended to the parent environment
	ResourcePath    string   // sent in init
	FontDirectories []string // sent in init
	StartTimeout    time.Duration
	StopGrace       time.Duration
	MaxConversions  int // requests served before Draining; 0 means unlimited
}

func (c WorkerConfig) withDefaults() WorkerConfig {
	if c.StartTimeout <= 0 {
		c.StartTimeout = DefaultStartTimeout
	}
	if c.StopGrace <= 0 {
		c.StopGrace = DefaultStopGrace
	}
	return c
}

// Request is one conversion to run on a worker.
type Request struct {
	Message wire.Message  // *wire.ConvertFile or *wire.ConvertBuffer
	Payload []byte        // document bytes for buffer requests
	Timeout time.Duration // overrides the pool timeout when positive
}

// Response is what a worker answered.
type Response struct {
	Result   *wire.Result
	Output   []byte // PDF bytes for buffer requests
	Stderr   string // stderr written while this request ran
	PID      int
	Slot     int
	Duration time.Duration
}

// Handle owns one worker process and its pipes.
// Execute must not be called concurrently; the pool serializes access.
type Handle struct {
	cfg    WorkerConfig
	slot   int
	logger *zap.Logger

	mu     sync.Mutex
	state  State
	served int
	cmd    *exec.Cmd
	pid    int

	stdin  *os.File
	stdout *os.File
	stderr *os.File
	conn   *wire.Conn
	errlog *stderrLog

	exited  chan struct{}
	exitErr error

	stopOnce    sync.Once
	releaseOnce sync.Once
}

// NewHandle returns an unstarted handle for slot.
func NewHandle(cfg WorkerConfig, slot int, logger *zap.Logger) *Handle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handle{
		cfg:    cfg.withDefaults(),
		slot:   slot,
		logger: logger.With(zap.Int("slot", slot)),
		state:  StateStarting,
		exited: make(chan struct{}),
		errlog: newStderrLog(),
	}
}

// State returns the current state.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// PID returns the worker process id, or 0 before spawn.
func (h *Handle) PID() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pid
}

// Served returns how many requests completed on this process.
func (h *Handle) Served() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.served
}

// Start spawns the worker and performs the init handshake under the start
// timeout. Any failure leaves the handle Dead; it is never retried here.
func (h *Handle) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.state != StateStarting || h.cmd != nil {
		state := h.state
		h.mu.Unlock()
		return fmt.Errorf("%w: handle is %s", ErrStartFailed, state)
	}
	err := h.spawn()
	h.mu.Unlock()
	if err != nil {
		h.setState(StateDead)
		return fmt.Errorf("%w: spawning %s: %w", ErrStartFailed, h.cfg.Path, err)
	}

	log := h.logger.With(zap.Int("pid", h.pid))
	log.Debug("worker spawned", zap.String("path", h.cfg.Path))

	hello := &wire.Init{ResourcePath: h.cfg.ResourcePath, FontDirectories: h.cfg.FontDirectories}
	m, _, err := h.roundTrip(ctx, h.cfg.StartTimeout, func() error { return h.conn.Send(hello, nil) })
	if err != nil {
		h.terminate()
		log.Warn("worker handshake failed", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrStartFailed, err)
	}

	reply, ok := m.(*wire.InitResult)
	switch {
	case !ok:
		h.terminate()
		return fmt.Errorf("%w: %w: expected init_result, got %s", ErrStartFailed, ErrCrashed, m.MessageType())
	case !reply.OK:
		h.terminate()
		log.Warn("worker rejected init", zap.String("error", reply.Error))
		return fmt.Errorf("%w: %s", ErrStartFailed, reply.Error)
	}

	h.mu.Lock()
	if h.state == StateStarting {
		h.state = StateIdle
	}
	state := h.state
	h.mu.Unlock()
	if state != StateIdle {
		return fmt.Errorf("%w: stopped during startup", ErrStartFailed)
	}
	log.Info("worker ready")
	return nil
}

// spawn starts the process with exclusive pipes. Caller holds mu.
func (h *Handle) spawn() error {
	var p pipes
	if err := p.open(); err != nil {
		return err
	}

	cmd := exec.Command(h.cfg.Path) // #nosec G204 -- configured worker binary
	cmd.Env = append(os.Environ(), h.cfg.Env...)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = p.stdinR, p.stdoutW, p.stderrW
	process.Isolate(cmd)

	if err := cmd.Start(); err != nil {
		p.closeAll()
		return err
	}
	p.closeChildEnds()

	h.cmd = cmd
	h.pid = cmd.Process.Pid
	h.stdin, h.stdout, h.stderr = p.stdinW, p.stdoutR, p.stderrR
	h.conn = wire.NewConn(h.stdout, h.stdin)

	go h.errlog.pump(h.stderr)
	go func() {
		h.exitErr = cmd.Wait()
		close(h.exited)
		h.reaped()
	}()
	return nil
}

// reaped retires a handle whose process exited while nobody was using it.
// Busy and Starting handles are left to the request or handshake in flight,
// which sees the exit itself.
func (h *Handle) reaped() {
	h.mu.Lock()
	idle := h.state == StateIdle || h.state == StateDraining
	if idle {
		h.state = StateDead
	}
	pid := h.pid
	h.mu.Unlock()
	if !idle {
		return
	}
	h.logger.Warn("worker exited while idle", zap.Int("pid", pid), zap.Error(h.exitStatus()))
	h.release()
}

// hasExited reports whether the process has been reaped.
func (h *Handle) hasExited() bool {
	select {
	case <-h.exited:
		return true
	default:
		return false
	}
}

// Execute sends req and waits for the result, the timeout, ctx or the
// process exit, whichever comes first.
//
// Worker-reported failures come back as a Response with Result.Success false.
// Timeout, cancellation and crashes return an error wrapping ErrTimeout,
// ErrCanceled or ErrCrashed; the process is killed and the handle is Dead.
func (h *Handle) Execute(ctx context.Context, req Request, timeout time.Duration) (*Response, error) {
	h.mu.Lock()
	if h.state != StateIdle {
		state := h.state
		h.mu.Unlock()
		return nil, fmt.Errorf("%w: handle is %s", ErrNotIdle, state)
	}
	h.state = StateBusy
	pid := h.pid
	h.mu.Unlock()

	id := requestID(req.Message)
	log := h.logger.With(zap.Int("pid", pid), zap.String("request_id", id))

	from := h.errlog.mark()
	start := time.Now()
	m, payload, err := h.roundTrip(ctx, timeout, func() error { return h.conn.Send(req.Message, req.Payload) })
	if err == nil {
		err = checkResult(m, id)
	}
	if err != nil {
		h.terminate()
		log.Warn("worker request failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
		return nil, err
	}

	resp := &Response{
		Result:   m.(*wire.Result),
		Output:   payload,
		Stderr:   h.errlog.take(from, wire.EndMarker(id), stderrSettle),
		PID:      pid,
		Slot:     h.slot,
		Duration: time.Since(start),
	}

	h.mu.Lock()
	h.served++
	if h.state == StateBusy {
		h.state = StateIdle
		if h.cfg.MaxConversions > 0 && h.served >= h.cfg.MaxConversions {
			h.state = StateDraining
		}
	}
	h.mu.Unlock()

	log.Debug("worker request done", zap.Bool("success", resp.Result.Success), zap.Duration("duration", resp.Duration))
	return resp, nil
}

// requestID returns the correlation id of m, assigning one when empty.
func requestID(m wire.Message) string {
	switch v := m.(type) {
	case *wire.ConvertFile:
		if v.ID == "" {
			v.ID = uuid.NewString()
		}
		return v.ID
	case *wire.ConvertBuffer:
		if v.ID == "" {
			v.ID = uuid.NewString()
		}
		return v.ID
	}
	return ""
}

func checkResult(m wire.Message, id string) error {
	res, ok := m.(*wire.Result)
	if !ok {
		return fmt.Errorf("%w: expected result, got %s", ErrCrashed, m.MessageType())
	}
	if res.ID != id {
		return fmt.Errorf("%w: result id %q does not match request %q", ErrCrashed, res.ID, id)
	}
	return nil
}

// exchange is the outcome of one send/receive on the worker pipes.
type exchange struct {
	msg     wire.Message
	payload []byte
	ok      bool
	err     error
}

// roundTrip runs send then one Receive in the background and races it
// against the deadline, ctx and process exit. Writes happen inside the race
// too, so a worker that stops reading cannot block us past the deadline.
func (h *Handle) roundTrip(ctx context.Context, timeout time.Duration, send func() error) (wire.Message, []byte, error) {
	done := make(chan exchange, 1)
	go func() {
		if err := send(); err != nil {
			done <- exchange{err: err}
			return
		}
		m, payload, ok, err := h.conn.Receive()
		done <- exchange{msg: m, payload: payload, ok: ok, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case x := <-done:
		switch {
		case x.err != nil:
			return nil, nil, fmt.Errorf("%w: %w", ErrCrashed, x.err)
		case !x.ok:
			return nil, nil, fmt.Errorf("%w: worker closed its output", ErrCrashed)
		}
		return x.msg, x.payload, nil
	case <-timer.C:
		return nil, nil, fmt.Errorf("%w after %s", ErrTimeout, timeout)
	case <-ctx.Done():
		return nil, nil, fmt.Errorf("%w: %w", ErrCanceled, ctx.Err())
	case <-h.exited:
		return nil, nil, fmt.Errorf("%w: process exited: %v", ErrCrashed, h.exitStatus())
	}
}

func (h *Handle) exitStatus() error {
	if h.exitErr == nil {
		return errors.New("exit status 0")
	}
	return h.exitErr
}

// terminate kills the process and marks the handle Dead.
func (h *Handle) terminate() {
	h.setState(StateDead)
	h.kill()
	h.release()
}

// kill force-terminates the process tree and waits for it to be reaped.
func (h *Handle) kill() {
	h.mu.Lock()
	cmd := h.cmd
	h.mu.Unlock()
	if cmd == nil {
		return
	}

	select {
	case <-h.exited:
		return
	default:
	}

	process.KillProcessGroup(cmd.Process.Pid)
	_ = cmd.Process.Kill()

	select {
	case <-h.exited:
	case <-time.After(killWait):
		h.logger.Error("worker did not exit after kill", zap.Int("pid", cmd.Process.Pid))
	}
}

// Stop asks the worker to exit by closing its stdin, waits up to grace, then
// kills it. Pipes are released on every path. Safe to call more than once
// and concurrently with Execute.
func (h *Handle) Stop(grace time.Duration) {
	h.stopOnce.Do(func() {
		h.mu.Lock()
		h.state = StateDead
		cmd := h.cmd
		h.mu.Unlock()
		if cmd == nil {
			return
		}
		defer h.release()

		_ = h.stdin.Close()
		timer := time.NewTimer(grace)
		defer timer.Stop()
		select {
		case <-h.exited:
			h.logger.Debug("worker exited", zap.Int("pid", cmd.Process.Pid))
		case <-timer.C:
			h.logger.Warn("worker ignored shutdown, killing", zap.Int("pid", cmd.Process.Pid))
			h.kill()
		}
	})
}

// release closes the parent ends of all pipes.
func (h *Handle) release() {
	h.releaseOnce.Do(func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		for _, f := range []*os.File{h.stdin, h.stdout, h.stderr} {
			if f != nil {
				_ = f.Close()
			}
		}
	})
}

func (h *Handle) setState(s State) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
}

// pipes holds both ends of the three standard streams of a worker.
type pipes struct {
	stdinR, stdinW   *os.File
	stdoutR, stdoutW *os.File
	stderrR, stderrW *os.File
}

func (p *pipes) open() error {
	var err error
	if p.stdinR, p.stdinW, err = os.Pipe(); err != nil {
		return err
	}
	if p.stdoutR, p.stdoutW, err = os.Pipe(); err != nil {
		p.closeAll()
		return err
	}
	if p.stderrR, p.stderrW, err = os.Pipe(); err != nil {
		p.closeAll()
		return err
	}
	return nil
}

// closeChildEnds closes the ends inherited by the child so EOF propagates
// when it exits.
func (p *pipes) closeChildEnds() {
	_ = p.stdinR.Close()
	_ = p.stdoutW.Close()
	_ = p.stderrW.Close()
}

func (p *pipes) closeAll() {
	for _, f := range []*os.File{p.stdinR, p.stdinW, p.stdoutR, p.stdoutW, p.stderrR, p.stderrW} {
		if f != nil {
			_ = f.Close()
		}
	}
}
