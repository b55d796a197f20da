package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/alnah/go-docconv/internal/metrics"
)

// Pool defaults.
const (
	DefaultTimeout         = 60 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
)

// Config configures a Pool.
type Config struct {
	Size                    int
	MaxConversionsPerWorker int // 0 means unlimited
	Timeout                 time.Duration
	ShutdownTimeout         time.Duration
	Worker                  WorkerConfig
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	switch {
	case c.Size < 1:
		return fmt.Errorf("%w: size must be at least 1, got %d", ErrInvalidConfig, c.Size)
	case c.MaxConversionsPerWorker < 0:
		return fmt.Errorf("%w: max conversions must not be negative", ErrInvalidConfig)
	case c.Timeout < 0, c.ShutdownTimeout < 0:
		return fmt.Errorf("%w: timeouts must not be negative", ErrInvalidConfig)
	case c.Worker.Path == "":
		return fmt.Errorf("%w: worker path is required", ErrInvalidConfig)
	}
	return nil
}

// Option configures optional Pool collaborators.
type Option func(*Pool)

// WithLogger sets the pool logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithMetrics sets the collectors the pool reports to.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pool) {
		if m != nil {
			p.metrics = m
		}
	}
}

// Pool dispatches requests over a fixed number of worker slots.
// Each slot runs at most one request at a time, in arrival order.
type Pool struct {
	cfg     Config
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu     sync.Mutex // guards next, closed and every slot.handle
	next   int
	closed bool
	slots  []*slot

	recycling sync.WaitGroup
	shutdown  sync.Once
	stopErr   error
}

// New creates a pool. No worker is started until WarmUp or the first request.
func New(cfg Config, opts ...Option) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	cfg.Worker.MaxConversions = cfg.MaxConversionsPerWorker

	p := &Pool{
		cfg:     cfg,
		logger:  zap.NewNop(),
		metrics: metrics.New(nil),
		slots:   make([]*slot, cfg.Size),
	}
	for _, opt := range opts {
		opt(p)
	}
	for i := range p.slots {
		p.slots[i] = &slot{index: i}
	}
	return p, nil
}

// Size returns the number of slots.
func (p *Pool) Size() int {
	return len(p.slots)
}

// Execute runs req on the next slot in round-robin order, waiting behind
// earlier requests for that slot. The timeout covers the worker round trip,
// not the wait for the slot. A dead, missing or retiring worker is
// replaced before use. Failed requests are never retried.
func (p *Pool) Execute(ctx context.Context, req Request) (*Response, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	s := p.slots[p.next]
	p.next = (p.next + 1) % len(p.slots)
	ticket := s.enqueue()
	p.mu.Unlock()

	if err := s.wait(ctx, ticket); err != nil {
		p.metrics.Failure(metrics.KindCancel)
		return nil, fmt.Errorf("%w: waiting for slot %d: %w", ErrCanceled, s.index, err)
	}
	defer s.release()

	h, err := p.ensureHandle(ctx, s)
	if err != nil {
		return nil, err
	}

	timeout := p.cfg.Timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}

	p.metrics.Busy.Inc()
	start := time.Now()
	resp, err := h.Execute(ctx, req, timeout)
	p.metrics.Busy.Dec()
	p.observe(s, resp, err, time.Since(start))

	if h.State() == StateDraining {
		p.recycle(s, h)
	}
	return resp, err
}

// ensureHandle returns a started handle for s, replacing it when needed.
// A worker that died between requests is replaced here, so the request
// that finds it never sees the corpse. Caller holds the slot turn.
func (p *Pool) ensureHandle(ctx context.Context, s *slot) (*Handle, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	h := s.handle
	if h != nil {
		switch h.State() {
		case StateIdle:
			if !h.hasExited() {
				p.mu.Unlock()
				return h, nil
			}
		case StateDraining:
			p.recycleLocked(s, h)
		}
	}
	h = NewHandle(p.cfg.Worker, s.index, p.logger)
	s.handle = h
	p.mu.Unlock()

	if err := h.Start(ctx); err != nil {
		p.metrics.Failure(metrics.KindStart)
		p.logger.Warn("worker start failed", zap.Int("slot", s.index), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrCrashed, err)
	}
	p.metrics.Spawns.Inc()
	return h, nil
}

// recycle retires a Draining handle in the background.
func (p *Pool) recycle(s *slot, h *Handle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s.handle == h {
		p.recycleLocked(s, h)
	}
}

func (p *Pool) recycleLocked(s *slot, h *Handle) {
	s.handle = nil
	p.metrics.Recycles.Inc()
	p.logger.Info("recycling worker",
		zap.Int("slot", s.index),
		zap.Int("pid", h.PID()),
		zap.Int("served", h.Served()),
	)
	p.recycling.Add(1)
	go func() {
		defer p.recycling.Done()
		h.Stop(p.cfg.Worker.withDefaults().StopGrace)
	}()
}

func (p *Pool) observe(s *slot, resp *Response, err error, d time.Duration) {
	switch {
	case err == nil && resp.Result.Success:
		p.metrics.ObserveRequest(metrics.OutcomeSuccess, d)
		return
	case err == nil:
		p.metrics.ObserveRequest(metrics.OutcomeFailed, d)
		return
	}

	p.metrics.ObserveRequest(metrics.OutcomeError, d)
	kind := metrics.KindCrash
	switch {
	case errors.Is(err, ErrTimeout):
		kind = metrics.KindTimeout
	case errors.Is(err, ErrCanceled):
		kind = metrics.KindCancel
	}
	p.metrics.Failure(kind)
	p.logger.Warn("worker request failed",
		zap.Int("slot", s.index),
		zap.String("kind", kind),
		zap.Duration("duration", d),
		zap.Error(err),
	)
}

// WarmUp starts every empty slot concurrently and returns how many workers
// are ready. Failures are logged and left to be repaired on first use.
func (p *Pool) WarmUp(ctx context.Context) int {
	var (
		g     errgroup.Group
		ready = make([]bool, len(p.slots))
	)
	for i, s := range p.slots {
		g.Go(func() error {
			if err := s.wait(ctx, p.enqueue(s)); err != nil {
				return nil
			}
			defer s.release()
			if _, err := p.ensureHandle(ctx, s); err != nil {
				return nil
			}
			ready[i] = true
			return nil
		})
	}
	_ = g.Wait()

	n := 0
	for _, ok := range ready {
		if ok {
			n++
		}
	}
	p.logger.Info("pool warmed up", zap.Int("ready", n), zap.Int("size", len(p.slots)))
	return n
}

// enqueue takes a ticket for s under the dispatch lock.
func (p *Pool) enqueue(s *slot) chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return s.enqueue()
}

// Shutdown rejects new requests and stops every worker concurrently,
// bounded by the shutdown timeout and ctx. Later calls return the first
// result.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.shutdown.Do(func() {
		p.mu.Lock()
		p.closed = true
		handles := make([]*Handle, 0, len(p.slots))
		for _, s := range p.slots {
			if s.handle != nil {
				handles = append(handles, s.handle)
				s.handle = nil
			}
		}
		p.mu.Unlock()

		ctx, cancel := context.WithTimeout(ctx, p.cfg.ShutdownTimeout)
		defer cancel()

		grace := p.cfg.Worker.withDefaults().StopGrace
		done := make(chan struct{})
		go func() {
			var g errgroup.Group
			for _, h := range handles {
				g.Go(func() error {
					h.Stop(grace)
					return nil
				})
			}
			_ = g.Wait()
			p.recycling.Wait()
			close(done)
		}()

		select {
		case <-done:
			p.logger.Info("pool shut down", zap.Int("workers", len(handles)))
		case <-ctx.Done():
			for _, h := range handles {
				go h.terminate()
			}
			p.stopErr = fmt.Errorf("%w: %w", ErrShutdownTimeout, ctx.Err())
			p.logger.Warn("pool shutdown timed out, workers killed")
		}
	})
	return p.stopErr
}

// SlotStats describes one slot.
type SlotStats struct {
	Slot   int
	State  State
	PID    int
	Served int
	Queued int
}

// Stats returns a snapshot of every slot. Empty slots report StateDead
// with a zero PID.
func (p *Pool) Stats() []SlotStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]SlotStats, len(p.slots))
	for i, s := range p.slots {
		st := SlotStats{Slot: i, State: StateDead, Queued: s.queued()}
		if h := s.handle; h != nil {
			st.State, st.PID, st.Served = h.State(), h.PID(), h.Served()
		}
		out[i] = st
	}
	return out
}

// slot serializes access to one worker. Tickets are granted in FIFO order.
type slot struct {
	index  int
	handle *Handle // guarded by Pool.mu

	mu      sync.Mutex
	busy    bool
	waiters []chan struct{}
}

// enqueue registers a ticket. The returned channel is closed when the
// caller's turn arrives.
func (s *slot) enqueue() chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	ticket := make(chan struct{})
	if !s.busy && len(s.waiters) == 0 {
		s.busy = true
		close(ticket)
		return ticket
	}
	s.waiters = append(s.waiters, ticket)
	return ticket
}

// wait blocks until ticket is granted or ctx ends. A canceled waiter gives
// up its place; if the turn was granted concurrently it is passed on.
func (s *slot) wait(ctx context.Context, ticket chan struct{}) error {
	select {
	case <-ticket:
		return nil
	case <-ctx.Done():
	}

	s.mu.Lock()
	for i, w := range s.waiters {
		if w == ticket {
			s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
			s.mu.Unlock()
			return ctx.Err()
		}
	}
	s.mu.Unlock()

	// Already granted.
	s.release()
	return ctx.Err()
}

// release hands the turn to the next waiter or marks the slot free.
func (s *slot) release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.waiters) == 0 {
		s.busy = false
		return
	}
	next := s.waiters[0]
	s.waiters = s.waiters[1:]
	close(next)
}

func (s *slot) queued() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.waiters)
}
