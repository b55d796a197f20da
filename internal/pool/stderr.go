package pool

import (
	"bytes"
	"io"
	"sync"
	"time"

	"github.com/alnah/go-docconv/internal/wire"
)

// maxStderrBytes caps buffered worker stderr; older bytes are dropped first.
const maxStderrBytes = 64 * 1024

// stderrLog accumulates a worker's stderr and hands out the slice written
// during one request. Offsets are absolute byte counts since spawn.
type stderrLog struct {
	mu      sync.Mutex
	buf     []byte
	base    int64 // absolute offset of buf[0]
	closed  bool
	changed chan struct{}
}

func newStderrLog() *stderrLog {
	return &stderrLog{changed: make(chan struct{})}
}

// Write appends p and wakes waiters.
func (l *stderrLog) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.buf = append(l.buf, p...)
	if over := len(l.buf) - maxStderrBytes; over > 0 {
		l.buf = append(l.buf[:0:0], l.buf[over:]...)
		l.base += int64(over)
	}
	l.notify()
	return len(p), nil
}

// pump copies r into the log until r fails, then marks the log closed.
func (l *stderrLog) pump(r io.Reader) {
	_, _ = io.Copy(l, r)
	l.mu.Lock()
	l.closed = true
	l.notify()
	l.mu.Unlock()
}

func (l *stderrLog) notify() {
	close(l.changed)
	l.changed = make(chan struct{})
}

// mark drops everything buffered so far and returns the current end offset.
// Bytes written before a request starts never reach its diagnostics.
func (l *stderrLog) mark() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.base += int64(len(l.buf))
	l.buf = l.buf[:0]
	return l.base
}

// take returns what was written after offset from up to the marker line,
// waiting at most settle for the marker to arrive. Without a marker it
// returns whatever arrived in time. Output ending in another request's
// marker line is late output from that request and is dropped. Consumed
// bytes, marker included, are dropped.
func (l *stderrLog) take(from int64, marker string, settle time.Duration) string {
	timer := time.NewTimer(settle)
	defer timer.Stop()

	needle := []byte(marker)
	for {
		l.mu.Lock()
		start := l.windowStart(from, needle)
		window := l.buf[start:]
		if i := bytes.Index(window, needle); i >= 0 {
			text := string(window[:i])
			l.consume(start + int64(i+len(needle)))
			l.mu.Unlock()
			return text
		}
		if l.closed {
			text := string(window)
			l.consume(int64(len(l.buf)))
			l.mu.Unlock()
			return text
		}
		changed := l.changed
		l.mu.Unlock()

		select {
		case <-changed:
		case <-timer.C:
			l.mu.Lock()
			start = l.windowStart(from, needle)
			text := string(l.buf[start:])
			l.consume(int64(len(l.buf)))
			l.mu.Unlock()
			return text
		}
	}
}

// windowStart returns the buffer index where output for from begins, past
// any complete end marker line other than own. Caller holds mu.
func (l *stderrLog) windowStart(from int64, own []byte) int64 {
	start := min(max(from-l.base, 0), int64(len(l.buf)))
	prefix := []byte(wire.EndMarkerPrefix)
	for {
		rest := l.buf[start:]
		i := bytes.Index(rest, prefix)
		if i < 0 {
			return start
		}
		nl := bytes.IndexByte(rest[i:], '\n')
		if nl < 0 || bytes.Equal(rest[i:i+nl+1], own) {
			return start
		}
		start += int64(i + nl + 1)
	}
}

// consume drops the first n buffered bytes. Caller holds mu.
func (l *stderrLog) consume(n int64) {
	l.buf = append(l.buf[:0:0], l.buf[n:]...)
	l.base += n
}
