package wire

import (
	"encoding/binary"
	"errors"
	"io"
	"slices"
	"sync"
)

// headerSize is the length prefix size in bytes.
const headerSize = 4

// readChunk bounds each allocation while assembling a payload, so a header
// declaring a huge length on a truncated stream never allocates it up front.
const readChunk = 64 << 10

// EncodeFrame returns the wire form of payload: little-endian length, then bytes.
func EncodeFrame(payload []byte) []byte {
	buf := make([]byte, headerSize+len(payload))
	binary.LittleEndian.PutUint32(buf, uint32(len(payload))) // #nosec G115 -- frames are < 4 GiB
	copy(buf[headerSize:], payload)
	return buf
}

// WriteFrame writes one frame with a single Write call.
func WriteFrame(w io.Writer, payload []byte) error {
	_, err := w.Write(EncodeFrame(payload))
	return err
}

// ReadFrame reads one complete frame from r.
//
// ok is false when the stream ends before a full frame is available, whether
// that happens before the header, inside the header or inside the payload.
// err is only set for read failures other than end of stream.
func ReadFrame(r io.Reader) (payload []byte, ok bool, err error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, false, endOfStream(err)
	}

	n := int(binary.LittleEndian.Uint32(header[:]))
	payload = make([]byte, 0, min(n, readChunk))
	for len(payload) < n {
		chunk := min(n-len(payload), readChunk)
		start := len(payload)
		payload = slices.Grow(payload, chunk)[:start+chunk]
		if _, err := io.ReadFull(r, payload[start:]); err != nil {
			return nil, false, endOfStream(err)
		}
	}
	return payload, true, nil
}

// endOfStream maps truncation to "no message" and passes other errors through.
func endOfStream(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return nil
	}
	return err
}

// Writer serializes frames from concurrent goroutines onto one stream.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteFrames writes all payloads as one contiguous unit.
func (fw *Writer) WriteFrames(payloads ...[]byte) error {
	size := 0
	for _, p := range payloads {
		size += headerSize + len(p)
	}
	buf := make([]byte, 0, size)
	for _, p := range payloads {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(p))) // #nosec G115 -- frames are < 4 GiB
		buf = append(buf, p...)
	}

	fw.mu.Lock()
	defer fw.mu.Unlock()
	_, err := fw.w.Write(buf)
	return err
}
