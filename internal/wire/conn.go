package wire

import (
	"fmt"
	"io"
)

// Conn exchanges control messages and their binary payloads over a stream pair.
type Conn struct {
	r io.Reader
	w *Writer
}

// NewConn returns a Conn reading from r and writing to w.
func NewConn(r io.Reader, w io.Writer) *Conn {
	return &Conn{r: r, w: NewWriter(w)}
}

// hasPayload reports whether a binary frame follows m on the wire.
// A buffer request always carries one, even when empty.
func hasPayload(m Message) bool {
	switch v := m.(type) {
	case *ConvertBuffer:
		return true
	case *Result:
		return v.OutputSize > 0
	}
	return false
}

// Send writes m and, for messages that declare one, the binary payload right
// after it. Both frames leave in one write. Declared sizes are set from payload.
func (c *Conn) Send(m Message, payload []byte) error {
	switch v := m.(type) {
	case *ConvertBuffer:
		v.Size = len(payload)
	case *Result:
		v.OutputSize = len(payload)
	default:
		if payload != nil {
			return fmt.Errorf("%w: %s cannot carry a binary payload", ErrProtocol, m.MessageType())
		}
	}

	header, err := Encode(m)
	if err != nil {
		return err
	}
	if !hasPayload(m) {
		return c.w.WriteFrames(header)
	}
	return c.w.WriteFrames(header, payload)
}

// Receive reads the next message and its binary payload, if it declares one.
//
// ok is false when the stream ended before a complete message arrived.
// Malformed messages and payloads whose length differs from the declared size
// are reported as ErrProtocol.
func (c *Conn) Receive() (m Message, payload []byte, ok bool, err error) {
	header, ok, err := ReadFrame(c.r)
	if !ok || err != nil {
		return nil, nil, false, err
	}
	m, err = Decode(header)
	if err != nil {
		return nil, nil, true, err
	}
	if !hasPayload(m) {
		return m, nil, true, nil
	}

	payload, ok, err = ReadFrame(c.r)
	if !ok || err != nil {
		return nil, nil, false, err
	}
	if want := PayloadSize(m); len(payload) != want {
		return nil, nil, true, fmt.Errorf("%w: %s declared %d bytes, got %d", ErrProtocol, m.MessageType(), want, len(payload))
	}
	return m, payload, true, nil
}
