package worker

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/alnah/go-docconv/internal/wire"
)

// Sentinel errors returned by Serve.
var (
	ErrHandshake  = errors.New("handshake failed")
	ErrEngineInit = errors.New("engine initialization failed")
	ErrUnexpected = errors.New("unexpected message")
)

// Serve runs the worker side of the protocol until in reaches end of stream.
//
// The first message must be init; nothing is converted before the engine
// reports ready. Each request then gets exactly one result, followed on diag
// by an end marker so the caller can scope stderr to that request.
//
// Serve returns nil when in ends between requests and an error otherwise;
// the worker executable turns that into its exit status.
func Serve(ctx context.Context, in io.Reader, out io.Writer, diag io.Writer, eng Engine) error {
	s := &server{conn: wire.NewConn(in, out), diag: diag, eng: eng}

	ready, err := s.handshake(ctx)
	if err != nil || !ready {
		return err
	}
	defer func() { _ = eng.Close() }()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		m, payload, ok, err := s.conn.Receive()
		if err != nil {
			return fmt.Errorf("reading request: %w", err)
		}
		if !ok {
			return nil
		}

		if err := s.handle(ctx, m, payload); err != nil {
			return err
		}
	}
}

type server struct {
	conn *wire.Conn
	diag io.Writer
	eng  Engine
}

// handshake answers the init message. ready is false when the stream ended
// before init arrived, which is a clean exit.
func (s *server) handshake(ctx context.Context) (ready bool, err error) {
	m, _, ok, err := s.conn.Receive()
	if err != nil {
		reply := &wire.InitResult{Error: err.Error()}
		_ = s.conn.Send(reply, nil)
		return false, fmt.Errorf("%w: %v", ErrHandshake, err)
	}
	if !ok {
		return false, nil
	}

	req, isInit := m.(*wire.Init)
	if !isInit {
		reply := &wire.InitResult{Error: fmt.Sprintf("expected init, got %s", m.MessageType())}
		_ = s.conn.Send(reply, nil)
		return false, fmt.Errorf("%w: first message was %s", ErrHandshake, m.MessageType())
	}

	params := InitParams{
		ResourcePath:    req.ResourcePath,
		FontDirectories: req.FontDirectories,
		Diagnostics:     s.diag,
	}
	if err := s.eng.Init(ctx, params); err != nil {
		_ = s.conn.Send(&wire.InitResult{Error: err.Error()}, nil)
		return false, fmt.Errorf("%w: %v", ErrEngineInit, err)
	}

	if err := s.conn.Send(&wire.InitResult{OK: true}, nil); err != nil {
		return false, fmt.Errorf("writing init_result: %w", err)
	}
	return true, nil
}

// handle runs one request and writes its result and end marker.
func (s *server) handle(ctx context.Context, m wire.Message, payload []byte) error {
	var (
		id     string
		result *wire.Result
		pdf    []byte
	)

	switch req := m.(type) {
	case *wire.ConvertFile:
		id = req.ID
		err := s.eng.ConvertFile(ctx, req.InputPath, req.OutputPath, req.Format, optionsOf(req.Options))
		result = resultFor(id, err)
	case *wire.ConvertBuffer:
		id = req.ID
		out, err := s.eng.Convert(ctx, payload, req.Format, optionsOf(req.Options))
		result = resultFor(id, err)
		if err == nil {
			result.OutputFormat = "pdf"
			pdf = out
		}
	case *wire.Init:
		result = resultFor("", Errorf(CodeProtocol, "worker already initialized"))
	default:
		return fmt.Errorf("%w: %s", ErrUnexpected, m.MessageType())
	}

	if err := s.conn.Send(result, pdf); err != nil {
		return fmt.Errorf("writing result: %w", err)
	}
	// The marker trails everything the engine wrote for this request.
	_, _ = io.WriteString(s.diag, wire.EndMarker(id))
	return nil
}

func resultFor(id string, err error) *wire.Result {
	if err == nil {
		return &wire.Result{ID: id, Success: true}
	}
	return &wire.Result{
		ID:        id,
		ErrorCode: string(CodeOf(err)),
		Error:     err.Error(),
	}
}

func optionsOf(o *wire.Options) wire.Options {
	if o == nil {
		return wire.Options{}
	}
	return *o
}
