package wire

import (
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
)

// Type tags a control message.
type Type string

// Message types carried in the "type" field.
const (
	TypeInit          Type = "init"
	TypeInitResult    Type = "init_result"
	TypeConvertFile   Type = "convert_file"
	TypeConvertBuffer Type = "convert_buffer"
	TypeResult        Type = "result"
)

// Sentinel errors for message decoding.
var (
	ErrProtocol    = errors.New("protocol error")
	ErrUnknownType = errors.New("unknown message type")
)

// json is the codec for control messages.
var json = sonic.ConfigStd

// Message is one JSON control object. The set of implementations is closed.
type Message interface {
	MessageType() Type
	validate() error
}

// Options carries conversion options. Zero values mean "engine default".
type Options struct {
	PDFVersion string `json:"pdf_version,omitempty"`
	Quality    int    `json:"quality,omitempty"`
	DPI        int    `json:"dpi,omitempty"`
	Tagged     bool   `json:"tagged,omitempty"`
	PageRange  string `json:"page_range,omitempty"`
	Password   string `json:"password,omitempty"`
}

// Init is the handshake, always the first frame sent to a worker.
type Init struct {
	Type            Type     `json:"type"`
	ResourcePath    string   `json:"resource_path,omitempty"`
	FontDirectories []string `json:"font_directories,omitempty"`
}

// InitResult answers Init.
type InitResult struct {
	Type  Type   `json:"type"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// ConvertFile asks the worker to convert InputPath into OutputPath on disk.
type ConvertFile struct {
	Type       Type     `json:"type"`
	ID         string   `json:"id,omitempty"`
	InputPath  string   `json:"input_path"`
	OutputPath string   `json:"output_path"`
	Format     string   `json:"format,omitempty"`
	Options    *Options `json:"options,omitempty"`
}

// ConvertBuffer announces a binary frame of Size bytes holding the document.
type ConvertBuffer struct {
	Type    Type     `json:"type"`
	ID      string   `json:"id,omitempty"`
	Format  string   `json:"format"`
	Size    int      `json:"size"`
	Options *Options `json:"options,omitempty"`
}

// Result answers a conversion request. When OutputSize is non-zero a binary
// frame of that many bytes follows.
type Result struct {
	Type         Type   `json:"type"`
	ID           string `json:"id,omitempty"`
	Success      bool   `json:"success"`
	ErrorCode    string `json:"error_code,omitempty"`
	Error        string `json:"error,omitempty"`
	OutputFormat string `json:"output_format,omitempty"`
	OutputSize   int    `json:"output_size,omitempty"`
}

func (*Init) MessageType() Type          { return TypeInit }
func (*InitResult) MessageType() Type    { return TypeInitResult }
func (*ConvertFile) MessageType() Type   { return TypeConvertFile }
func (*ConvertBuffer) MessageType() Type { return TypeConvertBuffer }
func (*Result) MessageType() Type        { return TypeResult }

func (*Init) validate() error { return nil }

func (m *InitResult) validate() error {
	if !m.OK && m.Error == "" {
		return fmt.Errorf("%w: init_result rejected without error message", ErrProtocol)
	}
	return nil
}

func (m *ConvertFile) validate() error {
	if m.InputPath == "" || m.OutputPath == "" {
		return fmt.Errorf("%w: convert_file requires input_path and output_path", ErrProtocol)
	}
	return nil
}

func (m *ConvertBuffer) validate() error {
	if m.Size < 0 {
		return fmt.Errorf("%w: convert_buffer size %d is negative", ErrProtocol, m.Size)
	}
	return nil
}

func (m *Result) validate() error {
	if m.OutputSize < 0 {
		return fmt.Errorf("%w: result output_size %d is negative", ErrProtocol, m.OutputSize)
	}
	if m.OutputSize > 0 && !m.Success {
		return fmt.Errorf("%w: failed result declares output", ErrProtocol)
	}
	return nil
}

// PayloadSize reports how many bytes of binary frame follow m, if any.
func PayloadSize(m Message) int {
	switch v := m.(type) {
	case *ConvertBuffer:
		return v.Size
	case *Result:
		return v.OutputSize
	}
	return 0
}

// Encode marshals m, setting its type tag.
func Encode(m Message) ([]byte, error) {
	switch v := m.(type) {
	case *Init:
		v.Type = TypeInit
	case *InitResult:
		v.Type = TypeInitResult
	case *ConvertFile:
		v.Type = TypeConvertFile
	case *ConvertBuffer:
		v.Type = TypeConvertBuffer
	case *Result:
		v.Type = TypeResult
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownType, m)
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", m.MessageType(), err)
	}
	return data, nil
}

// Decode parses a control frame into its concrete message type and validates it.
func Decode(data []byte) (Message, error) {
	var envelope struct {
		Type Type `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}

	var m Message
	switch envelope.Type {
	case TypeInit:
		m = &Init{}
	case TypeInitResult:
		m = &InitResult{}
	case TypeConvertFile:
		m = &ConvertFile{}
	case TypeConvertBuffer:
		m = &ConvertBuffer{}
	case TypeResult:
		m = &Result{}
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrProtocol)
	default:
		return nil, fmt.Errorf("%w: %w %q", ErrProtocol, ErrUnknownType, envelope.Type)
	}

	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", ErrProtocol, envelope.Type, err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return m, nil
}
