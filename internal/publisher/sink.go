package publisher

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/danmuck/portagent/internal/network"
)

// SinkKind tags the concrete destination behind a Sink.
type SinkKind int

const (
	SinkEndpoint SinkKind = iota + 1
	SinkFile
	SinkTap
)

func (k SinkKind) String() string {
	switch k {
	case SinkEndpoint:
		return "endpoint"
	case SinkFile:
		return "file"
	case SinkTap:
		return "tap"
	default:
		return "none"
	}
}

// Sink is the destination a publisher writes to. Sinks are shared
// references owned elsewhere; publishers only write to them.
type Sink interface {
	Kind() SinkKind
	Configured() bool
	Write(p []byte) (int, error)
	// Equal is only called with a sink of the same kind.
	Equal(other Sink) bool
	String() string
}

// SinkEqual compares sinks structurally. Two absent sinks are equal, an
// absent and a present sink are not, and sinks of different kinds never are.
func SinkEqual(a, b Sink) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	return a.Equal(b)
}

// EndpointSink writes to a network endpoint.
type EndpointSink struct {
	ep network.Endpoint
}

func NewEndpointSink(ep network.Endpoint) *EndpointSink {
	return &EndpointSink{ep: ep}
}

func (s *EndpointSink) Kind() SinkKind { return SinkEndpoint }

func (s *EndpointSink) Endpoint() network.Endpoint { return s.ep }

func (s *EndpointSink) Configured() bool {
	return s.ep != nil && s.ep.IsConfigured()
}

func (s *EndpointSink) Write(p []byte) (int, error) {
	if s.ep == nil {
		return 0, network.ErrNotConfigured
	}
	return s.ep.Write(p)
}

func (s *EndpointSink) Equal(other Sink) bool {
	o, ok := other.(*EndpointSink)
	if !ok {
		return false
	}
	return network.Equal(s.ep, o.ep)
}

func (s *EndpointSink) String() string {
	if s.ep == nil {
		return "endpoint://<nil>"
	}
	return s.ep.String()
}

// FileSink appends to a local file.
type FileSink struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

// OpenFileSink opens path for appending, creating it when missing. A file
// that cannot be opened is a configuration error for the caller.
func OpenFileSink(path string) (*FileSink, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("publisher: resolve %s: %w", path, err)
	}
	f, err := os.OpenFile(abs, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("publisher: open %s: %w", abs, err)
	}
	return &FileSink{path: abs, f: f}, nil
}

func (s *FileSink) Kind() SinkKind { return SinkFile }

func (s *FileSink) Path() string { return s.path }

func (s *FileSink) Configured() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f != nil
}

func (s *FileSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return 0, os.ErrClosed
	}
	return s.f.Write(p)
}

func (s *FileSink) Equal(other Sink) bool {
	o, ok := other.(*FileSink)
	return ok && s.path == o.path
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

func (s *FileSink) String() string {
	return "file://" + s.path
}
