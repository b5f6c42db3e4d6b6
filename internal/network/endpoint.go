package network

import (
	"errors"
	"time"

	"github.com/rs/zerolog"
)

var (
	ErrNotConfigured    = errors.New("network: endpoint not configured")
	ErrNotConnected     = errors.New("network: endpoint not connected")
	ErrBreakUnsupported = errors.New("network: break not supported by endpoint")
)

// Kind names the transport variant of an endpoint.
type Kind int

const (
	KindNone Kind = iota
	KindTCPListener
	KindTCPSocket
	KindSerial
)

func (k Kind) String() string {
	switch k {
	case KindTCPListener:
		return "tcp-listener"
	case KindTCPSocket:
		return "tcp-socket"
	case KindSerial:
		return "serial"
	default:
		return "none"
	}
}

// Chunk is one inbound read from an endpoint. Err is set, and Data empty,
// when the peer went away.
type Chunk struct {
	Source Endpoint
	Data   []byte
	Err    error
}

// Endpoint is one configurable transport, listening or dialing.
type Endpoint interface {
	Kind() Kind
	Hostname() string
	Port() int
	// SetHostname and SetPort tear down and re-establish a live transport
	// when the value changes.
	SetHostname(host string)
	SetPort(port int)
	IsConfigured() bool
	// Initialize is idempotent and never waits on the peer. A failure leaves
	// the endpoint unconnected for a later retry.
	Initialize() error
	Initialized() bool
	Connected() bool
	Write(p []byte) (int, error)
	Close() error
	// SetInbound routes reads from peers attached after the call.
	SetInbound(ch chan<- Chunk)
	String() string
}

// Breaker is implemented by endpoints able to send a line break.
type Breaker interface {
	Break(d time.Duration) error
}

// Options tunes endpoint timeouts and logging.
type Options struct {
	DialTimeout    time.Duration
	WriteTimeout   time.Duration
	ReadBufferSize int
	Logger         zerolog.Logger
}

func DefaultOptions() Options {
	return Options{
		DialTimeout:    5 * time.Second,
		WriteTimeout:   2 * time.Second,
		ReadBufferSize: 4096,
		Logger:         zerolog.Nop(),
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.DialTimeout <= 0 {
		o.DialTimeout = d.DialTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = d.WriteTimeout
	}
	if o.ReadBufferSize <= 0 {
		o.ReadBufferSize = d.ReadBufferSize
	}
	return o
}

// Equal compares endpoints structurally: same kind, hostname and port.
// Two absent endpoints are equal; an absent and a present one are not.
func Equal(a, b Endpoint) bool {
	aNil, bNil := isNil(a), isNil(b)
	if aNil || bNil {
		return aNil && bNil
	}
	return a.Kind() == b.Kind() && a.Hostname() == b.Hostname() && a.Port() == b.Port()
}

func isNil(e Endpoint) bool {
	if e == nil {
		return true
	}
	switch v := e.(type) {
	case *TCPListener:
		return v == nil
	case *TCPSocket:
		return v == nil
	case *SerialPort:
		return v == nil
	}
	return false
}

func validPort(p int) bool {
	return p > 0 && p <= 0xFFFF
}
