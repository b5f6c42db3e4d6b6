package connection

import (
	"fmt"
	"strings"

	"github.com/danmuck/portagent/internal/network"
	"github.com/rs/zerolog"
)

// Connection is the capability set shared by every instrument transport.
// Variants without a command channel report false for every command query
// and ignore command configuration.
type Connection interface {
	Type() Type

	SetDataHost(host string)
	SetDataPort(port int)
	SetCommandHost(host string)
	SetCommandPort(port int)

	DataConfigured() bool
	CommandConfigured() bool
	DataInitialized() bool
	CommandInitialized() bool
	DataConnected() bool
	CommandConnected() bool

	// Initialize brings up every configured, unconnected channel. Unconfigured
	// channels are skipped; nothing here is fatal.
	Initialize()

	DataEndpoint() network.Endpoint
	// CommandEndpoint is nil for variants without a command channel.
	CommandEndpoint() network.Endpoint

	SetInbound(ch chan<- network.Chunk)
	Close() error
}

// Type selects a Connection variant.
type Type string

const (
	TypeTCP    Type = "tcp"
	TypeSerial Type = "serial"
	TypeDigi   Type = "digi"
)

func ParseType(raw string) (Type, error) {
	switch t := Type(strings.ToLower(strings.TrimSpace(raw))); t {
	case TypeTCP, TypeSerial, TypeDigi:
		return t, nil
	default:
		return "", fmt.Errorf("connection: unknown type %q", raw)
	}
}

// New builds an unconfigured connection of the given variant.
func New(t Type, opts network.Options) (Connection, error) {
	switch t {
	case TypeTCP:
		return NewInstrumentTCPConnection(opts), nil
	case TypeSerial:
		return NewInstrumentSerialConnection(opts), nil
	case TypeDigi:
		return NewInstrumentDigiConnection(opts), nil
	default:
		return nil, fmt.Errorf("connection: unknown type %q", t)
	}
}

func initializeChannel(logger zerolog.Logger, name string, ep network.Endpoint) {
	if !ep.IsConfigured() {
		logger.Debug().Str("channel", name).Msg("not configured, not initializing")
		return
	}
	if ep.Connected() {
		return
	}
	logger.Debug().Str("channel", name).Str("endpoint", ep.String()).Msg("initialize")
	if err := ep.Initialize(); err != nil {
		logger.Debug().Str("channel", name).Str("endpoint", ep.String()).Err(err).Msg("initialize failed, will retry")
	}
}
