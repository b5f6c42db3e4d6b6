package connection

import (
	"errors"

	"github.com/danmuck/portagent/internal/network"
	"github.com/rs/zerolog"
)

// InstrumentDigiConnection reaches a terminal server that exposes the
// instrument on a data port and its own control interface on a separate
// command port.
type InstrumentDigiConnection struct {
	data    *network.TCPSocket
	command *network.TCPSocket
	logger  zerolog.Logger
}

var _ Connection = (*InstrumentDigiConnection)(nil)

func NewInstrumentDigiConnection(opts network.Options) *InstrumentDigiConnection {
	return &InstrumentDigiConnection{
		data:    network.NewTCPSocket(opts),
		command: network.NewTCPSocket(opts),
		logger:  opts.Logger.With().Str("connection", string(TypeDigi)).Logger(),
	}
}

func (c *InstrumentDigiConnection) Type() Type { return TypeDigi }

func (c *InstrumentDigiConnection) SetDataHost(host string)    { c.data.SetHostname(host) }
func (c *InstrumentDigiConnection) SetDataPort(port int)       { c.data.SetPort(port) }
func (c *InstrumentDigiConnection) SetCommandHost(host string) { c.command.SetHostname(host) }
func (c *InstrumentDigiConnection) SetCommandPort(port int)    { c.command.SetPort(port) }

func (c *InstrumentDigiConnection) DataConfigured() bool    { return c.data.IsConfigured() }
func (c *InstrumentDigiConnection) CommandConfigured() bool { return c.command.IsConfigured() }

// Initialized collapses to Configured on both channels, as for the plain TCP
// variant: a dial in flight is not reported as a separate stage.
func (c *InstrumentDigiConnection) DataInitialized() bool    { return c.DataConfigured() }
func (c *InstrumentDigiConnection) CommandInitialized() bool { return c.CommandConfigured() }

func (c *InstrumentDigiConnection) DataConnected() bool    { return c.data.Connected() }
func (c *InstrumentDigiConnection) CommandConnected() bool { return c.command.Connected() }

func (c *InstrumentDigiConnection) Initialize() {
	initializeChannel(c.logger, "data", c.data)
	initializeChannel(c.logger, "command", c.command)
}

func (c *InstrumentDigiConnection) DataEndpoint() network.Endpoint    { return c.data }
func (c *InstrumentDigiConnection) CommandEndpoint() network.Endpoint { return c.command }

func (c *InstrumentDigiConnection) SetInbound(ch chan<- network.Chunk) {
	c.data.SetInbound(ch)
	c.command.SetInbound(ch)
}

func (c *InstrumentDigiConnection) Close() error {
	return errors.Join(c.data.Close(), c.command.Close())
}
