package connection

import (
	"github.com/danmuck/portagent/internal/network"
	"github.com/rs/zerolog"
)

// InstrumentTCPConnection reaches the instrument through one dialed TCP
// socket. It has no command channel.
type InstrumentTCPConnection struct {
	data   *network.TCPSocket
	logger zerolog.Logger
}

var _ Connection = (*InstrumentTCPConnection)(nil)

func NewInstrumentTCPConnection(opts network.Options) *InstrumentTCPConnection {
	return &InstrumentTCPConnection{
		data:   network.NewTCPSocket(opts),
		logger: opts.Logger.With().Str("connection", string(TypeTCP)).Logger(),
	}
}

func (c *InstrumentTCPConnection) Type() Type { return TypeTCP }

func (c *InstrumentTCPConnection) SetDataHost(host string) { c.data.SetHostname(host) }
func (c *InstrumentTCPConnection) SetDataPort(port int)    { c.data.SetPort(port) }
func (c *InstrumentTCPConnection) SetCommandHost(string)   {}
func (c *InstrumentTCPConnection) SetCommandPort(int)      {}

func (c *InstrumentTCPConnection) DataConfigured() bool    { return c.data.IsConfigured() }
func (c *InstrumentTCPConnection) CommandConfigured() bool { return false }

// DataInitialized collapses to DataConfigured: there is no setup step beyond
// knowing where to dial.
func (c *InstrumentTCPConnection) DataInitialized() bool    { return c.DataConfigured() }
func (c *InstrumentTCPConnection) CommandInitialized() bool { return false }

func (c *InstrumentTCPConnection) DataConnected() bool    { return c.data.Connected() }
func (c *InstrumentTCPConnection) CommandConnected() bool { return false }

func (c *InstrumentTCPConnection) Initialize() {
	initializeChannel(c.logger, "data", c.data)
}

func (c *InstrumentTCPConnection) DataEndpoint() network.Endpoint    { return c.data }
func (c *InstrumentTCPConnection) CommandEndpoint() network.Endpoint { return nil }

func (c *InstrumentTCPConnection) SetInbound(ch chan<- network.Chunk) { c.data.SetInbound(ch) }

func (c *InstrumentTCPConnection) Close() error { return c.data.Close() }
