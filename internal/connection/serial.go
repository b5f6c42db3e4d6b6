package connection

import (
	"time"

	"github.com/danmuck/portagent/internal/network"
	"github.com/rs/zerolog"
)

// InstrumentSerialConnection reaches the instrument over a local serial
// device. Data host is the device path and data port the baud rate.
type InstrumentSerialConnection struct {
	data   *network.SerialPort
	logger zerolog.Logger
}

var _ Connection = (*InstrumentSerialConnection)(nil)

func NewInstrumentSerialConnection(opts network.Options) *InstrumentSerialConnection {
	return &InstrumentSerialConnection{
		data:   network.NewSerialPort(opts),
		logger: opts.Logger.With().Str("connection", string(TypeSerial)).Logger(),
	}
}

func (c *InstrumentSerialConnection) Type() Type { return TypeSerial }

func (c *InstrumentSerialConnection) SetDataHost(device string) { c.data.SetHostname(device) }
func (c *InstrumentSerialConnection) SetDataPort(baud int)      { c.data.SetPort(baud) }
func (c *InstrumentSerialConnection) SetCommandHost(string)     {}
func (c *InstrumentSerialConnection) SetCommandPort(int)        {}

func (c *InstrumentSerialConnection) DataConfigured() bool     { return c.data.IsConfigured() }
func (c *InstrumentSerialConnection) CommandConfigured() bool  { return false }
func (c *InstrumentSerialConnection) DataInitialized() bool    { return c.data.Initialized() }
func (c *InstrumentSerialConnection) CommandInitialized() bool { return false }
func (c *InstrumentSerialConnection) DataConnected() bool      { return c.data.Connected() }
func (c *InstrumentSerialConnection) CommandConnected() bool   { return false }

func (c *InstrumentSerialConnection) Initialize() {
	initializeChannel(c.logger, "data", c.data)
}

func (c *InstrumentSerialConnection) DataEndpoint() network.Endpoint    { return c.data }
func (c *InstrumentSerialConnection) CommandEndpoint() network.Endpoint { return nil }

func (c *InstrumentSerialConnection) SetInbound(ch chan<- network.Chunk) { c.data.SetInbound(ch) }

// Break sends a serial line break on the data channel.
func (c *InstrumentSerialConnection) Break(d time.Duration) error { return c.data.Break(d) }

func (c *InstrumentSerialConnection) Close() error { return c.data.Close() }
