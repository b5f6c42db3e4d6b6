package publisher

import "github.com/danmuck/portagent/internal/packet"

const (
	NameInstrumentData    = "instrument_data"
	NameInstrumentCommand = "instrument_command"
	NameDriverData        = "driver_data"
	NameDriverCommand     = "driver_command"
	NameSniffer           = "sniffer"
	NameLog               = "data_log"
	NameTap               = "tap"
)

// NewInstrumentDataPublisher forwards driver traffic to the instrument's data
// channel unwrapped.
func NewInstrumentDataPublisher() *Publisher {
	return newPublisher(NameInstrumentData, EncodingRaw, packet.DataFromDriver)
}

// NewInstrumentCommandPublisher forwards instrument commands to the
// instrument's command channel unwrapped.
func NewInstrumentCommandPublisher() *Publisher {
	return newPublisher(NameInstrumentCommand, EncodingRaw, packet.InstrumentCommand)
}

// NewDriverDataPublisher feeds the driver's data connection.
func NewDriverDataPublisher() *Publisher {
	return newPublisher(NameDriverData, EncodingBinary,
		packet.DataFromInstrument,
		packet.PortAgentStatus,
		packet.PortAgentFault,
		packet.Heartbeat,
	)
}

// NewDriverCommandPublisher answers the driver's command connection.
func NewDriverCommandPublisher() *Publisher {
	return newPublisher(NameDriverCommand, EncodingASCII,
		packet.PortAgentStatus,
		packet.PortAgentFault,
	)
}

// NewSnifferPublisher mirrors instrument traffic in both directions.
func NewSnifferPublisher() *Publisher {
	return newPublisher(NameSniffer, EncodingASCII,
		packet.DataFromInstrument,
		packet.DataFromDriver,
	)
}

// NewLogPublisher records every packet type.
func NewLogPublisher() *Publisher {
	return newPublisher(NameLog, EncodingBinary, packet.AllTypes()...)
}

// NewTapPublisher streams every packet type to live observers.
func NewTapPublisher() *Publisher {
	return newPublisher(NameTap, EncodingASCII, packet.AllTypes()...)
}
