package config

import (
	"github.com/danmuck/portagent/internal/agent"
	"github.com/danmuck/portagent/internal/connection"
	"github.com/danmuck/portagent/internal/network"
)

// Agent converts a validated config into the dispatcher's runtime config.
// Serial instruments take their address from device and their data port
// from baud.
func (c Config) Agent() agent.Config {
	out := agent.DefaultConfig()
	out.ID = c.ID
	out.InstrumentType = connection.Type(c.InstrumentType)
	out.InstrumentAddr = c.InstrumentAddr
	out.InstrumentDataPort = c.InstrumentDataPort
	out.InstrumentCommandPort = c.InstrumentCommandPort
	if out.InstrumentType == connection.TypeSerial {
		out.InstrumentAddr = c.Device
		out.InstrumentDataPort = c.Baud
		out.InstrumentCommandPort = 0
	}
	out.ListenAddr = c.ListenAddr
	out.DataPort = c.DataPort
	out.CommandPort = c.CommandPort
	out.SnifferPort = c.SnifferPort
	out.DataLogPath = c.DataLog
	out.DataASCII = c.OutputFormat == FormatASCII
	out.LogASCII = c.LogFormat == FormatASCII
	out.HeartbeatInterval = c.HeartbeatInterval.Std()
	out.PollInterval = c.PollInterval.Std()
	out.Network = network.Options{
		DialTimeout:  c.DialTimeout.Std(),
		WriteTimeout: c.WriteTimeout.Std(),
	}
	return out
}
