package agent

import (
	"errors"
	"fmt"
	"strings"

	"github.com/danmuck/portagent/internal/command"
	"github.com/danmuck/portagent/internal/network"
	"github.com/danmuck/portagent/internal/packet"
	"github.com/danmuck/portagent/internal/publisher"
)

var ErrNotDelivered = errors.New("agent: instrument command not delivered")

// apply executes cmd and returns the status text to send back. A non-nil
// after func runs once the reply has been published, for changes that would
// cut off the reply itself.
func (a *Agent) apply(cmd command.Command) (string, func(), error) {
	switch cmd.Name {
	case command.GetState:
		a.updateState()
		return a.state.String(), nil, nil
	case command.GetConfig:
		return a.renderConfig(), nil, nil
	case command.Ping:
		return "pong " + a.cfg.ID, nil, nil
	case command.HeartbeatInterval:
		a.cfg.HeartbeatInterval = cmd.Duration
		a.resetHeartbeat(cmd.Duration)
		return "OK", nil, nil

	case command.InstrumentAddr:
		a.cfg.InstrumentAddr = cmd.Text
		a.conn.SetDataHost(cmd.Text)
		a.conn.SetCommandHost(cmd.Text)
		a.reconfigured()
		return "OK", nil, nil
	case command.InstrumentDataPort:
		a.cfg.InstrumentDataPort = cmd.Port
		a.conn.SetDataPort(cmd.Port)
		a.reconfigured()
		return "OK", nil, nil
	case command.InstrumentCommandPort:
		if a.conn.CommandEndpoint() == nil {
			return "", nil, ErrNoCommandChannel
		}
		a.cfg.InstrumentCommandPort = cmd.Port
		a.conn.SetCommandPort(cmd.Port)
		a.reconfigured()
		return "OK", nil, nil

	case command.DataPort:
		if err := checkPorts(cmd.Port, a.cfg.CommandPort, a.cfg.SnifferPort); err != nil {
			return "", nil, err
		}
		a.cfg.DataPort = cmd.Port
		a.setListenerPort(a.dataPort, cmd.Port)
		return "OK", nil, nil
	case command.CommandPort:
		if err := checkPorts(a.cfg.DataPort, cmd.Port, a.cfg.SnifferPort); err != nil {
			return "", nil, err
		}
		a.cfg.CommandPort = cmd.Port
		return "OK", func() { a.setListenerPort(a.commandPort, cmd.Port) }, nil
	case command.SnifferPort:
		if err := checkPorts(a.cfg.DataPort, a.cfg.CommandPort, cmd.Port); err != nil {
			return "", nil, err
		}
		a.cfg.SnifferPort = cmd.Port
		a.setListenerPort(a.sniffer, cmd.Port)
		return "OK", nil, nil

	case command.Break:
		b, ok := a.conn.(network.Breaker)
		if !ok {
			return "", nil, network.ErrBreakUnsupported
		}
		if err := b.Break(cmd.Duration); err != nil {
			return "", nil, fmt.Errorf("agent: break: %w", err)
		}
		return fmt.Sprintf("OK break %s", cmd.Duration), nil, nil
	case command.InstrumentCommand:
		return a.instrumentCommand(cmd.Text)

	case command.Shutdown:
		return "OK shutting down", func() { a.shutdown = true }, nil
	}
	return "", nil, fmt.Errorf("%w: %q", command.ErrUnknownCommand, cmd.Name)
}

// instrumentCommand forwards text, CRLF terminated, to the instrument's
// command channel.
func (a *Agent) instrumentCommand(text string) (string, func(), error) {
	if a.conn.CommandEndpoint() == nil {
		return "", nil, ErrNoCommandChannel
	}
	pkt, err := packet.NewAt(packet.InstrumentCommand, []byte(text+"\r\n"), a.now())
	if err != nil {
		return "", nil, err
	}
	// Other publishers (log, tap) also take the packet; only the
	// instrument command publisher counts as delivery.
	matched, err := a.dispatch(pkt).Outcome(publisher.NameInstrumentCommand)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrNotDelivered, err)
	}
	if !matched {
		return "", nil, ErrNotDelivered
	}
	return "OK", nil, nil
}

func (a *Agent) setListenerPort(ln *network.TCPListener, port int) {
	ln.SetPort(port)
	if ln.IsConfigured() && !ln.Initialized() {
		if err := ln.Initialize(); err != nil {
			a.logger.Debug().Str("endpoint", ln.String()).Err(err).Msg("listen failed, will retry")
		}
	}
	a.reconfigured()
}

func (a *Agent) reconfigured() {
	a.registerPublishers()
	a.updateState()
}

func (a *Agent) renderConfig() string {
	var b strings.Builder
	line := func(k string, v any) {
		fmt.Fprintf(&b, "%s %v\n", k, v)
	}
	line("id", a.cfg.ID)
	line("instrument_type", a.conn.Type())
	line("instrument_addr", a.cfg.InstrumentAddr)
	line("instrument_data_port", a.cfg.InstrumentDataPort)
	if a.conn.CommandEndpoint() != nil {
		line("instrument_command_port", a.cfg.InstrumentCommandPort)
	}
	line("data_port", a.cfg.DataPort)
	line("command_port", a.cfg.CommandPort)
	line("sniffer_port", a.cfg.SnifferPort)
	line("heartbeat_interval", int(a.cfg.HeartbeatInterval.Seconds()))
	line("poll_interval", a.cfg.PollInterval)
	if a.logSink != nil {
		line("data_log", a.logSink.Path())
	}
	return strings.TrimRight(b.String(), "\n")
}
