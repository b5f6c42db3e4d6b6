package agent

import (
	"errors"
	"io"
	"net"
	"sort"

	"github.com/danmuck/portagent/internal/command"
	"github.com/danmuck/portagent/internal/connection"
	"github.com/danmuck/portagent/internal/network"
	"github.com/danmuck/portagent/internal/packet"
	"github.com/danmuck/portagent/internal/publisher"
)

func (a *Agent) buildPublishers() {
	instData := publisher.NewInstrumentDataPublisher()
	instData.SetEndpoint(a.conn.DataEndpoint())

	instCmd := publisher.NewInstrumentCommandPublisher()
	instCmd.SetEndpoint(a.conn.CommandEndpoint())

	driverData := publisher.NewDriverDataPublisher()
	driverData.SetEndpoint(a.dataPort)
	driverData.SetASCII(a.cfg.DataASCII)

	driverCmd := publisher.NewDriverCommandPublisher()
	driverCmd.SetEndpoint(a.commandPort)

	sniffer := publisher.NewSnifferPublisher()
	sniffer.SetEndpoint(a.sniffer)

	dataLog := publisher.NewLogPublisher()
	if a.logSink != nil {
		dataLog.SetSink(a.logSink)
	}
	dataLog.SetASCII(a.cfg.LogASCII)

	tap := publisher.NewTapPublisher()
	tap.SetSink(a.tap)

	a.all = []*publisher.Publisher{instData, instCmd, driverData, driverCmd, sniffer, dataLog, tap}
}

// registerPublishers rebuilds the active list from every publisher that has
// a configured sink.
func (a *Agent) registerPublishers() {
	a.publishers.Clear()
	for _, p := range a.all {
		if !p.Bound() {
			a.logger.Debug().Str("publisher", p.Name()).Msg("no sink configured, not registering")
			continue
		}
		if err := a.publishers.Add(p); err != nil {
			a.logger.Warn().Str("publisher", p.Name()).Str("sink", p.Sink().String()).Err(err).Msg("publisher not registered")
		}
	}
}

func (a *Agent) handleChunk(c network.Chunk) {
	if c.Err != nil {
		a.handlePeerLoss(c)
		return
	}
	switch {
	case c.Source == a.conn.DataEndpoint():
		a.frame(packet.DataFromInstrument, c.Data)
	case c.Source == a.conn.CommandEndpoint():
		a.frame(packet.PortAgentStatus, c.Data)
	case c.Source == network.Endpoint(a.dataPort):
		a.frame(packet.DataFromDriver, c.Data)
	case c.Source == network.Endpoint(a.commandPort):
		a.handleCommandBytes(c.Data)
	case c.Source == network.Endpoint(a.sniffer):
		// sniffer clients are read-only observers
	default:
		a.logger.Debug().Int("bytes", len(c.Data)).Msg("dropping chunk from retired endpoint")
	}
}

func (a *Agent) handlePeerLoss(c network.Chunk) {
	ev := a.logger.Info()
	if errors.Is(c.Err, io.EOF) || errors.Is(c.Err, net.ErrClosed) {
		ev = a.logger.Debug()
	}
	ev.Str("endpoint", c.Source.String()).Err(c.Err).Msg("peer disconnected")
	if c.Source == network.Endpoint(a.commandPort) {
		a.lines.Reset()
	}
	a.updateState()
}

// frame splits data into packets of type t and dispatches them in order.
func (a *Agent) frame(t packet.Type, data []byte) {
	pkts, err := packet.Frame(t, data, a.now())
	if err != nil {
		a.logger.Error().Str("type", t.String()).Err(err).Msg("frame inbound bytes")
		return
	}
	for _, pkt := range pkts {
		a.dispatch(pkt)
	}
}

// dispatch fans pkt out to every registered publisher. Failures are logged
// and counted but never stop delivery to the remaining publishers.
func (a *Agent) dispatch(pkt *packet.Packet) publisher.Result {
	res, err := a.publishers.Publish(pkt)
	a.packets[pkt.Type()]++
	if err != nil {
		a.failures += uint64(res.Failed)
		a.reportFailures(err)
	}
	a.rec.ObservePacket(pkt.Type(), res.Delivered, res.Failed, packet.Since(pkt))
	return res
}

func (a *Agent) reportFailures(err error) {
	var failures []error
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		failures = joined.Unwrap()
	} else {
		failures = []error{err}
	}
	for _, ferr := range failures {
		var pf *publisher.PublishFailure
		if errors.As(ferr, &pf) {
			a.rec.ObservePublishFailure(pf.Publisher, pf.Type)
			a.failLog.Error().
				Str("publisher", pf.Publisher).
				Str("type", pf.Type.String()).
				Str("sink", pf.Sink).
				Err(pf.Err).
				Msg("publish failed")
			continue
		}
		a.failLog.Error().Err(ferr).Msg("publish failed")
	}
}

func (a *Agent) handleCommandBytes(data []byte) {
	lines, err := a.lines.Feed(data)
	for _, line := range lines {
		if line == "" {
			continue
		}
		a.handleCommandLine(line)
	}
	if err != nil {
		a.fault(err)
	}
}

func (a *Agent) handleCommandLine(line string) {
	if pkt, err := packet.NewAt(packet.PortAgentCommand, []byte(line), a.now()); err == nil {
		a.dispatch(pkt)
	}
	cmd, err := command.Parse(line)
	if err != nil {
		a.logger.Warn().Str("line", line).Err(err).Msg("rejected command")
		a.fault(err)
		return
	}
	a.logger.Info().Str("command", cmd.String()).Msg("command received")
	reply, after, err := a.apply(cmd)
	if err != nil {
		a.logger.Warn().Str("command", cmd.String()).Err(err).Msg("command failed")
		a.fault(err)
		return
	}
	a.reply(reply)
	if after != nil {
		after()
	}
}

func (a *Agent) reply(text string) {
	a.emit(packet.PortAgentStatus, text)
}

func (a *Agent) fault(err error) {
	a.emit(packet.PortAgentFault, err.Error())
}

func (a *Agent) emit(t packet.Type, text string) {
	pkts, err := packet.Frame(t, []byte(text), a.now())
	if err != nil {
		a.logger.Error().Str("type", t.String()).Err(err).Msg("build response")
		return
	}
	for _, pkt := range pkts {
		a.dispatch(pkt)
	}
}

// deriveState maps endpoint readiness onto the agent state.
func (a *Agent) deriveState() State {
	switch {
	case !a.conn.DataConfigured() || !a.dataPort.IsConfigured() || !a.commandPort.IsConfigured():
		return StateUnconfigured
	case a.conn.DataConnected():
		return StateConnected
	case a.everConnected:
		return StateDisconnected
	default:
		return StateConfigured
	}
}

func (a *Agent) updateState() {
	next := a.deriveState()
	if next == StateConnected {
		a.everConnected = true
	}
	data := connection.ChannelState(a.conn, connection.DataChannel)
	cmd := connection.ChannelState(a.conn, connection.CommandChannel)
	a.rec.ObserveState(next, data, cmd)
	if next == a.state {
		return
	}
	a.logger.Info().
		Str("from", a.state.String()).
		Str("to", next.String()).
		Str("data", data.String()).
		Str("command", cmd.String()).
		Msg("agent state changed")
	a.state = next
}

func (a *Agent) publishStatus() {
	packets := make(map[string]uint64, len(a.packets))
	for t, n := range a.packets {
		packets[t.String()] = n
	}
	registered := make(map[*publisher.Publisher]bool, a.publishers.Len())
	for _, p := range a.publishers.Publishers() {
		registered[p] = true
	}
	pubs := make([]PublisherStatus, 0, len(a.all))
	for _, p := range a.all {
		sink := "<unbound>"
		if p.Sink() != nil {
			sink = p.Sink().String()
		}
		pubs = append(pubs, PublisherStatus{
			Name:       p.Name(),
			Encoding:   p.Encoding().String(),
			Sink:       sink,
			Registered: registered[p],
		})
	}
	sort.SliceStable(pubs, func(i, j int) bool { return pubs[i].Name < pubs[j].Name })

	s := &Status{
		ID:                 a.cfg.ID,
		State:              a.state.String(),
		InstrumentType:     string(a.conn.Type()),
		DataChannel:        connection.ChannelState(a.conn, connection.DataChannel).String(),
		CommandChannel:     connection.ChannelState(a.conn, connection.CommandChannel).String(),
		InstrumentData:     a.conn.DataEndpoint().String(),
		ObservatoryData:    a.dataPort.String(),
		ObservatoryCommand: a.commandPort.String(),
		HeartbeatInterval:  a.cfg.HeartbeatInterval.String(),
		Packets:            packets,
		PublishFailures:    a.failures,
		Publishers:         pubs,
		UpdatedAt:          a.now(),
	}
	if ep := a.conn.CommandEndpoint(); ep != nil {
		s.InstrumentCommand = ep.String()
	}
	if a.sniffer.IsConfigured() {
		s.Sniffer = a.sniffer.String()
	}
	a.status.Store(s)
}
