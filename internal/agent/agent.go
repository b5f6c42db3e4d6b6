package agent

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/danmuck/portagent/internal/command"
	"github.com/danmuck/portagent/internal/connection"
	"github.com/danmuck/portagent/internal/network"
	"github.com/danmuck/portagent/internal/packet"
	"github.com/danmuck/portagent/internal/publisher"
	"github.com/rs/zerolog"
)

var (
	ErrInvalidPollInterval      = errors.New("agent: invalid poll interval")
	ErrInvalidHeartbeatInterval = errors.New("agent: invalid heartbeat interval")
	ErrPortConflict             = errors.New("agent: observatory port already assigned")
	ErrNoCommandChannel         = errors.New("agent: instrument has no command channel")
	ErrAlreadyRunning           = errors.New("agent: already running")
)

const inboundBuffer = 64

// Config is the runtime configuration of one port agent.
type Config struct {
	ID             string
	InstrumentType connection.Type
	// InstrumentAddr is a host for tcp and digi instruments and a device
	// path for serial ones.
	InstrumentAddr string
	// InstrumentDataPort is a TCP port, or the baud rate for serial.
	InstrumentDataPort    int
	InstrumentCommandPort int

	ListenAddr  string
	DataPort    int
	CommandPort int
	SnifferPort int

	DataLogPath string
	DataASCII   bool
	LogASCII    bool

	HeartbeatInterval time.Duration
	PollInterval      time.Duration
	Network           network.Options
}

// Agent defaults for a tcp instrument with heartbeats disabled.
func DefaultConfig() Config {
	return Config{
		ID:             "port_agent",
		InstrumentType: connection.TypeTCP,
		PollInterval:   time.Second,
		Network:        network.DefaultOptions(),
	}
}

// Option customizes an Agent at construction.
type Option func(*Agent)

func WithRecorder(r Recorder) Option {
	return func(a *Agent) {
		if r != nil {
			a.rec = r
		}
	}
}

// WithTap binds the tap publisher to s.
func WithTap(s publisher.Sink) Option {
	return func(a *Agent) { a.tap = s }
}

// WithClock overrides the packet timestamp source.
func WithClock(now func() time.Time) Option {
	return func(a *Agent) {
		if now != nil {
			a.now = now
		}
	}
}

// Agent is the port agent dispatcher.
type Agent struct {
	cfg     Config
	logger  zerolog.Logger
	failLog zerolog.Logger
	rec     Recorder
	now     func() time.Time

	conn        connection.Connection
	dataPort    *network.TCPListener
	commandPort *network.TCPListener
	sniffer     *network.TCPListener
	logSink     *publisher.FileSink
	tap         publisher.Sink

	all        []*publisher.Publisher
	publishers *publisher.List

	inbound       chan network.Chunk
	lines         command.LineBuffer
	heartbeat     *time.Ticker
	state         State
	everConnected bool
	shutdown      bool

	packets  map[packet.Type]uint64
	failures uint64
	status   atomic.Pointer[Status]
	running  atomic.Bool
}

// Agent constructor. Nothing is opened until Run.
func New(cfg Config, logger zerolog.Logger, opts ...Option) (*Agent, error) {
	if cfg.PollInterval <= 0 {
		return nil, ErrInvalidPollInterval
	}
	if cfg.HeartbeatInterval < 0 {
		return nil, ErrInvalidHeartbeatInterval
	}
	if err := checkPorts(cfg.DataPort, cfg.CommandPort, cfg.SnifferPort); err != nil {
		return nil, err
	}
	cfg.Network.Logger = logger.With().Str("component", "network").Logger()

	conn, err := connection.New(cfg.InstrumentType, cfg.Network)
	if err != nil {
		return nil, err
	}
	conn.SetDataHost(cfg.InstrumentAddr)
	conn.SetDataPort(cfg.InstrumentDataPort)
	conn.SetCommandHost(cfg.InstrumentAddr)
	conn.SetCommandPort(cfg.InstrumentCommandPort)

	a := &Agent{
		cfg:        cfg,
		logger:     logger,
		rec:        nopRecorder{},
		now:        time.Now,
		conn:       conn,
		publishers: publisher.NewList(),
		inbound:    make(chan network.Chunk, inboundBuffer),
		packets:    make(map[packet.Type]uint64),
	}
	a.failLog = logger.Sample(&zerolog.BurstSampler{Burst: 5, Period: time.Second})
	a.dataPort = a.newListener(cfg.DataPort)
	a.commandPort = a.newListener(cfg.CommandPort)
	a.sniffer = a.newListener(cfg.SnifferPort)
	for _, opt := range opts {
		opt(a)
	}

	if cfg.DataLogPath != "" {
		sink, err := publisher.OpenFileSink(cfg.DataLogPath)
		if err != nil {
			return nil, fmt.Errorf("agent: open data log: %w", err)
		}
		a.logSink = sink
	}

	a.buildPublishers()
	a.registerPublishers()
	a.state = a.deriveState()
	a.publishStatus()
	return a, nil
}

func (a *Agent) newListener(port int) *network.TCPListener {
	ln := network.NewTCPListener(a.cfg.Network)
	ln.SetHostname(a.cfg.ListenAddr)
	ln.SetPort(port)
	return ln
}

// checkPorts rejects two observatory listeners sharing a port. Zero means
// unset and never conflicts.
func checkPorts(ports ...int) error {
	seen := make(map[int]bool, len(ports))
	for _, p := range ports {
		if p == 0 {
			continue
		}
		if seen[p] {
			return fmt.Errorf("%w: %d", ErrPortConflict, p)
		}
		seen[p] = true
	}
	return nil
}

// Run drives the agent until ctx is done or a shutdown command arrives.
// Every endpoint is closed before Run returns.
func (a *Agent) Run(ctx context.Context) error {
	if !a.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer a.close()

	a.conn.SetInbound(a.inbound)
	a.dataPort.SetInbound(a.inbound)
	a.commandPort.SetInbound(a.inbound)
	a.sniffer.SetInbound(a.inbound)

	poll := time.NewTicker(a.cfg.PollInterval)
	defer poll.Stop()
	a.resetHeartbeat(a.cfg.HeartbeatInterval)
	defer a.stopHeartbeat()

	a.logger.Info().
		Str("id", a.cfg.ID).
		Str("instrument_type", string(a.conn.Type())).
		Dur("poll_interval", a.cfg.PollInterval).
		Msg("port agent starting")
	a.poll()

	for {
		var beat <-chan time.Time
		if a.heartbeat != nil {
			beat = a.heartbeat.C
		}
		select {
		case <-ctx.Done():
			a.logger.Info().Str("id", a.cfg.ID).Msg("port agent stopping")
			return nil
		case <-poll.C:
			a.poll()
		case <-beat:
			a.sendHeartbeat()
		case chunk := <-a.inbound:
			a.handleChunk(chunk)
		}
		a.publishStatus()
		if a.shutdown {
			a.logger.Info().Str("id", a.cfg.ID).Msg("port agent shut down by command")
			return nil
		}
	}
}

// Status returns the latest snapshot. Safe from any goroutine.
func (a *Agent) Status() Status {
	if s := a.status.Load(); s != nil {
		return *s
	}
	return Status{}
}

// Config returns the configuration as last applied by commands. Only safe
// before Run or from the Run goroutine.
func (a *Agent) Config() Config {
	return a.cfg
}

// poll retries every configured, unconnected endpoint. This is the only
// retry path.
func (a *Agent) poll() {
	a.conn.Initialize()
	for _, ln := range a.listeners() {
		if !ln.IsConfigured() || ln.Initialized() {
			continue
		}
		if err := ln.Initialize(); err != nil {
			a.logger.Debug().Str("endpoint", ln.String()).Err(err).Msg("listen failed, will retry")
			continue
		}
		a.logger.Info().Str("endpoint", ln.String()).Msg("listening")
	}
	a.updateState()
}

func (a *Agent) listeners() []*network.TCPListener {
	return []*network.TCPListener{a.dataPort, a.commandPort, a.sniffer}
}

func (a *Agent) resetHeartbeat(d time.Duration) {
	a.stopHeartbeat()
	if d > 0 {
		a.heartbeat = time.NewTicker(d)
	}
}

func (a *Agent) stopHeartbeat() {
	if a.heartbeat != nil {
		a.heartbeat.Stop()
		a.heartbeat = nil
	}
}

func (a *Agent) sendHeartbeat() {
	pkt, err := packet.NewAt(packet.Heartbeat, nil, a.now())
	if err != nil {
		a.logger.Error().Err(err).Msg("build heartbeat")
		return
	}
	a.dispatch(pkt)
}

func (a *Agent) close() {
	var errs []error
	errs = append(errs, a.conn.Close())
	for _, ln := range a.listeners() {
		errs = append(errs, ln.Close())
	}
	if a.logSink != nil {
		errs = append(errs, a.logSink.Close())
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn().Err(err).Msg("close endpoints")
	}
	a.updateState()
	a.publishStatus()
	a.running.Store(false)
}
