package main

import (
	"context"
	"strings"

	"github.com/danmuck/portagent/internal/agent"
	"github.com/danmuck/portagent/internal/config"
	"github.com/danmuck/portagent/internal/logging"
	"github.com/danmuck/portagent/internal/observability"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

type options struct {
	configPath            string
	id                    string
	instrumentType        string
	instrumentAddr        string
	instrumentDataPort    int
	instrumentCommandPort int
	device                string
	baud                  int
	listenAddr            string
	dataPort              int
	commandPort           int
	snifferPort           int
	dataLog               string
	heartbeat             config.Duration
	adminAddr             string
	logLevel              string
}

func newRootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "port_agent",
		Short: "Bridge one instrument to observatory data and command ports.",
		Long: `port_agent connects to an instrument over tcp, serial or a digi terminal server, ` +
			`frames its output into packets and serves them to drivers on the observatory ` +
			`data, command and sniffer ports. Settings come from --config, then PORT_AGENT_* ` +
			`environment variables, then flags.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath, flagOverrides(cmd.Flags(), opts))
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "TOML config file")
	f.StringVar(&opts.id, "id", "", "agent id")
	f.StringVar(&opts.instrumentType, "instrument-type", "", "instrument transport: tcp|serial|digi")
	f.StringVar(&opts.instrumentAddr, "instrument-addr", "", "instrument host")
	f.IntVar(&opts.instrumentDataPort, "instrument-data-port", 0, "instrument data port")
	f.IntVar(&opts.instrumentCommandPort, "instrument-command-port", 0, "instrument command port (digi)")
	f.StringVar(&opts.device, "device", "", "serial device path")
	f.IntVar(&opts.baud, "baud", 0, "serial baud rate")
	f.StringVar(&opts.listenAddr, "listen-addr", "", "bind address for observatory ports")
	f.IntVar(&opts.dataPort, "data-port", 0, "observatory data port")
	f.IntVar(&opts.commandPort, "command-port", 0, "observatory command port")
	f.IntVar(&opts.snifferPort, "sniffer-port", 0, "observatory sniffer port")
	f.StringVar(&opts.dataLog, "data-log", "", "append every packet to this file")
	f.Var(&durationValue{d: &opts.heartbeat}, "heartbeat", "heartbeat interval, 0 disables")
	f.StringVar(&opts.adminAddr, "admin-addr", "", "admin HTTP listen address, empty disables")
	f.StringVar(&opts.logLevel, "log-level", "", "log level: trace|debug|info|warn|error")
	return cmd
}

// flagOverrides applies only the flags set on the command line.
func flagOverrides(fs *pflag.FlagSet, opts options) func(*config.Config) {
	return func(c *config.Config) {
		set := func(name string, apply func()) {
			if fs.Changed(name) {
				apply()
			}
		}
		set("id", func() { c.ID = opts.id })
		set("instrument-type", func() { c.InstrumentType = opts.instrumentType })
		set("instrument-addr", func() { c.InstrumentAddr = opts.instrumentAddr })
		set("instrument-data-port", func() { c.InstrumentDataPort = opts.instrumentDataPort })
		set("instrument-command-port", func() { c.InstrumentCommandPort = opts.instrumentCommandPort })
		set("device", func() { c.Device = opts.device })
		set("baud", func() { c.Baud = opts.baud })
		set("listen-addr", func() { c.ListenAddr = opts.listenAddr })
		set("data-port", func() { c.DataPort = opts.dataPort })
		set("command-port", func() { c.CommandPort = opts.commandPort })
		set("sniffer-port", func() { c.SnifferPort = opts.snifferPort })
		set("data-log", func() { c.DataLog = opts.dataLog })
		set("heartbeat", func() { c.HeartbeatInterval = opts.heartbeat })
		set("admin-addr", func() { c.AdminAddr = opts.adminAddr })
		set("log-level", func() { c.LogLevel = opts.logLevel })
		if fs.Changed("device") && !fs.Changed("instrument-type") {
			c.InstrumentType = "serial"
		}
	}
}

type durationValue struct {
	d *config.Duration
}

func (v *durationValue) String() string {
	if v.d == nil {
		return "0s"
	}
	return v.d.String()
}

func (v *durationValue) Set(raw string) error {
	return v.d.UnmarshalText([]byte(raw))
}

func (v *durationValue) Type() string { return "duration" }

// run wires the agent and the admin server and blocks until either stops.
// A shutdown command ends the agent, which cancels the admin server.
func run(parent context.Context, cfg config.Config) error {
	logger := observability.InitLogger("port_agent")
	if strings.TrimSpace(cfg.LogLevel) != "" {
		logger = logging.WithLevel(logger, cfg.LogLevel)
	}
	logger = logger.With().Str("agent", cfg.ID).Logger()

	var hub *observability.TapHub
	opts := []agent.Option{agent.WithRecorder(observability.NewAgentMetrics(cfg.ID))}
	if cfg.AdminAddr != "" {
		hub = observability.NewTapHub(cfg.ID, logger.With().Str("component", "tap").Logger())
		opts = append(opts, agent.WithTap(hub))
	}

	pa, err := agent.New(cfg.Agent(), logger.With().Str("component", "agent").Logger(), opts...)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return pa.Run(gctx)
	})
	if cfg.AdminAddr != "" {
		admin := observability.NewAdmin(observability.AdminConfig{
			AgentID:     cfg.ID,
			Addr:        cfg.AdminAddr,
			CorsOrigins: cfg.CorsOrigins,
		}, pa, hub, logger.With().Str("component", "admin").Logger())
		g.Go(func() error {
			return admin.Run(gctx)
		})
	}
	return g.Wait()
}
