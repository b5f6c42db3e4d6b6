// Package config loads port agent configuration: a TOML file over built-in
// defaults, then PORT_AGENT_* environment overrides, then validation.
package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/portagent/internal/connection"
	"github.com/google/uuid"
)

var (
	ErrInvalidConfig = errors.New("config: invalid")
	ErrUnknownKeys   = errors.New("config: unknown keys")
)

const (
	FormatBinary = "binary"
	FormatASCII  = "ascii"
)

// Config is the on-disk and environment view of one port agent.
type Config struct {
	ID string `toml:"id" koanf:"id"`

	InstrumentType        string `toml:"instrument_type" koanf:"instrument_type"`
	InstrumentAddr        string `toml:"instrument_addr" koanf:"instrument_addr"`
	InstrumentDataPort    int    `toml:"instrument_data_port" koanf:"instrument_data_port"`
	InstrumentCommandPort int    `toml:"instrument_command_port" koanf:"instrument_command_port"`
	Device                string `toml:"device" koanf:"device"`
	Baud                  int    `toml:"baud" koanf:"baud"`

	ListenAddr  string `toml:"listen_addr" koanf:"listen_addr"`
	DataPort    int    `toml:"data_port" koanf:"data_port"`
	CommandPort int    `toml:"command_port" koanf:"command_port"`
	SnifferPort int    `toml:"sniffer_port" koanf:"sniffer_port"`

	DataLog      string `toml:"data_log" koanf:"data_log"`
	OutputFormat string `toml:"output_format" koanf:"output_format"`
	LogFormat    string `toml:"log_format" koanf:"log_format"`

	HeartbeatInterval Duration `toml:"heartbeat_interval" koanf:"heartbeat_interval"`
	PollInterval      Duration `toml:"poll_interval" koanf:"poll_interval"`
	DialTimeout       Duration `toml:"dial_timeout" koanf:"dial_timeout"`
	WriteTimeout      Duration `toml:"write_timeout" koanf:"write_timeout"`

	AdminAddr   string   `toml:"admin_addr" koanf:"admin_addr"`
	CorsOrigins []string `toml:"cors_origins" koanf:"cors_origins"`
	LogLevel    string   `toml:"log_level" koanf:"log_level"`
}

// Default returns a tcp instrument config with a fresh agent id. Instrument
// address and observatory ports must still be supplied.
func Default() Config {
	return Config{
		ID:             "port_agent-" + uuid.NewString()[:8],
		InstrumentType: string(connection.TypeTCP),
		ListenAddr:     "",
		OutputFormat:   FormatBinary,
		LogFormat:      FormatBinary,
		PollInterval:   Duration(time.Second),
		DialTimeout:    Duration(5 * time.Second),
		WriteTimeout:   Duration(2 * time.Second),
		AdminAddr:      "127.0.0.1:9600",
		CorsOrigins:    []string{"http://localhost:3000"},
		LogLevel:       "info",
	}
}

// Load decodes path over Default, applies environment overrides, then
// overrides (command-line flags), and validates the result. An empty path
// skips the file.
func Load(path string, overrides ...func(*Config)) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := ApplyEnv(&cfg); err != nil {
		return Config{}, err
	}
	for _, override := range overrides {
		override(&cfg)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return fmt.Errorf("%w in %s: %s", ErrUnknownKeys, path, strings.Join(keys, ", "))
	}
	// A device with no explicit type means a serial instrument.
	if meta.IsDefined("device") && !meta.IsDefined("instrument_type") {
		cfg.InstrumentType = string(connection.TypeSerial)
	}
	return nil
}

func (c *Config) normalize() {
	c.ID = strings.TrimSpace(c.ID)
	c.InstrumentType = strings.ToLower(strings.TrimSpace(c.InstrumentType))
	c.InstrumentAddr = strings.TrimSpace(c.InstrumentAddr)
	c.Device = strings.TrimSpace(c.Device)
	c.OutputFormat = strings.ToLower(strings.TrimSpace(c.OutputFormat))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
}

// Validate reports the first problem that would stop the agent from
// starting. Missing instrument or observatory settings are not errors; the
// agent stays UNCONFIGURED until a command supplies them.
func (c Config) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidConfig)
	}
	t, err := connection.ParseType(c.InstrumentType)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if t == connection.TypeSerial {
		if c.Baud < 0 {
			return fmt.Errorf("%w: baud must not be negative", ErrInvalidConfig)
		}
	} else if err := checkPort("instrument_data_port", c.InstrumentDataPort); err != nil {
		return err
	}
	if t == connection.TypeDigi {
		if err := checkPort("instrument_command_port", c.InstrumentCommandPort); err != nil {
			return err
		}
	}

	seen := map[int]string{}
	for _, p := range []struct {
		name string
		port int
	}{
		{"data_port", c.DataPort},
		{"command_port", c.CommandPort},
		{"sniffer_port", c.SnifferPort},
	} {
		if err := checkPort(p.name, p.port); err != nil {
			return err
		}
		if p.port == 0 {
			continue
		}
		if other, dup := seen[p.port]; dup {
			return fmt.Errorf("%w: %s and %s share port %d", ErrInvalidConfig, other, p.name, p.port)
		}
		seen[p.port] = p.name
	}

	for name, f := range map[string]string{"output_format": c.OutputFormat, "log_format": c.LogFormat} {
		if f != FormatBinary && f != FormatASCII {
			return fmt.Errorf("%w: %s must be %q or %q, got %q", ErrInvalidConfig, name, FormatBinary, FormatASCII, f)
		}
	}
	if c.HeartbeatInterval < 0 {
		return fmt.Errorf("%w: heartbeat_interval must not be negative", ErrInvalidConfig)
	}
	for name, d := range map[string]Duration{
		"poll_interval": c.PollInterval,
		"dial_timeout":  c.DialTimeout,
		"write_timeout": c.WriteTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, name)
		}
	}
	if c.AdminAddr != "" {
		if _, _, err := net.SplitHostPort(c.AdminAddr); err != nil {
			return fmt.Errorf("%w: admin_addr: %v", ErrInvalidConfig, err)
		}
	}
	return nil
}

// checkPort accepts zero as unset.
func checkPort(name string, port int) error {
	if port < 0 || port > 0xFFFF {
		return fmt.Errorf("%w: %s out of range: %d", ErrInvalidConfig, name, port)
	}
	return nil
}
