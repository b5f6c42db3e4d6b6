package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/portagent/internal/connection"
	"github.com/danmuck/portagent/internal/testutil/testlog"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "port_agent.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadOverlaysFileOnDefaults(t *testing.T) {
	testlog.Start(t)

	path := writeConfig(t, `
id = "ctdbp-01"
instrument_addr = "10.1.2.3"
instrument_data_port = 2101
data_port = 4001
command_port = 4002
heartbeat_interval = "15s"
output_format = "ASCII"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ID != "ctdbp-01" || cfg.InstrumentAddr != "10.1.2.3" || cfg.InstrumentDataPort != 2101 {
		t.Fatalf("unexpected instrument config: %+v", cfg)
	}
	if cfg.HeartbeatInterval.Std() != 15*time.Second {
		t.Fatalf("heartbeat=%s want 15s", cfg.HeartbeatInterval)
	}
	if cfg.PollInterval.Std() != time.Second {
		t.Fatalf("poll interval default lost: %s", cfg.PollInterval)
	}
	if cfg.OutputFormat != FormatASCII {
		t.Fatalf("output format not normalized: %q", cfg.OutputFormat)
	}

	ac := cfg.Agent()
	if !ac.DataASCII || ac.LogASCII {
		t.Fatalf("encoding flags: data=%v log=%v", ac.DataASCII, ac.LogASCII)
	}
	if ac.InstrumentType != connection.TypeTCP || ac.DataPort != 4001 || ac.CommandPort != 4002 {
		t.Fatalf("unexpected agent config: %+v", ac)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	testlog.Start(t)

	path := writeConfig(t, "id = \"x\"\nbogus_key = 1\n")
	if _, err := Load(path); !errors.Is(err, ErrUnknownKeys) {
		t.Fatalf("expected ErrUnknownKeys, got %v", err)
	}
}

func TestLoadInfersSerialFromDevice(t *testing.T) {
	testlog.Start(t)

	path := writeConfig(t, "device = \"/dev/ttyS1\"\nbaud = 19200\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.InstrumentType != string(connection.TypeSerial) {
		t.Fatalf("type=%s want serial", cfg.InstrumentType)
	}
	ac := cfg.Agent()
	if ac.InstrumentAddr != "/dev/ttyS1" || ac.InstrumentDataPort != 19200 {
		t.Fatalf("serial mapping: addr=%s port=%d", ac.InstrumentAddr, ac.InstrumentDataPort)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	testlog.Start(t)

	path := writeConfig(t, "data_port = 4001\ncommand_port = 4002\n")
	t.Setenv("PORT_AGENT_DATA_PORT", "5001")
	t.Setenv("PORT_AGENT_POLL_INTERVAL", "250ms")
	t.Setenv("PORT_AGENT_INSTRUMENT_ADDR", "instrument.local")
	t.Setenv("PORT_AGENT_LOG_TIMESTAMP", "false")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DataPort != 5001 || cfg.CommandPort != 4002 {
		t.Fatalf("ports data=%d command=%d", cfg.DataPort, cfg.CommandPort)
	}
	if cfg.PollInterval.Std() != 250*time.Millisecond {
		t.Fatalf("poll=%s", cfg.PollInterval)
	}
	if cfg.InstrumentAddr != "instrument.local" {
		t.Fatalf("addr=%s", cfg.InstrumentAddr)
	}
}

func TestValidate(t *testing.T) {
	testlog.Start(t)

	cases := map[string]func(*Config){
		"empty id":        func(c *Config) { c.ID = "" },
		"bad type":        func(c *Config) { c.InstrumentType = "modem" },
		"port range":      func(c *Config) { c.DataPort = 70000 },
		"shared port":     func(c *Config) { c.DataPort, c.SnifferPort = 4001, 4001 },
		"format":          func(c *Config) { c.OutputFormat = "xml" },
		"poll":            func(c *Config) { c.PollInterval = 0 },
		"heartbeat":       func(c *Config) { c.HeartbeatInterval = Duration(-time.Second) },
		"digi cmd port":   func(c *Config) { c.InstrumentType = "digi"; c.InstrumentCommandPort = -1 },
		"admin addr":      func(c *Config) { c.AdminAddr = "nope" },
		"negative baud":   func(c *Config) { c.InstrumentType = "serial"; c.Baud = -1 },
		"instrument port": func(c *Config) { c.InstrumentDataPort = 65536 },
	}
	for name, mutate := range cases {
		cfg := Default()
		mutate(&cfg)
		if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("%s: expected ErrInvalidConfig, got %v", name, err)
		}
	}
	if err := Default().Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestTemplatesRoundTrip(t *testing.T) {
	testlog.Start(t)

	for _, kind := range Kinds() {
		path := filepath.Join(t.TempDir(), kind+".toml")
		if err := WriteTemplate(path, kind, false); err != nil {
			t.Fatalf("%s: write template: %v", kind, err)
		}
		if err := WriteTemplate(path, kind, false); err == nil {
			t.Fatalf("%s: expected refusal to overwrite", kind)
		}
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("%s: load template: %v", kind, err)
		}
		if cfg.InstrumentType != kind || cfg.HeartbeatInterval.Std() != 10*time.Second {
			t.Fatalf("%s: unexpected template config: %+v", kind, cfg)
		}
	}
	if _, err := Template("modem"); err == nil || !strings.Contains(err.Error(), "tcp|serial|digi") {
		t.Fatalf("unexpected template error: %v", err)
	}
}

func TestOverridesBeatEnvironment(t *testing.T) {
	testlog.Start(t)

	t.Setenv("PORT_AGENT_SNIFFER_PORT", "4500")
	cfg, err := Load("", func(c *Config) { c.SnifferPort = 4600 })
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SnifferPort != 4600 {
		t.Fatalf("sniffer=%d want 4600", cfg.SnifferPort)
	}
}
