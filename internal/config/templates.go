package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/danmuck/portagent/internal/connection"
	"github.com/pelletier/go-toml/v2"
)

const templateHeader = `# port agent configuration
# Every key may be overridden by PORT_AGENT_<KEY> in the environment.
`

// Template renders a starter config for an instrument kind: tcp, serial or
// digi.
func Template(kind string) (string, error) {
	t, err := connection.ParseType(kind)
	if err != nil {
		return "", fmt.Errorf("unknown config kind: %s (want %s)", kind, kindList())
	}
	cfg := Default()
	cfg.ID = "port_agent"
	cfg.InstrumentType = string(t)
	cfg.DataPort = 4001
	cfg.CommandPort = 4002
	cfg.SnifferPort = 4003
	cfg.DataLog = "local/port_agent.data"
	cfg.HeartbeatInterval = Duration(10 * time.Second)
	switch t {
	case connection.TypeSerial:
		cfg.Device = "/dev/ttyUSB0"
		cfg.Baud = 9600
	case connection.TypeDigi:
		cfg.InstrumentAddr = "10.0.0.20"
		cfg.InstrumentDataPort = 2101
		cfg.InstrumentCommandPort = 2102
	default:
		cfg.InstrumentAddr = "10.0.0.20"
		cfg.InstrumentDataPort = 2101
	}
	body, err := Encode(cfg)
	if err != nil {
		return "", err
	}
	return templateHeader + string(body), nil
}

// Encode renders cfg as TOML.
func Encode(cfg Config) ([]byte, error) {
	out, err := toml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("config encode failed: %w", err)
	}
	return out, nil
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

// Kinds lists the template kinds accepted by Template.
func Kinds() []string {
	return []string{
		string(connection.TypeTCP),
		string(connection.TypeSerial),
		string(connection.TypeDigi),
	}
}

func kindList() string {
	return strings.Join(Kinds(), "|")
}
