package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix marks environment variables that override file settings, e.g.
// PORT_AGENT_DATA_PORT=4001.
const EnvPrefix = "PORT_AGENT_"

// ApplyEnv overlays PORT_AGENT_* variables onto cfg. Variables that do not
// name a config key are ignored.
func ApplyEnv(cfg *Config) error {
	k := koanf.New(".")
	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil)
	if err != nil {
		return fmt.Errorf("load env vars: %w", err)
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return fmt.Errorf("unmarshal env config: %w", err)
	}
	return nil
}
