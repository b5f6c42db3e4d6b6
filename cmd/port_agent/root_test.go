package main

import (
	"testing"
	"time"

	"github.com/danmuck/portagent/internal/config"
	"github.com/danmuck/portagent/internal/testutil/testlog"
)

func TestFlagOverridesOnlyApplyChangedFlags(t *testing.T) {
	testlog.Start(t)

	cmd := newRootCmd()
	if err := cmd.ParseFlags([]string{"--data-port", "5001", "--device", "/dev/ttyS0", "--heartbeat", "20s"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	var opts options
	opts.dataPort = 5001
	opts.device = "/dev/ttyS0"
	opts.heartbeat = config.Duration(20 * time.Second)

	cfg := config.Default()
	cfg.CommandPort = 4002
	flagOverrides(cmd.Flags(), opts)(&cfg)

	if cfg.DataPort != 5001 || cfg.CommandPort != 4002 {
		t.Fatalf("ports data=%d command=%d", cfg.DataPort, cfg.CommandPort)
	}
	if cfg.InstrumentType != "serial" || cfg.Device != "/dev/ttyS0" {
		t.Fatalf("serial inference: type=%s device=%s", cfg.InstrumentType, cfg.Device)
	}
	if cfg.HeartbeatInterval.Std() != 20*time.Second {
		t.Fatalf("heartbeat=%s", cfg.HeartbeatInterval)
	}
}

func TestRootCommandRejectsInvalidConfig(t *testing.T) {
	testlog.Start(t)

	cmd := newRootCmd()
	cmd.SetArgs([]string{"--data-port", "4001", "--sniffer-port", "4001"})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected duplicate observatory ports to fail")
	}
}

func TestDurationFlag(t *testing.T) {
	testlog.Start(t)

	var d config.Duration
	v := &durationValue{d: &d}
	if err := v.Set("1500ms"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if d.Std() != 1500*time.Millisecond || v.String() != "1.5s" || v.Type() != "duration" {
		t.Fatalf("unexpected duration flag state: %s", v.String())
	}
	if err := v.Set("soon"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestExampleConfigLoads(t *testing.T) {
	testlog.Start(t)

	cfg, err := config.Load("ex.config.toml")
	if err != nil {
		t.Fatalf("load example: %v", err)
	}
	if cfg.ID != "ctdbp-01" || cfg.DataPort != 4001 || cfg.HeartbeatInterval.Std() != 10*time.Second {
		t.Fatalf("unexpected example config: %+v", cfg)
	}
	ac := cfg.Agent()
	if ac.SnifferPort != 4003 || ac.DataLogPath != "local/ctdbp-01.data" {
		t.Fatalf("unexpected agent config: %+v", ac)
	}
}
