package agent

import (
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/portagent/internal/command"
	"github.com/danmuck/portagent/internal/connection"
	"github.com/danmuck/portagent/internal/network"
	"github.com/danmuck/portagent/internal/packet"
	"github.com/danmuck/portagent/internal/publisher"
	"github.com/danmuck/portagent/internal/testutil/testlog"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordedFailure struct {
	publisher string
	typ       packet.Type
}

type fakeRecorder struct {
	mu       sync.Mutex
	packets  int
	failures []recordedFailure
	states   []State
}

func (r *fakeRecorder) ObservePacket(packet.Type, int, int, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.packets++
}

func (r *fakeRecorder) ObservePublishFailure(name string, t packet.Type) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, recordedFailure{publisher: name, typ: t})
}

func (r *fakeRecorder) ObserveState(s State, _, _ connection.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func offlineConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.ID = "offline"
	cfg.InstrumentAddr = "127.0.0.1"
	cfg.InstrumentDataPort = 1
	cfg.ListenAddr = "127.0.0.1"
	cfg.DataPort = 40001
	cfg.CommandPort = 40002
	cfg.DataLogPath = filepath.Join(t.TempDir(), "data.log")
	return cfg
}

func newOffline(t *testing.T, cfg Config, opts ...Option) *Agent {
	t.Helper()
	a, err := New(cfg, testlog.Logger(t), opts...)
	if err != nil {
		t.Fatalf("new agent: %v", err)
	}
	t.Cleanup(a.close)
	return a
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	testlog.Start(t)

	cfg := offlineConfig(t)
	cfg.PollInterval = 0
	if _, err := New(cfg, testlog.Logger(t)); !errors.Is(err, ErrInvalidPollInterval) {
		t.Fatalf("expected ErrInvalidPollInterval, got %v", err)
	}

	cfg = offlineConfig(t)
	cfg.HeartbeatInterval = -time.Second
	if _, err := New(cfg, testlog.Logger(t)); !errors.Is(err, ErrInvalidHeartbeatInterval) {
		t.Fatalf("expected ErrInvalidHeartbeatInterval, got %v", err)
	}

	cfg = offlineConfig(t)
	cfg.SnifferPort = cfg.DataPort
	if _, err := New(cfg, testlog.Logger(t)); !errors.Is(err, ErrPortConflict) {
		t.Fatalf("expected ErrPortConflict, got %v", err)
	}

	cfg = offlineConfig(t)
	cfg.InstrumentType = "carrier-pigeon"
	if _, err := New(cfg, testlog.Logger(t)); err == nil {
		t.Fatalf("expected unknown instrument type to fail")
	}
}

func TestOnlyBoundPublishersAreRegistered(t *testing.T) {
	testlog.Start(t)

	a := newOffline(t, offlineConfig(t))
	registered := map[string]bool{}
	for _, p := range a.publishers.Publishers() {
		registered[p.Name()] = true
	}
	want := []string{
		publisher.NameInstrumentData,
		publisher.NameDriverData,
		publisher.NameDriverCommand,
		publisher.NameLog,
	}
	if len(registered) != len(want) {
		t.Fatalf("registered=%v want=%v", registered, want)
	}
	for _, name := range want {
		if !registered[name] {
			t.Fatalf("expected %s to be registered: %v", name, registered)
		}
	}

	status := a.Status()
	if status.State != StateConfigured.String() {
		t.Fatalf("state=%s want CONFIGURED", status.State)
	}
	for _, p := range status.Publishers {
		if p.Registered != registered[p.Name] {
			t.Fatalf("status registration mismatch for %s", p.Name)
		}
	}
}

func TestUnconfiguredWithoutInstrumentAddress(t *testing.T) {
	testlog.Start(t)

	cfg := offlineConfig(t)
	cfg.InstrumentAddr = ""
	a := newOffline(t, cfg)
	if got := a.Status().State; got != StateUnconfigured.String() {
		t.Fatalf("state=%s want UNCONFIGURED", got)
	}
	for _, p := range a.publishers.Publishers() {
		if p.Name() == publisher.NameInstrumentData {
			t.Fatalf("instrument data publisher should not be registered without an address")
		}
	}
}

func TestDispatchContinuesPastFailingPublisher(t *testing.T) {
	testlog.Start(t)

	rec := &fakeRecorder{}
	a := newOffline(t, offlineConfig(t), WithRecorder(rec))

	pkt, err := packet.New(packet.DataFromInstrument, []byte("sample"))
	if err != nil {
		t.Fatalf("new packet: %v", err)
	}
	res := a.dispatch(pkt)
	if res.Delivered != 1 || res.Failed != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if a.failures != 1 {
		t.Fatalf("failures=%d want 1", a.failures)
	}
	if len(rec.failures) != 1 || rec.failures[0].publisher != publisher.NameDriverData {
		t.Fatalf("unexpected recorded failures: %+v", rec.failures)
	}
	if rec.failures[0].typ != packet.DataFromInstrument {
		t.Fatalf("recorded type=%s", rec.failures[0].typ)
	}
}

func TestApplyRejectsMissingCapabilities(t *testing.T) {
	testlog.Start(t)

	a := newOffline(t, offlineConfig(t))

	if _, _, err := a.apply(command.Command{Name: command.InstrumentCommand, Text: "ts"}); !errors.Is(err, ErrNoCommandChannel) {
		t.Fatalf("expected ErrNoCommandChannel, got %v", err)
	}
	if _, _, err := a.apply(command.Command{Name: command.InstrumentCommandPort, Port: 4100}); !errors.Is(err, ErrNoCommandChannel) {
		t.Fatalf("expected ErrNoCommandChannel, got %v", err)
	}
	if _, _, err := a.apply(command.Command{Name: command.Break, Duration: time.Millisecond}); !errors.Is(err, network.ErrBreakUnsupported) {
		t.Fatalf("expected ErrBreakUnsupported, got %v", err)
	}
	if _, _, err := a.apply(command.Command{Name: command.DataPort, Port: a.cfg.CommandPort}); !errors.Is(err, ErrPortConflict) {
		t.Fatalf("expected ErrPortConflict, got %v", err)
	}
}

func TestInstrumentCommandFaultsWhenCommandChannelIsDown(t *testing.T) {
	testlog.Start(t)

	tap, err := publisher.OpenFileSink(filepath.Join(t.TempDir(), "tap.log"))
	if err != nil {
		t.Fatalf("open tap sink: %v", err)
	}
	t.Cleanup(func() { _ = tap.Close() })

	cfg := offlineConfig(t)
	cfg.InstrumentType = connection.TypeDigi
	cfg.InstrumentCommandPort = 2
	rec := &fakeRecorder{}
	a := newOffline(t, cfg, WithRecorder(rec), WithTap(tap))

	reply, _, err := a.apply(command.Command{Name: command.InstrumentCommand, Text: "ts"})
	if !errors.Is(err, ErrNotDelivered) {
		t.Fatalf("expected ErrNotDelivered, got reply=%q err=%v", reply, err)
	}
	if !errors.Is(err, network.ErrNotConnected) {
		t.Fatalf("expected the endpoint cause to be kept, got %v", err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.failures) != 1 || rec.failures[0].publisher != publisher.NameInstrumentCommand {
		t.Fatalf("unexpected recorded failures: %+v", rec.failures)
	}
}

func TestApplyUpdatesConfig(t *testing.T) {
	testlog.Start(t)

	a := newOffline(t, offlineConfig(t))

	reply, after, err := a.apply(command.Command{Name: command.Ping})
	if err != nil || reply != "pong offline" || after != nil {
		t.Fatalf("ping: reply=%q after=%v err=%v", reply, after != nil, err)
	}

	if _, _, err := a.apply(command.Command{Name: command.HeartbeatInterval, Duration: 3 * time.Second}); err != nil {
		t.Fatalf("heartbeat_interval: %v", err)
	}
	if a.heartbeat == nil || a.cfg.HeartbeatInterval != 3*time.Second {
		t.Fatalf("heartbeat not armed")
	}
	if _, _, err := a.apply(command.Command{Name: command.HeartbeatInterval}); err != nil {
		t.Fatalf("heartbeat_interval 0: %v", err)
	}
	if a.heartbeat != nil {
		t.Fatalf("heartbeat should be disabled")
	}

	if _, _, err := a.apply(command.Command{Name: command.InstrumentDataPort, Port: 2}); err != nil {
		t.Fatalf("instrument_data_port: %v", err)
	}
	if a.conn.DataEndpoint().Port() != 2 {
		t.Fatalf("instrument port=%d want 2", a.conn.DataEndpoint().Port())
	}

	_, after, err = a.apply(command.Command{Name: command.Shutdown})
	if err != nil || after == nil {
		t.Fatalf("shutdown should defer its effect: err=%v", err)
	}
	if a.shutdown {
		t.Fatalf("shutdown applied before the reply")
	}
	after()
	if !a.shutdown {
		t.Fatalf("shutdown flag not set")
	}

	cfg, _, _ := a.apply(command.Command{Name: command.GetConfig})
	for _, want := range []string{"id offline", "instrument_data_port 2", "heartbeat_interval 0"} {
		if !strings.Contains(cfg, want) {
			t.Fatalf("get_config missing %q:\n%s", want, cfg)
		}
	}
}

func TestStateTransitions(t *testing.T) {
	testlog.Start(t)

	if StateDisconnected.String() != "DISCONNECTED" || State(99).String() != "UNCONFIGURED" {
		t.Fatalf("unexpected state names")
	}
	a := newOffline(t, offlineConfig(t))
	a.everConnected = true
	a.updateState()
	if a.state != StateDisconnected {
		t.Fatalf("state=%s want DISCONNECTED once a link was lost", a.state)
	}
}
