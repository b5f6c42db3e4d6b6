package agent

import (
	"time"

	"github.com/danmuck/portagent/internal/connection"
	"github.com/danmuck/portagent/internal/packet"
)

// State is the agent-level readiness reported by get_state.
type State int

const (
	StateUnconfigured State = iota
	StateConfigured
	StateConnected
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConfigured:
		return "CONFIGURED"
	case StateConnected:
		return "CONNECTED"
	case StateDisconnected:
		return "DISCONNECTED"
	default:
		return "UNCONFIGURED"
	}
}

// PublisherStatus describes one publisher in a Status snapshot.
type PublisherStatus struct {
	Name       string `json:"name"`
	Encoding   string `json:"encoding"`
	Sink       string `json:"sink"`
	Registered bool   `json:"registered"`
}

// Status is a read-only snapshot of the agent, safe to share across
// goroutines.
type Status struct {
	ID                 string            `json:"id"`
	State              string            `json:"state"`
	InstrumentType     string            `json:"instrument_type"`
	DataChannel        string            `json:"data_channel"`
	CommandChannel     string            `json:"command_channel"`
	InstrumentData     string            `json:"instrument_data"`
	InstrumentCommand  string            `json:"instrument_command,omitempty"`
	ObservatoryData    string            `json:"observatory_data"`
	ObservatoryCommand string            `json:"observatory_command"`
	Sniffer            string            `json:"sniffer,omitempty"`
	HeartbeatInterval  string            `json:"heartbeat_interval"`
	Packets            map[string]uint64 `json:"packets"`
	PublishFailures    uint64            `json:"publish_failures"`
	Publishers         []PublisherStatus `json:"publishers"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// Ready reports whether the instrument is connected and a driver can reach
// the observatory data port.
func (s Status) Ready() bool {
	return s.State == StateConnected.String()
}

// Recorder receives dispatcher events for metrics.
type Recorder interface {
	ObservePacket(t packet.Type, delivered, failed int, latency time.Duration)
	ObservePublishFailure(publisher string, t packet.Type)
	ObserveState(state State, data, command connection.State)
}

type nopRecorder struct{}

func (nopRecorder) ObservePacket(packet.Type, int, int, time.Duration) {}
func (nopRecorder) ObservePublishFailure(string, packet.Type) {}
func (nopRecorder) ObserveState(State, connection.State, connection.State) {}
