package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/danmuck/portagent/internal/agent"
	"github.com/danmuck/portagent/internal/connection"
	"github.com/danmuck/portagent/internal/packet"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "port_agent"

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"agent", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"agent", "method", "path", "status"},
	)
	packetsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "packets_total",
			Help:      "Packets dispatched by type.",
		},
		[]string{"agent", "type"},
	)
	deliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "deliveries_total",
			Help:      "Per-publisher packet deliveries by outcome.",
		},
		[]string{"agent", "type", "result"},
	)
	publishFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "publish_failures_total",
			Help:      "Accepted packets a publisher could not deliver.",
		},
		[]string{"agent", "publisher", "type"},
	)
	dispatchLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "latency_seconds",
			Help:      "Time from packet construction to end of fan-out.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		},
		[]string{"agent", "type"},
	)
	agentState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "state",
			Help:      "1 for the agent's current state, 0 otherwise.",
		},
		[]string{"agent", "state"},
	)
	channelState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "connection",
			Name:      "channel_state",
			Help:      "Instrument channel readiness: 0 unconfigured, 1 configured, 2 initialized, 3 connected.",
		},
		[]string{"agent", "channel"},
	)
	tapClients = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tap",
			Name:      "clients",
			Help:      "Connected websocket tap clients.",
		},
		[]string{"agent"},
	)
	tapDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tap",
			Name:      "dropped_total",
			Help:      "Tap frames dropped for slow clients.",
		},
		[]string{"agent"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			packetsTotal, deliveriesTotal, publishFailures, dispatchLatency,
			agentState, channelState,
			tapClients, tapDropped,
		)
	})
}

func RecordHTTPRequest(agentID, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(agentID, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(agentID, method, path, statusLabel).Observe(duration.Seconds())
}

// AgentMetrics records dispatcher events for one agent.
type AgentMetrics struct {
	id string
}

var _ agent.Recorder = (*AgentMetrics)(nil)

func NewAgentMetrics(agentID string) *AgentMetrics {
	RegisterMetrics()
	return &AgentMetrics{id: agentID}
}

func (m *AgentMetrics) ObservePacket(t packet.Type, delivered, failed int, latency time.Duration) {
	typ := t.String()
	packetsTotal.WithLabelValues(m.id, typ).Inc()
	if delivered > 0 {
		deliveriesTotal.WithLabelValues(m.id, typ, "delivered").Add(float64(delivered))
	}
	if failed > 0 {
		deliveriesTotal.WithLabelValues(m.id, typ, "failed").Add(float64(failed))
	}
	dispatchLatency.WithLabelValues(m.id, typ).Observe(latency.Seconds())
}

func (m *AgentMetrics) ObservePublishFailure(publisher string, t packet.Type) {
	publishFailures.WithLabelValues(m.id, publisher, t.String()).Inc()
}

func (m *AgentMetrics) ObserveState(state agent.State, data, command connection.State) {
	for _, s := range []agent.State{agent.StateUnconfigured, agent.StateConfigured, agent.StateConnected, agent.StateDisconnected} {
		v := 0.0
		if s == state {
			v = 1
		}
		agentState.WithLabelValues(m.id, s.String()).Set(v)
	}
	channelState.WithLabelValues(m.id, connection.DataChannel.String()).Set(float64(data))
	channelState.WithLabelValues(m.id, connection.CommandChannel.String()).Set(float64(command))
}
