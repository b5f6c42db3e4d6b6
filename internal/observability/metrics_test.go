package observability

import (
	"testing"
	"time"

	"github.com/danmuck/portagent/internal/agent"
	"github.com/danmuck/portagent/internal/connection"
	"github.com/danmuck/portagent/internal/packet"
	"github.com/danmuck/portagent/internal/testutil/testlog"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)

	RegisterMetrics()
	RegisterMetrics()
	RecordHTTPRequest("pa-metrics", "GET", "/health", 200, 12*time.Millisecond)
}

func TestAgentMetricsRecordDispatch(t *testing.T) {
	testlog.Start(t)

	m := NewAgentMetrics("pa-dispatch")
	m.ObservePacket(packet.DataFromInstrument, 2, 1, time.Millisecond)
	m.ObservePacket(packet.DataFromInstrument, 1, 0, time.Millisecond)
	m.ObservePublishFailure("driver_data", packet.DataFromInstrument)

	if got := testutil.ToFloat64(packetsTotal.WithLabelValues("pa-dispatch", "DATA_FROM_INSTRUMENT")); got != 2 {
		t.Fatalf("packets=%v want 2", got)
	}
	if got := testutil.ToFloat64(deliveriesTotal.WithLabelValues("pa-dispatch", "DATA_FROM_INSTRUMENT", "delivered")); got != 3 {
		t.Fatalf("delivered=%v want 3", got)
	}
	if got := testutil.ToFloat64(publishFailures.WithLabelValues("pa-dispatch", "driver_data", "DATA_FROM_INSTRUMENT")); got != 1 {
		t.Fatalf("failures=%v want 1", got)
	}

	m.ObserveState(agent.StateConnected, connection.StateConnected, connection.StateUnconfigured)
	if got := testutil.ToFloat64(agentState.WithLabelValues("pa-dispatch", "CONNECTED")); got != 1 {
		t.Fatalf("connected gauge=%v", got)
	}
	if got := testutil.ToFloat64(agentState.WithLabelValues("pa-dispatch", "CONFIGURED")); got != 0 {
		t.Fatalf("configured gauge=%v", got)
	}
	if got := testutil.ToFloat64(channelState.WithLabelValues("pa-dispatch", "data")); got != float64(connection.StateConnected) {
		t.Fatalf("data channel gauge=%v", got)
	}
}
