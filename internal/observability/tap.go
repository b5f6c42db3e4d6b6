package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/danmuck/portagent/internal/publisher"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	tapBufferSize   = 256
	tapWriteTimeout = 5 * time.Second
)

// TapHub is a publisher sink that broadcasts each encoded packet to every
// connected websocket client. Slow clients lose frames rather than stall
// the dispatcher.
type TapHub struct {
	agentID  string
	logger   zerolog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*tapClient]struct{}
	closed  bool
}

type tapClient struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

var _ publisher.Sink = (*TapHub)(nil)

func NewTapHub(agentID string, logger zerolog.Logger) *TapHub {
	RegisterMetrics()
	return &TapHub{
		agentID: agentID,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*tapClient]struct{}),
	}
}

func (h *TapHub) Kind() publisher.SinkKind { return publisher.SinkTap }

// Configured is true until Close. A hub without clients still accepts
// writes.
func (h *TapHub) Configured() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.closed
}

func (h *TapHub) Write(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- p:
		default:
			tapDropped.WithLabelValues(h.agentID).Inc()
		}
	}
	return len(p), nil
}

func (h *TapHub) Equal(other publisher.Sink) bool {
	o, ok := other.(*TapHub)
	return ok && o == h
}

func (h *TapHub) String() string {
	return "tap://" + h.agentID
}

func (h *TapHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams packets until the client goes
// away or the hub closes.
func (h *TapHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("tap upgrade failed")
		return
	}
	c := &tapClient{
		conn: conn,
		send: make(chan []byte, tapBufferSize),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	tapClients.WithLabelValues(h.agentID).Set(float64(n))
	h.logger.Info().Str("remote", r.RemoteAddr).Int("clients", n).Msg("tap client attached")

	go h.writeLoop(c)
	// Reads only detect the close handshake; client messages are ignored.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.remove(c)
}

func (h *TapHub) writeLoop(c *tapClient) {
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(tapWriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.logger.Debug().Err(err).Msg("tap write failed")
				h.remove(c)
				return
			}
		}
	}
}

func (h *TapHub) remove(c *tapClient) {
	c.once.Do(func() {
		h.mu.Lock()
		delete(h.clients, c)
		n := len(h.clients)
		h.mu.Unlock()
		close(c.done)
		_ = c.conn.Close()
		tapClients.WithLabelValues(h.agentID).Set(float64(n))
		h.logger.Info().Int("clients", n).Msg("tap client detached")
	})
}

// Close disconnects every client and refuses new ones.
func (h *TapHub) Close() error {
	h.mu.Lock()
	h.closed = true
	clients := make([]*tapClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		h.remove(c)
	}
	return nil
}
