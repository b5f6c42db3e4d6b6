package network

import (
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type deadlineWriter interface {
	SetWriteDeadline(t time.Time) error
}

// link is the live peer state shared by every endpoint variant.
type link struct {
	mu       sync.Mutex
	self     Endpoint
	opts     Options
	logger   zerolog.Logger
	hostname string
	port     int
	inbound  chan<- Chunk
	gen      uint64
	conn     io.ReadWriteCloser
	stop     chan struct{}
	done     chan struct{}
}

func (l *link) setup(self Endpoint, opts Options) {
	opts = opts.withDefaults()
	l.self = self
	l.opts = opts
	l.logger = opts.Logger
	l.done = make(chan struct{})
}

func (l *link) Hostname() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hostname
}

func (l *link) Port() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.port
}

func (l *link) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn != nil
}

func (l *link) SetInbound(ch chan<- Chunk) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inbound = ch
}

// setHostname stores h and reports whether the value changed.
func (l *link) setHostname(h string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.hostname == h {
		return false
	}
	l.hostname = h
	return true
}

func (l *link) setPort(p int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.port == p {
		return false
	}
	l.port = p
	return true
}

// attach binds a freshly established peer. Peers from a stale generation, or
// arriving while one is already attached, are closed.
func (l *link) attach(c io.ReadWriteCloser, gen uint64) bool {
	l.mu.Lock()
	if gen != l.gen || l.conn != nil {
		l.mu.Unlock()
		_ = c.Close()
		return false
	}
	stop := make(chan struct{})
	l.conn = c
	l.stop = stop
	done := l.done
	inbound := l.inbound
	l.mu.Unlock()

	l.logger.Info().Str("endpoint", l.self.String()).Msg("peer attached")
	go l.read(c, stop, done, inbound)
	return true
}

func (l *link) read(c io.ReadWriteCloser, stop, done <-chan struct{}, inbound chan<- Chunk) {
	buf := make([]byte, l.opts.ReadBufferSize)
	for {
		n, err := c.Read(buf)
		if n > 0 && inbound != nil {
			data := append([]byte(nil), buf[:n]...)
			select {
			case inbound <- Chunk{Source: l.self, Data: data}:
			case <-stop:
				return
			case <-done:
				return
			}
		}
		if err != nil {
			if !l.detach(c) {
				return
			}
			l.logger.Debug().Str("endpoint", l.self.String()).Err(err).Msg("peer lost")
			if inbound != nil {
				select {
				case inbound <- Chunk{Source: l.self, Err: err}:
				case <-stop:
				case <-done:
				}
			}
			return
		}
	}
}

// detach drops c if it is still the attached peer. It reports whether c was
// attached, so callers can tell a peer loss from a local close.
func (l *link) detach(c io.ReadWriteCloser) bool {
	l.mu.Lock()
	if l.conn != c {
		l.mu.Unlock()
		return false
	}
	l.conn = nil
	l.stop = nil
	l.mu.Unlock()
	_ = c.Close()
	return true
}

// dropPeerLocked closes the attached peer and stops its reader. The caller
// holds mu.
func (l *link) dropPeerLocked() {
	if l.stop != nil {
		close(l.stop)
		l.stop = nil
	}
	if l.conn != nil {
		_ = l.conn.Close()
		l.conn = nil
	}
}

// releaseLocked drops the peer, invalidates in-flight dials and unblocks
// every reader still holding a chunk. The caller holds mu.
func (l *link) releaseLocked() {
	l.gen++
	l.dropPeerLocked()
	close(l.done)
	l.done = make(chan struct{})
}

func (l *link) Write(p []byte) (int, error) {
	l.mu.Lock()
	c := l.conn
	l.mu.Unlock()
	if c == nil {
		return 0, ErrNotConnected
	}
	if dw, ok := c.(deadlineWriter); ok {
		_ = dw.SetWriteDeadline(time.Now().Add(l.opts.WriteTimeout))
	}
	n, err := c.Write(p)
	if err != nil {
		l.detach(c)
		l.logger.Debug().Str("endpoint", l.self.String()).Err(err).Msg("write failed, peer dropped")
		return n, err
	}
	return n, nil
}

func isClosed(err error) bool {
	return errors.Is(err, net.ErrClosed)
}
