package network

import (
	"net"
	"strconv"
)

// TCPSocket dials a remote peer. Dialing runs in the background so
// Initialize never waits on the network.
type TCPSocket struct {
	link
	dialing bool
	lastErr error
}

var _ Endpoint = (*TCPSocket)(nil)

func NewTCPSocket(opts Options) *TCPSocket {
	t := &TCPSocket{}
	t.setup(t, opts)
	return t
}

func (t *TCPSocket) Kind() Kind { return KindTCPSocket }

func (t *TCPSocket) IsConfigured() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hostname != "" && validPort(t.port)
}

func (t *TCPSocket) SetHostname(host string) {
	if t.setHostname(host) {
		t.reconfigure()
	}
}

func (t *TCPSocket) SetPort(port int) {
	if t.setPort(port) {
		t.reconfigure()
	}
}

func (t *TCPSocket) reconfigure() {
	t.mu.Lock()
	live := t.dialing || t.conn != nil
	if live {
		t.closeLocked()
	}
	t.mu.Unlock()
	if !live {
		return
	}
	t.logger.Info().Str("endpoint", t.String()).Msg("reconfigured, re-initializing")
	if err := t.Initialize(); err != nil {
		t.logger.Debug().Str("endpoint", t.String()).Err(err).Msg("re-initialize failed")
	}
}

func (t *TCPSocket) Initialize() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil || t.dialing {
		return nil
	}
	if t.hostname == "" || !validPort(t.port) {
		return ErrNotConfigured
	}
	t.dialing = true
	go t.dial(net.JoinHostPort(t.hostname, strconv.Itoa(t.port)), t.gen)
	return nil
}

func (t *TCPSocket) dial(addr string, gen uint64) {
	c, err := net.DialTimeout("tcp", addr, t.opts.DialTimeout)
	t.mu.Lock()
	if gen == t.gen {
		t.dialing = false
		t.lastErr = err
	}
	t.mu.Unlock()
	if err != nil {
		t.logger.Debug().Str("addr", addr).Err(err).Msg("dial failed, will retry on next initialize")
		return
	}
	t.attach(c, gen)
}

// Initialized reports whether a dial is in flight or a peer is attached.
func (t *TCPSocket) Initialized() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dialing || t.conn != nil
}

// LastError is the result of the most recent dial attempt.
func (t *TCPSocket) LastError() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

func (t *TCPSocket) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closeLocked()
}

func (t *TCPSocket) closeLocked() error {
	t.releaseLocked()
	t.dialing = false
	return nil
}

func (t *TCPSocket) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return "tcp://" + net.JoinHostPort(t.hostname, strconv.Itoa(t.port))
}
