package network

import (
	"fmt"
	"net"
	"strconv"
)

// TCPListener accepts one observatory client at a time. Hostname is the
// optional bind address; an empty hostname binds every interface.
type TCPListener struct {
	link
	ln net.Listener
}

var _ Endpoint = (*TCPListener)(nil)

func NewTCPListener(opts Options) *TCPListener {
	t := &TCPListener{}
	t.setup(t, opts)
	return t
}

func (t *TCPListener) Kind() Kind { return KindTCPListener }

func (t *TCPListener) IsConfigured() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return validPort(t.port)
}

func (t *TCPListener) SetHostname(host string) {
	if t.setHostname(host) {
		t.reconfigure()
	}
}

func (t *TCPListener) SetPort(port int) {
	if t.setPort(port) {
		t.reconfigure()
	}
}

func (t *TCPListener) reconfigure() {
	t.mu.Lock()
	live := t.ln != nil || t.conn != nil
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

func (t *TCPListener) Initialize() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ln != nil {
		return nil
	}
	if !validPort(t.port) {
		return ErrNotConfigured
	}
	addr := net.JoinHostPort(t.hostname, strconv.Itoa(t.port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("network: listen %s: %w", addr, err)
	}
	t.ln = ln
	go t.accept(ln, t.gen)
	return nil
}

func (t *TCPListener) accept(ln net.Listener, gen uint64) {
	for {
		c, err := ln.Accept()
		if err != nil {
			if !isClosed(err) {
				t.logger.Warn().Str("endpoint", t.String()).Err(err).Msg("accept failed, dropping listener")
			}
			t.mu.Lock()
			if t.ln == ln {
				t.ln = nil
			}
			t.mu.Unlock()
			_ = ln.Close()
			return
		}
		if !t.attach(c, gen) {
			t.logger.Debug().Str("endpoint", t.String()).Str("remote", c.RemoteAddr().String()).Msg("client rejected, one already attached")
		}
	}
}

// Initialized reports whether the listener is bound.
func (t *TCPListener) Initialized() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ln != nil
}

// Addr is the bound address, or nil before Initialize.
func (t *TCPListener) Addr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ln == nil {
		return nil
	}
	return t.ln.Addr()
}

func (t *TCPListener) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closeLocked()
}

func (t *TCPListener) closeLocked() error {
	t.releaseLocked()
	if t.ln == nil {
		return nil
	}
	err := t.ln.Close()
	t.ln = nil
	return err
}

func (t *TCPListener) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return "tcp-listen://" + net.JoinHostPort(t.hostname, strconv.Itoa(t.port))
}
