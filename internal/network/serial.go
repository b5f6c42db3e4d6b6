package network

import (
	"fmt"
	"strconv"
	"time"

	"go.bug.st/serial"
)

// SerialPort drives a local serial device. Hostname is the device path and
// Port the baud rate.
type SerialPort struct {
	link
	dev  serial.Port
	open func(name string, mode *serial.Mode) (serial.Port, error)
}

var (
	_ Endpoint = (*SerialPort)(nil)
	_ Breaker  = (*SerialPort)(nil)
)

func NewSerialPort(opts Options) *SerialPort {
	s := &SerialPort{open: serial.Open}
	s.setup(s, opts)
	return s
}

func (s *SerialPort) Kind() Kind { return KindSerial }

func (s *SerialPort) IsConfigured() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hostname != "" && s.port > 0
}

func (s *SerialPort) SetHostname(device string) {
	if s.setHostname(device) {
		s.reconfigure()
	}
}

func (s *SerialPort) SetPort(baud int) {
	if s.setPort(baud) {
		s.reconfigure()
	}
}

func (s *SerialPort) reconfigure() {
	s.mu.Lock()
	live := s.conn != nil
	if live {
		s.closeLocked()
	}
	s.mu.Unlock()
	if !live {
		return
	}
	s.logger.Info().Str("endpoint", s.String()).Msg("reconfigured, reopening")
	if err := s.Initialize(); err != nil {
		s.logger.Debug().Str("endpoint", s.String()).Err(err).Msg("reopen failed")
	}
}

func (s *SerialPort) Initialize() error {
	s.mu.Lock()
	if s.conn != nil {
		s.mu.Unlock()
		return nil
	}
	if s.hostname == "" || s.port <= 0 {
		s.mu.Unlock()
		return ErrNotConfigured
	}
	device, baud, gen := s.hostname, s.port, s.gen
	s.mu.Unlock()

	p, err := s.open(device, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return fmt.Errorf("network: open serial %s: %w", device, err)
	}
	if !s.attach(p, gen) {
		return nil
	}
	s.mu.Lock()
	s.dev = p
	s.mu.Unlock()
	return nil
}

// Initialized collapses to connected: opening the device is the only step.
func (s *SerialPort) Initialized() bool {
	return s.Connected()
}

// Break holds the line in a break condition for d.
func (s *SerialPort) Break(d time.Duration) error {
	s.mu.Lock()
	dev := s.dev
	live := s.conn != nil
	s.mu.Unlock()
	if dev == nil || !live {
		return ErrNotConnected
	}
	return dev.Break(d)
}

func (s *SerialPort) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked()
}

func (s *SerialPort) closeLocked() error {
	s.releaseLocked()
	s.dev = nil
	return nil
}

func (s *SerialPort) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return "serial://" + s.hostname + "@" + strconv.Itoa(s.port)
}
