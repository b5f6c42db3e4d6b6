package packet

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrUnknownType       = errors.New("packet: unknown packet type")
	ErrPayloadTooLarge   = errors.New("packet: payload too large")
	ErrPacketTooShort    = errors.New("packet: packet size smaller than header")
	ErrChecksumMismatch  = errors.New("packet: checksum mismatch")
	ErrInvalidSyncMarker = errors.New("packet: invalid sync marker")
)

// Packet is one framed, typed unit of port agent traffic. It is immutable
// once constructed: length and checksum are derived from the payload in the
// constructor and never recomputed.
type Packet struct {
	typ      Type
	payload  []byte
	stamp    Timestamp
	created  time.Time
	size     uint16
	checksum uint16
}

// New builds a packet stamped with the current time.
func New(t Type, payload []byte) (*Packet, error) {
	return NewAt(t, payload, time.Now())
}

// NewAt builds a packet stamped with the given time.
func NewAt(t Type, payload []byte, at time.Time) (*Packet, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, uint8(t))
	}
	return build(t, payload, TimestampFrom(at), at)
}

func build(t Type, payload []byte, stamp Timestamp, created time.Time) (*Packet, error) {
	if len(payload) > MaxPayloadLen {
		return nil, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, len(payload), MaxPayloadLen)
	}
	p := &Packet{
		typ:     t,
		payload: append([]byte(nil), payload...),
		stamp:   stamp,
		created: created,
		size:    uint16(HeaderLen + len(payload)),
	}
	p.checksum = checksum(encodeHeader(p.typ, p.size, 0, p.stamp), p.payload)
	return p, nil
}

// Frame splits data into ordered packets of type t, none larger than the
// wire maximum. Empty input yields no packets.
func Frame(t Type, data []byte, at time.Time) ([]*Packet, error) {
	if len(data) == 0 {
		return nil, nil
	}
	out := make([]*Packet, 0, len(data)/MaxPayloadLen+1)
	for start := 0; start < len(data); start += MaxPayloadLen {
		end := min(start+MaxPayloadLen, len(data))
		p, err := NewAt(t, data[start:end], at)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (p *Packet) Type() Type { return p.typ }

// Payload returns a copy of the payload bytes.
func (p *Packet) Payload() []byte {
	return append([]byte(nil), p.payload...)
}

// PayloadLen is the number of payload bytes.
func (p *Packet) PayloadLen() int { return len(p.payload) }

// Size is the full wire size, header included.
func (p *Packet) Size() int { return int(p.size) }

func (p *Packet) Checksum() uint16 { return p.checksum }

func (p *Packet) Timestamp() Timestamp { return p.stamp }

// Created is the local construction time. Packets built by NewAt or New keep
// the monotonic clock reading of the time they were given.
func (p *Packet) Created() time.Time { return p.created }

// Marshal renders the binary wire form: header followed by raw payload.
func (p *Packet) Marshal() []byte {
	out := make([]byte, 0, p.size)
	out = append(out, encodeHeader(p.typ, p.size, p.checksum, p.stamp)...)
	return append(out, p.payload...)
}

// Raw returns the payload as written to an instrument: no header, no framing.
func (p *Packet) Raw() []byte {
	return p.Payload()
}

func (p *Packet) String() string {
	return fmt.Sprintf("%s size=%d checksum=%#04x time=%s", p.typ, p.size, p.checksum, p.stamp)
}

func checksum(header, payload []byte) uint16 {
	var sum uint16
	for _, b := range header {
		sum += uint16(b)
	}
	for _, b := range payload {
		sum += uint16(b)
	}
	return sum
}
