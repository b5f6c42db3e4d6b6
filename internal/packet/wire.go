package packet

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"time"
)

const (
	HeaderLen     = 16
	MaxPacketSize = 0xFFFF
	MaxPayloadLen = MaxPacketSize - HeaderLen
)

// SyncMarker opens every binary packet.
var SyncMarker = [3]byte{0xA3, 0x9D, 0x7A}

// Header is the decoded fixed wire header.
type Header struct {
	Type      Type
	Size      uint16
	Checksum  uint16
	Timestamp Timestamp
}

func encodeHeader(t Type, size, sum uint16, ts Timestamp) []byte {
	buf := make([]byte, HeaderLen)
	copy(buf[0:3], SyncMarker[:])
	buf[3] = byte(t)
	binary.BigEndian.PutUint16(buf[4:6], size)
	binary.BigEndian.PutUint16(buf[6:8], sum)
	binary.BigEndian.PutUint32(buf[8:12], ts.Seconds)
	binary.BigEndian.PutUint32(buf[12:16], ts.Fraction)
	return buf
}

// DecodeHeader parses a fixed header.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) != HeaderLen {
		return Header{}, fmt.Errorf("packet: invalid header length: %d", len(b))
	}
	if b[0] != SyncMarker[0] || b[1] != SyncMarker[1] || b[2] != SyncMarker[2] {
		return Header{}, ErrInvalidSyncMarker
	}
	h := Header{
		Type:     Type(b[3]),
		Size:     binary.BigEndian.Uint16(b[4:6]),
		Checksum: binary.BigEndian.Uint16(b[6:8]),
		Timestamp: Timestamp{
			Seconds:  binary.BigEndian.Uint32(b[8:12]),
			Fraction: binary.BigEndian.Uint32(b[12:16]),
		},
	}
	if h.Size < HeaderLen {
		return Header{}, ErrPacketTooShort
	}
	return h, nil
}

// Unmarshal decodes exactly one complete binary packet.
func Unmarshal(b []byte) (*Packet, error) {
	if len(b) < HeaderLen {
		return nil, ErrPacketTooShort
	}
	h, err := DecodeHeader(b[:HeaderLen])
	if err != nil {
		return nil, err
	}
	if int(h.Size) != len(b) {
		return nil, fmt.Errorf("packet: size mismatch: header=%d buffer=%d", h.Size, len(b))
	}
	return fromWire(h, b[HeaderLen:])
}

// ReadPacket reads the next packet from a byte stream. Bytes preceding the
// next sync marker are skipped so a reader can join a stream mid-packet.
func ReadPacket(r *bufio.Reader) (*Packet, error) {
	if err := seekSync(r); err != nil {
		return nil, err
	}
	header := make([]byte, HeaderLen)
	copy(header, SyncMarker[:])
	if _, err := io.ReadFull(r, header[len(SyncMarker):]); err != nil {
		return nil, err
	}
	h, err := DecodeHeader(header)
	if err != nil {
		return nil, err
	}
	payload := make([]byte, int(h.Size)-HeaderLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return fromWire(h, payload)
}

func seekSync(r *bufio.Reader) error {
	matched := 0
	for matched < len(SyncMarker) {
		b, err := r.ReadByte()
		if err != nil {
			return err
		}
		switch {
		case b == SyncMarker[matched]:
			matched++
		case b == SyncMarker[0]:
			matched = 1
		default:
			matched = 0
		}
	}
	return nil
}

// fromWire keeps reserved type codes so a stream from a newer peer still
// decodes; only the zero code is rejected.
func fromWire(h Header, payload []byte) (*Packet, error) {
	if h.Type == Unknown {
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, uint8(h.Type))
	}
	p, err := build(h.Type, payload, h.Timestamp, h.Timestamp.Time())
	if err != nil {
		return nil, err
	}
	if p.checksum != h.Checksum {
		return nil, fmt.Errorf("%w: header=%#04x computed=%#04x", ErrChecksumMismatch, h.Checksum, p.checksum)
	}
	return p, nil
}

// WritePacket writes the binary wire form of p.
func WritePacket(w io.Writer, p *Packet) error {
	_, err := w.Write(p.Marshal())
	return err
}

// Since reports how long ago the packet was stamped.
func Since(p *Packet) time.Duration {
	return time.Since(p.created)
}
