package publisher

import (
	"io"

	"github.com/danmuck/portagent/internal/network"
	"github.com/danmuck/portagent/internal/packet"
)

// Encoding selects the representation written to the sink.
type Encoding int

const (
	// EncodingBinary writes the framed wire form: header, payload.
	EncodingBinary Encoding = iota
	// EncodingASCII writes one printable line per packet.
	EncodingASCII
	// EncodingRaw writes the payload alone, for sinks that are the
	// instrument itself.
	EncodingRaw
)

func (e Encoding) String() string {
	switch e {
	case EncodingASCII:
		return "ascii"
	case EncodingRaw:
		return "raw"
	default:
		return "binary"
	}
}

// Publisher writes packets whose type passes its filter to one sink.
type Publisher struct {
	name     string
	filter   packet.TypeSet
	encoding Encoding
	sink     Sink
}

func newPublisher(name string, enc Encoding, types ...packet.Type) *Publisher {
	return &Publisher{
		name:     name,
		filter:   packet.NewTypeSet(types...),
		encoding: enc,
	}
}

func (p *Publisher) Name() string { return p.name }

func (p *Publisher) Encoding() Encoding { return p.encoding }

func (p *Publisher) Filter() []packet.Type { return p.filter.Types() }

func (p *Publisher) Accepts(t packet.Type) bool { return p.filter.Has(t) }

// SetASCII switches between ascii and binary output. Raw publishers ignore it.
func (p *Publisher) SetASCII(ascii bool) {
	if p.encoding == EncodingRaw {
		return
	}
	if ascii {
		p.encoding = EncodingASCII
	} else {
		p.encoding = EncodingBinary
	}
}

// SetSink rebinds the publisher. A nil sink unbinds it.
func (p *Publisher) SetSink(s Sink) {
	p.sink = s
}

// SetEndpoint binds the publisher to a network endpoint.
func (p *Publisher) SetEndpoint(ep network.Endpoint) {
	if ep == nil {
		p.sink = nil
		return
	}
	p.sink = NewEndpointSink(ep)
}

func (p *Publisher) Sink() Sink { return p.sink }

// Bound reports whether a configured sink is attached.
func (p *Publisher) Bound() bool {
	return p.sink != nil && p.sink.Configured()
}

// Equal compares publishers by their bound sink.
func (p *Publisher) Equal(other *Publisher) bool {
	if other == nil {
		return false
	}
	return SinkEqual(p.sink, other.sink)
}

// Encode renders pkt in the publisher's representation.
func (p *Publisher) Encode(pkt *packet.Packet) []byte {
	switch p.encoding {
	case EncodingRaw:
		return pkt.Raw()
	case EncodingASCII:
		return []byte(pkt.ASCII())
	default:
		return pkt.Marshal()
	}
}

// Publish writes pkt if its type passes the filter. It returns false with a
// nil error for packets the publisher does not care about, and a
// *PublishFailure when an accepted packet cannot be delivered.
func (p *Publisher) Publish(pkt *packet.Packet) (bool, error) {
	if pkt == nil || !p.filter.Has(pkt.Type()) {
		return false, nil
	}
	if p.sink == nil || !p.sink.Configured() {
		return false, p.failure(pkt, "<unbound>", ErrNoSink)
	}
	out := p.Encode(pkt)
	n, err := p.sink.Write(out)
	if err == nil && n < len(out) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return false, p.failure(pkt, p.sink.String(), err)
	}
	return true, nil
}

func (p *Publisher) failure(pkt *packet.Packet, sink string, err error) error {
	return &PublishFailure{Publisher: p.name, Type: pkt.Type(), Sink: sink, Err: err}
}
