package packet

import (
	"fmt"
	"strings"
)

// Type is the wire traffic class of a packet.
type Type uint8

const (
	Unknown            Type = 0
	DataFromInstrument Type = 1
	DataFromDriver     Type = 2
	PortAgentCommand   Type = 3
	PortAgentStatus    Type = 4
	PortAgentFault     Type = 5
	InstrumentCommand  Type = 6
	Heartbeat          Type = 7

	// maxType is the highest code currently assigned. Codes above it are reserved.
	maxType = Heartbeat
)

var typeNames = map[Type]string{
	Unknown:            "UNKNOWN",
	DataFromInstrument: "DATA_FROM_INSTRUMENT",
	DataFromDriver:     "DATA_FROM_DRIVER",
	PortAgentCommand:   "PORT_AGENT_COMMAND",
	PortAgentStatus:    "PORT_AGENT_STATUS",
	PortAgentFault:     "PORT_AGENT_FAULT",
	InstrumentCommand:  "INSTRUMENT_COMMAND",
	Heartbeat:          "HEARTBEAT",
}

// AllTypes lists every assigned, non-unknown type in code order.
func AllTypes() []Type {
	out := make([]Type, 0, int(maxType))
	for t := DataFromInstrument; t <= maxType; t++ {
		out = append(out, t)
	}
	return out
}

// Valid reports whether t is an assigned type other than Unknown.
func (t Type) Valid() bool {
	return t > Unknown && t <= maxType
}

// Reserved reports whether t is a code set aside for future types. Such
// packets decode but cannot be constructed locally.
func (t Type) Reserved() bool {
	return t > maxType
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("RESERVED_%d", uint8(t))
}

// ParseType resolves a canonical type name (case-insensitive).
func ParseType(raw string) (Type, error) {
	name := strings.ToUpper(strings.TrimSpace(raw))
	for t, n := range typeNames {
		if t != Unknown && n == name {
			return t, nil
		}
	}
	return Unknown, fmt.Errorf("%w: %q", ErrUnknownType, raw)
}

// TypeSet is a packet type filter.
type TypeSet map[Type]struct{}

// NewTypeSet builds a filter from the given types.
func NewTypeSet(types ...Type) TypeSet {
	s := make(TypeSet, len(types))
	for _, t := range types {
		s[t] = struct{}{}
	}
	return s
}

// Has reports whether t is in the set.
func (s TypeSet) Has(t Type) bool {
	_, ok := s[t]
	return ok
}

// Types returns the members in code order.
func (s TypeSet) Types() []Type {
	out := make([]Type, 0, len(s))
	for t := Unknown; t <= maxType; t++ {
		if s.Has(t) {
			out = append(out, t)
		}
	}
	return out
}
