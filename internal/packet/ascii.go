package packet

import (
	"strings"
)

const hexDigits = "0123456789ABCDEF"

// ASCII renders the packet as one printable line terminated by CRLF.
func (p *Packet) ASCII() string {
	var b strings.Builder
	b.Grow(len(p.payload) + 96)
	b.WriteString(`<port_agent_packet type="`)
	b.WriteString(p.typ.String())
	b.WriteString(`" time="`)
	b.WriteString(p.stamp.String())
	b.WriteString(`">`)
	writeEscaped(&b, p.payload)
	b.WriteString("</port_agent_packet>\r\n")
	return b.String()
}

// EscapePayload renders raw bytes in the printable form used by ASCII.
func EscapePayload(raw []byte) string {
	var b strings.Builder
	writeEscaped(&b, raw)
	return b.String()
}

func writeEscaped(b *strings.Builder, raw []byte) {
	for _, c := range raw {
		switch {
		case c == '\\':
			b.WriteString(`\\`)
		case c >= 0x20 && c < 0x7f:
			b.WriteByte(c)
		default:
			b.WriteString(`\x`)
			b.WriteByte(hexDigits[c>>4])
			b.WriteByte(hexDigits[c&0x0f])
		}
	}
}
