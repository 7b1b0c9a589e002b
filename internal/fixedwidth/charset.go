package fixedwidth

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// replacement is written for runes the charset cannot represent.
const replacement = '?'

// charset maps text to and from a single-byte encoding so that one rune is
// always one byte and field widths stay exact.
type charset interface {
	encode(s string) []byte
	decode(b []byte) string
}

func lookupCharset(name string) (charset, error) {
	switch strings.ToLower(name) {
	case "", "ascii":
		return asciiCharset{}, nil
	case "iso-8859-8":
		return mapCharset{charmap.ISO8859_8}, nil
	case "windows-1255":
		return mapCharset{charmap.Windows1255}, nil
	default:
		return nil, fmt.Errorf("unknown charset %q", name)
	}
}

type asciiCharset struct{}

func (asciiCharset) encode(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r < 0x20 || r > 0x7e {
			r = replacement
		}
		out = append(out, byte(r))
	}
	return out
}

func (asciiCharset) decode(b []byte) string {
	return string(b)
}

type mapCharset struct {
	m *charmap.Charmap
}

func (c mapCharset) encode(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		b, ok := c.m.EncodeRune(r)
		if !ok || r < 0x20 || r == 0x7f {
			b = replacement
		}
		out = append(out, b)
	}
	return out
}

func (c mapCharset) decode(b []byte) string {
	var sb strings.Builder
	for _, x := range b {
		sb.WriteRune(c.m.DecodeByte(x))
	}
	return sb.String()
}
