package textio

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// ErrUnsupportedEncoding is returned for encodings outside the closed set.
var ErrUnsupportedEncoding = errors.New("textio: unsupported encoding")

// Encoding identifies a supported text encoding.
type Encoding int

const (
	// UTF8 decodes UTF-8; ill-formed subsequences become U+FFFD.
	UTF8 Encoding = iota + 1
	// Latin1 decodes ISO 8859-1 (also accepted as "binary").
	Latin1
	// Windows1252 decodes the Windows code page 1252.
	Windows1252
	// ASCII decodes 7-bit ASCII; bytes >= 0x80 become U+FFFD.
	ASCII
	// Hex renders every byte as two lowercase hex digits.
	Hex
)

var encodingNames = map[string]Encoding{
	"utf8":         UTF8,
	"utf-8":        UTF8,
	"latin1":       Latin1,
	"binary":       Latin1,
	"iso-8859-1":   Latin1,
	"windows-1252": Windows1252,
	"cp1252":       Windows1252,
	"ascii":        ASCII,
	"hex":          Hex,
}

// ParseEncoding maps an encoding name to an Encoding.
// Names are matched case-insensitively.
func ParseEncoding(name string) (Encoding, error) {
	enc, ok := encodingNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, name)
	}
	return enc, nil
}

// String returns the canonical name of the encoding.
func (e Encoding) String() string {
	switch e {
	case UTF8:
		return "utf8"
	case Latin1:
		return "latin1"
	case Windows1252:
		return "windows-1252"
	case ASCII:
		return "ascii"
	case Hex:
		return "hex"
	default:
		return fmt.Sprintf("Encoding(%d)", int(e))
	}
}

// Valid reports whether e is one of the supported encodings.
func (e Encoding) Valid() bool {
	return e >= UTF8 && e <= Hex
}

// MaxWidth is the maximum number of bytes a single code point occupies.
// Returns 0 for unsupported encodings.
func (e Encoding) MaxWidth() int {
	switch e {
	case UTF8:
		return utf8.UTFMax
	case Latin1, Windows1252, ASCII, Hex:
		return 1
	default:
		return 0
	}
}

// Decode converts raw bytes to text.
func (e Encoding) Decode(b []byte) (string, error) {
	switch e {
	case UTF8:
		return decodeWith(unicode.UTF8, b)
	case Latin1:
		return decodeWith(charmap.ISO8859_1, b)
	case Windows1252:
		return decodeWith(charmap.Windows1252, b)
	case ASCII:
		return decodeASCII(b), nil
	case Hex:
		return hex.EncodeToString(b), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedEncoding, e)
	}
}

// Encode converts UTF-8 text to the encoding's byte form. Text the encoding
// cannot represent is an error.
func (e Encoding) Encode(text []byte) ([]byte, error) {
	switch e {
	case UTF8:
		if !utf8.Valid(text) {
			return nil, fmt.Errorf("encode utf8: invalid UTF-8 input")
		}
		return text, nil
	case Latin1:
		return encodeWith(charmap.ISO8859_1, text)
	case Windows1252:
		return encodeWith(charmap.Windows1252, text)
	case ASCII:
		for i, c := range text {
			if c >= utf8.RuneSelf {
				return nil, fmt.Errorf("encode ascii: non-ASCII byte 0x%02x at %d", c, i)
			}
		}
		return text, nil
	case Hex:
		out, err := hex.DecodeString(string(text))
		if err != nil {
			return nil, fmt.Errorf("encode hex: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEncoding, e)
	}
}

// holdBack returns how many trailing bytes of a full chunk belong to a code
// point that continues past the end of the chunk. Only the last MaxWidth
// bytes are inspected.
//
// A UTF-8 decoder never lets an ill-formed subsequence swallow a lead byte,
// so cutting right before a lead byte keeps the decoding of both halves
// identical to the decoding of the whole.
func (e Encoding) holdBack(chunk []byte) int {
	if e != UTF8 {
		return 0
	}
	n := len(chunk)
	lo := max(n-utf8.UTFMax, 0)
	for i := n - 1; i >= lo; i-- {
		if !utf8.RuneStart(chunk[i]) {
			continue
		}
		if utf8.FullRune(chunk[i:]) {
			return 0
		}
		return n - i
	}
	return 0
}

func decodeWith(enc encoding.Encoding, b []byte) (string, error) {
	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	return string(out), nil
}

func encodeWith(enc encoding.Encoding, text []byte) ([]byte, error) {
	out, err := enc.NewEncoder().Bytes(text)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return out, nil
}

func decodeASCII(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range b {
		if c >= utf8.RuneSelf {
			sb.WriteRune(utf8.RuneError)
			continue
		}
		sb.WriteByte(c)
	}
	return sb.String()
}
