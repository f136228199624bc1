// Package imaputf7 implements the modified UTF-7 encoding that IMAP uses
// for mailbox names (RFC 3501, section 5.1.3).
//
// Printable ASCII other than '&' is carried as is. '&' is written as "&-".
// Every other character is collected into a run, converted to UTF-16BE,
// encoded with a base64 alphabet that uses ',' instead of '/', stripped of
// padding and wrapped in '&' and '-'.
//
// A Name can only be obtained from Encode or Parse, so holding one means the
// value is ASCII, every escape run is well formed and the runs decode to
// UTF-16 without unpaired surrogates.
package imaputf7

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+,"

var b64 = base64.NewEncoding(alphabet).WithPadding(base64.NoPadding)

// Name is a mailbox name in its wire form.
type Name struct {
	s string
}

// Encode converts human-readable text into its wire form. Invalid UTF-8 in
// text is carried over as U+FFFD.
func Encode(text string) Name {
	if isDirectOnly(text) {
		return Name{s: text}
	}

	var (
		out   strings.Builder
		units []uint16
	)

	flush := func() {
		if len(units) == 0 {
			return
		}
		raw := make([]byte, 2*len(units))
		for i, u := range units {
			binary.BigEndian.PutUint16(raw[2*i:], u)
		}
		out.WriteByte('&')
		out.WriteString(b64.EncodeToString(raw))
		out.WriteByte('-')
		units = units[:0]
	}

	for _, r := range text {
		switch {
		case r == '&':
			flush()
			out.WriteString("&-")
		case isDirect(r):
			flush()
			out.WriteRune(r)
		default:
			units = utf16.AppendRune(units, r)
		}
	}
	flush()

	return Name{s: out.String()}
}

// Parse wraps an already encoded name after validating it.
func Parse(encoded string) (Name, error) {
	if err := Validate(encoded); err != nil {
		return Name{}, err
	}
	return Name{s: encoded}, nil
}

// MustParse is like Parse but panics on invalid input.
func MustParse(encoded string) Name {
	n, err := Parse(encoded)
	if err != nil {
		panic(fmt.Sprintf("imaputf7: MustParse(%q): %v", encoded, err))
	}
	return n
}

// String returns the wire form.
func (n Name) String() string {
	return n.s
}

// Decode returns the human-readable text. It panics if n does not hold a
// valid encoding, which can only happen through a construction path that
// skipped validation.
func (n Name) Decode() string {
	text, err := decode(n.s)
	if err != nil {
		panic(fmt.Sprintf("imaputf7: decoding unchecked name %q: %v", n.s, err))
	}
	return text
}

// Validate checks that encoded is a well-formed modified UTF-7 string whose
// escape runs decode to valid UTF-16. It does not allocate on success.
func Validate(encoded string) error {
	for i := 0; i < len(encoded); i++ {
		c := encoded[i]
		if c >= utf8.RuneSelf {
			return &ValidationError{Kind: ErrNonASCII, Offset: i}
		}
		if c != '&' {
			continue
		}
		if i+1 < len(encoded) && encoded[i+1] == '-' {
			i++
			continue
		}

		start := i
		end := i + 1
		terminated := false
		j := i + 1
		for ; j < len(encoded); j++ {
			c := encoded[j]
			if c == '-' {
				terminated = true
				break
			}
			if !isBase64(c) {
				return &ValidationError{Kind: ErrInvalidBase64Char, Offset: j}
			}
			end = j + 1
		}

		if !terminated {
			return &ValidationError{Kind: ErrUnterminatedSequence, Offset: start}
		}
		if (end-start-1)%4 == 1 {
			return &ValidationError{Kind: ErrInvalidBase64Length, Offset: end}
		}
		if err := validateRun(encoded[start+1:end], end); err != nil {
			return err
		}
		i = j
	}

	return nil
}

// validateRun decodes the base64 payload of one escape run bit by bit and
// checks the resulting UTF-16 code units without materializing them.
func validateRun(payload string, end int) error {
	var (
		acc   uint32
		nbits uint
		check utf16Check
	)

	for i := 0; i < len(payload); i++ {
		acc = acc<<6 | uint32(sextet(payload[i]))
		nbits += 6
		if nbits >= 8 {
			nbits -= 8
			if !check.push(byte(acc >> nbits)) {
				return &ValidationError{Kind: ErrInvalidUTF16, Offset: -1}
			}
			acc &= 1<<nbits - 1
		}
	}

	if check.odd {
		return &ValidationError{Kind: ErrInvalidUTF16Length, Offset: end}
	}
	if check.highSurrogate {
		return &ValidationError{Kind: ErrInvalidUTF16, Offset: -1}
	}
	return nil
}

type utf16Check struct {
	first         byte
	odd           bool
	highSurrogate bool
}

func (c *utf16Check) push(b byte) bool {
	if !c.odd {
		c.first = b
		c.odd = true
		return true
	}
	c.odd = false

	u := uint16(c.first)<<8 | uint16(b)
	switch {
	case u >= 0xD800 && u <= 0xDBFF:
		if c.highSurrogate {
			return false
		}
		c.highSurrogate = true
	case u >= 0xDC00 && u <= 0xDFFF:
		if !c.highSurrogate {
			return false
		}
		c.highSurrogate = false
	default:
		if c.highSurrogate {
			return false
		}
	}
	return true
}

func decode(encoded string) (string, error) {
	if err := Validate(encoded); err != nil {
		return "", err
	}
	if strings.IndexByte(encoded, '&') < 0 {
		return encoded, nil
	}

	var out strings.Builder
	for i := 0; i < len(encoded); i++ {
		c := encoded[i]
		if c != '&' {
			out.WriteByte(c)
			continue
		}
		if encoded[i+1] == '-' {
			out.WriteByte('&')
			i++
			continue
		}

		end := i + 1 + strings.IndexByte(encoded[i+1:], '-')
		raw, err := b64.DecodeString(encoded[i+1 : end])
		if err != nil {
			return "", err
		}
		units := make([]uint16, len(raw)/2)
		for k := range units {
			units[k] = binary.BigEndian.Uint16(raw[2*k:])
		}
		out.WriteString(string(utf16.Decode(units)))
		i = end
	}

	return out.String(), nil
}

func isDirect(r rune) bool {
	return r >= 0x20 && r <= 0x7e && r != '&'
}

func isDirectOnly(text string) bool {
	for i := 0; i < len(text); i++ {
		if c := text[i]; c < 0x20 || c > 0x7e || c == '&' {
			return false
		}
	}
	return true
}

func isBase64(c byte) bool {
	return c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '+' || c == ','
}

func sextet(c byte) byte {
	switch {
	case c >= 'A' && c <= 'Z':
		return c - 'A'
	case c >= 'a' && c <= 'z':
		return c - 'a' + 26
	case c >= '0' && c <= '9':
		return c - '0' + 52
	case c == '+':
		return 62
	default:
		return 63
	}
}
