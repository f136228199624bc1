package imaputf7

import (
	"errors"
	"testing"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain ascii", in: "INBOX", want: "INBOX"},
		{name: "empty", in: "", want: ""},
		{name: "ampersand", in: "A&B", want: "A&-B"},
		{name: "nbsp", in: "Project Notes", want: "Project&AKA-Notes"},
		{name: "umlaut", in: "Entwürfe", want: "Entw&APw-rfe"},
		{name: "cyrillic", in: "Корзина", want: "&BBoEPgRABDcEOAQ9BDA-"},
		{name: "surrogate pair", in: "😀", want: "&2D3eAA-"},
		{name: "control char", in: "\t", want: "&AAk-"},
		{name: "mixed runs", in: "a&b ü&", want: "a&-b &APw-&-"},
		{name: "rfc example", in: "~peter/mail/台北/日本語", want: "~peter/mail/&U,BTFw-/&ZeVnLIqe-"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Encode(tt.in).String()
			if got != tt.want {
				t.Errorf("Encode(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	inputs := []string{
		"",
		"INBOX",
		"&",
		"&&&",
		"Sent Items",
		"Project Notes",
		"Корзина/Входящие",
		"日本語 & 台北",
		"😀😃 smile",
		"tab\there",
		"\u007f",
	}

	for _, in := range inputs {
		n := Encode(in)
		if err := Validate(n.String()); err != nil {
			t.Errorf("Validate(Encode(%q)) = %v, want nil", in, err)
			continue
		}
		if got := n.Decode(); got != in {
			t.Errorf("Decode(Encode(%q)) = %q", in, got)
		}
	}
}

func TestEncodeKeepsDirectText(t *testing.T) {
	var direct []byte
	for c := byte(0x20); c <= 0x7e; c++ {
		if c != '&' {
			direct = append(direct, c)
		}
	}

	in := string(direct)
	if got := Encode(in).String(); got != in {
		t.Errorf("Encode(printable ascii) = %q, want input unchanged", got)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name       string
		in         string
		wantKind   error
		wantOffset int
	}{
		{name: "plain", in: "INBOX"},
		{name: "literal ampersand", in: "&-"},
		{name: "encoded run", in: "Project&AKA-Notes"},
		{name: "surrogate pair", in: "&2D3eAA-"},
		{name: "non ascii", in: "тест", wantKind: ErrNonASCII, wantOffset: 0},
		{name: "non ascii later", in: "abé", wantKind: ErrNonASCII, wantOffset: 2},
		{name: "unterminated", in: "Bad&AAA", wantKind: ErrUnterminatedSequence, wantOffset: 3},
		{name: "trailing marker", in: "Bad&", wantKind: ErrUnterminatedSequence, wantOffset: 3},
		{name: "invalid char", in: "Bad&AA=-", wantKind: ErrInvalidBase64Char, wantOffset: 6},
		{name: "non ascii inside run", in: "&AAé-", wantKind: ErrInvalidBase64Char, wantOffset: 3},
		{name: "length one mod four", in: "Bad&A-", wantKind: ErrInvalidBase64Length, wantOffset: 5},
		{name: "length five", in: "&AKAAA-", wantKind: ErrInvalidBase64Length, wantOffset: 6},
		{name: "odd byte count", in: "Bad&AA-", wantKind: ErrInvalidUTF16Length, wantOffset: 6},
		{name: "lone high surrogate", in: "Bad&2AA-", wantKind: ErrInvalidUTF16, wantOffset: -1},
		{name: "lone low surrogate", in: "&3gA-", wantKind: ErrInvalidUTF16, wantOffset: -1},
		{name: "high then plain", in: "&2D0AQQ-", wantKind: ErrInvalidUTF16, wantOffset: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := Parse(tt.in)
			if tt.wantKind == nil {
				if err != nil {
					t.Fatalf("Parse(%q) error = %v, want nil", tt.in, err)
				}
				if n.String() != tt.in {
					t.Errorf("Parse(%q).String() = %q", tt.in, n.String())
				}
				return
			}

			if !errors.Is(err, tt.wantKind) {
				t.Fatalf("Parse(%q) error = %v, want %v", tt.in, err, tt.wantKind)
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Parse(%q) error type = %T, want *ValidationError", tt.in, err)
			}
			if verr.Offset != tt.wantOffset {
				t.Errorf("Parse(%q) offset = %d, want %d", tt.in, verr.Offset, tt.wantOffset)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "&-", want: "&"},
		{in: "Project&AKA-Notes", want: "Project Notes"},
		{in: "~peter/mail/&U,BTFw-/&ZeVnLIqe-", want: "~peter/mail/台北/日本語"},
		{in: "&2D3eAA-", want: "😀"},
	}

	for _, tt := range tests {
		if got := MustParse(tt.in).Decode(); got != tt.want {
			t.Errorf("Decode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDecodeUncheckedPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Decode of an unchecked invalid name did not panic")
		}
	}()

	_ = Name{s: "Bad&A-"}.Decode()
}

func TestValidateDoesNotAllocate(t *testing.T) {
	allocs := testing.AllocsPerRun(100, func() {
		_ = Validate("~peter/mail/&U,BTFw-/&ZeVnLIqe-")
	})
	if allocs != 0 {
		t.Errorf("Validate allocated %v times, want 0", allocs)
	}
}
