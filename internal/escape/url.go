package escape

import (
	"strings"

	"github.com/tr64go/tr64c/internal/charclass"
)

const hexDigits = "0123456789ABCDEF"

// EscapeURL percent-encodes every byte flagged URLNeedEscape.
func EscapeURL(s string) (out string, changed bool) {
	var b strings.Builder
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !charclass.Has(c, charclass.URLNeedEscape) {
			continue
		}
		if !changed {
			b.Grow(len(s) + 8)
			changed = true
		}
		b.WriteString(s[start:i])
		b.WriteByte('%')
		b.WriteByte(hexDigits[c>>4])
		b.WriteByte(hexDigits[c&0xF])
		start = i + 1
	}
	if !changed {
		return s, false
	}
	b.WriteString(s[start:])
	return b.String(), true
}

// UnescapeURL decodes %HH pairs. It rejects control bytes present literally
// in the input and control bytes produced by decoding, per the auth/escape contract.
func UnescapeURL(s string) (out string, changed bool, err error) {
	if !strings.ContainsRune(s, '%') {
		if hasControlByte(s) {
			return "", false, &ErrInvalidEscape{Pos: indexControlByte(s), Reason: "control byte in URL"}
		}
		return s, false, nil
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 0x20 || c == 0x7F {
			return "", false, &ErrInvalidEscape{Pos: i, Reason: "control byte in URL"}
		}
		if c != '%' {
			b.WriteByte(c)
			continue
		}
		if i+2 >= len(s) {
			return "", false, &ErrInvalidEscape{Pos: i, Reason: "truncated percent-encoding"}
		}
		hi, ok1 := hexVal(s[i+1])
		lo, ok2 := hexVal(s[i+2])
		if !ok1 || !ok2 {
			return "", false, &ErrInvalidEscape{Pos: i, Reason: "malformed percent-encoding"}
		}
		decoded := byte(hi<<4 | lo)
		if decoded < 0x20 || decoded == 0x7F {
			return "", false, &ErrInvalidEscape{Pos: i, Reason: "control byte in decoded URL output"}
		}
		b.WriteByte(decoded)
		i += 2
	}
	return b.String(), true, nil
}

func hexVal(c byte) (int, bool) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), true
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10, true
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10, true
	}
	return 0, false
}

func hasControlByte(s string) bool {
	return indexControlByte(s) >= 0
}

func indexControlByte(s string) int {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] == 0x7F {
			return i
		}
	}
	return -1
}
