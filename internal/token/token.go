// Package token defines the borrowed-slice token type shared by the URL,
// HTTP and SAX-XML parsers (internal/urlparse, internal/httpparse, internal/sax).
//
// A Token never owns memory: it is an index pair into a parent byte buffer
// supplied by the caller. Escape processing that would alter the byte
// sequence (internal/escape) always produces a separately owned string; it
// never mutates the buffer a Token points into.
package token

// Token borrows a byte range [Start, Start+Length) from a parent buffer.
// The zero value is the empty token at offset 0.
type Token struct {
	Start  int
	Length int
}

// End returns the exclusive end offset of the token.
func (t Token) End() int {
	return t.Start + t.Length
}

// Empty reports whether the token borrows zero bytes.
func (t Token) Empty() bool {
	return t.Length == 0
}

// Slice returns the substring of buf the token borrows. The conversion to
// string copies the bytes, so the result stays valid after buf is reused;
// use Bytes for a view that aliases buf.
func (t Token) Slice(buf []byte) string {
	if t.Start < 0 || t.Length < 0 || t.Start+t.Length > len(buf) {
		return ""
	}
	return string(buf[t.Start : t.Start+t.Length])
}

// Bytes returns the raw byte range the token borrows, still aliasing buf.
func (t Token) Bytes(buf []byte) []byte {
	if t.Start < 0 || t.Length < 0 || t.Start+t.Length > len(buf) {
		return nil
	}
	return buf[t.Start : t.Start+t.Length]
}

// Position is a parser's location within the original buffer: line and
// column count only the first byte of each UTF-8 sequence, a line feed
// increments Line and resets Column, carriage returns are ignored, and tabs
// widen Column by a caller-supplied tab width.
type Position struct {
	Offset    int
	Line      int
	Column    int
	LineStart int
}

// StartPosition returns the position at the beginning of a buffer: line 1,
// column 1.
func StartPosition() Position {
	return Position{Line: 1, Column: 1}
}

// Advance folds a single input byte into the position, honoring the
// line/column counting rules above. cont reports whether b is a UTF-8
// continuation byte (0x80-0xBF), in which case column does not advance.
func (p Position) Advance(b byte, cont bool, tabWidth int) Position {
	next := p
	next.Offset++
	switch {
	case b == '\r':
		// carriage returns are ignored for column/line purposes
	case b == '\n':
		next.Line++
		next.Column = 1
		next.LineStart = next.Offset
	case cont:
		// continuation bytes of a multi-byte UTF-8 sequence do not advance column
	case b == '\t':
		if tabWidth < 1 {
			tabWidth = 1
		}
		next.Column += tabWidth
	default:
		next.Column++
	}
	return next
}
