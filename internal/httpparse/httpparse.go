// Package httpparse implements the zero-copy HTTP/1.1 message parser of
// the shared parser contract: a single pass over a request or response message (with
// optional body) that emits typed events carrying tokens borrowed from the
// caller's buffer.
package httpparse

import (
	"fmt"

	"github.com/tr64go/tr64c/internal/charclass"
	"github.com/tr64go/tr64c/internal/token"
)

// Result mirrors the shared parser result contract of the shared parser contract.
type Result int

const (
	Success Result = iota
	Abort
	UnexpectedCharacter
	UnexpectedEnd
	InvalidArgument
)

func (r Result) String() string {
	switch r {
	case Success:
		return "Success"
	case Abort:
		return "Abort"
	case UnexpectedCharacter:
		return "UnexpectedCharacter"
	case UnexpectedEnd:
		return "UnexpectedEnd"
	case InvalidArgument:
		return "InvalidArgument"
	default:
		return "Unknown"
	}
}

// Error reports a parse failure with the position reached, letting the
// transport layer (internal/transport) decide whether to grow its buffer
// and resume (UnexpectedEnd) or give up (everything else). When the error
// is UnexpectedEnd and the header block was already fully parsed, Expected
// carries the full message length computed from Content-Length (spec
// §4.A's Expected event), so the transport can size its buffer in one
// grow instead of doubling repeatedly.
type Error struct {
	Result   Result
	Pos      int
	Expected int64
}

func (e *Error) Error() string {
	return fmt.Sprintf("httpparse: %v at byte %d", e.Result, e.Pos)
}

// Header is a single parsed field-name/value pair. Names are tchar-only
// per RFC 7230; values are trimmed of leading/trailing linear whitespace
// but preserve interior whitespace.
type Header struct {
	Name  token.Token
	Value token.Token
}

// Message is the parsed result of a single complete HTTP request or
// response, including its body.
type Message struct {
	IsRequest bool

	Method  token.Token
	Target  token.Token
	Version token.Token

	StatusCode int
	Reason     token.Token

	Headers []Header

	// ContentLength is -1 if no Content-Length header was present.
	ContentLength int64

	// HeaderEnd is the offset of the first body byte (just past the blank
	// line terminating the header block).
	HeaderEnd int

	// Body is the borrowed slice of body bytes in buf: exactly
	// ContentLength bytes when Content-Length was declared, otherwise the
	// remainder of buf. A shorter body makes Parse return an UnexpectedEnd
	// Error instead of a Message.
	Body token.Token
}

// Get returns the value of the first header matching name (case
// insensitive), and whether it was found.
func (m *Message) Get(buf []byte, name string) (string, bool) {
	for _, h := range m.Headers {
		if equalFold(h.Name.Slice(buf), name) {
			return h.Value.Slice(buf), true
		}
	}
	return "", false
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if ca >= 'A' && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if cb >= 'A' && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// Parse walks buf from the start, classifying it as a request or response
// by whether the first whitespace-delimited token is followed by a space
// (request) or is itself an HTTP version token (status line). It returns
// Success once the full declared body (or, absent Content-Length, the
// buffer's remainder) has been consumed.
func Parse(buf []byte) (*Message, error) {
	p := &parser{buf: buf, msg: &Message{ContentLength: -1}}
	return p.run()
}

type parser struct {
	buf []byte
	pos int
	msg *Message
}

func (p *parser) run() (*Message, error) {
	n := len(p.buf)
	if n == 0 {
		return nil, &Error{Result: UnexpectedEnd, Pos: 0}
	}

	lineEnd := p.indexCRLF(p.pos)
	if lineEnd < 0 {
		return nil, &Error{Result: UnexpectedEnd, Pos: p.pos}
	}
	firstLine := p.buf[p.pos:lineEnd]

	if err := p.parseFirstLine(firstLine); err != nil {
		return nil, err
	}
	p.pos = lineEnd + 2

	for {
		if p.pos >= n {
			return nil, &Error{Result: UnexpectedEnd, Pos: p.pos}
		}
		if p.buf[p.pos] == '\r' && p.pos+1 < n && p.buf[p.pos+1] == '\n' {
			p.msg.HeaderEnd = p.pos + 2
			return p.finishBody()
		}
		hEnd := p.indexCRLF(p.pos)
		if hEnd < 0 {
			return nil, &Error{Result: UnexpectedEnd, Pos: p.pos}
		}
		if err := p.parseHeaderLine(p.pos, hEnd); err != nil {
			return nil, err
		}
		p.pos = hEnd + 2
	}
}

func (p *parser) indexCRLF(from int) int {
	for i := from; i+1 < len(p.buf); i++ {
		if p.buf[i] == '\r' && p.buf[i+1] == '\n' {
			return i
		}
	}
	return -1
}

func (p *parser) parseFirstLine(line []byte) error {
	if i, bad := indexDisallowedControl(line); bad {
		return &Error{Result: UnexpectedCharacter, Pos: p.pos + i}
	}
	sp := indexByte(line, ' ')
	if sp < 0 {
		return &Error{Result: UnexpectedCharacter, Pos: p.pos}
	}
	if isVersionToken(line[:sp]) {
		return p.parseStatusLine(line, sp)
	}
	return p.parseRequestLine(line, sp)
}

func isVersionToken(b []byte) bool {
	return len(b) >= 5 && string(b[:5]) == "HTTP/"
}

func (p *parser) parseRequestLine(line []byte, firstSp int) error {
	methodEnd := firstSp
	for i := 0; i < methodEnd; i++ {
		if !charclass.Has(line[i], charclass.HTTPTChar) {
			return &Error{Result: UnexpectedCharacter, Pos: p.pos + i}
		}
	}
	rest := line[firstSp+1:]
	sp2 := indexByte(rest, ' ')
	if sp2 < 0 {
		return &Error{Result: UnexpectedCharacter, Pos: p.pos + firstSp + 1}
	}
	targetStart := p.pos + firstSp + 1
	versionStart := targetStart + sp2 + 1
	version := rest[sp2+1:]
	if !isVersionToken(version) {
		return &Error{Result: UnexpectedCharacter, Pos: versionStart}
	}
	p.msg.IsRequest = true
	p.msg.Method = token.Token{Start: p.pos, Length: methodEnd}
	p.msg.Target = token.Token{Start: targetStart, Length: sp2}
	p.msg.Version = token.Token{Start: versionStart, Length: len(version)}
	return nil
}

func (p *parser) parseStatusLine(line []byte, firstSp int) error {
	rest := line[firstSp+1:]
	sp2 := indexByte(rest, ' ')
	codeStart := p.pos + firstSp + 1
	var codeBytes []byte
	var reasonStart int
	if sp2 < 0 {
		codeBytes = rest
		reasonStart = p.pos + len(line)
	} else {
		codeBytes = rest[:sp2]
		reasonStart = codeStart + sp2 + 1
	}
	if len(codeBytes) != 3 {
		return &Error{Result: UnexpectedCharacter, Pos: codeStart}
	}
	code := 0
	for _, c := range codeBytes {
		if c < '0' || c > '9' {
			return &Error{Result: UnexpectedCharacter, Pos: codeStart}
		}
		code = code*10 + int(c-'0')
	}
	p.msg.IsRequest = false
	p.msg.Version = token.Token{Start: p.pos, Length: firstSp}
	p.msg.StatusCode = code
	if sp2 >= 0 {
		p.msg.Reason = token.Token{Start: reasonStart, Length: len(line) - (reasonStart - p.pos)}
	}
	return nil
}

func (p *parser) parseHeaderLine(start, end int) error {
	line := p.buf[start:end]
	if i, bad := indexDisallowedControl(line); bad {
		return &Error{Result: UnexpectedCharacter, Pos: start + i}
	}
	colon := indexByte(line, ':')
	if colon < 0 {
		return &Error{Result: UnexpectedCharacter, Pos: start}
	}
	for i := 0; i < colon; i++ {
		if !charclass.Has(line[i], charclass.HTTPTChar) {
			return &Error{Result: UnexpectedCharacter, Pos: start + i}
		}
	}
	valStart, valEnd := colon+1, len(line)
	for valStart < valEnd && isLWS(line[valStart]) {
		valStart++
	}
	for valEnd > valStart && isLWS(line[valEnd-1]) {
		valEnd--
	}
	name := token.Token{Start: start, Length: colon}
	value := token.Token{Start: start + valStart, Length: valEnd - valStart}
	p.msg.Headers = append(p.msg.Headers, Header{Name: name, Value: value})

	if equalFold(name.Slice(p.buf), "Content-Length") {
		if p.msg.ContentLength >= 0 {
			return &Error{Result: InvalidArgument, Pos: start}
		}
		cl, err := parseContentLength(value.Slice(p.buf))
		if err != nil {
			return &Error{Result: InvalidArgument, Pos: start + valStart}
		}
		p.msg.ContentLength = cl
	}
	return nil
}

func isLWS(c byte) bool {
	return c == ' ' || c == '\t'
}

func parseContentLength(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty content-length")
	}
	var v int64
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("non-digit in content-length")
		}
		d := int64(c - '0')
		if v > (1<<63-1-d)/10 {
			return 0, fmt.Errorf("content-length overflow")
		}
		v = v*10 + d
	}
	return v, nil
}

func (p *parser) finishBody() (*Message, error) {
	avail := int64(len(p.buf) - p.msg.HeaderEnd)
	if p.msg.ContentLength < 0 {
		p.msg.Body = token.Token{Start: p.msg.HeaderEnd, Length: int(avail)}
		return p.msg, nil
	}
	if avail < p.msg.ContentLength {
		return nil, &Error{
			Result:   UnexpectedEnd,
			Pos:      len(p.buf),
			Expected: int64(p.msg.HeaderEnd) + p.msg.ContentLength,
		}
	}
	p.msg.Body = token.Token{Start: p.msg.HeaderEnd, Length: int(p.msg.ContentLength)}
	return p.msg, nil
}

// indexDisallowedControl finds a control byte below 0x20 other than tab,
// which the shared parser contract rejects as UnexpectedCharacter wherever it appears
// outside the CRLF line terminators themselves.
func indexDisallowedControl(b []byte) (int, bool) {
	for i := 0; i < len(b); i++ {
		if b[i] < 0x20 && b[i] != '\t' {
			return i, true
		}
	}
	return 0, false
}

func indexByte(b []byte, c byte) int {
	for i := 0; i < len(b); i++ {
		if b[i] == c {
			return i
		}
	}
	return -1
}
