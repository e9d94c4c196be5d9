// Package sax implements the zero-copy SAX-style XML parser of the shared parser contract,
// used to parse device/service descriptions (internal/descriptor) and SOAP
// envelopes (internal/soap). It is a pull iterator over typed events
// carrying tokens borrowed from the caller's buffer, per the Design Notes'
// "push visitor vs. pull iterator" guidance: an iterator shape makes the
// depth-tracking and tag-matching state machines in internal/descriptor
// and internal/soap easier to express than callbacks.
//
// A StartTag or Xml event carries its attribute list directly (as a slice
// of Attr, rather than as a further sequence of per-attribute events):
// this is the one place the iterator reshape goes further than the shared parser contract's
// event list, since Go callers invariably want the whole attribute set
// before deciding how to handle a tag, and building that slice costs
// nothing a caller-side accumulation loop wouldn't also cost.
package sax

import (
	"fmt"

	"github.com/tr64go/tr64c/internal/token"
)

// Kind identifies the type of a parsed Event.
type Kind int

const (
	Xml Kind = iota
	Instruction
	StartTag
	EndTag
	Content
	CData
)

func (k Kind) String() string {
	switch k {
	case Xml:
		return "Xml"
	case Instruction:
		return "Instruction"
	case StartTag:
		return "StartTag"
	case EndTag:
		return "EndTag"
	case Content:
		return "Content"
	case CData:
		return "CData"
	default:
		return "Unknown"
	}
}

// Attr is a single parsed attribute: an optional namespace prefix, the
// local name, and the (still entity-escaped) value.
type Attr struct {
	Namespace token.Token
	Local     token.Token
	Value     token.Token
}

// Event is one parser event. Namespace/Local are populated for
// StartTag/EndTag; Attrs for StartTag and Xml (the parsed pseudo-attributes
// of an XML declaration, e.g. version="1.0"); Value for Instruction (the
// PI's raw data), Content and CData.
type Event struct {
	Kind        Kind
	Namespace   token.Token
	Local       token.Token
	Attrs       []Attr
	Value       token.Token
	Depth       int
	SelfClosing bool
}

// Result mirrors the shared parser result contract of the shared parser contract.
type Result int

const (
	Success Result = iota
	UnexpectedCharacter
	UnexpectedEnd
	InvalidArgument
)

func (r Result) String() string {
	switch r {
	case Success:
		return "Success"
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

// Error reports a parse failure with the byte position it occurred at.
type Error struct {
	Result Result
	Pos    int
	Detail string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("sax: %v at byte %d: %s", e.Result, e.Pos, e.Detail)
	}
	return fmt.Sprintf("sax: %v at byte %d", e.Result, e.Pos)
}

// Parser walks an XML byte buffer one event at a time.
type Parser struct {
	buf   []byte
	pos   int
	depth int
	stack []token.Token // qualified-name span of each open start tag

	pendingEnd *Event // synthetic EndTag to emit for a self-closing StartTag
}

// New returns a parser positioned at the start of buf.
func New(buf []byte) *Parser {
	return &Parser{buf: buf}
}

// Depth returns the current element nesting depth (0 at the document root).
func (p *Parser) Depth() int {
	return p.depth
}

// Next returns the next event, or (nil, nil) at end of input.
func (p *Parser) Next() (*Event, error) {
	if p.pendingEnd != nil {
		ev := p.pendingEnd
		p.pendingEnd = nil
		return ev, nil
	}
	for {
		if p.pos >= len(p.buf) {
			return nil, nil
		}
		c := p.buf[p.pos]
		if c != '<' {
			ev := p.readContent()
			if ev == nil {
				continue
			}
			return ev, nil
		}
		if p.pos+1 >= len(p.buf) {
			return nil, &Error{Result: UnexpectedEnd, Pos: p.pos}
		}
		switch p.buf[p.pos+1] {
		case '?':
			return p.readInstruction()
		case '!':
			ev, err := p.readMarkupDecl()
			if err != nil {
				return nil, err
			}
			if ev != nil {
				return ev, nil
			}
			continue // comment consumed without emission
		case '/':
			return p.readEndTag()
		default:
			return p.readStartTag()
		}
	}
}

func (p *Parser) readContent() *Event {
	start := p.pos
	for p.pos < len(p.buf) && p.buf[p.pos] != '<' {
		p.pos++
	}
	raw := p.buf[start:p.pos]
	trimStart, trimEnd := 0, len(raw)
	for trimStart < trimEnd && isXMLSpace(raw[trimStart]) {
		trimStart++
	}
	for trimEnd > trimStart && isXMLSpace(raw[trimEnd-1]) {
		trimEnd--
	}
	if trimStart == trimEnd {
		return nil
	}
	return &Event{
		Kind:  Content,
		Value: token.Token{Start: start + trimStart, Length: trimEnd - trimStart},
		Depth: p.depth,
	}
}

func isXMLSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\r' || b == '\n'
}

func (p *Parser) readMarkupDecl() (*Event, error) {
	// p.buf[p.pos:p.pos+2] == "<!"
	rest := p.buf[p.pos+2:]
	switch {
	case hasPrefix(rest, "--"):
		return nil, p.readComment()
	case hasPrefix(rest, "[CDATA["):
		return p.readCData()
	default:
		return nil, &Error{Result: UnexpectedCharacter, Pos: p.pos}
	}
}

func (p *Parser) readComment() error {
	start := p.pos
	body := p.pos + 4 // past "<!--"
	end := indexOf(p.buf, body, "-->")
	if end < 0 {
		return &Error{Result: UnexpectedEnd, Pos: start}
	}
	p.pos = end + 3
	return nil
}

func (p *Parser) readCData() (*Event, error) {
	start := p.pos
	body := p.pos + 9 // past "<![CDATA["
	end := indexOf(p.buf, body, "]]>")
	if end < 0 {
		return nil, &Error{Result: UnexpectedEnd, Pos: start}
	}
	ev := &Event{Kind: CData, Value: token.Token{Start: body, Length: end - body}, Depth: p.depth}
	p.pos = end + 3
	return ev, nil
}

func (p *Parser) readInstruction() (*Event, error) {
	start := p.pos
	p.pos += 2 // past "<?"
	nameStart := p.pos
	for p.pos < len(p.buf) && !isXMLSpace(p.buf[p.pos]) && p.buf[p.pos] != '?' {
		p.pos++
	}
	name := p.buf[nameStart:p.pos]
	isXML := equalFoldBytes(name, []byte("xml"))

	end := indexOf(p.buf, p.pos, "?>")
	if end < 0 {
		return nil, &Error{Result: UnexpectedEnd, Pos: start}
	}
	dataStart := p.pos
	dataEnd := end

	if isXML {
		attrs, aerr := parseAttrList(p.buf, dataStart, dataEnd)
		if aerr != nil {
			return nil, aerr
		}
		p.pos = end + 2
		return &Event{Kind: Xml, Local: token.Token{Start: nameStart, Length: len(name)}, Attrs: attrs, Depth: p.depth}, nil
	}
	p.pos = end + 2
	return &Event{
		Kind:  Instruction,
		Local: token.Token{Start: nameStart, Length: len(name)},
		Value: token.Token{Start: dataStart, Length: dataEnd - dataStart},
		Depth: p.depth,
	}, nil
}

func (p *Parser) readStartTag() (*Event, error) {
	start := p.pos
	p.pos++ // past '<'
	nameStart := p.pos
	for p.pos < len(p.buf) && !isNameEnd(p.buf[p.pos]) {
		p.pos++
	}
	if p.pos == nameStart {
		return nil, &Error{Result: UnexpectedCharacter, Pos: start}
	}
	qname := p.buf[nameStart:p.pos]
	ns, local, err := splitQName(qname, nameStart)
	if err != nil {
		return nil, err
	}

	attrStart := p.pos
	selfClosing, attrEnd, err := p.scanToTagEnd()
	if err != nil {
		return nil, err
	}
	attrs, aerr := parseAttrList(p.buf, attrStart, attrEnd)
	if aerr != nil {
		return nil, aerr
	}

	qnameTok := token.Token{Start: nameStart, Length: len(qname)}
	ev := &Event{Kind: StartTag, Namespace: ns, Local: local, Attrs: attrs, Depth: p.depth, SelfClosing: selfClosing}

	if selfClosing {
		p.pendingEnd = &Event{Kind: EndTag, Namespace: ns, Local: local, Depth: p.depth}
	} else {
		p.stack = append(p.stack, qnameTok)
		p.depth++
	}
	return ev, nil
}

func isNameEnd(b byte) bool {
	return isXMLSpace(b) || b == '>' || b == '/'
}

// scanToTagEnd advances past the attribute list and the closing '>' (or
// "/>"), returning whether the tag was self-closing and the end offset of
// the raw attribute text (exclusive of the closing delimiter).
func (p *Parser) scanToTagEnd() (selfClosing bool, attrEnd int, err error) {
	for {
		for p.pos < len(p.buf) && isXMLSpace(p.buf[p.pos]) {
			p.pos++
		}
		if p.pos >= len(p.buf) {
			return false, 0, &Error{Result: UnexpectedEnd, Pos: p.pos}
		}
		switch p.buf[p.pos] {
		case '/':
			attrEnd = p.pos
			p.pos++
			if p.pos >= len(p.buf) || p.buf[p.pos] != '>' {
				return false, 0, &Error{Result: UnexpectedCharacter, Pos: p.pos}
			}
			p.pos++
			return true, attrEnd, nil
		case '>':
			attrEnd = p.pos
			p.pos++
			return false, attrEnd, nil
		}
		// skip one attribute's name="value" (or name='value')
		for p.pos < len(p.buf) && p.buf[p.pos] != '=' && !isXMLSpace(p.buf[p.pos]) && p.buf[p.pos] != '>' && p.buf[p.pos] != '/' {
			p.pos++
		}
		for p.pos < len(p.buf) && isXMLSpace(p.buf[p.pos]) {
			p.pos++
		}
		if p.pos >= len(p.buf) || p.buf[p.pos] != '=' {
			return false, 0, &Error{Result: UnexpectedCharacter, Pos: p.pos}
		}
		p.pos++
		for p.pos < len(p.buf) && isXMLSpace(p.buf[p.pos]) {
			p.pos++
		}
		if p.pos >= len(p.buf) {
			return false, 0, &Error{Result: UnexpectedEnd, Pos: p.pos}
		}
		quote := p.buf[p.pos]
		if quote != '"' && quote != '\'' {
			return false, 0, &Error{Result: UnexpectedCharacter, Pos: p.pos}
		}
		p.pos++
		for p.pos < len(p.buf) && p.buf[p.pos] != quote {
			p.pos++
		}
		if p.pos >= len(p.buf) {
			return false, 0, &Error{Result: UnexpectedEnd, Pos: p.pos}
		}
		p.pos++ // closing quote
	}
}

// parseAttrList parses the raw "name=\"value\" name2='value2'" region
// buf[from:to] (no surrounding '<'/'>'), used for both tag attribute lists
// and the pseudo-attributes of an XML declaration.
func parseAttrList(buf []byte, from, to int) ([]Attr, error) {
	var attrs []Attr
	i := from
	for {
		for i < to && isXMLSpace(buf[i]) {
			i++
		}
		if i >= to {
			return attrs, nil
		}
		nameStart := i
		for i < to && buf[i] != '=' && !isXMLSpace(buf[i]) {
			i++
		}
		qname := buf[nameStart:i]
		ns, local, err := splitQName(qname, nameStart)
		if err != nil {
			return nil, err
		}
		for i < to && isXMLSpace(buf[i]) {
			i++
		}
		if i >= to || buf[i] != '=' {
			return nil, &Error{Result: UnexpectedCharacter, Pos: i}
		}
		i++
		for i < to && isXMLSpace(buf[i]) {
			i++
		}
		if i >= to {
			return nil, &Error{Result: UnexpectedEnd, Pos: i}
		}
		quote := buf[i]
		if quote != '"' && quote != '\'' {
			return nil, &Error{Result: UnexpectedCharacter, Pos: i}
		}
		i++
		valStart := i
		for i < to && buf[i] != quote {
			i++
		}
		if i >= to {
			return nil, &Error{Result: UnexpectedEnd, Pos: valStart}
		}
		attrs = append(attrs, Attr{Namespace: ns, Local: local, Value: token.Token{Start: valStart, Length: i - valStart}})
		i++ // closing quote
	}
}

func (p *Parser) readEndTag() (*Event, error) {
	start := p.pos
	p.pos += 2 // past "</"
	nameStart := p.pos
	for p.pos < len(p.buf) && !isNameEnd(p.buf[p.pos]) {
		p.pos++
	}
	qname := p.buf[nameStart:p.pos]
	ns, local, err := splitQName(qname, nameStart)
	if err != nil {
		return nil, err
	}
	for p.pos < len(p.buf) && isXMLSpace(p.buf[p.pos]) {
		p.pos++
	}
	if p.pos >= len(p.buf) || p.buf[p.pos] != '>' {
		return nil, &Error{Result: UnexpectedCharacter, Pos: p.pos}
	}
	p.pos++

	if len(p.stack) == 0 {
		return nil, &Error{Result: UnexpectedCharacter, Pos: start, Detail: "end tag without matching start tag"}
	}
	open := p.stack[len(p.stack)-1]
	if !bytesEqual(open.Bytes(p.buf), qname) {
		return nil, &Error{Result: UnexpectedCharacter, Pos: start, Detail: "end tag name does not match start tag"}
	}
	p.stack = p.stack[:len(p.stack)-1]
	p.depth--

	return &Event{Kind: EndTag, Namespace: ns, Local: local, Depth: p.depth}, nil
}

func splitQName(qname []byte, base int) (ns, local token.Token, err error) {
	if len(qname) == 0 {
		return token.Token{}, token.Token{}, &Error{Result: UnexpectedCharacter, Pos: base, Detail: "empty name"}
	}
	colon := -1
	for i, c := range qname {
		if c == ':' {
			if colon >= 0 {
				return token.Token{}, token.Token{}, &Error{Result: InvalidArgument, Pos: base + i, Detail: "second colon in qualified name"}
			}
			colon = i
		}
	}
	if colon < 0 {
		return token.Token{}, token.Token{Start: base, Length: len(qname)}, nil
	}
	return token.Token{Start: base, Length: colon},
		token.Token{Start: base + colon + 1, Length: len(qname) - colon - 1},
		nil
}

func hasPrefix(b []byte, s string) bool {
	if len(b) < len(s) {
		return false
	}
	for i := 0; i < len(s); i++ {
		if b[i] != s[i] {
			return false
		}
	}
	return true
}

func indexOf(buf []byte, from int, sep string) int {
	n, m := len(buf), len(sep)
	if from < 0 {
		from = 0
	}
outer:
	for i := from; i+m <= n; i++ {
		for j := 0; j < m; j++ {
			if buf[i+j] != sep[j] {
				continue outer
			}
		}
		return i
	}
	return -1
}

func equalFoldBytes(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
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

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// FindAttr returns the string value of the first attribute in attrs whose
// local name equals local, ignoring any namespace prefix.
func FindAttr(attrs []Attr, buf []byte, local string) (string, bool) {
	for _, a := range attrs {
		if a.Local.Slice(buf) == local {
			return a.Value.Slice(buf), true
		}
	}
	return "", false
}

// QName returns "prefix:local" (or just "local" when there is no prefix)
// for an event's Namespace/Local token pair.
func QName(buf []byte, ns, local token.Token) string {
	if ns.Empty() {
		return local.Slice(buf)
	}
	return ns.Slice(buf) + ":" + local.Slice(buf)
}
