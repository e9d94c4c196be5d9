// Package escape implements the XML and URL entity/percent-encoding
// round-trips of the auth/escape contract. Every escape/unescape primitive reports whether
// it actually changed the input so callers can keep the original string
// (and its underlying array) instead of allocating a new one — the "owned
// string kept iff different" discipline from the design notes.
package escape

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/tr64go/tr64c/internal/charclass"
)

// ErrInvalidEscape is returned by UnescapeXML/UnescapeURL when the input
// contains an unknown named entity, a malformed numeric character
// reference, or (for URLs) a control byte in the decoded output.
type ErrInvalidEscape struct {
	Pos    int
	Reason string
}

func (e *ErrInvalidEscape) Error() string {
	return fmt.Sprintf("invalid escape at byte %d: %s", e.Pos, e.Reason)
}

// EntityMap is a sorted, binary-searchable table of named XML entities used
// by UnescapeXML. It must contain at least the five predefined entities.
type EntityMap struct {
	names  []string
	values []rune
}

// DefaultEntities is the predefined XML entity set: quot, apos, lt, gt, amp.
func DefaultEntities() *EntityMap {
	m := &EntityMap{}
	m.Add("amp", '&')
	m.Add("apos", '\'')
	m.Add("gt", '>')
	m.Add("lt", '<')
	m.Add("quot", '"')
	return m
}

// Add inserts or overwrites a named entity, keeping the table sorted.
func (m *EntityMap) Add(name string, value rune) {
	i := sort.SearchStrings(m.names, name)
	if i < len(m.names) && m.names[i] == name {
		m.values[i] = value
		return
	}
	m.names = append(m.names, "")
	m.values = append(m.values, 0)
	copy(m.names[i+1:], m.names[i:])
	copy(m.values[i+1:], m.values[i:])
	m.names[i] = name
	m.values[i] = value
}

func (m *EntityMap) lookup(name string) (rune, bool) {
	i := sort.SearchStrings(m.names, name)
	if i < len(m.names) && m.names[i] == name {
		return m.values[i], true
	}
	return 0, false
}

// EscapeXML maps " ' < > & to their named entities. changed is false, and
// out aliases s, when no byte needed escaping.
func EscapeXML(s string) (out string, changed bool) {
	var b strings.Builder
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !charclass.Has(c, charclass.XMLNeedEscape) {
			continue
		}
		if !changed {
			b.Grow(len(s) + 8)
			changed = true
		}
		b.WriteString(s[start:i])
		switch c {
		case '"':
			b.WriteString("&quot;")
		case '\'':
			b.WriteString("&apos;")
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		case '&':
			b.WriteString("&amp;")
		}
		start = i + 1
	}
	if !changed {
		return s, false
	}
	b.WriteString(s[start:])
	return b.String(), true
}

// UnescapeXML decodes named entities from entities (nil selects
// DefaultEntities, the predefined five) plus decimal (&#N;) and hex
// (&#xN;) numeric character references.
func UnescapeXML(s string, entities *EntityMap) (out string, changed bool, err error) {
	if entities == nil {
		entities = DefaultEntities()
	}
	idx := strings.IndexByte(s, '&')
	if idx < 0 {
		return s, false, nil
	}
	var b strings.Builder
	b.Grow(len(s))
	start := 0
	i := idx
	for i < len(s) {
		if s[i] != '&' {
			i++
			continue
		}
		end := strings.IndexByte(s[i:], ';')
		if end < 0 {
			return "", false, &ErrInvalidEscape{Pos: i, Reason: "unterminated entity reference"}
		}
		end += i
		body := s[i+1 : end]
		var r rune
		if strings.HasPrefix(body, "#x") || strings.HasPrefix(body, "#X") {
			v, perr := strconv.ParseUint(body[2:], 16, 32)
			if perr != nil {
				return "", false, &ErrInvalidEscape{Pos: i, Reason: "malformed hex character reference"}
			}
			r = rune(v)
		} else if strings.HasPrefix(body, "#") {
			v, perr := strconv.ParseUint(body[1:], 10, 32)
			if perr != nil {
				return "", false, &ErrInvalidEscape{Pos: i, Reason: "malformed decimal character reference"}
			}
			r = rune(v)
		} else {
			v, ok := entities.lookup(body)
			if !ok {
				return "", false, &ErrInvalidEscape{Pos: i, Reason: "unknown named entity &" + body + ";"}
			}
			r = v
		}
		b.WriteString(s[start:i])
		b.WriteRune(r)
		start = end + 1
		i = start
	}
	b.WriteString(s[start:])
	return b.String(), true, nil
}
