// Package urlparse implements the zero-copy URL token parser of the shared
// parser contract. It locates the separators with several scans over the
// input (scheme "://", first path '/', '?' and '#', userinfo '@', port
// ':') rather than one combined pass. It never percent-decodes; callers re-run charclass checks
// after decoding with internal/escape.
package urlparse

import (
	"fmt"

	"github.com/tr64go/tr64c/internal/token"
)

// Kind identifies the token type of a Event.
type Kind int

const (
	Protocol Kind = iota
	User
	Pass
	Host
	Port
	Path
	Search
	Hash
)

func (k Kind) String() string {
	switch k {
	case Protocol:
		return "Protocol"
	case User:
		return "User"
	case Pass:
		return "Pass"
	case Host:
		return "Host"
	case Port:
		return "Port"
	case Path:
		return "Path"
	case Search:
		return "Search"
	case Hash:
		return "Hash"
	default:
		return "Unknown"
	}
}

// Event pairs a token Kind with its borrowed slice.
type Event struct {
	Kind  Kind
	Token token.Token
}

// Result is the outcome kind of a parse, mirroring the shared parser contract's shared
// parser result contract.
type Result int

const (
	Success Result = iota
	UnexpectedCharacter
	UnexpectedEnd
	InvalidArgument
)

// Error reports a parse failure with the byte position it occurred at.
type Error struct {
	Result Result
	Pos    int
}

func (e *Error) Error() string {
	return fmt.Sprintf("urlparse: %v at byte %d", e.Result, e.Pos)
}

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

// Parse locates the URL's separators and returns the emitted token events
// in document order.
func Parse(buf []byte) ([]Event, error) {
	if len(buf) == 0 {
		return nil, &Error{Result: InvalidArgument, Pos: 0}
	}

	n := len(buf)

	schemeSep := indexString(buf, "://")
	authorityStart := 0
	if schemeSep >= 0 {
		authorityStart = schemeSep + 3
	}

	// first '/' not part of "://"
	pathStart := -1
	for i := authorityStart; i < n; i++ {
		if buf[i] == '/' {
			pathStart = i
			break
		}
	}
	authorityEnd := n
	if pathStart >= 0 {
		authorityEnd = pathStart
	}

	questionIdx := -1
	hashIdx := -1
	for i := 0; i < n; i++ {
		switch buf[i] {
		case '?':
			if questionIdx < 0 {
				questionIdx = i
			}
		case '#':
			if hashIdx < 0 {
				hashIdx = i
				if questionIdx > hashIdx {
					questionIdx = -1
				}
			}
		}
	}
	if questionIdx >= 0 && hashIdx >= 0 && questionIdx > hashIdx {
		questionIdx = -1
	}

	authority := buf[authorityStart:authorityEnd]

	var atIdx = -1 // last '@' before authority end, relative to authorityStart
	for i := 0; i < len(authority); i++ {
		if authority[i] == '@' {
			atIdx = i
		}
	}

	var userInfoEnd = -1
	var hostStart = 0
	if atIdx >= 0 {
		userInfoEnd = atIdx
		hostStart = atIdx + 1
	}

	var events []Event
	if schemeSep >= 0 {
		events = append(events, Event{Protocol, token.Token{Start: 0, Length: schemeSep}})
	}

	if userInfoEnd >= 0 {
		userInfo := authority[:userInfoEnd]
		colonIdx := -1
		for i := 0; i < len(userInfo); i++ {
			if userInfo[i] == ':' {
				colonIdx = i
				break
			}
		}
		if colonIdx >= 0 {
			events = append(events, Event{User, token.Token{Start: authorityStart, Length: colonIdx}})
			events = append(events, Event{Pass, token.Token{
				Start:  authorityStart + colonIdx + 1,
				Length: userInfoEnd - colonIdx - 1,
			}})
		} else {
			events = append(events, Event{User, token.Token{Start: authorityStart, Length: userInfoEnd}})
		}
	}

	hostPart := authority[hostStart:]
	hostColonIdx := -1
	for i := len(hostPart) - 1; i >= 0; i-- {
		if hostPart[i] == ':' {
			hostColonIdx = i
			break
		}
	}
	if hostColonIdx >= 0 {
		events = append(events, Event{Host, token.Token{Start: authorityStart + hostStart, Length: hostColonIdx}})
		events = append(events, Event{Port, token.Token{
			Start:  authorityStart + hostStart + hostColonIdx + 1,
			Length: len(hostPart) - hostColonIdx - 1,
		}})
	} else if len(hostPart) > 0 {
		events = append(events, Event{Host, token.Token{Start: authorityStart + hostStart, Length: len(hostPart)}})
	}

	if pathStart >= 0 {
		pathEnd := n
		if questionIdx >= 0 {
			pathEnd = questionIdx
		} else if hashIdx >= 0 {
			pathEnd = hashIdx
		}
		if pathEnd > pathStart+1 {
			events = append(events, Event{Path, token.Token{Start: pathStart + 1, Length: pathEnd - pathStart - 1}})
		}
	}

	if questionIdx >= 0 {
		searchEnd := n
		if hashIdx >= 0 && hashIdx > questionIdx {
			searchEnd = hashIdx
		}
		events = append(events, Event{Search, token.Token{Start: questionIdx + 1, Length: searchEnd - questionIdx - 1}})
	}

	if hashIdx >= 0 {
		events = append(events, Event{Hash, token.Token{Start: hashIdx + 1, Length: n - hashIdx - 1}})
	}

	return events, nil
}

func indexString(buf []byte, sep string) int {
	n, m := len(buf), len(sep)
	if m == 0 || m > n {
		return -1
	}
outer:
	for i := 0; i+m <= n; i++ {
		for j := 0; j < m; j++ {
			if buf[i+j] != sep[j] {
				continue outer
			}
		}
		return i
	}
	return -1
}

// Parsed is a convenience projection of Parse's events into named strings,
// used by callers (internal/transport) that just want
// field values rather than a raw event stream.
type Parsed struct {
	Protocol, User, Pass, Host, Port, Path, Search, Hash string
}

// ParseString parses s and returns the convenience projection.
func ParseString(s string) (Parsed, error) {
	buf := []byte(s)
	events, err := Parse(buf)
	if err != nil {
		return Parsed{}, err
	}
	var p Parsed
	for _, e := range events {
		v := e.Token.Slice(buf)
		switch e.Kind {
		case Protocol:
			p.Protocol = v
		case User:
			p.User = v
		case Pass:
			p.Pass = v
		case Host:
			p.Host = v
		case Port:
			p.Port = v
		case Path:
			p.Path = v
		case Search:
			p.Search = v
		case Hash:
			p.Hash = v
		}
	}
	return p, nil
}
