// Package soap implements the SOAP query engine of the SOAP query contract: action
// selection by prefix match, request synthesis from user-supplied input
// bindings, response parsing against the exact envelope/namespace
// contract, and CSV/JSON/XML rendering of the resulting output bindings.
package soap

import (
	"context"
	"fmt"
	"strings"

	"github.com/tr64go/tr64c/internal/descriptor"
	"github.com/tr64go/tr64c/internal/escape"
	"github.com/tr64go/tr64c/internal/sax"
	"github.com/tr64go/tr64c/internal/transport"
)

// QueryError reports a failure in action selection, request synthesis, or
// response parsing, tagged with the specific kind named in the SOAP query contract/§7.
type QueryError struct {
	Kind   string
	Detail string
}

func (e *QueryError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("soap: %s: %s", e.Kind, e.Detail)
	}
	return fmt.Sprintf("soap: %s", e.Kind)
}

const (
	soapEnvelopeNS = "http://schemas.xmlsoap.org/soap/envelope/"
	soapEncodingNS = "http://schemas.xmlsoap.org/soap/encoding/"
)

// SplitPath parses the "[<device>/]<service>/<action>" grammar shared by
// the CLI surface's positional CLI argument and the interactive "query" command.
func SplitPath(path string) (device, service, action string, err error) {
	parts := strings.Split(path, "/")
	switch len(parts) {
	case 2:
		return "", parts[0], parts[1], nil
	case 3:
		return parts[0], parts[1], parts[2], nil
	default:
		return "", "", "", &QueryError{Kind: "BadPath", Detail: fmt.Sprintf("%q must be [<device>/]<service>/<action>", path)}
	}
}

// Select implements the SOAP query contract's action selection: scan the descriptor
// tree for (device?, service, action) prefix matches. Exactly one match
// selects; more than one fails AmbiguousAction; none fails BadAction.
func Select(obj *descriptor.Object, devicePrefix, servicePrefix, actionPrefix string) (*descriptor.Service, *descriptor.Action, error) {
	services := obj.FindServices(devicePrefix, servicePrefix)
	type candidate struct {
		svc *descriptor.Service
		act *descriptor.Action
	}
	var candidates []candidate
	for _, m := range services {
		for _, act := range m.Service.FindAction(actionPrefix) {
			candidates = append(candidates, candidate{svc: m.Service, act: act})
		}
	}
	if len(candidates) == 0 {
		return nil, nil, &QueryError{Kind: "BadAction", Detail: fmt.Sprintf("no action matches %s/%s/%s", devicePrefix, servicePrefix, actionPrefix)}
	}
	if len(candidates) > 1 {
		return nil, nil, &QueryError{Kind: "AmbiguousAction", Detail: fmt.Sprintf("%d actions match %s/%s/%s", len(candidates), devicePrefix, servicePrefix, actionPrefix)}
	}
	return candidates[0].svc, candidates[0].act, nil
}

// Bindings is the user-supplied var=value input for a query, already
// deduplicated by ParseBindings (a Go map cannot itself represent the
// duplicate-assignment error the SOAP query contract requires, so that check happens
// while building one from the raw var=value pairs).
type Bindings map[string]string

// ParseBindings builds a Bindings map from raw "var=value" pairs (as
// supplied on the CLI or in interactive mode), failing with
// AmbiguousInArg if the same variable is assigned twice.
func ParseBindings(pairs []string) (Bindings, error) {
	b := make(Bindings, len(pairs))
	for _, p := range pairs {
		eq := strings.IndexByte(p, '=')
		if eq < 0 {
			return nil, &QueryError{Kind: "BadBinding", Detail: p}
		}
		name, val := p[:eq], p[eq+1:]
		if _, dup := b[name]; dup {
			return nil, &QueryError{Kind: "AmbiguousInArg", Detail: name}
		}
		b[name] = val
	}
	return b, nil
}

// BuildRequest implements the SOAP query contract's request synthesis: validate input
// bindings against the action's in arguments, XML-escape each value, and
// render the SOAP envelope.
func BuildRequest(svc *descriptor.Service, action *descriptor.Action, bindings Bindings) ([]byte, error) {
	var body strings.Builder
	fmt.Fprintf(&body, `<u:%s xmlns:u="%s">`, action.Name, svc.Type)
	for _, arg := range action.Arguments {
		if arg.Direction != descriptor.In {
			continue
		}
		val, ok := bindings[arg.Name]
		if !ok {
			return nil, &QueryError{Kind: "MissingInArg", Detail: arg.Name}
		}
		escaped, _ := escape.EscapeXML(val)
		fmt.Fprintf(&body, "<%s>%s</%s>", arg.Name, escaped, arg.Name)
	}
	fmt.Fprintf(&body, `</u:%s>`, action.Name)

	var envelope strings.Builder
	envelope.WriteString(`<?xml version="1.0" encoding="utf-8"?>`)
	fmt.Fprintf(&envelope, `<s:Envelope s:encodingStyle="%s" xmlns:s="%s">`, soapEncodingNS, soapEnvelopeNS)
	envelope.WriteString(`<s:Body>`)
	envelope.WriteString(body.String())
	envelope.WriteString(`</s:Body></s:Envelope>`)
	return []byte(envelope.String()), nil
}

// Invoke builds and sends the request, parses the response, and returns
// the action's output arguments with their bound values (the SOAP query contract).
func Invoke(ctx context.Context, c *transport.Context, svc *descriptor.Service, action *descriptor.Action, bindings Bindings) ([]*descriptor.Argument, error) {
	for _, arg := range action.Arguments {
		if arg.Direction == descriptor.In {
			continue
		}
		arg.Value = ""
		arg.HasValue = false
	}
	reqBody, err := BuildRequest(svc, action, bindings)
	if err != nil {
		return nil, err
	}

	headers := []transport.Header{
		{Name: "Connection", Value: "keep-alive"},
		{Name: "SOAPAction", Value: fmt.Sprintf("%s#%s", svc.Type, action.Name)},
		{Name: "Content-Type", Value: "text/xml; charset=utf-8"},
	}
	resp, err := c.Do(ctx, "POST", svc.ControlURL, headers, reqBody)
	if err != nil {
		return nil, err
	}
	if resp.Message.StatusCode != 200 {
		return nil, &transport.HTTPError{Status: resp.Message.StatusCode}
	}

	respBody := resp.Message.Body.Bytes(resp.Buf)
	if err := parseResponse(respBody, action); err != nil {
		return nil, err
	}

	var outs []*descriptor.Argument
	for _, arg := range action.Arguments {
		if arg.Direction == descriptor.Out {
			outs = append(outs, arg)
		}
	}
	return outs, nil
}

// parseResponse implements the SOAP query contract's response parse contract: a SAX walk
// enforcing s:Envelope → s:Body → u:<Action>Response → <arg-name>*, with
// the SOAP prefix discovered from the envelope's xmlns:s attribute and the
// user namespace discovered from the response element's own prefix.
func parseResponse(buf []byte, action *descriptor.Action) error {
	p := sax.New(buf)

	outArgs := map[string]*descriptor.Argument{}
	for _, arg := range action.Arguments {
		if arg.Direction == descriptor.Out {
			outArgs[arg.Name] = arg
		}
	}

	var soapPrefix string
	var depth0Seen, depth1Seen, responseSeen bool
	var curArg *descriptor.Argument

	expectedResponse := action.Name + "Response"

	for {
		ev, err := p.Next()
		if err != nil {
			return &QueryError{Kind: "BadResponseFormat", Detail: err.Error()}
		}
		if ev == nil {
			break
		}
		switch ev.Kind {
		case sax.StartTag:
			switch ev.Depth {
			case 0:
				nsVal, ok := findXmlnsForPrefix(ev, buf, ev.Namespace.Slice(buf))
				if !ok || nsVal != soapEnvelopeNS {
					return &QueryError{Kind: "BadResponseFormat", Detail: "root element is not a SOAP envelope"}
				}
				soapPrefix = ev.Namespace.Slice(buf)
				if ev.Local.Slice(buf) != "Envelope" {
					return &QueryError{Kind: "BadResponseFormat", Detail: "root element is not Envelope"}
				}
				depth0Seen = true
			case 1:
				if !depth0Seen || ev.Namespace.Slice(buf) != soapPrefix || ev.Local.Slice(buf) != "Body" {
					return &QueryError{Kind: "BadResponseFormat", Detail: "expected s:Body"}
				}
				depth1Seen = true
			case 2:
				if !depth1Seen {
					return &QueryError{Kind: "BadResponseFormat", Detail: "response element outside Body"}
				}
				prefix := ev.Namespace.Slice(buf)
				nsVal, ok := findXmlnsForPrefix(ev, buf, prefix)
				if !ok || !strings.HasPrefix(nsVal, "urn:dslforum-org:service:") {
					return &QueryError{Kind: "BadResponseAction", Detail: "response element namespace is not a dslforum service URN"}
				}
				if ev.Local.Slice(buf) != expectedResponse {
					return &QueryError{Kind: "BadResponseAction", Detail: fmt.Sprintf("expected %s, got %s", expectedResponse, ev.Local.Slice(buf))}
				}
				responseSeen = true
			case 3:
				if !responseSeen {
					return &QueryError{Kind: "BadResponseFormat", Detail: "argument outside response element"}
				}
				name := ev.Local.Slice(buf)
				arg, ok := outArgs[name]
				if !ok {
					return &QueryError{Kind: "UnknownOutArg", Detail: name}
				}
				curArg = arg
			}
		case sax.Content:
			if curArg != nil {
				unescaped, _, err := escape.UnescapeXML(ev.Value.Slice(buf), escape.DefaultEntities())
				if err != nil {
					return &QueryError{Kind: "BadEscape", Detail: err.Error()}
				}
				curArg.Value = unescaped
				curArg.HasValue = true
			}
		case sax.EndTag:
			if ev.Depth == 3 {
				curArg = nil
			}
		}
	}
	if !responseSeen {
		return &QueryError{Kind: "BadResponseFormat", Detail: "no response element found"}
	}
	return nil
}

// findXmlnsForPrefix looks up the xmlns (or xmlns:<prefix>) declaration
// among ev's own attributes, the only place the SOAP query contract looks: the envelope
// and response elements declare their own namespaces inline rather than
// inheriting from an ancestor, matching every TR-064 gateway observed in
// practice.
func findXmlnsForPrefix(ev *sax.Event, buf []byte, prefix string) (string, bool) {
	want := "xmlns"
	for _, a := range ev.Attrs {
		local := a.Local.Slice(buf)
		ns := a.Namespace.Slice(buf)
		if prefix == "" {
			if ns == "" && local == want {
				return a.Value.Slice(buf), true
			}
			continue
		}
		if ns == want && local == prefix {
			return a.Value.Slice(buf), true
		}
	}
	return "", false
}
