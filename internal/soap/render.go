package soap

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tr64go/tr64c/internal/descriptor"
	"github.com/tr64go/tr64c/internal/escape"
)

// Format selects one of the three output renderings of the SOAP query contract.
type Format int

const (
	CSV Format = iota
	JSON
	XML
)

// ParseFormat maps a CLI/interactive format name to a Format, matching
// the -f|--format flag values of the CLI surface.
func ParseFormat(s string) (Format, error) {
	switch strings.ToUpper(s) {
	case "CSV":
		return CSV, nil
	case "JSON":
		return JSON, nil
	case "XML":
		return XML, nil
	default:
		return 0, &QueryError{Kind: "BadFormat", Detail: s}
	}
}

// Render formats action's out arguments per the SOAP query contract.
func Render(action *descriptor.Action, format Format) ([]byte, error) {
	var outs []*descriptor.Argument
	for _, a := range action.Arguments {
		if a.Direction == descriptor.Out {
			outs = append(outs, a)
		}
	}
	switch format {
	case CSV:
		return renderCSV(outs), nil
	case JSON:
		return renderJSON(action.Name, outs), nil
	case XML:
		return renderXML(action.Name, outs), nil
	default:
		return nil, &QueryError{Kind: "BadFormat", Detail: fmt.Sprintf("%d", format)}
	}
}

// renderCSV implements the SOAP query contract: two records, quoted variable names with
// a non-null value then their values, embedded quotes doubled.
func renderCSV(outs []*descriptor.Argument) []byte {
	var withValue []*descriptor.Argument
	for _, a := range outs {
		if a.HasValue {
			withValue = append(withValue, a)
		}
	}

	var b strings.Builder
	writeCSVRow(&b, withValue, func(a *descriptor.Argument) string { return a.Name })
	writeCSVRow(&b, withValue, func(a *descriptor.Argument) string { return a.Value })
	return []byte(b.String())
}

func writeCSVRow(b *strings.Builder, args []*descriptor.Argument, field func(*descriptor.Argument) string) {
	for i, a := range args {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(field(a), `"`, `""`))
		b.WriteByte('"')
	}
	b.WriteByte('\n')
}

// isNumericDataType reports whether dataType maps to a JSON number per
// the SOAP query contract's rendering rule.
func isNumericDataType(dataType string) bool {
	switch dataType {
	case "i1", "i2", "i4", "i8", "ui1", "ui2", "ui4", "ui8":
		return true
	default:
		return false
	}
}

// renderJSON implements the SOAP query contract: {"<Action>": {<var>: <value>, ...}}
// with null for unset out arguments, booleans for data_type "boolean"
// whose value is exactly "0" or "1", numbers for integer data types, and
// strings otherwise.
func renderJSON(actionName string, outs []*descriptor.Argument) []byte {
	var b strings.Builder
	b.WriteByte('{')
	writeJSONString(&b, actionName)
	b.WriteString(`:{`)
	for i, a := range outs {
		if i > 0 {
			b.WriteByte(',')
		}
		writeJSONString(&b, a.Name)
		b.WriteByte(':')
		writeJSONValue(&b, a)
	}
	b.WriteString("}}")
	return []byte(b.String())
}

func writeJSONValue(b *strings.Builder, a *descriptor.Argument) {
	if !a.HasValue {
		b.WriteString("null")
		return
	}
	if a.DataType == "boolean" && (a.Value == "0" || a.Value == "1") {
		if a.Value == "1" {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
		return
	}
	if isNumericDataType(a.DataType) {
		if _, err := strconv.ParseInt(a.Value, 10, 64); err == nil {
			b.WriteString(a.Value)
			return
		}
		// Falls through to string rendering if the gateway sent a
		// non-integer value for a declared-numeric argument.
	}
	writeJSONString(b, a.Value)
}

func writeJSONString(b *strings.Builder, s string) {
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if c < 0x20 {
				fmt.Fprintf(b, `\u%04x`, c)
			} else {
				b.WriteByte(c)
			}
		}
	}
	b.WriteByte('"')
}

// renderXML implements the SOAP query contract: <Action><var>value</var>…</Action>,
// values XML-escaped, missing values produce empty elements.
func renderXML(actionName string, outs []*descriptor.Argument) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "<%s>", actionName)
	for _, a := range outs {
		escaped, _ := escape.EscapeXML(a.Value)
		fmt.Fprintf(&b, "<%s>%s</%s>", a.Name, escaped, a.Name)
	}
	fmt.Fprintf(&b, "</%s>", actionName)
	return []byte(b.String())
}
