package descriptor

import (
	"fmt"
	"strings"

	"github.com/tr64go/tr64c/internal/escape"
	"github.com/tr64go/tr64c/internal/sax"
)

// CacheFormatError reports a structurally invalid cache file: a missing
// required attribute, an unexpected tag, or a mismatched nesting.
type CacheFormatError struct {
	Detail string
}

func (e *CacheFormatError) Error() string {
	return fmt.Sprintf("descriptor: cache format: %s", e.Detail)
}

// ParseCache parses buf as a cache file per the descriptor build contract step 1: root
// <object name url> containing <device name> containing <service
// name type path control> containing <action name> containing <arg name
// var type dir>. Every close tag validates that its required attributes
// were present.
func ParseCache(buf []byte) (*Object, error) {
	p := sax.New(buf)

	var obj *Object
	var curDevice *Device
	var curService *Service
	var curAction *Action

	for {
		ev, err := p.Next()
		if err != nil {
			return nil, err
		}
		if ev == nil {
			break
		}
		switch ev.Kind {
		case sax.StartTag:
			name := ev.Local.Slice(buf)
			switch name {
			case "object":
				objName, _ := sax.FindAttr(ev.Attrs, buf, "name")
				url, _ := sax.FindAttr(ev.Attrs, buf, "url")
				objName = unescapeAttr(objName)
				url = unescapeAttr(url)
				obj = &Object{Name: objName, URL: url}
			case "device":
				if obj == nil {
					return nil, &CacheFormatError{Detail: "device outside object"}
				}
				devName, _ := sax.FindAttr(ev.Attrs, buf, "name")
				devName = unescapeAttr(devName)
				curDevice = &Device{Name: devName}
			case "service":
				if curDevice == nil {
					return nil, &CacheFormatError{Detail: "service outside device"}
				}
				svcName, _ := sax.FindAttr(ev.Attrs, buf, "name")
				svcType, _ := sax.FindAttr(ev.Attrs, buf, "type")
				path, _ := sax.FindAttr(ev.Attrs, buf, "path")
				control, _ := sax.FindAttr(ev.Attrs, buf, "control")
				svcName = unescapeAttr(svcName)
				svcType = unescapeAttr(svcType)
				path = unescapeAttr(path)
				control = unescapeAttr(control)
				curService = &Service{Name: svcName, Type: svcType, SCPDPath: path, ControlURL: control}
			case "action":
				if curService == nil {
					return nil, &CacheFormatError{Detail: "action outside service"}
				}
				actName, _ := sax.FindAttr(ev.Attrs, buf, "name")
				actName = unescapeAttr(actName)
				curAction = &Action{Name: actName}
			case "arg":
				if curAction == nil {
					return nil, &CacheFormatError{Detail: "arg outside action"}
				}
				argName, nameOK := sax.FindAttr(ev.Attrs, buf, "name")
				varName, varOK := sax.FindAttr(ev.Attrs, buf, "var")
				dataType, typeOK := sax.FindAttr(ev.Attrs, buf, "type")
				dir, dirOK := sax.FindAttr(ev.Attrs, buf, "dir")
				if !nameOK || !varOK || !typeOK || !dirOK {
					return nil, &CacheFormatError{Detail: "arg missing required attribute"}
				}
				argName = unescapeAttr(argName)
				varName = unescapeAttr(varName)
				dataType = unescapeAttr(dataType)
				direction := In
				if strings.EqualFold(dir, "out") {
					direction = Out
				}
				curAction.Arguments = append(curAction.Arguments, &Argument{
					Name:            argName,
					RelatedStateVar: varName,
					DataType:        dataType,
					Direction:       direction,
				})
			}
		case sax.EndTag:
			name := ev.Local.Slice(buf)
			switch name {
			case "action":
				if curAction == nil {
					return nil, &CacheFormatError{Detail: "unbalanced action close"}
				}
				if curAction.Name == "" {
					return nil, &CacheFormatError{Detail: "action missing name"}
				}
				curService.Actions = append(curService.Actions, curAction)
				curAction = nil
			case "service":
				if curService == nil {
					return nil, &CacheFormatError{Detail: "unbalanced service close"}
				}
				if curService.Name == "" || curService.Type == "" || curService.SCPDPath == "" || curService.ControlURL == "" {
					return nil, &CacheFormatError{Detail: "service missing required attribute"}
				}
				curDevice.Services = append(curDevice.Services, curService)
				curService = nil
			case "device":
				if curDevice == nil {
					return nil, &CacheFormatError{Detail: "unbalanced device close"}
				}
				if curDevice.Name == "" {
					return nil, &CacheFormatError{Detail: "device missing name"}
				}
				obj.Devices = append(obj.Devices, curDevice)
				curDevice = nil
			case "object":
				if obj == nil || obj.Name == "" || obj.URL == "" {
					return nil, &CacheFormatError{Detail: "object missing name or url"}
				}
			}
		}
	}
	if obj == nil {
		return nil, &CacheFormatError{Detail: "empty cache document"}
	}
	return obj, nil
}

// SerializeCache renders obj in the cache XML schema of the descriptor build contract step 1,
// XML-escaping name and url attribute values.
func SerializeCache(obj *Object) []byte {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="utf-8"?>`)
	fmt.Fprintf(&b, `<object name="%s" url="%s">`, escapeAttr(obj.Name), escapeAttr(obj.URL))
	for _, dev := range obj.Devices {
		fmt.Fprintf(&b, `<device name="%s">`, escapeAttr(dev.Name))
		for _, svc := range dev.Services {
			fmt.Fprintf(&b, `<service name="%s" type="%s" path="%s" control="%s">`,
				escapeAttr(svc.Name), escapeAttr(svc.Type), escapeAttr(svc.SCPDPath), escapeAttr(svc.ControlURL))
			for _, act := range svc.Actions {
				fmt.Fprintf(&b, `<action name="%s">`, escapeAttr(act.Name))
				for _, arg := range act.Arguments {
					fmt.Fprintf(&b, `<arg name="%s" var="%s" type="%s" dir="%s"/>`,
						escapeAttr(arg.Name), escapeAttr(arg.RelatedStateVar), escapeAttr(arg.DataType), arg.Direction)
				}
				b.WriteString(`</action>`)
			}
			b.WriteString(`</service>`)
		}
		b.WriteString(`</device>`)
	}
	b.WriteString(`</object>`)
	return []byte(b.String())
}

func escapeAttr(s string) string {
	out, _ := escape.EscapeXML(s)
	return out
}

func unescapeAttr(s string) string {
	out, _, err := escape.UnescapeXML(s, escape.DefaultEntities())
	if err != nil {
		return s
	}
	return out
}
