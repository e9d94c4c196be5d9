// Package descriptor implements the TR-064 descriptor tree and its
// two-phase build protocol (the descriptor build contract): cache load, live device
// description fetch, per-service SCPD fetch, and the cross-service
// state-variable → argument-type resolution pass.
package descriptor

// Object is the root of a built descriptor tree. URL is the device
// description URL that produced it, used to decide whether a cache hit
// applies to the currently requested gateway.
type Object struct {
	Name    string
	URL     string
	Devices []*Device
}

// Device is the suffix of a urn:dslforum-org:device:<NAME> URI plus the
// services it exposes.
type Device struct {
	Name     string
	Services []*Service
}

// Service is the suffix of a urn:dslforum-org:service:<NAME> URI, its full
// type URN, and the SCPD/control URLs needed to query it.
type Service struct {
	Name       string
	Type       string
	SCPDPath   string
	ControlURL string
	Actions    []*Action
}

// Action is a single invocable SOAP operation.
type Action struct {
	Name      string
	Arguments []*Argument
}

// Direction is an argument's data-flow direction relative to the action
// call.
type Direction int

const (
	In Direction = iota
	Out
)

func (d Direction) String() string {
	if d == Out {
		return "out"
	}
	return "in"
}

// Argument is one action parameter. DataType is resolved from the
// service's state-variable table during build (§4.D step 3); Value is
// populated only during a query lifecycle.
type Argument struct {
	Name            string
	RelatedStateVar string
	Direction       Direction
	DataType        string
	Value           string
	HasValue        bool
}

// FindServices walks the tree for services whose name matches
// servicePrefix by prefix, optionally restricted to devices whose name
// matches devicePrefix by prefix. It returns every (device, service) pair
// that matches, letting the caller (internal/soap) decide ambiguous vs.
// none.
func (o *Object) FindServices(devicePrefix, servicePrefix string) []ServiceMatch {
	var matches []ServiceMatch
	for _, dev := range o.Devices {
		if devicePrefix != "" && !hasPrefixFold(dev.Name, devicePrefix) {
			continue
		}
		for _, svc := range dev.Services {
			if servicePrefix != "" && !hasPrefixFold(svc.Name, servicePrefix) {
				continue
			}
			matches = append(matches, ServiceMatch{Device: dev, Service: svc})
		}
	}
	return matches
}

// ServiceMatch pairs a device with one of its services, both satisfying a
// caller's prefix filter.
type ServiceMatch struct {
	Device  *Device
	Service *Service
}

// FindAction looks up an action by prefix within a single service.
func (s *Service) FindAction(actionPrefix string) []*Action {
	var matches []*Action
	for _, a := range s.Actions {
		if hasPrefixFold(a.Name, actionPrefix) {
			matches = append(matches, a)
		}
	}
	return matches
}

func hasPrefixFold(s, prefix string) bool {
	if len(prefix) > len(s) {
		return false
	}
	for i := 0; i < len(prefix); i++ {
		a, b := s[i], prefix[i]
		if a >= 'A' && a <= 'Z' {
			a += 'a' - 'A'
		}
		if b >= 'A' && b <= 'Z' {
			b += 'a' - 'A'
		}
		if a != b {
			return false
		}
	}
	return true
}
