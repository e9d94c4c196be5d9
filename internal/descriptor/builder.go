package descriptor

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/dchest/safefile"
	"github.com/gofrs/flock"
	"github.com/hashicorp/go-hclog"

	"github.com/tr64go/tr64c/internal/sax"
	"github.com/tr64go/tr64c/internal/transport"
)

// BuildError reports a failure in the descriptor build protocol: an
// unresolved argument type, a malformed device/SCPD document, or a
// transport failure while fetching one.
type BuildError struct {
	Detail string
	Err    error
}

func (e *BuildError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("descriptor: %s: %v", e.Detail, e.Err)
	}
	return fmt.Sprintf("descriptor: %s", e.Detail)
}

func (e *BuildError) Unwrap() error { return e.Err }

const (
	deviceURNPrefix  = "urn:dslforum-org:device:"
	serviceURNPrefix = "urn:dslforum-org:service:"
)

// Options configures Build.
type Options struct {
	// CachePath, if non-empty, is consulted first and written back on a
	// successful live build (the descriptor build contract steps 1 and 4).
	CachePath string
	Logger    hclog.Logger
}

// Build realizes the descriptor build contract's build protocol against c, whose Host/Port
// identify the gateway and whose Path is the device description URL path.
// requestedURL is the full URL used to match against a cached tree's url
// attribute.
func Build(ctx context.Context, c *transport.Context, requestedPath, requestedURL string, opts Options) (*Object, error) {
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	if opts.CachePath != "" {
		if obj, ok := tryLoadCache(opts.CachePath, requestedURL, logger); ok {
			return obj, nil
		}
	}

	obj, err := buildLive(ctx, c, requestedPath, requestedURL, logger)
	if err != nil {
		return nil, err
	}

	if opts.CachePath != "" {
		if err := writeCache(opts.CachePath, obj); err != nil {
			logger.Warn("descriptor: cache write failed", "path", opts.CachePath, "error", err)
		}
	}
	return obj, nil
}

// tryLoadCache implements the descriptor build contract step 1's cache hit path, holding an
// advisory lock for the duration of the read so a concurrent interactive
// session never observes a half-written cache file.
func tryLoadCache(path, requestedURL string, logger hclog.Logger) (*Object, bool) {
	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil || !locked {
		logger.Debug("descriptor: cache lock unavailable, skipping cache", "path", path, "error", err)
		return nil, false
	}
	defer lock.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Debug("descriptor: cache unreadable", "path", path, "error", err)
		return nil, false
	}
	obj, err := ParseCache(data)
	if err != nil {
		logger.Warn("descriptor: cache format invalid, discarding", "path", path, "error", err)
		return nil, false
	}
	if obj.URL != requestedURL {
		logger.Debug("descriptor: cache url mismatch, discarding", "cached", obj.URL, "requested", requestedURL)
		return nil, false
	}
	return obj, true
}

// writeCache implements the descriptor build contract step 4: an advisory-locked,
// write-temp-then-rename write so a reader never sees a partial file.
func writeCache(path string, obj *Object) error {
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("acquire cache lock: %w", err)
	}
	defer lock.Unlock()

	f, err := safefile.Create(path, 0o644)
	if err != nil {
		return fmt.Errorf("create cache temp file: %w", err)
	}
	if _, err := f.Write(SerializeCache(obj)); err != nil {
		f.Close()
		return fmt.Errorf("write cache temp file: %w", err)
	}
	if err := f.Commit(); err != nil {
		return fmt.Errorf("commit cache file: %w", err)
	}
	return nil
}

func buildLive(ctx context.Context, c *transport.Context, devicePath, requestedURL string, logger hclog.Logger) (*Object, error) {
	resp, err := c.Do(ctx, "GET", devicePath, nil, nil)
	if err != nil {
		return nil, &BuildError{Detail: "fetch device description", Err: err}
	}
	if resp.Message.StatusCode != 200 {
		return nil, &BuildError{Detail: fmt.Sprintf("device description returned status %d", resp.Message.StatusCode)}
	}
	body := resp.Message.Body.Bytes(resp.Buf)

	obj := &Object{URL: requestedURL}
	if err := parseDeviceDescription(body, obj); err != nil {
		return nil, &BuildError{Detail: "parse device description", Err: err}
	}

	for _, dev := range obj.Devices {
		for _, svc := range dev.Services {
			if err := fetchSCPD(ctx, c, svc, logger); err != nil {
				return nil, err
			}
		}
	}
	return obj, nil
}

// parseDeviceDescription walks the device description body, recognizing
// the three valid device-nesting shapes (root/device,
// root/device/deviceList/device, and one further nesting) and the
// matching serviceList/service nesting, per the descriptor build contract step 2.
func parseDeviceDescription(buf []byte, obj *Object) error {
	p := sax.New(buf)

	var path []string
	var curDevice *Device
	var curService *Service
	deviceStack := []*Device{}

	for {
		ev, err := p.Next()
		if err != nil {
			return err
		}
		if ev == nil {
			break
		}
		switch ev.Kind {
		case sax.StartTag:
			name := ev.Local.Slice(buf)
			path = append(path, name)
			switch name {
			case "device":
				curDevice = &Device{}
				deviceStack = append(deviceStack, curDevice)
			case "service":
				curService = &Service{}
			}
		case sax.Content:
			if len(path) == 0 {
				continue
			}
			tag := path[len(path)-1]
			val := ev.Value.Slice(buf)
			unescaped := unescapeAttr(val)
			switch tag {
			case "friendlyName":
				if curDevice != nil && obj.Name == "" {
					obj.Name = unescaped
				}
			case "deviceType":
				if curDevice != nil && curDevice.Name == "" {
					curDevice.Name = strings.TrimPrefix(unescaped, deviceURNPrefix)
				}
			case "serviceType":
				if curService != nil {
					curService.Type = unescaped
					if curService.Name == "" {
						curService.Name = strings.TrimPrefix(unescaped, serviceURNPrefix)
					}
				}
			case "SCPDURL":
				if curService != nil {
					curService.SCPDPath = unescaped
				}
			case "controlURL":
				if curService != nil {
					curService.ControlURL = unescaped
				}
			}
		case sax.EndTag:
			name := ev.Local.Slice(buf)
			if len(path) > 0 {
				path = path[:len(path)-1]
			}
			switch name {
			case "service":
				if curDevice != nil && curService != nil {
					curDevice.Services = append(curDevice.Services, curService)
				}
				curService = nil
			case "device":
				n := len(deviceStack)
				if n == 0 {
					continue
				}
				finished := deviceStack[n-1]
				deviceStack = deviceStack[:n-1]
				obj.Devices = append(obj.Devices, finished)
				if len(deviceStack) == 0 {
					curDevice = nil
				} else {
					curDevice = deviceStack[len(deviceStack)-1]
				}
			}
		}
	}
	return nil
}

// fetchSCPD implements the descriptor build contract step 3: fetch and parse one service's
// SCPD document, then resolve every action argument's data type from the
// state-variable table.
func fetchSCPD(ctx context.Context, c *transport.Context, svc *Service, logger hclog.Logger) error {
	path := svc.SCPDPath
	resp, err := c.Do(ctx, "GET", path, nil, nil)
	if err != nil {
		return &BuildError{Detail: fmt.Sprintf("fetch SCPD for service %s", svc.Name), Err: err}
	}
	if resp.Message.StatusCode != 200 {
		return &BuildError{Detail: fmt.Sprintf("SCPD for service %s returned status %d", svc.Name, resp.Message.StatusCode)}
	}
	body := resp.Message.Body.Bytes(resp.Buf)

	stateVars := map[string]string{}
	if err := parseSCPD(body, svc, stateVars); err != nil {
		return &BuildError{Detail: fmt.Sprintf("parse SCPD for service %s", svc.Name), Err: err}
	}

	for _, action := range svc.Actions {
		for _, arg := range action.Arguments {
			dt, ok := stateVars[arg.RelatedStateVar]
			if !ok || dt == "" {
				return &BuildError{Detail: fmt.Sprintf("NoTypeForArgument(%s)", arg.RelatedStateVar)}
			}
			arg.DataType = dt
		}
	}
	logger.Trace("descriptor: resolved SCPD", "service", svc.Name, "actions", len(svc.Actions), "stateVars", len(stateVars))
	return nil
}

// parseSCPD walks an scpd document, collecting actionList/action[/argumentList/argument]
// tuples into svc and serviceStateTable/stateVariable name→dataType pairs into stateVars.
func parseSCPD(buf []byte, svc *Service, stateVars map[string]string) error {
	p := sax.New(buf)

	var path []string
	var curAction *Action
	var curArg *Argument
	var curVarName string
	var curVarType string

	inPath := func(want ...string) bool {
		if len(path) < len(want) {
			return false
		}
		base := path[len(path)-len(want):]
		for i, w := range want {
			if base[i] != w {
				return false
			}
		}
		return true
	}

	for {
		ev, err := p.Next()
		if err != nil {
			return err
		}
		if ev == nil {
			break
		}
		switch ev.Kind {
		case sax.StartTag:
			name := ev.Local.Slice(buf)
			path = append(path, name)
			switch {
			case name == "action" && inPath("scpd", "actionList", "action"):
				curAction = &Action{}
			case name == "argument" && inPath("scpd", "actionList", "action", "argumentList", "argument"):
				curArg = &Argument{}
			case name == "stateVariable" && inPath("scpd", "serviceStateTable", "stateVariable"):
				curVarName, curVarType = "", ""
			}
		case sax.Content:
			if len(path) == 0 {
				continue
			}
			tag := path[len(path)-1]
			val := unescapeAttr(ev.Value.Slice(buf))
			switch {
			case tag == "name" && curArg != nil && inPath("scpd", "actionList", "action", "argumentList", "argument", "name"):
				curArg.Name = val
			case tag == "relatedStateVariable" && curArg != nil:
				curArg.RelatedStateVar = val
			case tag == "direction" && curArg != nil:
				if strings.EqualFold(val, "out") {
					curArg.Direction = Out
				} else {
					curArg.Direction = In
				}
			case tag == "name" && curAction != nil && inPath("scpd", "actionList", "action", "name"):
				curAction.Name = val
			case tag == "name" && inPath("scpd", "serviceStateTable", "stateVariable", "name"):
				curVarName = val
			case tag == "dataType" && inPath("scpd", "serviceStateTable", "stateVariable", "dataType"):
				curVarType = val
			}
		case sax.EndTag:
			name := ev.Local.Slice(buf)
			if len(path) > 0 {
				path = path[:len(path)-1]
			}
			switch name {
			case "argument":
				if curAction != nil && curArg != nil {
					curAction.Arguments = append(curAction.Arguments, curArg)
				}
				curArg = nil
			case "action":
				if curAction != nil {
					svc.Actions = append(svc.Actions, curAction)
				}
				curAction = nil
			case "stateVariable":
				if curVarName != "" {
					stateVars[curVarName] = curVarType
				}
			}
		}
	}
	return nil
}
