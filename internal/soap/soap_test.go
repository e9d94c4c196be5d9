package soap

import (
	"strings"
	"testing"

	"github.com/tr64go/tr64c/internal/descriptor"
)

func sampleObject() *descriptor.Object {
	return &descriptor.Object{
		Name: "FRITZ!Box",
		URL:  "http://fritz.box:49000/tr64desc.xml",
		Devices: []*descriptor.Device{
			{
				Name: "DeviceA",
				Services: []*descriptor.Service{
					{
						Name: "Info:1",
						Type: "urn:dslforum-org:service:Info:1",
						ControlURL: "/upnp/control/info",
						Actions: []*descriptor.Action{
							{
								Name: "GetInfo",
								Arguments: []*descriptor.Argument{
									{Name: "NewX", Direction: descriptor.In},
									{Name: "NewY", Direction: descriptor.In},
									{Name: "NewC", Direction: descriptor.Out, DataType: "string"},
								},
							},
						},
					},
				},
			},
			{
				Name: "DeviceB",
				Services: []*descriptor.Service{
					{
						Name: "Info:1",
						Type: "urn:dslforum-org:service:Info:1",
						Actions: []*descriptor.Action{
							{Name: "GetInfo"},
						},
					},
				},
			},
		},
	}
}

func TestSelectAmbiguousWithoutDevicePrefix(t *testing.T) {
	obj := sampleObject()
	_, _, err := Select(obj, "", "Info", "GetInfo")
	qerr, ok := err.(*QueryError)
	if !ok || qerr.Kind != "AmbiguousAction" {
		t.Fatalf("expected AmbiguousAction, got %v", err)
	}
}

func TestSelectWithDevicePrefixDisambiguates(t *testing.T) {
	obj := sampleObject()
	svc, act, err := Select(obj, "DeviceA", "Info", "GetInfo")
	if err != nil {
		t.Fatal(err)
	}
	if svc.Name != "Info:1" || act.Name != "GetInfo" {
		t.Fatalf("got svc=%+v act=%+v", svc, act)
	}
}

func TestSelectBadAction(t *testing.T) {
	obj := sampleObject()
	if _, _, err := Select(obj, "", "NoSuch", "X"); err == nil {
		t.Fatal("expected BadAction error")
	}
}

func TestParseBindingsDuplicateRejected(t *testing.T) {
	if _, err := ParseBindings([]string{"A=1", "A=2"}); err == nil {
		t.Fatal("expected AmbiguousInArg")
	}
}

func TestBuildRequestMissingInArg(t *testing.T) {
	obj := sampleObject()
	svc, act, err := Select(obj, "DeviceA", "Info", "GetInfo")
	if err != nil {
		t.Fatal(err)
	}
	bindings, _ := ParseBindings([]string{"NewX=1"})
	if _, err := BuildRequest(svc, act, bindings); err == nil {
		t.Fatal("expected MissingInArg for NewY")
	}
}

func TestBuildRequestRendersEnvelope(t *testing.T) {
	obj := sampleObject()
	svc, act, err := Select(obj, "DeviceA", "Info", "GetInfo")
	if err != nil {
		t.Fatal(err)
	}
	bindings, _ := ParseBindings([]string{"NewX=1", "NewY=2"})
	body, err := BuildRequest(svc, act, bindings)
	if err != nil {
		t.Fatal(err)
	}
	s := string(body)
	if !strings.Contains(s, `<u:GetInfo xmlns:u="urn:dslforum-org:service:Info:1">`) {
		t.Fatalf("missing action element: %s", s)
	}
	if !strings.Contains(s, "<NewX>1</NewX><NewY>2</NewY>") {
		t.Fatalf("missing bound args: %s", s)
	}
}

func TestParseResponseBindsOutputs(t *testing.T) {
	action := &descriptor.Action{
		Name: "GetInfo",
		Arguments: []*descriptor.Argument{
			{Name: "NewC", Direction: descriptor.Out, DataType: "string"},
		},
	}
	resp := `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/" s:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/">` +
		`<s:Body><u:GetInfoResponse xmlns:u="urn:dslforum-org:service:Info:1"><NewC>xy</NewC></u:GetInfoResponse></s:Body></s:Envelope>`
	if err := parseResponse([]byte(resp), action); err != nil {
		t.Fatal(err)
	}
	if action.Arguments[0].Value != "xy" || !action.Arguments[0].HasValue {
		t.Fatalf("argument not bound: %+v", action.Arguments[0])
	}
}

func TestParseResponseUnknownOutArg(t *testing.T) {
	action := &descriptor.Action{Name: "GetInfo"}
	resp := `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/">` +
		`<s:Body><u:GetInfoResponse xmlns:u="urn:dslforum-org:service:Info:1"><Bogus>x</Bogus></u:GetInfoResponse></s:Body></s:Envelope>`
	err := parseResponse([]byte(resp), action)
	qerr, ok := err.(*QueryError)
	if !ok || qerr.Kind != "UnknownOutArg" {
		t.Fatalf("expected UnknownOutArg, got %v", err)
	}
}

func TestParseResponseBadResponseAction(t *testing.T) {
	action := &descriptor.Action{Name: "GetInfo"}
	resp := `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/">` +
		`<s:Body><u:GetOtherResponse xmlns:u="urn:dslforum-org:service:Info:1"></u:GetOtherResponse></s:Body></s:Envelope>`
	err := parseResponse([]byte(resp), action)
	qerr, ok := err.(*QueryError)
	if !ok || qerr.Kind != "BadResponseAction" {
		t.Fatalf("expected BadResponseAction, got %v", err)
	}
}

func TestRenderCSV(t *testing.T) {
	action := &descriptor.Action{
		Name: "Foo",
		Arguments: []*descriptor.Argument{
			{Name: "NewX", Direction: descriptor.Out, Value: "a", HasValue: true},
			{Name: "NewY", Direction: descriptor.Out, Value: `b"c`, HasValue: true},
		},
	}
	out, err := Render(action, CSV)
	if err != nil {
		t.Fatal(err)
	}
	want := "\"NewX\",\"NewY\"\n\"a\",\"b\"\"c\"\n"
	if string(out) != want {
		t.Fatalf("got %q want %q", out, want)
	}
}

func TestRenderJSONBoolean(t *testing.T) {
	action := &descriptor.Action{
		Name: "Foo",
		Arguments: []*descriptor.Argument{
			{Name: "Flag", Direction: descriptor.Out, DataType: "boolean", Value: "1", HasValue: true},
		},
	}
	out, err := Render(action, JSON)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), `"Flag":true`) {
		t.Fatalf("got %s", out)
	}
}

func TestRenderJSONBooleanNonBinaryIsString(t *testing.T) {
	action := &descriptor.Action{
		Name: "Foo",
		Arguments: []*descriptor.Argument{
			{Name: "Flag", Direction: descriptor.Out, DataType: "boolean", Value: "abc", HasValue: true},
		},
	}
	out, err := Render(action, JSON)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), `"Flag":"abc"`) {
		t.Fatalf("got %s", out)
	}
}

func TestRenderXML(t *testing.T) {
	action := &descriptor.Action{
		Name: "Foo",
		Arguments: []*descriptor.Argument{
			{Name: "NewX", Direction: descriptor.Out, Value: "a&b", HasValue: true},
		},
	}
	out, err := Render(action, XML)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "<Foo><NewX>a&amp;b</NewX></Foo>" {
		t.Fatalf("got %s", out)
	}
}
