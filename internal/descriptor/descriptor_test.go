package descriptor

import "testing"

const sampleCache = `<?xml version="1.0" encoding="utf-8"?>` +
	`<object name="FRITZ!Box" url="http://fritz.box:49000/tr64desc.xml">` +
	`<device name="InternetGatewayDevice:1">` +
	`<service name="DeviceInfo:1" type="urn:dslforum-org:service:DeviceInfo:1" path="/deviceinfoSCPD.xml" control="/upnp/control/deviceinfo">` +
	`<action name="GetInfo">` +
	`<arg name="NewSerialNumber" var="SerialNumber" type="string" dir="out"/>` +
	`</action>` +
	`</service>` +
	`</device>` +
	`</object>`

func TestParseCacheRoundTrip(t *testing.T) {
	obj, err := ParseCache([]byte(sampleCache))
	if err != nil {
		t.Fatal(err)
	}
	if obj.Name != "FRITZ!Box" || obj.URL != "http://fritz.box:49000/tr64desc.xml" {
		t.Fatalf("got %+v", obj)
	}
	if len(obj.Devices) != 1 || obj.Devices[0].Name != "InternetGatewayDevice:1" {
		t.Fatalf("devices = %+v", obj.Devices)
	}
	svc := obj.Devices[0].Services[0]
	if svc.Name != "DeviceInfo:1" || svc.ControlURL != "/upnp/control/deviceinfo" {
		t.Fatalf("service = %+v", svc)
	}
	action := svc.Actions[0]
	if action.Name != "GetInfo" || action.Arguments[0].DataType != "string" || action.Arguments[0].Direction != Out {
		t.Fatalf("action = %+v", action)
	}
}

func TestSerializeCacheReparseEqual(t *testing.T) {
	obj, err := ParseCache([]byte(sampleCache))
	if err != nil {
		t.Fatal(err)
	}
	serialized := SerializeCache(obj)
	reparsed, err := ParseCache(serialized)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if reparsed.Name != obj.Name || reparsed.URL != obj.URL {
		t.Fatalf("object fields diverged: %+v vs %+v", reparsed, obj)
	}
	if reparsed.Devices[0].Services[0].Actions[0].Arguments[0].Name != "NewSerialNumber" {
		t.Fatalf("argument diverged: %+v", reparsed.Devices[0].Services[0].Actions[0].Arguments[0])
	}
}

func TestParseCacheMissingArgAttributeRejected(t *testing.T) {
	bad := `<object name="a" url="b"><device name="d"><service name="s" type="t" path="p" control="c">` +
		`<action name="a1"><arg name="x" var="y" type="string"/></action></service></device></object>`
	if _, err := ParseCache([]byte(bad)); err == nil {
		t.Fatal("expected error for arg missing dir attribute")
	}
}

func TestParseDeviceDescriptionBasicShape(t *testing.T) {
	doc := `<root><device>` +
		`<deviceType>urn:dslforum-org:device:InternetGatewayDevice:1</deviceType>` +
		`<friendlyName>FRITZ!Box 7590</friendlyName>` +
		`<serviceList><service>` +
		`<serviceType>urn:dslforum-org:service:DeviceInfo:1</serviceType>` +
		`<controlURL>/upnp/control/deviceinfo</controlURL>` +
		`<SCPDURL>/deviceinfoSCPD.xml</SCPDURL>` +
		`</service></serviceList>` +
		`</device></root>`
	obj := &Object{}
	if err := parseDeviceDescription([]byte(doc), obj); err != nil {
		t.Fatal(err)
	}
	if obj.Name != "FRITZ!Box 7590" {
		t.Fatalf("object name = %q", obj.Name)
	}
	if len(obj.Devices) != 1 || obj.Devices[0].Name != "InternetGatewayDevice:1" {
		t.Fatalf("devices = %+v", obj.Devices)
	}
	svc := obj.Devices[0].Services[0]
	if svc.Name != "DeviceInfo:1" || svc.ControlURL != "/upnp/control/deviceinfo" || svc.SCPDPath != "/deviceinfoSCPD.xml" {
		t.Fatalf("service = %+v", svc)
	}
}

func TestParseDeviceDescriptionNestedShape(t *testing.T) {
	doc := `<root><device>` +
		`<deviceType>urn:dslforum-org:device:InternetGatewayDevice:1</deviceType>` +
		`<friendlyName>FRITZ!Box 7590</friendlyName>` +
		`<serviceList><service>` +
		`<serviceType>urn:dslforum-org:service:DeviceInfo:1</serviceType>` +
		`<controlURL>/upnp/control/deviceinfo</controlURL>` +
		`<SCPDURL>/deviceinfoSCPD.xml</SCPDURL>` +
		`</service></serviceList>` +
		`<deviceList><device>` +
		`<deviceType>urn:dslforum-org:device:WANDevice:1</deviceType>` +
		`<serviceList><service>` +
		`<serviceType>urn:dslforum-org:service:WANCommonInterfaceConfig:1</serviceType>` +
		`<controlURL>/upnp/control/wancommonifconfig</controlURL>` +
		`<SCPDURL>/wancommonifconfigSCPD.xml</SCPDURL>` +
		`</service></serviceList>` +
		`</device></deviceList>` +
		`</device></root>`
	obj := &Object{}
	if err := parseDeviceDescription([]byte(doc), obj); err != nil {
		t.Fatal(err)
	}
	if len(obj.Devices) != 2 {
		t.Fatalf("expected 2 devices (outer + nested), got %d: %+v", len(obj.Devices), obj.Devices)
	}
	var wan *Device
	for _, d := range obj.Devices {
		if d.Name == "WANDevice:1" {
			wan = d
		}
	}
	if wan == nil {
		t.Fatalf("nested WANDevice:1 not found in %+v", obj.Devices)
	}
	if len(wan.Services) != 1 || wan.Services[0].Name != "WANCommonInterfaceConfig:1" {
		t.Fatalf("nested device services = %+v", wan.Services)
	}
}

func TestParseSCPDCollectsArgumentsAndStateVars(t *testing.T) {
	doc := `<scpd>` +
		`<actionList><action><name>GetInfo</name>` +
		`<argumentList><argument><name>NewSerialNumber</name>` +
		`<direction>out</direction><relatedStateVariable>SerialNumber</relatedStateVariable>` +
		`</argument></argumentList></action></actionList>` +
		`<serviceStateTable><stateVariable><name>SerialNumber</name><dataType>string</dataType></stateVariable></serviceStateTable>` +
		`</scpd>`
	svc := &Service{Name: "DeviceInfo:1"}
	stateVars := map[string]string{}
	if err := parseSCPD([]byte(doc), svc, stateVars); err != nil {
		t.Fatal(err)
	}
	if len(svc.Actions) != 1 || svc.Actions[0].Name != "GetInfo" {
		t.Fatalf("actions = %+v", svc.Actions)
	}
	arg := svc.Actions[0].Arguments[0]
	if arg.RelatedStateVar != "SerialNumber" || arg.Direction != Out {
		t.Fatalf("arg = %+v", arg)
	}
	if stateVars["SerialNumber"] != "string" {
		t.Fatalf("stateVars = %+v", stateVars)
	}
}

func TestFindServicesPrefixMatch(t *testing.T) {
	obj, err := ParseCache([]byte(sampleCache))
	if err != nil {
		t.Fatal(err)
	}
	matches := obj.FindServices("", "DeviceInfo")
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	none := obj.FindServices("", "NoSuchService")
	if len(none) != 0 {
		t.Fatalf("expected 0 matches, got %d", len(none))
	}
}
