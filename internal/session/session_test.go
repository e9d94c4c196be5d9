package session

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/tr64go/tr64c/internal/descriptor"
	"github.com/tr64go/tr64c/internal/soap"
)

func sampleObject() *descriptor.Object {
	return &descriptor.Object{
		Name: "FRITZ!Box",
		Devices: []*descriptor.Device{
			{
				Name: "DeviceA",
				Services: []*descriptor.Service{
					{
						Name: "Info:1",
						Type: "urn:dslforum-org:service:Info:1",
						Actions: []*descriptor.Action{
							{
								Name: "GetInfo",
								Arguments: []*descriptor.Argument{
									{Name: "NewC", Direction: descriptor.Out, DataType: "string", Value: "hi", HasValue: true},
								},
							},
						},
					},
				},
			},
		},
	}
}

func TestResolveCommandPrefixMatch(t *testing.T) {
	cmd, err := resolveCommand("h")
	if err != nil || cmd != "help" {
		t.Fatalf("got %q, %v", cmd, err)
	}
}

func TestResolveCommandSingleCandidate(t *testing.T) {
	// "e" only matches "exit" so this should succeed unambiguously.
	if cmd, err := resolveCommand("e"); err != nil || cmd != "exit" {
		t.Fatalf("got %q, %v", cmd, err)
	}
}

func TestResolveCommandEmptyRejected(t *testing.T) {
	if _, err := resolveCommand(""); err == nil {
		t.Fatal("expected error for empty command")
	}
}

func TestResolveCommandUnknown(t *testing.T) {
	if _, err := resolveCommand("zzz"); err == nil {
		t.Fatal("expected error for unknown command")
	}
}

func TestSessionRunListAndExit(t *testing.T) {
	var out bytes.Buffer
	s := &Session{Object: sampleObject(), Format: soap.CSV, Out: &out}
	in := strings.NewReader("list\nexit\n")
	if err := s.Run(context.Background(), in); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "DeviceA/Info:1/GetInfo") {
		t.Fatalf("list output missing entry: %s", out.String())
	}
}

func TestSessionRunQuery(t *testing.T) {
	var out bytes.Buffer
	invoked := false
	s := &Session{
		Object: sampleObject(),
		Format: soap.CSV,
		Out:    &out,
		Invoke: func(ctx context.Context, svc *descriptor.Service, action *descriptor.Action, bindings soap.Bindings) ([]*descriptor.Argument, error) {
			invoked = true
			return nil, nil
		},
	}
	in := strings.NewReader("query DeviceA/Info/GetInfo\nexit\n")
	if err := s.Run(context.Background(), in); err != nil {
		t.Fatal(err)
	}
	if !invoked {
		t.Fatal("expected Invoke to be called")
	}
	if !strings.Contains(out.String(), "NewC") {
		t.Fatalf("expected rendered output, got %s", out.String())
	}
}

func TestSplitPath(t *testing.T) {
	dev, svc, act, err := soap.SplitPath("DeviceA/Info/GetInfo")
	if err != nil || dev != "DeviceA" || svc != "Info" || act != "GetInfo" {
		t.Fatalf("got %q %q %q %v", dev, svc, act, err)
	}
	_, _, _, err = soap.SplitPath("Info/GetInfo")
	if err != nil {
		t.Fatal(err)
	}
	if _, _, _, err := soap.SplitPath("bad"); err == nil {
		t.Fatal("expected error for malformed path")
	}
}
