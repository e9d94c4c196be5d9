package telemetry

import (
	"bytes"
	"testing"

	"github.com/hashicorp/go-hclog"
)

func TestLevelForVerbosity(t *testing.T) {
	cases := []struct {
		count int
		want  hclog.Level
	}{
		{0, hclog.Off},
		{1, hclog.Error},
		{2, hclog.Warn},
		{3, hclog.Trace},
		{9, hclog.Trace},
	}
	for _, c := range cases {
		if got := LevelForVerbosity(c.count); got != c.want {
			t.Errorf("LevelForVerbosity(%d) = %v, want %v", c.count, got, c.want)
		}
	}
}

func TestNewWritesToProvidedWriter(t *testing.T) {
	var buf bytes.Buffer
	logger := New(2, &buf)
	logger.Warn("disk on fire")
	if buf.Len() == 0 {
		t.Fatal("expected log output at Warn level")
	}
}

func TestNewSuppressesOutputAtZeroVerbosity(t *testing.T) {
	var buf bytes.Buffer
	logger := New(0, &buf)
	logger.Error("should not appear")
	if buf.Len() != 0 {
		t.Fatalf("expected no output, got %q", buf.String())
	}
}
