// Package telemetry centralizes the verbosity-to-log-level mapping shared
// by every component that takes an hclog.Logger: the CLI's -v flag (spec
// §6) counts occurrences, and that count is turned into an hclog.Level
// here rather than at each call site.
package telemetry

import (
	"io"
	"os"

	"github.com/hashicorp/go-hclog"
)

// LevelForVerbosity maps a -v occurrence count to an hclog level per
// the error-handling design's expansion: 0 disables logging entirely, 1 logs errors only,
// 2 adds warnings (including wrapped low-level causes), 3 or more
// switches to Trace, which adds byte positions and request/response
// sizes at component boundaries.
func LevelForVerbosity(count int) hclog.Level {
	switch {
	case count <= 0:
		return hclog.Off
	case count == 1:
		return hclog.Error
	case count == 2:
		return hclog.Warn
	default:
		return hclog.Trace
	}
}

// New builds the logger every command-path component shares, writing to
// w (typically os.Stderr so stdout stays free for rendered query output)
// at the level implied by verbosity.
func New(verbosity int, w io.Writer) hclog.Logger {
	if w == nil {
		w = os.Stderr
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:            "tr64c",
		Level:           LevelForVerbosity(verbosity),
		Output:          w,
		IncludeLocation: verbosity >= 3,
	})
}
