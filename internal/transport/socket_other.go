//go:build !linux && !windows

package transport

import "github.com/hashicorp/go-hclog"

// setQuickAck is Linux-specific (TCP_QUICKACK); other unix platforms have
// no equivalent knob worth reaching for here.
func setQuickAck(fd int, logger hclog.Logger) {}
