//go:build linux

package transport

import (
	"golang.org/x/sys/unix"

	"github.com/hashicorp/go-hclog"
)

// setQuickAck asks the kernel to ACK immediately instead of coalescing,
// avoiding the Nagle-adjacent delay that otherwise stalls the first bytes
// of a SOAP response behind a delayed ACK timer.
func setQuickAck(fd int, logger hclog.Logger) {
	if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_QUICKACK, 1); err != nil {
		logger.Debug("tune socket: TCP_QUICKACK", "error", err)
	}
}
