//go:build !windows

package transport

import (
	"net"

	"golang.org/x/sys/unix"

	"github.com/hashicorp/go-hclog"
)

// tuneSocket applies SO_REUSEADDR and, on Linux, TCP_QUICKACK (see
// setQuickAck). TR-064 gateways are typically behind a short
// access link, so quick-acking delayed ACKs shaves noticeable latency off
// each SOAP round trip; failures are logged and otherwise ignored, since
// none of these options are required for correctness.
func tuneSocket(conn *net.TCPConn, logger hclog.Logger) {
	raw, err := conn.SyscallConn()
	if err != nil {
		logger.Debug("tune socket: syscall conn unavailable", "error", err)
		return
	}
	ctrlErr := raw.Control(func(fd uintptr) {
		if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
			logger.Debug("tune socket: SO_REUSEADDR", "error", err)
		}
		setQuickAck(int(fd), logger)
	})
	if ctrlErr != nil {
		logger.Debug("tune socket: control", "error", ctrlErr)
	}
}
