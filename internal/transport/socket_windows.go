//go:build windows

package transport

import (
	"net"

	"github.com/hashicorp/go-hclog"
)

// tuneSocket is a no-op on Windows: SO_REUSEADDR has different semantics
// there and TCP_QUICKACK does not exist.
func tuneSocket(conn *net.TCPConn, logger hclog.Logger) {}
