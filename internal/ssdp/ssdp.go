// Package ssdp implements the SSDP discovery contract's discovery path: join the SSDP
// multicast group on a chosen IPv4 interface, send an M-SEARCH, and parse
// each reply as an HTTP response via internal/httpparse, emitting a
// discovery record for every reply whose ST matches the target string.
//
// The transport setup follows the usual multicast UDP socket construction
// (bind, wrap with ipv4.PacketConn, join group) on SSDP's
// 239.255.255.250:1900 with HTTP/1.1 framing.
package ssdp

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"golang.org/x/net/ipv4"

	"github.com/tr64go/tr64c/internal/httpparse"
)

const (
	MulticastAddr = "239.255.255.250"
	Port          = 1900

	TargetDevice = "urn:dslforum-org:device:InternetGatewayDevice:1"

	// TimeoutResolution bounds how long the receive loop blocks between
	// checks of the overall deadline and of ctx cancellation.
	TimeoutResolution = 100 * time.Millisecond

	minMX = 1
	maxMX = 5
)

// NetworkError reports a socket-level failure distinct from a malformed
// reply, matching the transport package's own NetworkError shape.
type NetworkError struct {
	Operation string
	Err       error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("ssdp: %s: %v", e.Operation, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Record is one discovery reply matching the requested search target.
type Record struct {
	Server   string
	Location string
}

// clampMX implements the SSDP discovery contract's MX derivation: clamp(timeout/1000 - 1, 1, 5).
func clampMX(timeout time.Duration) int {
	mx := int(timeout/time.Second) - 1
	if mx < minMX {
		mx = minMX
	}
	if mx > maxMX {
		mx = maxMX
	}
	return mx
}

// Discover binds a UDP socket on iface, joins the SSDP multicast group,
// sends one M-SEARCH for TargetDevice, and returns every matching reply
// received before timeout elapses or ctx is canceled.
func Discover(ctx context.Context, iface *net.Interface, localAddr net.IP, timeout time.Duration) ([]Record, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: localAddr, Port: 0})
	if err != nil {
		return nil, &NetworkError{Operation: "bind socket", Err: err}
	}
	defer conn.Close()

	p := ipv4.NewPacketConn(conn)
	if err := p.SetMulticastLoopback(false); err != nil {
		return nil, &NetworkError{Operation: "disable multicast loopback", Err: err}
	}
	if err := p.SetMulticastTTL(3); err != nil {
		return nil, &NetworkError{Operation: "set multicast ttl", Err: err}
	}

	group := &net.UDPAddr{IP: net.ParseIP(MulticastAddr), Port: Port}
	if err := p.JoinGroup(iface, group); err != nil {
		return nil, &NetworkError{Operation: "join multicast group", Err: err}
	}
	defer p.LeaveGroup(iface, group)

	req := buildMSearch(clampMX(timeout))
	if _, err := conn.WriteToUDP(req, group); err != nil {
		return nil, &NetworkError{Operation: "send m-search", Err: err}
	}

	var records []Record
	buf := make([]byte, 65536)
	deadline := time.Now().Add(timeout)

	for {
		select {
		case <-ctx.Done():
			return records, ctx.Err()
		default:
		}

		now := time.Now()
		if !now.Before(deadline) {
			return records, nil
		}

		waitFor := TimeoutResolution
		if remaining := deadline.Sub(now); remaining < waitFor {
			waitFor = remaining
		}
		if err := conn.SetReadDeadline(now.Add(waitFor)); err != nil {
			return nil, &NetworkError{Operation: "set read deadline", Err: err}
		}

		n, srcAddr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			return nil, &NetworkError{Operation: "receive reply", Err: err}
		}
		if srcAddr.Port != Port {
			continue
		}

		if rec, ok := parseReply(buf[:n]); ok {
			records = append(records, rec)
		}
	}
}

func buildMSearch(mx int) []byte {
	host := net.JoinHostPort(MulticastAddr, strconv.Itoa(Port))
	req := "M-SEARCH * HTTP/1.1\r\n" +
		"HOST: " + host + "\r\n" +
		"MAN: \"ssdp:discover\"\r\n" +
		"MX: " + strconv.Itoa(mx) + "\r\n" +
		"ST: " + TargetDevice + "\r\n" +
		"\r\n"
	return []byte(req)
}

// parseReply implements the SSDP discovery contract's per-packet contract: parse as an HTTP
// response, extract ST/SERVER/LOCATION, and accept it only on status 200
// with a matching ST.
func parseReply(datagram []byte) (Record, bool) {
	msg, err := httpparse.Parse(datagram)
	if err != nil || msg.IsRequest || msg.StatusCode != 200 {
		return Record{}, false
	}
	st, ok := msg.Get(datagram, "ST")
	if !ok || st != TargetDevice {
		return Record{}, false
	}
	server, _ := msg.Get(datagram, "SERVER")
	location, ok := msg.Get(datagram, "LOCATION")
	if !ok {
		return Record{}, false
	}
	return Record{Server: server, Location: location}, true
}
