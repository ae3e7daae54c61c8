// Package netutil provides low-level non-blocking socket helpers and the
// IPv4 address parsing the reactor depends on. It is the Go analogue of
// original_source/TcpServer.hpp's AddrInfo plus the raw syscall glue
// TcpServer.cpp inlines directly into init()/run().
package netutil

import (
	"errors"
	"net"
)

// ErrInvalidAddress is returned when the textual IPv4 address does not parse.
var ErrInvalidAddress = errors.New("netutil: invalid IPv4 address")

// AddrInfo is an immutable, parsed IPv4 dotted-quad address plus a 16-bit
// port. Construction fails with ErrInvalidAddress if the textual form
// cannot be parsed, mirroring original_source/TcpServer.cpp's
// AddrInfo::AddrInfo throwing InvalidAddrException.
type AddrInfo struct {
	text string
	ip   [4]byte
	port uint16
}

// ParseAddrInfo parses a dotted-quad IPv4 address and port into an AddrInfo.
func ParseAddrInfo(ipv4 string, port uint16) (AddrInfo, error) {
	ip := net.ParseIP(ipv4)
	if ip == nil {
		return AddrInfo{}, ErrInvalidAddress
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return AddrInfo{}, ErrInvalidAddress
	}
	var a AddrInfo
	a.text = ipv4
	copy(a.ip[:], ip4)
	a.port = port
	return a, nil
}

// String returns the dotted-quad form of the address.
func (a AddrInfo) String() string { return a.text }

// Port returns the 16-bit port.
func (a AddrInfo) Port() uint16 { return a.port }

// Bytes returns the raw 4-byte big-endian IPv4 address.
func (a AddrInfo) Bytes() [4]byte { return a.ip }
