// Package checker provides helper functions to check networking packets for
// validity
package checker

import (
	"bytes"
	"testing"

	"github.com/YaoZengzeng/sockbridge/header"
	"github.com/YaoZengzeng/sockbridge/types"
)

// NetworkChecker is a function to check a property of a network packet
type NetworkChecker func(*testing.T, []header.Network)

// TransportChecker is a function to check a property of a transport packet
type TransportChecker func(*testing.T, header.Transport)

// IPv6 checks the validity and properties of the given IPv6 packet. It is
// expected to be used in conjunction with other network checkers for specific
// properties. For example, to check the source and destination address, one
// would call:
//
// checker.IPv6(t, b, checker.SrcAddr(x), checker.DstAddr(y))
func IPv6(t *testing.T, b []byte, checkers ...NetworkChecker) {
	t.Helper()

	ipv6 := header.IPv6(b)
	if !ipv6.IsValid(len(b)) {
		t.Fatalf("Not a valid IPv6 packet")
	}

	for _, f := range checkers {
		f(t, []header.Network{ipv6})
	}
}

// SrcAddr creates a checker that checks the source address
func SrcAddr(addr types.Address) NetworkChecker {
	return func(t *testing.T, h []header.Network) {
		if a := h[0].SourceAddress(); a != addr {
			t.Fatalf("Bad source address, got %v, want %v", a, addr)
		}
	}
}

// DstAddr creates a checker that checks the destination address
func DstAddr(addr types.Address) NetworkChecker {
	return func(t *testing.T, h []header.Network) {
		if a := h[0].DestinationAddress(); a != addr {
			t.Fatalf("Bad destination address, got %v, want %v", a, addr)
		}
	}
}

// HopLimit creates a checker that checks the hop limit
func HopLimit(limit uint8) NetworkChecker {
	return func(t *testing.T, h []header.Network) {
		if l := h[0].(header.IPv6).HopLimit(); l != limit {
			t.Fatalf("Bad hop limit, got %v, want %v", l, limit)
		}
	}
}

// PayloadLen creates a checker that checks the payload length
func PayloadLen(plen int) NetworkChecker {
	return func(t *testing.T, h []header.Network) {
		if l := len(h[0].Payload()); l != plen {
			t.Fatalf("Bad payload length, got %v, want %v", l, plen)
		}
	}
}

// UDP creates a checker that checks the transport protocol is UDP, that its
// checksum verifies and potentially additional transport header fields
func UDP(checkers ...TransportChecker) NetworkChecker {
	return func(t *testing.T, h []header.Network) {
		first := h[0]
		last := h[len(h)-1]

		if p := last.TransportProtocol(); p != header.UDPProtocolNumber {
			t.Fatalf("Bad protocol, got %v, want %v", p, header.UDPProtocolNumber)
		}

		udp := header.UDP(last.Payload())
		if len(udp) < header.UDPMinimumSize {
			t.Fatalf("Short UDP datagram: %d bytes", len(udp))
		}
		if l := int(udp.Length()); l != len(udp) {
			t.Fatalf("Bad UDP length, got %v, want %v", l, len(udp))
		}

		// Verify the checksum
		xsum := header.PseudoHeaderChecksum(header.UDPProtocolNumber, first.SourceAddress(), first.DestinationAddress(), uint16(len(udp)))
		xsum = header.Checksum(udp.Payload(), xsum)
		if xsum = udp.CalculateChecksum(xsum); xsum != 0xffff {
			t.Fatalf("Bad checksum: 0x%x, checksum in datagram: 0x%x", xsum, udp.Checksum())
		}

		// Run the transport checkers
		for _, f := range checkers {
			f(t, udp)
		}
	}
}

// SrcPort creates a checker that checks the source port
func SrcPort(port uint16) TransportChecker {
	return func(t *testing.T, h header.Transport) {
		if p := h.SourcePort(); p != port {
			t.Fatalf("Bad source port, got %v, want %v", p, port)
		}
	}
}

// DstPort creates a checker that checks the destination port
func DstPort(port uint16) TransportChecker {
	return func(t *testing.T, h header.Transport) {
		if p := h.DestinationPort(); p != port {
			t.Fatalf("Bad destination port, got %v, want %v", p, port)
		}
	}
}

// Payload creates a checker that checks the payload
func Payload(want []byte) TransportChecker {
	return func(t *testing.T, h header.Transport) {
		if got := h.Payload(); !bytes.Equal(got, want) {
			t.Fatalf("Bad payload, got %x, want %x", got, want)
		}
	}
}
