package types

import (
	"encoding/hex"
	"net"
	"strconv"
)

// Address is a byte slice cast as a string that represents the address of a
// network node. An empty Address is the unspecified address
type Address string

// String formats the address the way package net does for addresses of a
// known size, and as hex otherwise
func (a Address) String() string {
	switch len(a) {
	case net.IPv4len, net.IPv6len:
		return net.IP(a).String()
	case 0:
		return "<unspecified>"
	}
	return hex.EncodeToString([]byte(a))
}

// AddressFamily identifies the family of an Endpoint address
type AddressFamily uint8

const (
	// AFUnspec is the zero value, no family selected
	AFUnspec AddressFamily = iota

	// AFInet is the IPv4 address family
	AFInet

	// AFInet6 is the IPv6 address family
	AFInet6
)

func (f AddressFamily) String() string {
	switch f {
	case AFUnspec:
		return "unspec"
	case AFInet:
		return "inet"
	case AFInet6:
		return "inet6"
	}
	return "af(" + strconv.Itoa(int(f)) + ")"
}

// NicId is a number that uniquely identifies a Nic
type NicId int16

// NicAny selects no particular interface
const NicAny NicId = 0

// Endpoint describes one end of a datagram exchange. Family must match
// between the local and remote endpoint of a send
type Endpoint struct {
	// Family is the address family of Addr
	Family AddressFamily

	// Addr is the network address
	Addr Address

	// Nic is the interface the endpoint is bound to, NicAny for none
	Nic NicId

	// Port is the transport port. It is only used by transport sockets
	Port uint16
}

// NetType tags a packet snip with the protocol its data belongs to
type NetType int8

const (
	// NetTypeUndef marks snips whose protocol is not known yet (usually payload)
	NetTypeUndef NetType = iota

	// NetTypeNetif marks interface metadata snips
	NetTypeNetif

	// NetTypeIPv6 marks IPv6 header snips
	NetTypeIPv6

	// NetTypeUDP marks UDP header snips
	NetTypeUDP

	// NetTypeTest is reserved for tests
	NetTypeTest
)

func (t NetType) String() string {
	switch t {
	case NetTypeUndef:
		return "undef"
	case NetTypeNetif:
		return "netif"
	case NetTypeIPv6:
		return "ipv6"
	case NetTypeUDP:
		return "udp"
	case NetTypeTest:
		return "test"
	}
	return "nettype(" + strconv.Itoa(int(t)) + ")"
}
