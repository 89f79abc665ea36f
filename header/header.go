// Package header provides the wire formats of the headers the stack builds
// and parses. Each header type is a byte slice with accessors, following the
// same pattern: constants for field offsets, a Fields struct for Encode, and
// getters/setters that do not check bounds. Call IsValid first on untrusted
// input.
package header

const (
	// IPv6ProtocolNumber is IPv6's ethertype
	IPv6ProtocolNumber uint16 = 0x86dd

	// UDPProtocolNumber is UDP's IP protocol number
	UDPProtocolNumber uint8 = 17

	// ICMPv6ProtocolNumber is ICMPv6's IP protocol number
	ICMPv6ProtocolNumber uint8 = 58

	// NoNextHeader is the IPv6 next header value for "nothing follows"
	NoNextHeader uint8 = 59
)
