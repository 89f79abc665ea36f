package stack

import (
	"github.com/YaoZengzeng/sockbridge/pktbuf"
	"github.com/YaoZengzeng/sockbridge/types"
)

// HeaderBuilder is the interface that needs to be implemented by network
// protocols (e.g., ipv6) that build headers for outbound packets
type HeaderBuilder interface {
	// NetType returns the net type of the header snips it builds
	NetType() types.NetType

	// Build prepends a header for payload with the given source and
	// destination addresses. payload is consumed whatever the outcome: on
	// failure it has been released
	Build(pool *pktbuf.Pool, payload *pktbuf.Snip, src, dst types.Address) (*pktbuf.Snip, error)

	// SetNextHeader sets the next header (or protocol) field of a header
	// snip built by Build
	SetNextHeader(hdr *pktbuf.Snip, nh uint8)
}

// HeaderBuilderFactory functions are used by the stack to instantiate header
// builders
type HeaderBuilderFactory func() HeaderBuilder
