// Package udp provides datagram sockets on top of sock. A Conn reserves a
// local port, registers for the udp packets addressed to it and moves
// payloads between byte slices and packet chains.
package udp

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/YaoZengzeng/sockbridge/header"
	"github.com/YaoZengzeng/sockbridge/pktbuf"
	"github.com/YaoZengzeng/sockbridge/ports"
	"github.com/YaoZengzeng/sockbridge/sock"
	"github.com/YaoZengzeng/sockbridge/types"
)

// Conn is a udp socket bound to a local endpoint
type Conn struct {
	sock  *sock.Sock
	ports *ports.PortManager
	local types.Endpoint
	reg   sock.Reg

	mu     sync.Mutex
	closed bool
}

// New binds a udp socket to local. A zero port picks an ephemeral one and an
// unspecified family means IPv6
func New(s *sock.Sock, pm *ports.PortManager, local types.Endpoint) (*Conn, error) {
	if local.Family == types.AFUnspec {
		local.Family = types.AFInet6
	}
	if local.Family != types.AFInet6 {
		return nil, types.ErrAddressFamilyNotSupported
	}

	port, err := pm.ReservePort([]types.AddressFamily{local.Family}, types.NetTypeUDP, local.Addr, local.Port)
	if err != nil {
		return nil, err
	}
	local.Port = port

	c := &Conn{sock: s, ports: pm, local: local}
	s.Create(&c.reg, types.NetTypeUDP, uint32(port))

	log.WithFields(log.Fields{"addr": local.Addr, "port": port}).Debug("udp: bound")
	return c, nil
}

// LocalEndpoint returns the endpoint the socket is bound to
func (c *Conn) LocalEndpoint() types.Endpoint {
	return c.local
}

// RecvFrom waits up to timeout microseconds for a datagram and copies its
// payload into buf. A payload longer than buf is truncated
func (c *Conn) RecvFrom(buf []byte, timeout uint32) (int, types.Endpoint, error) {
	var remote types.Endpoint
	if c.isClosed() {
		return 0, remote, types.ErrClosedForReceive
	}

	pkt, err := c.sock.Recv(&c.reg, timeout, &remote)
	if err != nil {
		return 0, remote, err
	}
	defer c.sock.Pool().Release(pkt)

	hdr := pktbuf.Search(pkt, types.NetTypeUDP)
	if hdr == nil || hdr.Size() < header.UDPMinimumSize {
		return 0, remote, types.ErrMalformedHeader
	}
	remote.Port = header.UDP(hdr.Data).SourcePort()

	n := 0
	for s := hdr.Next; s != nil && n < len(buf); s = s.Next {
		n += copy(buf[n:], s.Data)
	}
	return n, remote, nil
}

// SendTo sends data to remote. It returns the number of payload bytes sent
func (c *Conn) SendTo(data []byte, remote types.Endpoint) (int, error) {
	if c.isClosed() {
		return 0, types.ErrInvalidEndpointState
	}
	if remote.Port == 0 {
		return 0, types.ErrBadAddress
	}

	pool := c.sock.Pool()
	payload, err := pool.Add(nil, data, len(data), types.NetTypeUndef)
	if err != nil {
		return 0, err
	}
	hdr, err := pool.Add(payload, nil, header.UDPMinimumSize, types.NetTypeUDP)
	if err != nil {
		pool.Release(payload)
		return 0, err
	}
	header.UDP(hdr.Data).Encode(&header.UDPFields{
		SrcPort: c.local.Port,
		DstPort: remote.Port,
	})

	local := c.local
	if _, err := c.sock.Send(hdr, &local, &remote, header.UDPProtocolNumber); err != nil {
		return 0, err
	}
	return len(data), nil
}

// Close unregisters the socket and releases its port
func (c *Conn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.sock.Close(&c.reg)
	c.ports.ReleasePort([]types.AddressFamily{c.local.Family}, types.NetTypeUDP, c.local.Addr, c.local.Port)
}

func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
