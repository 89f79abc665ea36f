package sniffer

import (
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	ip := &layers.IPv6{
		Version:    6,
		NextHeader: layers.IPProtocolUDP,
		HopLimit:   64,
		SrcIP:      net.ParseIP("fe80::1"),
		DstIP:      net.ParseIP("fe80::2"),
	}
	udp := &layers.UDP{SrcPort: 5353, DstPort: 53}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, ip, udp, gopacket.Payload("abc")))

	s, ok := Decode(buf.Bytes())
	require.True(t, ok)
	assert.Equal(t, Summary{
		Src:       "fe80::1",
		Dst:       "fe80::2",
		Transport: "udp",
		SrcPort:   5353,
		DstPort:   53,
		Length:    3,
		HopLimit:  64,
	}, s)

	// logging must not panic on garbage
	LogPacket("recv", 1, []byte{0x60})
	LogPacket("send", 1, buf.Bytes())
}
