// Package sniffer logs the frames crossing a link endpoint. Frames are
// decoded with gopacket and logged as one structured line each
package sniffer

import (
	"sync/atomic"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	log "github.com/sirupsen/logrus"

	"github.com/YaoZengzeng/sockbridge/types"
)

// LogPackets switches packet logging on (1) or off (0)
var LogPackets uint32 = 1

// Summary is what LogPacket extracts from a frame
type Summary struct {
	Src, Dst         string
	Transport        string
	SrcPort, DstPort uint16
	Length           int
	HopLimit         uint8
}

// Decode summarizes an IPv6 frame. ok is false if the frame does not start
// with a decodable IPv6 header
func Decode(frame []byte) (s Summary, ok bool) {
	pkt := gopacket.NewPacket(frame, layers.LayerTypeIPv6, gopacket.DecodeOptions{Lazy: true, NoCopy: true})
	ip, ok := pkt.Layer(layers.LayerTypeIPv6).(*layers.IPv6)
	if !ok {
		return s, false
	}

	s.Src = ip.SrcIP.String()
	s.Dst = ip.DstIP.String()
	s.Length = int(ip.Length)
	s.HopLimit = ip.HopLimit
	s.Transport = ip.NextHeader.String()

	switch t := pkt.TransportLayer().(type) {
	case *layers.UDP:
		s.Transport = "udp"
		s.SrcPort = uint16(t.SrcPort)
		s.DstPort = uint16(t.DstPort)
		s.Length = len(t.Payload)
	case *layers.TCP:
		s.Transport = "tcp"
		s.SrcPort = uint16(t.SrcPort)
		s.DstPort = uint16(t.DstPort)
		s.Length = len(t.Payload)
	}
	return s, true
}

// LogPacket logs the given frame
func LogPacket(prefix string, nic types.NicId, frame []byte) {
	if atomic.LoadUint32(&LogPackets) != 1 {
		return
	}

	s, ok := Decode(frame)
	if !ok {
		log.WithFields(log.Fields{"nic": nic, "len": len(frame)}).Infof("%s unknown network protocol", prefix)
		return
	}

	log.WithFields(log.Fields{
		"nic":   nic,
		"proto": s.Transport,
		"src":   s.Src,
		"dst":   s.Dst,
		"sport": s.SrcPort,
		"dport": s.DstPort,
		"len":   s.Length,
		"hlim":  s.HopLimit,
	}).Info(prefix)
}
