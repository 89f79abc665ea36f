package mbox

import (
	"strconv"

	"github.com/YaoZengzeng/sockbridge/pktbuf"
)

// MsgType is the tag carried by every message
type MsgType uint16

const (
	// TypeRcv delivers a received packet up the stack
	TypeRcv MsgType = 0x0201

	// TypeSnd hands a packet down the stack for sending
	TypeSnd MsgType = 0x0202

	// TypeErrReport carries the completion status of a send
	TypeErrReport MsgType = 0x0206

	// TypeTimeout is the sentinel posted by receive timers
	TypeTimeout MsgType = 0x8474
)

func (t MsgType) String() string {
	switch t {
	case TypeRcv:
		return "rcv"
	case TypeSnd:
		return "snd"
	case TypeErrReport:
		return "err-report"
	case TypeTimeout:
		return "timeout"
	}
	return "0x" + strconv.FormatUint(uint64(t), 16)
}

// Msg is a message queued in a Mailbox. The set of implementations is
// closed: PacketMsg, TimeoutMsg, ErrReportMsg and RawMsg
type Msg interface {
	Type() MsgType
	msg()
}

// PacketMsg transfers ownership of a packet chain to the receiver
type PacketMsg struct {
	// Kind is TypeRcv or TypeSnd
	Kind MsgType
	Pkt  *pktbuf.Snip
}

func (m PacketMsg) Type() MsgType { return m.Kind }
func (PacketMsg) msg()            {}

// TimeoutMsg is posted by a receive timer. Magic identifies the timer that
// posted it
type TimeoutMsg struct {
	Magic uint32
}

func (TimeoutMsg) Type() MsgType { return TypeTimeout }
func (TimeoutMsg) msg()          {}

// ErrReportMsg reports the outcome of a send to the sending task
type ErrReportMsg struct {
	Status uint32

	// Pkt is the snip the report was subscribed on. It only identifies the
	// send: the chain may be released by the time the report is read
	Pkt *pktbuf.Snip
}

func (ErrReportMsg) Type() MsgType { return TypeErrReport }
func (ErrReportMsg) msg()          {}

// RawMsg is any other message exchanged between tasks
type RawMsg struct {
	Kind  MsgType
	Value uint32
}

func (m RawMsg) Type() MsgType { return m.Kind }
func (RawMsg) msg()            {}
