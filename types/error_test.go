package types

import (
	"errors"
	"fmt"
	"testing"

	"golang.org/x/sys/unix"
)

func TestCode(t *testing.T) {
	for _, test := range []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: 0},
		{name: "would-block", err: ErrWouldBlock, want: -int(unix.EAGAIN)},
		{name: "timeout", err: ErrTimeout, want: -int(unix.ETIMEDOUT)},
		{name: "bad-state", err: ErrInvalidEndpointState, want: -int(unix.EINVAL)},
		{name: "stray-message", err: ErrUnexpectedMessage, want: -int(unix.EINVAL)},
		{name: "family", err: ErrAddressFamilyNotSupported, want: -int(unix.EAFNOSUPPORT)},
		{name: "nomem", err: ErrNoMemory, want: -int(unix.ENOMEM)},
		{name: "badmsg", err: ErrBadMessage, want: -int(unix.EBADMSG)},
		{name: "report", err: &ReportError{Status: uint32(unix.EHOSTUNREACH)}, want: -int(unix.EHOSTUNREACH)},
		{name: "wrapped", err: fmt.Errorf("recv: %w", ErrTimeout), want: -int(unix.ETIMEDOUT)},
		{name: "errno", err: unix.EPERM, want: -int(unix.EPERM)},
		{name: "foreign", err: errors.New("boom"), want: -int(unix.EINVAL)},
	} {
		t.Run(test.name, func(t *testing.T) {
			if got := Code(test.err); got != test.want {
				t.Errorf("Code(%v) = %d, want %d", test.err, got, test.want)
			}
		})
	}
}

func TestAddressString(t *testing.T) {
	a := Address("\xfe\x80\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x01")
	if got, want := a.String(), "fe80::1"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if got, want := Address("").String(), "<unspecified>"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
