//go:build linux

package tundev

import (
	"golang.org/x/sys/unix"

	"github.com/YaoZengzeng/sockbridge/types"
)

var translations = map[unix.Errno]*types.Error{
	unix.EINVAL:          types.ErrInvalidEndpointState,
	unix.EADDRINUSE:      types.ErrPortInUse,
	unix.EADDRNOTAVAIL:   types.ErrBadAddress,
	unix.EWOULDBLOCK:     types.ErrWouldBlock,
	unix.ETIMEDOUT:       types.ErrTimeout,
	unix.EMSGSIZE:        types.ErrMessageTooLong,
	unix.ENOMEM:          types.ErrNoMemory,
	unix.ENOBUFS:         types.ErrNoMemory,
	unix.EBADF:           types.ErrClosedForReceive,
	unix.ENODEV:          types.ErrUnknownNicId,
	unix.EAFNOSUPPORT:    types.ErrAddressFamilyNotSupported,
	unix.EPROTONOSUPPORT: types.ErrUnknownProtocol,
}

// TranslateErrno translates an errno from the unix package into a
// *types.Error. Unrecognized errnos become ErrInvalidEndpointState
func TranslateErrno(e unix.Errno) error {
	if err, ok := translations[e]; ok {
		return err
	}

	return types.ErrInvalidEndpointState
}

func translate(err error) error {
	if errno, ok := err.(unix.Errno); ok {
		return TranslateErrno(errno)
	}
	return err
}
