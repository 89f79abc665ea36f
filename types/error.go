package types

import (
	"errors"

	"golang.org/x/sys/unix"
)

// Error represents an error in the sockbridge error space. Using a special
// type ensures that errors outside of this space are not accidentally
// introduced. Every Error maps to an errno so callers that speak the
// negative error code convention can use Code
type Error struct {
	msg   string
	errno unix.Errno
}

// Error implements error.Error
func (e *Error) Error() string {
	return e.msg
}

// Errno returns the errno the error translates to
func (e *Error) Errno() unix.Errno {
	return e.errno
}

// Code returns the negative error code of e
func (e *Error) Code() int {
	return -int(e.errno)
}

var (
	ErrInvalidEndpointState      = &Error{"endpoint is in invalid state", unix.EINVAL}
	ErrUnexpectedMessage         = &Error{"unexpected message on endpoint queue", unix.EINVAL}
	ErrWouldBlock                = &Error{"operation would block", unix.EAGAIN}
	ErrTimeout                   = &Error{"operation timed out", unix.ETIMEDOUT}
	ErrAddressFamilyNotSupported = &Error{"address family not supported by protocol", unix.EAFNOSUPPORT}
	ErrNoMemory                  = &Error{"packet buffer exhausted", unix.ENOMEM}
	ErrBadMessage                = &Error{"no consumer for message", unix.EBADMSG}
	ErrMessageTooLong            = &Error{"message too long", unix.EMSGSIZE}
	ErrNoPortAvailable           = &Error{"no ports are available", unix.EAGAIN}
	ErrPortInUse                 = &Error{"port is in use", unix.EADDRINUSE}
	ErrMalformedHeader           = &Error{"header is malformed", unix.EBADMSG}
	ErrUnknownProtocol           = &Error{"unknown protocol", unix.EPROTONOSUPPORT}
	ErrClosedForReceive          = &Error{"endpoint is closed for receive", unix.EBADF}
	ErrDuplicateNicId            = &Error{"duplicate nic id", unix.EEXIST}
	ErrUnknownNicId              = &Error{"unknown nic id", unix.ENODEV}
	ErrBadAddress                = &Error{"bad address", unix.EADDRNOTAVAIL}
)

// ReportError carries the status of an asynchronous send-completion report
// that was not a success. The status is an errno value
type ReportError struct {
	Status uint32
}

func (e *ReportError) Error() string {
	return "send failed: " + unix.Errno(e.Status).Error()
}

// Code returns the report status as a negative error code
func (e *ReportError) Code() int {
	return -int(e.Status)
}

// Code translates err into the negative error code convention: 0 for nil,
// the error's own code when it has one, and -EINVAL otherwise
func Code(err error) int {
	if err == nil {
		return 0
	}
	var c interface{ Code() int }
	if errors.As(err, &c) {
		return c.Code()
	}
	var errno unix.Errno
	if errors.As(err, &errno) {
		return -int(errno)
	}
	return -int(unix.EINVAL)
}
