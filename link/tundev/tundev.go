//go:build linux

// Package tundev connects a channel endpoint to a Linux tun device. Frames
// the stack transmits are written to the device and IPv6 frames read from
// it are injected into the stack.
package tundev

import (
	"context"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/YaoZengzeng/sockbridge/header"
	"github.com/YaoZengzeng/sockbridge/link/channel"
)

// pollInterval bounds how long a read waits before checking for
// cancellation, in milliseconds
const pollInterval = 100

// Device is an open tun device
type Device struct {
	// fd is the file descriptor used to send and receive packets
	fd int

	name string

	// mtu (maximum transmission unit) is the maximum size of a packet
	mtu uint32
}

// Open opens the tun device name. The device must exist and be up
func Open(name string) (*Device, error) {
	mtu, err := getmtu(name)
	if err != nil {
		return nil, err
	}

	fd, err := open(name)
	if err != nil {
		return nil, err
	}

	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, err
	}

	return &Device{fd: fd, name: name, mtu: mtu}, nil
}

// Name returns the name of the device
func (d *Device) Name() string {
	return d.name
}

// MTU returns the value read from the device when it was opened
func (d *Device) MTU() uint32 {
	return d.mtu
}

// Close closes the device
func (d *Device) Close() error {
	return unix.Close(d.fd)
}

// Attach pumps frames between the device and ep until ctx is done or ep
// stops. Frames that are not IPv6 are dropped
func (d *Device) Attach(ctx context.Context, ep *channel.Endpoint) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		buf := make([]byte, d.mtu)
		for {
			n, err := d.read(ctx, buf)
			if err != nil {
				return err
			}
			if n == 0 {
				return nil
			}
			if header.IPVersion(buf[:n]) != header.IPv6Version {
				log.WithField("dev", d.name).Debug("tundev: dropping non-IPv6 frame")
				continue
			}
			if err := ep.Inject(ep.Nic(), buf[:n]); err != nil {
				log.WithError(err).WithField("dev", d.name).Debug("tundev: inject failed")
			}
		}
	})

	g.Go(func() error {
		for {
			select {
			case pkt, ok := <-ep.C:
				if !ok {
					return nil
				}
				if err := d.write(pkt.Frame); err != nil {
					log.WithError(err).WithField("dev", d.name).Warn("tundev: write failed")
				}
			case <-ctx.Done():
				return nil
			}
		}
	})

	return g.Wait()
}

// read reads one frame from the non-blocking descriptor, polling until it is
// readable or ctx is done. It returns 0 when ctx is done
func (d *Device) read(ctx context.Context, buf []byte) (int, error) {
	fds := []unix.PollFd{{Fd: int32(d.fd), Events: unix.POLLIN}}
	for {
		n, err := unix.Read(d.fd, buf)
		if err == nil {
			return n, nil
		}
		if err != unix.EAGAIN && err != unix.EINTR {
			return 0, translate(err)
		}

		if ctx.Err() != nil {
			return 0, nil
		}
		if _, err := unix.Poll(fds, pollInterval); err != nil && err != unix.EINTR {
			return 0, translate(err)
		}
	}
}

// write writes a frame to the descriptor. It fails if partial data is
// written
func (d *Device) write(frame []byte) error {
	n, err := unix.Write(d.fd, frame)
	if err != nil {
		return translate(err)
	}
	if n != len(frame) {
		return TranslateErrno(unix.EMSGSIZE)
	}
	return nil
}

// getmtu determines the MTU of a network interface device
func getmtu(name string) (uint32, error) {
	fd, err := unix.Socket(unix.AF_INET6, unix.SOCK_DGRAM, 0)
	if err != nil {
		return 0, err
	}
	defer unix.Close(fd)

	ifr, err := unix.NewIfreq(name)
	if err != nil {
		return 0, err
	}
	if err := unix.IoctlIfreq(fd, unix.SIOCGIFMTU, ifr); err != nil {
		return 0, err
	}

	return ifr.Uint32(), nil
}

// open opens the specified tun device and returns its file descriptor
func open(name string) (int, error) {
	fd, err := unix.Open("/dev/net/tun", unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return -1, err
	}

	ifr, err := unix.NewIfreq(name)
	if err != nil {
		unix.Close(fd)
		return -1, err
	}
	ifr.SetUint16(unix.IFF_TUN | unix.IFF_NO_PI)
	if err := unix.IoctlIfreq(fd, unix.TUNSETIFF, ifr); err != nil {
		unix.Close(fd)
		return -1, err
	}

	return fd, nil
}
