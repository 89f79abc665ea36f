package main

import (
	"context"
	"net"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/YaoZengzeng/sockbridge/config"
	"github.com/YaoZengzeng/sockbridge/link/channel"
	_ "github.com/YaoZengzeng/sockbridge/network/ipv6"
	"github.com/YaoZengzeng/sockbridge/ports"
	"github.com/YaoZengzeng/sockbridge/sock"
	sockudp "github.com/YaoZengzeng/sockbridge/sock/udp"
	"github.com/YaoZengzeng/sockbridge/stack"
	"github.com/YaoZengzeng/sockbridge/transport/udp"
	"github.com/YaoZengzeng/sockbridge/types"
)

// pollTimeout bounds every receive of a server loop, in microseconds, so it
// notices cancellation
const pollTimeout = 100000

var defaultAddr = types.Address(net.ParseIP("fe80::1"))

func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if *configPath == "" {
		cfg = config.Default()
	} else if cfg, err = config.Load(*configPath); err != nil {
		return nil, err
	}
	cfg.Apply()
	return cfg, nil
}

// env is a running stack with one channel link and the udp layer
type env struct {
	s     *stack.Stack
	ep    *channel.Endpoint
	layer *udp.Layer
	pm    *ports.PortManager
	addr  types.Address

	g      *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc
}

func newEnv(ctx context.Context, cfg *config.Config) (*env, error) {
	s := stack.New(cfg.StackOptions())

	opts := cfg.ChannelOptions()
	if len(opts.Addresses) == 0 {
		opts.Addresses = []types.Address{defaultAddr}
	}
	ep, err := channel.New(s, opts)
	if err != nil {
		return nil, err
	}

	e := &env{
		s:     s,
		ep:    ep,
		layer: udp.New(s),
		pm:    ports.NewPortManager(),
		addr:  opts.Addresses[0],
	}
	ctx, e.cancel = context.WithCancel(ctx)
	e.g, e.ctx = errgroup.WithContext(ctx)
	e.g.Go(func() error { return ep.Run(e.ctx) })
	e.g.Go(func() error { return e.layer.Run(e.ctx) })

	log.WithFields(log.Fields{"addr": e.addr, "nic": ep.Nic(), "mtu": ep.MTU()}).Info("stack up")
	return e, nil
}

// bind opens a udp socket on its own task inbox
func (e *env) bind(port uint16) (*sockudp.Conn, error) {
	return sockudp.New(sock.New(e.s, nil), e.pm, types.Endpoint{Addr: e.addr, Port: port})
}

// serve answers every datagram received on conn with the reply of handle
// until the env stops. A nil reply sends nothing
func (e *env) serve(conn *sockudp.Conn, handle func([]byte) []byte) {
	e.g.Go(func() error {
		buf := make([]byte, e.ep.MTU())
		for e.ctx.Err() == nil {
			n, remote, err := conn.RecvFrom(buf, pollTimeout)
			if err == types.ErrTimeout {
				continue
			}
			if err == types.ErrClosedForReceive {
				return nil
			}
			if err != nil {
				log.WithError(err).Warn("server receive failed")
				continue
			}
			reply := handle(buf[:n])
			if reply == nil {
				continue
			}
			if _, err := conn.SendTo(reply, remote); err != nil {
				log.WithError(err).Warn("server send failed")
			}
		}
		return nil
	})
}

func (e *env) close() error {
	e.cancel()
	return e.g.Wait()
}

func since(start time.Time) string {
	return time.Since(start).Round(time.Microsecond).String()
}
