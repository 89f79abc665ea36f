package main

import (
	"context"
	"flag"

	"github.com/google/subcommands"
	"github.com/pterm/pterm"
	log "github.com/sirupsen/logrus"

	"github.com/YaoZengzeng/sockbridge/link/tundev"
)

func registerPlatform() {
	subcommands.Register(&tunCmd{}, "")
}

type tunCmd struct {
	dev  string
	port int
}

func (*tunCmd) Name() string     { return "tun" }
func (*tunCmd) Synopsis() string { return "udp echo server on a tun device" }
func (*tunCmd) Usage() string {
	return "tun [-dev name] [-port n]\n"
}

func (c *tunCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.dev, "dev", "tun0", "tun device")
	f.IntVar(&c.port, "port", echoPort, "udp port to echo on")
}

func (c *tunCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := loadConfig()
	if err != nil {
		log.WithError(err).Error("tun: loading config")
		return subcommands.ExitUsageError
	}

	dev, err := tundev.Open(c.dev)
	if err != nil {
		log.WithError(err).WithField("dev", c.dev).Error("tun: open")
		return subcommands.ExitFailure
	}
	defer dev.Close()

	cfg.Link.Loopback = false
	cfg.Link.MTU = dev.MTU()

	e, err := newEnv(ctx, cfg)
	if err != nil {
		log.WithError(err).Error("tun: starting stack")
		return subcommands.ExitFailure
	}
	defer e.close()

	server, err := e.bind(uint16(c.port))
	if err != nil {
		log.WithError(err).Error("tun: bind")
		return subcommands.ExitFailure
	}
	defer server.Close()
	e.serve(server, func(b []byte) []byte { return b })

	pterm.DefaultHeader.Println("sockdemo tun")
	pterm.Info.Printfln("echoing on [%s]:%d via %s, ctrl-c to stop", e.addr, c.port, dev.Name())

	if err := dev.Attach(e.ctx, e.ep); err != nil {
		log.WithError(err).Error("tun: device failed")
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
