// Command sockdemo runs datagram sockets over an in-process stack.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/google/subcommands"
)

var configPath = flag.String("config", "", "path to a TOML configuration file")

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(&echoCmd{}, "")
	subcommands.Register(&dnsCmd{}, "")
	registerPlatform()

	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	os.Exit(int(subcommands.Execute(ctx)))
}
