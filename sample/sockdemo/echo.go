package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"strconv"
	"time"

	"github.com/google/subcommands"
	"github.com/pterm/pterm"
	log "github.com/sirupsen/logrus"
)

const echoPort = 7

type echoCmd struct {
	count int
	size  int
}

func (*echoCmd) Name() string     { return "echo" }
func (*echoCmd) Synopsis() string { return "udp echo round trips over the loopback link" }
func (*echoCmd) Usage() string {
	return "echo [-count n] [-size bytes]\n"
}

func (c *echoCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.count, "count", 5, "number of round trips")
	f.IntVar(&c.size, "size", 32, "payload size in bytes")
}

func (c *echoCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := loadConfig()
	if err != nil {
		log.WithError(err).Error("echo: loading config")
		return subcommands.ExitUsageError
	}
	cfg.Link.Loopback = true

	e, err := newEnv(ctx, cfg)
	if err != nil {
		log.WithError(err).Error("echo: starting stack")
		return subcommands.ExitFailure
	}
	defer e.close()

	server, err := e.bind(echoPort)
	if err != nil {
		log.WithError(err).Error("echo: bind")
		return subcommands.ExitFailure
	}
	defer server.Close()
	e.serve(server, func(b []byte) []byte { return b })

	client, err := e.bind(0)
	if err != nil {
		log.WithError(err).Error("echo: bind")
		return subcommands.ExitFailure
	}
	defer client.Close()

	pterm.DefaultHeader.Println("sockdemo echo")

	rows := pterm.TableData{{"seq", "bytes", "rtt", "result"}}
	payload := bytes.Repeat([]byte{'x'}, c.size)
	buf := make([]byte, c.size)
	failed := 0
	for i := 0; i < c.count; i++ {
		start := time.Now()
		result := "ok"
		if _, err := client.SendTo(payload, server.LocalEndpoint()); err != nil {
			result = err.Error()
		} else if n, _, err := client.RecvFrom(buf, 1000000); err != nil {
			result = err.Error()
		} else if !bytes.Equal(buf[:n], payload) {
			result = "mismatch"
		}
		if result != "ok" {
			failed++
		}
		rows = append(rows, []string{strconv.Itoa(i), strconv.Itoa(c.size), since(start), result})
	}

	if err := pterm.DefaultTable.WithHasHeader().WithData(rows).Render(); err != nil {
		log.WithError(err).Warn("echo: rendering table")
	}
	st := e.ep.Stats()
	pterm.Info.Println(fmt.Sprintf("link sent %d received %d dropped %d, pool outstanding %d",
		st.Sent, st.Received, st.Dropped, e.s.Pool().Outstanding()))

	if failed > 0 {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
