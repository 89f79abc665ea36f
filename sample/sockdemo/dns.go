package main

import (
	"context"
	"flag"
	"net"

	"github.com/google/subcommands"
	"github.com/miekg/dns"
	"github.com/pterm/pterm"
	log "github.com/sirupsen/logrus"

	"github.com/YaoZengzeng/sockbridge/types"
)

const dnsPort = 53

type dnsCmd struct {
	name string
}

func (*dnsCmd) Name() string     { return "dns" }
func (*dnsCmd) Synopsis() string { return "resolve a name against an AAAA responder on the stack" }
func (*dnsCmd) Usage() string {
	return "dns [-name fqdn]\n"
}

func (c *dnsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.name, "name", "node.sockbridge.", "name to query")
}

// answer builds the reply to a query, resolving every AAAA question to addr
func answer(query []byte, addr types.Address) []byte {
	req := new(dns.Msg)
	if err := req.Unpack(query); err != nil {
		log.WithError(err).Debug("dns: bad query")
		return nil
	}

	resp := new(dns.Msg)
	resp.SetReply(req)
	resp.Authoritative = true
	for _, q := range req.Question {
		if q.Qtype != dns.TypeAAAA {
			continue
		}
		resp.Answer = append(resp.Answer, &dns.AAAA{
			Hdr:  dns.RR_Header{Name: q.Name, Rrtype: dns.TypeAAAA, Class: dns.ClassINET, Ttl: 60},
			AAAA: net.IP(addr),
		})
	}
	if len(resp.Answer) == 0 {
		resp.Rcode = dns.RcodeNameError
	}

	b, err := resp.Pack()
	if err != nil {
		log.WithError(err).Warn("dns: packing reply")
		return nil
	}
	return b
}

func (c *dnsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := loadConfig()
	if err != nil {
		log.WithError(err).Error("dns: loading config")
		return subcommands.ExitUsageError
	}
	cfg.Link.Loopback = true

	e, err := newEnv(ctx, cfg)
	if err != nil {
		log.WithError(err).Error("dns: starting stack")
		return subcommands.ExitFailure
	}
	defer e.close()

	server, err := e.bind(dnsPort)
	if err != nil {
		log.WithError(err).Error("dns: bind")
		return subcommands.ExitFailure
	}
	defer server.Close()
	e.serve(server, func(b []byte) []byte { return answer(b, e.addr) })

	client, err := e.bind(0)
	if err != nil {
		log.WithError(err).Error("dns: bind")
		return subcommands.ExitFailure
	}
	defer client.Close()

	q := new(dns.Msg)
	q.SetQuestion(dns.Fqdn(c.name), dns.TypeAAAA)
	query, err := q.Pack()
	if err != nil {
		log.WithError(err).Error("dns: packing query")
		return subcommands.ExitFailure
	}

	if _, err := client.SendTo(query, server.LocalEndpoint()); err != nil {
		log.WithError(err).Error("dns: send")
		return subcommands.ExitFailure
	}
	buf := make([]byte, e.ep.MTU())
	n, _, err := client.RecvFrom(buf, 1000000)
	if err != nil {
		log.WithError(err).Error("dns: receive")
		return subcommands.ExitFailure
	}

	resp := new(dns.Msg)
	if err := resp.Unpack(buf[:n]); err != nil {
		log.WithError(err).Error("dns: bad response")
		return subcommands.ExitFailure
	}

	rows := pterm.TableData{{"name", "type", "ttl", "address"}}
	for _, rr := range resp.Answer {
		if a, ok := rr.(*dns.AAAA); ok {
			rows = append(rows, []string{a.Hdr.Name, "AAAA", pterm.Sprint(a.Hdr.Ttl), a.AAAA.String()})
		}
	}
	pterm.DefaultHeader.Println("sockdemo dns")
	if err := pterm.DefaultTable.WithHasHeader().WithData(rows).Render(); err != nil {
		log.WithError(err).Warn("dns: rendering table")
	}

	if resp.Rcode != dns.RcodeSuccess {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
