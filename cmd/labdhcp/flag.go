package main

import (
	"flag"
	"fmt"
	"net"
	"net/netip"
	"regexp"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
	"github.com/usvlab/labdhcp/internal/dhcp/packet"
)

// customUsageFunc is a custom UsageFunc used for all commands.
func customUsageFunc(c *ffcli.Command) string {
	var b strings.Builder

	if c.LongHelp != "" {
		fmt.Fprintf(&b, "%s\n\n", c.LongHelp)
	}

	fmt.Fprintf(&b, "USAGE\n")
	if c.ShortUsage != "" {
		fmt.Fprintf(&b, "  %s\n", c.ShortUsage)
	} else {
		fmt.Fprintf(&b, "  %s\n", c.Name)
	}
	fmt.Fprintf(&b, "\n")

	if countFlags(c.FlagSet) > 0 {
		fmt.Fprintf(&b, "FLAGS\n")
		tw := tabwriter.NewWriter(&b, 0, 2, 2, ' ', 0)
		type flagUsage struct {
			name         string
			usage        string
			defaultValue string
		}
		flags := []flagUsage{}
		c.FlagSet.VisitAll(func(f *flag.Flag) {
			flags = append(flags, flagUsage{name: f.Name, usage: f.Usage, defaultValue: f.DefValue})
		})

		// sort by the section name between the brackets "[]" found in the usage string.
		r := regexp.MustCompile(`^\[(.*?)\]`)
		sort.SliceStable(flags, func(i, j int) bool {
			return r.FindString(flags[i].usage) < r.FindString(flags[j].usage)
		})
		for _, elem := range flags {
			if elem.defaultValue != "" {
				fmt.Fprintf(tw, "  -%s\t%s (default %q)\n", elem.name, elem.usage, elem.defaultValue)
			} else {
				fmt.Fprintf(tw, "  -%s\t%s\n", elem.name, elem.usage)
			}
		}
		tw.Flush()
		fmt.Fprintf(&b, "\n")
	}

	return strings.TrimSpace(b.String()) + "\n"
}

func countFlags(fs *flag.FlagSet) (n int) {
	fs.VisitAll(func(*flag.Flag) { n++ })

	return n
}

func dhcpFlags(c *config, fs *flag.FlagSet) {
	fs.StringVar(&c.dhcp.bindAddr, "dhcp-addr", "0.0.0.0:67", "[dhcp] local IP:Port to listen on for DHCP requests")
	fs.StringVar(&c.dhcp.bindInterface, "dhcp-iface", "", "[dhcp] interface to bind to for DHCP requests")
	fs.StringVar(&c.dhcp.serverIP, "server-ip", "10.0.0.1", "[dhcp] IP address of this host, sent as siaddr, server identifier (opt 54) and router (opt 3)")
	fs.StringVar(&c.dhcp.offerIP, "offer-ip", "10.0.0.100", "[dhcp] the one IP address handed to every client (yiaddr)")
	fs.StringVar(&c.dhcp.subnetMask, "subnet-mask", "255.255.255.0", "[dhcp] subnet mask sent to clients (opt 1)")
	fs.DurationVar(&c.dhcp.leaseTime, "lease-time", time.Hour, "[dhcp] lease time sent to clients (opt 51), whole seconds")
	fs.DurationVar(&c.dhcp.pollInterval, "poll-interval", time.Second, "[dhcp] how often a blocked receive checks for shutdown")
}

func metricsFlags(c *config, fs *flag.FlagSet) {
	fs.BoolVar(&c.metrics.enabled, "metrics-enabled", false, "[metrics] serve Prometheus metrics and a healthcheck over HTTP")
	fs.StringVar(&c.metrics.bindAddr, "metrics-addr", "127.0.0.1:9090", "[metrics] local IP:Port to serve /metrics and /healthcheck on")
}

func otelFlags(c *config, fs *flag.FlagSet) {
	fs.StringVar(&c.otel.endpoint, "otel-endpoint", "", "[otel] OpenTelemetry collector endpoint")
	fs.BoolVar(&c.otel.insecure, "otel-insecure", true, "[otel] OpenTelemetry collector insecure")
}

func setFlags(c *config, fs *flag.FlagSet) {
	fs.StringVar(&c.logLevel, "log-level", "info", "log level (debug, info)")
	dhcpFlags(c, fs)
	metricsFlags(c, fs)
	otelFlags(c, fs)
}

func newCLI(cfg *config, fs *flag.FlagSet) *ffcli.Command {
	setFlags(cfg, fs)
	return &ffcli.Command{
		Name:       name,
		ShortUsage: "labdhcp [flags]",
		LongHelp:   "labdhcp answers every DHCP DISCOVER and REQUEST with the same IPv4 address, for direct point-to-point lab links without a router.",
		FlagSet:    fs,
		Options:    []ff.Option{ff.WithEnvVarPrefix(name)},
		UsageFunc:  customUsageFunc,
		Exec:       cfg.exec,
	}
}

// serverConfig parses the address flags into the tuple placed in every reply.
func (d dhcpConfig) serverConfig() (packet.ServerConfig, error) {
	server, err := netip.ParseAddr(d.serverIP)
	if err != nil {
		return packet.ServerConfig{}, fmt.Errorf("invalid server ip: %w", err)
	}
	offer, err := netip.ParseAddr(d.offerIP)
	if err != nil {
		return packet.ServerConfig{}, fmt.Errorf("invalid offer ip: %w", err)
	}
	mask := net.ParseIP(d.subnetMask).To4()
	if mask == nil {
		return packet.ServerConfig{}, fmt.Errorf("invalid subnet mask: %q", d.subnetMask)
	}
	if d.leaseTime < time.Second || d.leaseTime.Seconds() > float64(^uint32(0)) {
		return packet.ServerConfig{}, fmt.Errorf("invalid lease time: %v", d.leaseTime)
	}
	cfg := packet.ServerConfig{
		ServerAddr: server.Unmap(),
		OfferAddr:  offer.Unmap(),
		SubnetMask: net.IPMask(mask),
		LeaseTime:  uint32(d.leaseTime / time.Second),
	}

	return cfg, cfg.Validate()
}
