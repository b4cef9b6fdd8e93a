package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/netip"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/usvlab/labdhcp/internal/backend/static"
	"github.com/usvlab/labdhcp/internal/dhcp/data"
	"github.com/usvlab/labdhcp/internal/dhcp/handler/responder"
	"github.com/usvlab/labdhcp/internal/dhcp/server"
	"github.com/usvlab/labdhcp/internal/http"
	"github.com/usvlab/labdhcp/internal/metric"
	"github.com/usvlab/labdhcp/internal/otel"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

var (
	// GitRev is the git revision of the build, set with -ldflags "-X main.GitRev=...".
	GitRev = "unknown"

	startTime = time.Now()
)

const name = "labdhcp"

type config struct {
	dhcp    dhcpConfig
	metrics metricsConfig
	otel    otelConfig

	// logLevel is the log level for labdhcp.
	logLevel string
}

type dhcpConfig struct {
	bindAddr      string
	bindInterface string
	serverIP      string
	offerIP       string
	subnetMask    string
	leaseTime     time.Duration
	pollInterval  time.Duration
}

type metricsConfig struct {
	enabled  bool
	bindAddr string
}

type otelConfig struct {
	endpoint string
	insecure bool
}

func main() {
	cfg := &config{}
	cli := newCLI(cfg, flag.NewFlagSet(name, flag.ExitOnError))
	// Env values are applied by ff after the flag set, so their errors come back here.
	if err := cli.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
		os.Exit(2)
	}

	ctx, done := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM)
	defer done()

	if err := cli.Run(ctx); err != nil {
		done()
		os.Exit(1)
	}
}

// exec is the Exec of the root command. It runs once flags and env are parsed.
func (c *config) exec(ctx context.Context, _ []string) error {
	log := defaultLogger(c.logLevel)
	log.Info("starting", "version", GitRev)

	if err := run(ctx, c, log); err != nil {
		log.Error(err, "labdhcp failed")
		return err
	}
	log.Info("stopped")

	return nil
}

func run(ctx context.Context, cfg *config, log logr.Logger) error {
	sc, err := cfg.dhcp.serverConfig()
	if err != nil {
		return fmt.Errorf("invalid dhcp configuration: %w", err)
	}
	bindAddr, err := netip.ParseAddrPort(cfg.dhcp.bindAddr)
	if err != nil {
		return fmt.Errorf("invalid dhcp bind address: %w", err)
	}

	ctx, otelShutdown, err := otel.Init(ctx, otel.Config{
		ServiceName: name,
		Version:     GitRev,
		DHCPAddr:    bindAddr.String(),
		Interface:   cfg.dhcp.bindInterface,
		Endpoint:    cfg.otel.endpoint,
		Insecure:    cfg.otel.insecure,
		Logger:      log.WithName("otel"),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	defer otelShutdown()
	metric.Init()

	h := &responder.Handler{
		Allocator: static.Backend{Addr: sc.OfferAddr},
		Config:    sc,
		Log:       log.WithName("responder"),
		Observer: func(e data.Event) {
			log.V(1).Info("lease handed out", "mac", e.MAC.String(), "request", e.Kind.String(), "ipAddress", e.Offered.String())
		},
	}
	// Bind failures are fatal, there is no retry.
	ds, err := server.NewServer(cfg.dhcp.bindInterface, net.UDPAddrFromAddrPort(bindAddr), h)
	if err != nil {
		return err
	}
	ds.Logger = log.WithName("dhcp")
	ds.PollInterval = cfg.dhcp.pollInterval

	log.Info("DHCP server running", "server_ip", sc.ServerAddr.String(), "bind_addr", bindAddr.String(), "interface", cfg.dhcp.bindInterface)
	log.Info(fmt.Sprintf("will assign %v to any device that asks", sc.OfferAddr), "subnet_mask", net.IP(sc.SubnetMask).String(), "lease_seconds", sc.LeaseTime)

	g, ctx := errgroup.WithContext(ctx)
	if cfg.metrics.enabled {
		hs := &http.Config{GitRev: GitRev, StartTime: startTime, Logger: log.WithName("http")}
		log.Info("serving metrics", "addr", cfg.metrics.bindAddr)
		g.Go(func() error {
			return hs.ServeHTTP(ctx, cfg.metrics.bindAddr)
		})
	}
	g.Go(func() error {
		return ds.Serve(ctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

// defaultLogger is zap logr implementation.
func defaultLogger(level string) logr.Logger {
	config := zap.NewProductionConfig()
	config.OutputPaths = []string{"stdout"}
	switch level {
	case "debug":
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	default:
		config.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	zapLogger, err := config.Build()
	if err != nil {
		panic(fmt.Sprintf("who watches the watchmen (%v)?", err))
	}

	return zapr.NewLogger(zapLogger)
}
