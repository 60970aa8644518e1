// Command spgwd runs the management gateway core against a single SP: it
// wires together configuration, the UDP transport, the reactor, the
// client facade, Prometheus metrics, and the console/JSON HTTP surface.
package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/oxidecomputer/spgw/client"
	"github.com/oxidecomputer/spgw/consoleweb"
	"github.com/oxidecomputer/spgw/gwconfig"
	"github.com/oxidecomputer/spgw/reactor"
	"github.com/oxidecomputer/spgw/spmetrics"
	"github.com/oxidecomputer/spgw/transport"
	"github.com/oxidecomputer/spgw/wire"
)

// Version is bumped by hand: major for breaking wire/API changes, minor
// for new SP operations, patch for everything else.
var Version = "0.1.0"

func main() {
	configPath := flag.String("config", "gateway.yaml", "path to config file")
	flag.Parse()

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	cfg, err := gwconfig.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	if cfg.Log.JSON {
		log.SetFormatter(&log.JSONFormatter{})
	}

	entry := log.WithField("component", "spgwd")
	entry.Infof("starting spgwd v%s", Version)

	peerIP := net.ParseIP(cfg.SP.Address)
	if peerIP == nil {
		entry.Fatalf("invalid sp.address %q", cfg.SP.Address)
	}
	peerAddr := &net.UDPAddr{IP: peerIP, Port: cfg.SP.Port}

	var dialOpts transport.DialOptions
	dialOpts.LocalPort = cfg.SP.LocalPort
	if cfg.SP.Interface != "" {
		iface, err := net.InterfaceByName(cfg.SP.Interface)
		if err != nil {
			entry.Fatalf("resolving interface %q: %v", cfg.SP.Interface, err)
		}
		dialOpts.Interface = iface
		peerAddr.Zone = cfg.SP.Interface
	}

	sock, err := transport.NewUDPSocket(peerAddr, dialOpts)
	if err != nil {
		entry.Fatalf("failed to open SP socket: %v", err)
	}
	defer sock.Close()

	reg := prometheus.NewRegistry()
	var hooks spmetrics.Hooks = spmetrics.NopHooks
	if cfg.Metrics.Enabled {
		hooks = spmetrics.New(reg)
	}

	reactorCfg := reactor.Config{
		MaxAttempts:       cfg.SP.MaxAttempts,
		PerAttemptTimeout: cfg.SP.PerAttemptTimeout,
	}
	r, handle := reactor.New(sock, reactorCfg, entry, hooks)
	c := client.New(handle)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		entry.Info("shutting down")
		cancel()
	}()

	go r.Run(ctx)

	if cfg.Metrics.Enabled {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			entry.WithField("addr", cfg.Metrics.BindAddr).Info("starting metrics server")
			if err := http.ListenAndServe(cfg.Metrics.BindAddr, mux); err != nil && err != http.ErrServerClosed {
				entry.WithError(err).Error("metrics server exited")
			}
		}()
	}

	web := consoleweb.New(cfg.Console.BindAddr, c, wire.SPItself, entry)
	if err := web.Run(ctx); err != nil {
		entry.Fatalf("console web server error: %v", err)
	}
}
