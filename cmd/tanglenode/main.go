// Command tanglenode runs a single tangle node: load configuration,
// assemble every worker via pkg/node, publish Prometheus metrics, and run
// until shut down.
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/iotaledger/hive.go/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/trinarytangle/tanglenode/pkg/config"
	"github.com/trinarytangle/tanglenode/pkg/node"
)

var log = logger.NewLogger("Main")

func main() {
	fs := pflag.NewFlagSet("tanglenode", pflag.ExitOnError)
	config.Flags(fs)
	metricsAddr := fs.String("metrics.listen_address", ":14265", "Prometheus metrics listen address")
	if err := fs.Parse(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg, err := config.Load(fs)
	if err != nil {
		log.Panicf("loading configuration: %v", err)
	}

	container, err := node.Build(cfg)
	if err != nil {
		log.Panicf("assembling node: %v", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(container.Metrics.Collectors()...)
	go serveMetrics(*metricsAddr, registry)

	log.Infof("starting node, gossip port %d", cfg.Peering.ListenPort)
	if err := container.Start(); err != nil {
		log.Panicf("running node: %v", err)
	}
}

func serveMetrics(addr string, registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Warnf("metrics server stopped: %v", err)
	}
}
