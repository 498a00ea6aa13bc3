package metrics

import (
	"fmt"
	"net/http"
	"time"

	"contrib.go.opencensus.io/exporter/prometheus"
	logging "github.com/ipfs/go-log/v2"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opencensus.io/stats/view"
)

var log = logging.Logger("graphix/metrics")

// Start registers the default views with a Prometheus exporter and serves
// /metrics on port. A port of 0 disables the server entirely, per
// spec.md §6.1's prometheusPort=0 convention.
func Start(port uint16) (func(), error) {
	if port == 0 {
		return func() {}, nil
	}
	addr := fmt.Sprintf(":%d", port)

	registry := prom.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	pe, err := prometheus.NewExporter(prometheus.Options{
		Namespace: "graphix",
		Registry:  registry,
	})
	if err != nil {
		return nil, fmt.Errorf("new prometheus exporter: %w", err)
	}

	view.RegisterExporter(pe)
	view.SetReportingPeriod(2 * time.Second)

	if err := view.Register(DefaultViews...); err != nil {
		return nil, fmt.Errorf("register views: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", pe)
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		log.Infof("serving metrics on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("metrics server stopped: %s", err)
		}
	}()

	return func() {
		view.UnregisterExporter(pe)
		_ = srv.Close()
	}, nil
}
