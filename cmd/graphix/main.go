// Command graphix runs the Poller and DivergenceInvestigator against a
// configured pool of indexers, persisting observations to Postgres.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	logging "github.com/ipfs/go-log/v2"
	"github.com/urfave/cli/v2"

	"github.com/graphops/graphix/bisect"
	"github.com/graphops/graphix/config"
	"github.com/graphops/graphix/indexer"
	"github.com/graphops/graphix/metrics"
	"github.com/graphops/graphix/networksubgraph"
	"github.com/graphops/graphix/poller"
	"github.com/graphops/graphix/schedule"
	"github.com/graphops/graphix/store"
)

var log = logging.Logger("graphix")

func main() {
	if err := logging.SetLogLevel("*", "info"); err != nil {
		log.Fatal(err)
	}

	app := &cli.App{
		Name:  "graphix",
		Usage: "The Graph indexer cross-checking and divergence-investigation daemon",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				EnvVars:  []string{"GRAPHIX_DB_URL"},
				Usage:    "Postgres connection URL",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "base-config",
				Usage: "path to the YAML configuration file",
				Value: "graphix.yaml",
			},
			&cli.UintFlag{
				Name:  "port",
				Usage: "GraphQL API port; overrides the config file's graphql.port",
			},
			&cli.UintFlag{
				Name:  "prometheus-port",
				Usage: "Prometheus metrics port; overrides the config file's prometheusPort",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(cctx *cli.Context) error {
	cfg, err := config.FromFile(cctx.String("base-config"))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg.DatabaseURL = cctx.String("database-url")
	if p := cctx.Uint("port"); p != 0 {
		cfg.GraphQL.Port = uint16(p)
	}
	if p := cctx.Uint("prometheus-port"); p != 0 {
		cfg.PrometheusPort = uint16(p)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	ctx, cancel := context.WithCancel(cctx.Context)
	defer cancel()
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		select {
		case <-interrupt:
			log.Info("received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to store: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Errorw("closing store", "error", err.Error())
		}
	}()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}
	if snapshot, err := json.Marshal(cfg); err != nil {
		log.Warnw("marshaling config snapshot failed", "error", err.Error())
	} else if err := db.SaveConfigSnapshot(ctx, string(snapshot)); err != nil {
		log.Warnw("saving config snapshot failed", "error", err.Error())
	}

	stopMetrics, err := metrics.Start(cfg.PrometheusPort)
	if err != nil {
		return fmt.Errorf("starting metrics: %w", err)
	}
	defer stopMetrics()

	clientFor := func(address, endpoint string) indexer.Client {
		return indexer.NewHTTPClient(address, endpoint)
	}

	ns := networksubgraph.NewHTTPClient(networkSubgraphEndpoint(cfg))

	p := poller.New(db, ns, clientFor)
	pollerJob := &schedule.JobConfig{
		Name:             "poller",
		Tasks:            []string{"cross-check indexers"},
		Job:              &poller.Job{Poller: p, Config: cfg},
		RestartOnFailure: true,
		RestartDelay:     cfg.PollingPeriod(),
	}

	investigator := bisect.New(db, clientFor)
	investigatorJob := &schedule.JobConfig{
		Name:  "divergence-investigator",
		Tasks: []string{"drain pending divergence investigations"},
		Job:   investigator,
		Locker: store.DBLock{
			DB:  db.Conn(),
			Key: store.AdvisoryLock(0x62697365637431), // ascii "bisect1"
		},
		RestartOnFailure: true,
		RestartDelay:     investigator.PollInterval,
	}

	schedule.NewSchedulerDaemon(ctx, pollerJob, investigatorJob)

	<-ctx.Done()
	log.Info("shutting down")
	return nil
}

// networkSubgraphEndpoint returns the endpoint of the first configured
// networkSubgraph source, used to build the single shared
// networksubgraph.Client that indexerByAddress/networkSubgraph source
// resolution depends on (DESIGN.md's Open Question index, item 10). A
// config with no networkSubgraph source builds a client against an
// empty endpoint, so any indexerByAddress source in it fails to resolve.
func networkSubgraphEndpoint(cfg *config.File) string {
	for _, src := range cfg.Sources {
		if src.Type == "networkSubgraph" && src.NetworkSubgraph != nil {
			return src.NetworkSubgraph.Endpoint
		}
	}
	return ""
}
