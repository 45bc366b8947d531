package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/halcyonwav/txcanon/service/batch"
	"github.com/halcyonwav/txcanon/service/cache"
	"github.com/halcyonwav/txcanon/service/config"
	"github.com/halcyonwav/txcanon/service/endpoints"
	"github.com/halcyonwav/txcanon/service/metrics"
	"github.com/halcyonwav/txcanon/service/nats"
	"github.com/halcyonwav/txcanon/service/solana"
)

func sweepCommand() *cli.Command {
	return &cli.Command{
		Name:  "sweep",
		Usage: "Fetch, normalize, and classify every signature in a list",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "Path to the signature list (one signature per line, first comma field significant)",
				Required: true,
			},
			&cli.IntFlag{
				Name:  "skip",
				Usage: "Skip the first N signatures before processing",
			},
			&cli.StringFlag{
				Name:  "start-signature",
				Usage: "Resume from this signature (takes precedence over --skip)",
			},
			&cli.IntFlag{
				Name:    "concurrency",
				Aliases: []string{"c"},
				Usage:   "Override SWEEP_CONCURRENCY for this run",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if n := c.Int("concurrency"); n > 0 {
				cfg.SweepConcurrency = n
			}
			logger := newLogger(cfg.LogLevel)

			ids, err := batch.LoadSignaturesFile(c.String("file"))
			if err != nil {
				return err
			}
			ids, err = batch.Resume(ids, c.Int("skip"), c.String("start-signature"))
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				logger.Info("nothing to do", "file", c.String("file"))
				return nil
			}

			m := metrics.New(nil)
			if cfg.MetricsAddr != "" {
				metrics.StartListener(cfg.MetricsAddr, logger)
			}

			pool, err := endpoints.New(cfg.RPCEndpoints, cfg.EndpointMinInterval)
			if err != nil {
				return err
			}

			store, err := cache.Open(cfg.CachePath)
			if err != nil {
				return err
			}
			defer store.Close()

			var publisher nats.Publisher
			if cfg.NATSURL != "" {
				publisher, err = nats.NewPublisher(cfg.NATSURL, m, logger)
				if err != nil {
					return fmt.Errorf("failed to connect to NATS: %w", err)
				}
			} else {
				publisher = &nats.LogPublisher{Logger: logger}
			}
			defer publisher.Close()

			client := solana.NewClient(solana.ClientOpts{
				Pool:           pool,
				Cache:          store,
				MaxRetries:     cfg.MaxRetries,
				RequestTimeout: cfg.RequestTimeout,
				RetryBaseDelay: cfg.RetryBaseDelay,
				Metrics:        m,
				Logger:         logger,
			})

			orchestrator := batch.NewOrchestrator(batch.OrchestratorOpts{
				Fetcher:       client,
				Publisher:     publisher,
				Pool:          pool,
				Concurrency:   cfg.SweepConcurrency,
				WindowDelay:   cfg.WindowDelay,
				ProgressEvery: cfg.ProgressEvery,
				Metrics:       m,
				Logger:        logger,
			})
			defer orchestrator.Stop()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			summary, err := orchestrator.Run(ctx, ids)
			if err != nil {
				return err
			}

			fmt.Printf("processed %d signatures in %s (%d succeeded, %d empty, %d failed)\n",
				summary.Processed, summary.Elapsed.Round(10*time.Millisecond), summary.Succeeded, summary.Empty, summary.Failed)
			if summary.Failed > 0 {
				return fmt.Errorf("%d signatures failed", summary.Failed)
			}
			return nil
		},
	}
}
