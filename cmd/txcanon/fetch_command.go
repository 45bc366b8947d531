package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/halcyonwav/txcanon/service/cache"
	"github.com/halcyonwav/txcanon/service/config"
	"github.com/halcyonwav/txcanon/service/endpoints"
	"github.com/halcyonwav/txcanon/service/solana"
)

func fetchCommand() *cli.Command {
	return &cli.Command{
		Name:      "fetch",
		Usage:     "Fetch and normalize a single transaction",
		ArgsUsage: "SIGNATURE",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output the canonical transaction as JSON",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("transaction signature is required")
			}
			signature := c.Args().Get(0)

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := newLogger(cfg.LogLevel)

			pool, err := endpoints.New(cfg.RPCEndpoints, cfg.EndpointMinInterval)
			if err != nil {
				return err
			}
			store, err := cache.Open(cfg.CachePath)
			if err != nil {
				return err
			}
			defer store.Close()

			client := solana.NewClient(solana.ClientOpts{
				Pool:           pool,
				Cache:          store,
				MaxRetries:     cfg.MaxRetries,
				RequestTimeout: cfg.RequestTimeout,
				RetryBaseDelay: cfg.RetryBaseDelay,
				Logger:         logger,
			})

			raw, err := client.Fetch(context.Background(), signature)
			if err != nil {
				return err
			}

			txn, err := solana.Normalize(raw)
			if err != nil {
				return err
			}
			if txn == nil {
				fmt.Fprintln(os.Stderr, "transaction has no recognizable instructions")
				return nil
			}
			classification := solana.Classify(txn.Instructions)

			if c.Bool("json") {
				out := struct {
					*solana.CanonicalTransaction
					Classification solana.Classification `json:"classification"`
				}{txn, classification}
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}

			fmt.Printf("Signature:      %s\n", txn.Signature)
			fmt.Printf("Classification: %s\n", classification)
			if txn.Compute != nil {
				fmt.Printf("Compute limit:  %d units\n", txn.Compute.Units)
			}
			fmt.Printf("Accounts:       %d\n", len(txn.UniqueAccounts))
			fmt.Println()

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "#\tPROGRAM\tDESCRIPTION\tACCOUNTS")
			for i, ix := range txn.Instructions {
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", i, ix.ProgramID, ix.Description, len(ix.Accounts))
			}
			return w.Flush()
		},
	}
}
