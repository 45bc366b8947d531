package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"

	"github.com/halcyonwav/txcanon/service/cache"
	"github.com/halcyonwav/txcanon/service/config"
)

// openCache opens the configured cache database, for the read-only
// inspection commands.
func openCache() (*cache.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return cache.Open(cfg.CachePath)
}

func cacheHasCommand() *cli.Command {
	return &cli.Command{
		Name:      "has",
		Usage:     "Check whether a signature is cached",
		ArgsUsage: "SIGNATURE",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("transaction signature is required")
			}
			store, err := openCache()
			if err != nil {
				return err
			}
			defer store.Close()

			ok, err := store.Has(c.Args().Get(0))
			if err != nil {
				return err
			}
			fmt.Println(ok)
			if !ok {
				os.Exit(1)
			}
			return nil
		},
	}
}

func cacheGetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Print the cached raw record for a signature",
		ArgsUsage: "SIGNATURE",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("transaction signature is required")
			}
			store, err := openCache()
			if err != nil {
				return err
			}
			defer store.Close()

			data, err := store.Get(c.Args().Get(0))
			if err != nil {
				return err
			}
			var pretty interface{}
			if err := json.Unmarshal(data, &pretty); err != nil {
				// Not JSON somehow; dump the bytes as-is.
				_, err = os.Stdout.Write(data)
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(pretty)
		},
	}
}

func cacheInspectCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect",
		Usage: "Iterate cached records, optionally through a jq filter",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "filter",
				Aliases: []string{"jq"},
				Usage:   "jq expression applied to each cached record; null/false results are skipped",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Stop after N matching records (0 = no limit)",
			},
			&cli.BoolFlag{
				Name:  "count",
				Usage: "Print only the number of matching records",
			},
		},
		Action: func(c *cli.Context) error {
			var code *gojq.Code
			if filter := c.String("filter"); filter != "" {
				query, err := gojq.Parse(filter)
				if err != nil {
					return fmt.Errorf("failed to parse jq filter %q: %w", filter, err)
				}
				code, err = gojq.Compile(query)
				if err != nil {
					return fmt.Errorf("failed to compile jq filter %q: %w", filter, err)
				}
			}

			store, err := openCache()
			if err != nil {
				return err
			}
			defer store.Close()

			limit := c.Int("limit")
			countOnly := c.Bool("count")
			enc := json.NewEncoder(os.Stdout)

			matched := 0
			err = store.ForEach(func(signature string, raw []byte) error {
				var record interface{}
				if err := json.Unmarshal(raw, &record); err != nil {
					return fmt.Errorf("unreadable cache record %s: %w", signature, err)
				}

				out := record
				if code != nil {
					iter := code.Run(record)
					v, ok := iter.Next()
					if !ok {
						return nil
					}
					if jqErr, isErr := v.(error); isErr {
						return fmt.Errorf("jq filter failed on %s: %w", signature, jqErr)
					}
					if !isTruthy(v) {
						return nil
					}
					out = v
				}

				matched++
				if !countOnly {
					if err := enc.Encode(map[string]interface{}{
						"signature": signature,
						"result":    out,
					}); err != nil {
						return err
					}
				}
				if limit > 0 && matched >= limit {
					return cache.ErrStopIteration
				}
				return nil
			})
			if err != nil {
				return err
			}

			if countOnly {
				fmt.Println(matched)
			}
			return nil
		},
	}
}

// isTruthy follows jq semantics: null and false are falsy, everything else
// (numbers, strings, objects, arrays) is truthy.
func isTruthy(v interface{}) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return true
}
