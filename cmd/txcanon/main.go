package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	app := &cli.App{
		Name:  "txcanon",
		Usage: "Fetch Solana transactions and normalize them into a canonical instruction model",
		Description: `txcanon sweeps an ordered list of transaction signatures across a pool of
RPC endpoints, caches the raw responses, and normalizes every response shape
into one canonical, classified instruction model for downstream code
generation.

Configuration is environment-driven (RPC_ENDPOINTS, SWEEP_CONCURRENCY,
MAX_RETRIES, REQUEST_TIMEOUT, WINDOW_DELAY, ENDPOINT_MIN_INTERVAL,
CACHE_PATH, NATS_URL, ...); every knob has a default.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			sweepCommand(),
			fetchCommand(),
			{
				Name:  "cache",
				Usage: "Local cache inspection commands",
				Subcommands: []*cli.Command{
					cacheHasCommand(),
					cacheGetCommand(),
					cacheInspectCommand(),
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// newLogger builds the JSON logger all commands share. Output goes to stderr
// so command output on stdout stays machine-readable.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: lvl,
	}))
}
