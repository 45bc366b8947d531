// Package batch drives the sweep: a bounded-concurrency pass over an ordered
// signature list, window by window, with per-signature failures isolated so
// one bad transaction never sinks the run.
package batch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alitto/pond/v2"

	"github.com/halcyonwav/txcanon/service/endpoints"
	"github.com/halcyonwav/txcanon/service/metrics"
	"github.com/halcyonwav/txcanon/service/nats"
	"github.com/halcyonwav/txcanon/service/solana"
)

// Fetcher is the fetch-client dependency of the orchestrator.
type Fetcher interface {
	Fetch(ctx context.Context, signature string) (*solana.RawTransaction, error)
}

// OrchestratorOpts contains configuration options for creating an Orchestrator.
type OrchestratorOpts struct {
	Fetcher   Fetcher
	Publisher nats.Publisher

	// Pool is only used for the end-of-run per-endpoint report; may be nil.
	Pool *endpoints.Pool

	Concurrency   int
	WindowDelay   time.Duration
	ProgressEvery int

	// Metrics may be nil, in which case no metrics are recorded.
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Orchestrator processes signatures in consecutive windows of Concurrency,
// fully awaiting each window before starting the next.
type Orchestrator struct {
	fetcher       Fetcher
	publisher     nats.Publisher
	pool          *endpoints.Pool
	concurrency   int
	windowDelay   time.Duration
	progressEvery int
	metrics       *metrics.Metrics
	logger        *slog.Logger

	workers pond.Pool
}

// Summary is the final accounting of one sweep.
type Summary struct {
	Processed int
	Succeeded int
	Empty     int
	Failed    int
	Elapsed   time.Duration
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(o OrchestratorOpts) *Orchestrator {
	concurrency := o.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	progressEvery := o.ProgressEvery
	if progressEvery < 1 {
		progressEvery = 10
	}
	return &Orchestrator{
		fetcher:       o.Fetcher,
		publisher:     o.Publisher,
		pool:          o.Pool,
		concurrency:   concurrency,
		windowDelay:   o.WindowDelay,
		progressEvery: progressEvery,
		metrics:       o.Metrics,
		logger:        o.Logger,
		workers:       pond.NewPool(concurrency),
	}
}

// Run sweeps the given signature list. An empty list is a zero-item
// successful run. Per-signature failures are logged and counted, never
// propagated; the only error Run returns is context cancellation between
// windows.
func (o *Orchestrator) Run(ctx context.Context, signatures []string) (Summary, error) {
	start := time.Now()
	var mu sync.Mutex
	summary := Summary{}

	o.logger.InfoContext(ctx, "sweep started",
		"signatures", len(signatures),
		"concurrency", o.concurrency,
	)

	windows := 0
	for offset := 0; offset < len(signatures); offset += o.concurrency {
		if err := ctx.Err(); err != nil {
			summary.Elapsed = time.Since(start)
			return summary, err
		}

		end := offset + o.concurrency
		if end > len(signatures) {
			end = len(signatures)
		}
		window := signatures[offset:end]

		windowStart := time.Now()
		group := o.workers.NewGroup()
		for _, signature := range window {
			group.Submit(func() {
				outcome := o.processOne(ctx, signature)
				mu.Lock()
				summary.Processed++
				switch outcome {
				case outcomeOK:
					summary.Succeeded++
				case outcomeEmpty:
					summary.Empty++
				case outcomeError:
					summary.Failed++
				}
				mu.Unlock()
			})
		}
		group.Wait()

		if o.metrics != nil {
			o.metrics.RecordWindowDuration(time.Since(windowStart).Seconds())
		}

		windows++
		if windows%o.progressEvery == 0 {
			mu.Lock()
			processed := summary.Processed
			mu.Unlock()
			elapsed := time.Since(start)
			o.logger.InfoContext(ctx, "sweep progress",
				"processed", processed,
				"total", len(signatures),
				"rate_per_sec", float64(processed)/elapsed.Seconds(),
				"elapsed", elapsed.Round(time.Second).String(),
			)
		}

		if end < len(signatures) && o.windowDelay > 0 {
			timer := time.NewTimer(o.windowDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				summary.Elapsed = time.Since(start)
				return summary, ctx.Err()
			case <-timer.C:
			}
		}
	}

	summary.Elapsed = time.Since(start)

	o.logger.InfoContext(ctx, "sweep finished",
		"processed", summary.Processed,
		"succeeded", summary.Succeeded,
		"empty", summary.Empty,
		"failed", summary.Failed,
		"elapsed", summary.Elapsed.Round(time.Millisecond).String(),
	)
	o.reportEndpointStats(ctx)

	return summary, nil
}

// Stop releases the worker pool, waiting for in-flight tasks.
func (o *Orchestrator) Stop() {
	o.workers.StopAndWait()
}

type outcome int

const (
	outcomeOK outcome = iota
	outcomeEmpty
	outcomeError
)

// processOne runs the full pipeline for one signature:
// fetch -> normalize -> classify -> publish.
func (o *Orchestrator) processOne(ctx context.Context, signature string) outcome {
	raw, err := o.fetcher.Fetch(ctx, signature)
	if err != nil {
		o.logger.ErrorContext(ctx, "failed to fetch transaction",
			"signature", signature,
			"error", truncateError(err),
		)
		o.recordProcessed("error")
		return outcomeError
	}

	canon, err := solana.Normalize(raw)
	if err != nil {
		o.logger.ErrorContext(ctx, "failed to normalize transaction",
			"signature", signature,
			"error", truncateError(err),
		)
		if o.metrics != nil {
			o.metrics.RecordTransactionNormalized("error")
		}
		o.recordProcessed("error")
		return outcomeError
	}
	if canon == nil {
		// No instructions: a valid terminal outcome, nothing to hand off.
		o.logger.DebugContext(ctx, "transaction has no instructions",
			"signature", signature,
		)
		if o.metrics != nil {
			o.metrics.RecordTransactionNormalized("empty")
		}
		o.recordProcessed("empty")
		return outcomeEmpty
	}
	if o.metrics != nil {
		o.metrics.RecordTransactionNormalized("ok")
	}

	classification := solana.Classify(canon.Instructions)
	if o.metrics != nil {
		o.metrics.RecordClassification(string(classification))
	}

	event := &nats.ResultEvent{
		Signature:      signature,
		Transaction:    canon,
		Classification: classification,
	}
	if err := o.publisher.PublishResult(ctx, event); err != nil {
		o.logger.ErrorContext(ctx, "failed to publish result",
			"signature", signature,
			"error", truncateError(err),
		)
		o.recordProcessed("error")
		return outcomeError
	}

	o.recordProcessed("ok")
	return outcomeOK
}

func (o *Orchestrator) recordProcessed(status string) {
	if o.metrics != nil {
		o.metrics.RecordSweepProcessed(status)
	}
}

// reportEndpointStats logs the end-of-run per-endpoint usage counters.
func (o *Orchestrator) reportEndpointStats(ctx context.Context) {
	if o.pool == nil {
		return
	}
	for _, st := range o.pool.Snapshot() {
		o.logger.InfoContext(ctx, "endpoint stats",
			"endpoint", st.URL,
			"requests", st.Requests,
			"successes", st.Successes,
			"failures", st.Failures,
		)
	}
}

// truncateError keeps log lines readable when providers return page-sized
// error bodies.
func truncateError(err error) string {
	const maxLen = 160
	msg := err.Error()
	if len(msg) <= maxLen {
		return msg
	}
	return msg[:maxLen] + "…"
}
