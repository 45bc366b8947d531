package solana

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/halcyonwav/txcanon/service/cache"
	"github.com/halcyonwav/txcanon/service/endpoints"
	"github.com/halcyonwav/txcanon/service/metrics"
)

// retryClass buckets fetch failures for backoff selection and metrics.
type retryClass string

const (
	retryRateLimited retryClass = "rate_limited"
	retryOther       retryClass = "other"
	retryEmpty       retryClass = "empty"
)

// maxBackoffDelay caps a single inter-attempt sleep.
const maxBackoffDelay = 2 * time.Minute

// backoffJitterMax is the upper bound of the random slice added to every
// backoff so concurrent workers don't retry in lockstep.
const backoffJitterMax = 250 * time.Millisecond

// FetchExhaustedError is the terminal failure for one signature: every retry
// attempt was spent without obtaining a transaction.
type FetchExhaustedError struct {
	Signature string
	Attempts  int
}

func (e *FetchExhaustedError) Error() string {
	return fmt.Sprintf("fetch exhausted after %d attempts: %s", e.Attempts, e.Signature)
}

// ClientOpts contains configuration options for creating a new Client.
type ClientOpts struct {
	Pool           *endpoints.Pool
	Cache          *cache.Store
	MaxRetries     int
	RequestTimeout time.Duration
	RetryBaseDelay time.Duration

	// Dial creates the RPC client for an endpoint URL. Nil means NewRPCClient;
	// tests inject mocks here.
	Dial func(url string) RPCClient

	// Metrics may be nil, in which case no metrics are recorded.
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Client fetches transactions by signature through the endpoint pool, reading
// through the local cache and retrying with failure-class-dependent backoff.
type Client struct {
	pool           *endpoints.Pool
	cache          *cache.Store
	maxRetries     int
	requestTimeout time.Duration
	baseDelay      time.Duration
	dial           func(url string) RPCClient
	metrics        *metrics.Metrics
	logger         *slog.Logger

	mu      sync.Mutex
	clients map[string]RPCClient
}

// NewClient creates a new fetch client.
func NewClient(o ClientOpts) *Client {
	dial := o.Dial
	if dial == nil {
		dial = NewRPCClient
	}
	return &Client{
		pool:           o.Pool,
		cache:          o.Cache,
		maxRetries:     o.MaxRetries,
		requestTimeout: o.RequestTimeout,
		baseDelay:      o.RetryBaseDelay,
		dial:           dial,
		metrics:        o.Metrics,
		logger:         o.Logger,
		clients:        make(map[string]RPCClient),
	}
}

// Fetch returns the raw transaction for the given signature, from the cache
// when possible and from the endpoint pool otherwise. A successful network
// fetch is written through to the cache before returning. After the retry
// budget is spent it fails with *FetchExhaustedError.
func (c *Client) Fetch(ctx context.Context, signature string) (*RawTransaction, error) {
	if raw := c.fromCache(ctx, signature); raw != nil {
		if c.metrics != nil {
			c.metrics.RecordCacheHit()
		}
		return raw, nil
	}
	if c.metrics != nil {
		c.metrics.RecordCacheMiss()
	}

	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return nil, fmt.Errorf("invalid signature %q: %w", signature, err)
	}

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		ep, err := c.pool.Next(ctx)
		if err != nil {
			return nil, err
		}

		raw, err := c.attempt(ctx, ep, sig)
		if err == nil && raw != nil {
			c.pool.RecordSuccess(ep)
			c.toCache(ctx, signature, raw)
			return raw, nil
		}

		if err == nil {
			// Both encodings came back empty. The provider has no record yet
			// (or cannot parse the transaction at all); back off and retry.
			c.logger.DebugContext(ctx, "transaction not yet available, retrying",
				"signature", signature,
				"attempt", attempt+1,
				"endpoint", ep.URL,
			)
			if c.metrics != nil {
				c.metrics.RecordRPCRetry(string(retryEmpty))
			}
			if err := c.sleepBackoff(ctx, retryEmpty, attempt); err != nil {
				return nil, err
			}
			continue
		}

		c.pool.RecordFailure(ep)
		class := classifyFetchError(err)
		if class == retryRateLimited && c.metrics != nil {
			c.metrics.RecordRateLimitHit(ep.URL)
		}
		if c.metrics != nil {
			c.metrics.RecordRPCRetry(string(class))
		}
		c.logger.WarnContext(ctx, "fetch attempt failed",
			"signature", signature,
			"attempt", attempt+1,
			"endpoint", ep.URL,
			"class", string(class),
			"error", err,
		)
		if err := c.sleepBackoff(ctx, class, attempt); err != nil {
			return nil, err
		}
	}

	return nil, &FetchExhaustedError{Signature: signature, Attempts: c.maxRetries}
}

// attempt issues one fetch attempt against one endpoint: jsonParsed first,
// base64 as fallback, each under the per-request timeout. (nil, nil) means
// both encodings legitimately returned nothing.
func (c *Client) attempt(ctx context.Context, ep *endpoints.Endpoint, sig solana.Signature) (*RawTransaction, error) {
	rpcClient := c.clientFor(ep.URL)

	parsed, parsedErr := c.getParsed(ctx, rpcClient, ep, sig)
	if parsedErr == nil && parsedHasInstructions(parsed) {
		return &RawTransaction{Signature: sig.String(), Parsed: parsed}, nil
	}

	raw, rawErr := c.getRaw(ctx, rpcClient, ep, sig)
	if rawErr == nil && raw != nil && raw.Transaction != nil {
		return &RawTransaction{Signature: sig.String(), Raw: raw}, nil
	}

	if rawErr != nil {
		return nil, rawErr
	}
	if parsedErr != nil {
		return nil, parsedErr
	}
	return nil, nil
}

// getParsed issues the jsonParsed request under the per-request timeout.
func (c *Client) getParsed(ctx context.Context, rpcClient RPCClient, ep *endpoints.Endpoint, sig solana.Signature) (*ParsedTxResult, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	start := time.Now()
	parsed, err := rpcClient.GetParsedTransaction(reqCtx, sig)
	duration := time.Since(start).Seconds()

	status := "success"
	if err != nil {
		status = "error"
	}
	if c.metrics != nil {
		c.metrics.RecordRPCCall("getTransaction/jsonParsed", status, ep.URL, duration)
	}
	return parsed, err
}

// getRaw issues the base64 request under the per-request timeout. Some
// providers reject the versioned request for legacy transactions with a JSON
// shape error, in which case we immediately retry without version support.
func (c *Client) getRaw(ctx context.Context, rpcClient RPCClient, ep *endpoints.Endpoint, sig solana.Signature) (*rpc.GetTransactionResult, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	maxVersion := uint64(0)
	opts := &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		MaxSupportedTransactionVersion: &maxVersion,
	}

	start := time.Now()
	result, err := rpcClient.GetTransaction(reqCtx, sig, opts)
	duration := time.Since(start).Seconds()

	status := "success"
	if err != nil {
		status = "error"
	}
	if c.metrics != nil {
		c.metrics.RecordRPCCall("getTransaction/base64", status, ep.URL, duration)
	}

	if err != nil && strings.Contains(err.Error(), "expects '\"' or 'n', but found '{'") {
		c.logger.WarnContext(ctx, "could not fetch as versioned tx, retrying as legacy",
			"signature", sig.String(),
		)
		legacyOpts := &rpc.GetTransactionOpts{Encoding: solana.EncodingBase64}

		legacyStart := time.Now()
		result, err = rpcClient.GetTransaction(reqCtx, sig, legacyOpts)
		legacyDuration := time.Since(legacyStart).Seconds()

		legacyStatus := "success"
		if err != nil {
			legacyStatus = "error"
		}
		if c.metrics != nil {
			c.metrics.RecordRPCCall("getTransaction/base64-legacy", legacyStatus, ep.URL, legacyDuration)
		}
	}

	return result, err
}

// clientFor returns the (lazily dialed) RPC client for an endpoint URL.
func (c *Client) clientFor(url string) RPCClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cl, ok := c.clients[url]; ok {
		return cl
	}
	cl := c.dial(url)
	c.clients[url] = cl
	return cl
}

// fromCache returns the cached raw transaction, or nil on a miss. A record
// that fails to deserialize is treated as a miss and refetched.
func (c *Client) fromCache(ctx context.Context, signature string) *RawTransaction {
	data, err := c.cache.Get(signature)
	if err != nil {
		return nil
	}
	raw, err := UnmarshalRaw(data)
	if err != nil {
		c.logger.WarnContext(ctx, "discarding unreadable cache record",
			"signature", signature,
			"error", err,
		)
		return nil
	}
	return raw
}

// toCache persists a fetched transaction. Cache failures are logged, not
// fatal: the fetch already succeeded.
func (c *Client) toCache(ctx context.Context, signature string, raw *RawTransaction) {
	data, err := MarshalRaw(raw)
	if err != nil {
		c.logger.WarnContext(ctx, "failed to serialize transaction for cache",
			"signature", signature,
			"error", err,
		)
		return
	}
	if err := c.cache.Put(signature, data); err != nil {
		c.logger.WarnContext(ctx, "failed to write transaction to cache",
			"signature", signature,
			"error", err,
		)
	}
}

// sleepBackoff sleeps for the class-dependent backoff plus jitter, honoring
// ctx cancellation.
func (c *Client) sleepBackoff(ctx context.Context, class retryClass, attempt int) error {
	delay := backoffDelay(class, attempt, c.baseDelay)
	delay += rand.N(backoffJitterMax)

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// backoffDelay returns the base (pre-jitter) delay after a failed attempt.
// Rate-limited failures grow 3^attempt so a throttling provider gets real
// breathing room; everything else grows 2^attempt.
func backoffDelay(class retryClass, attempt int, base time.Duration) time.Duration {
	factor := int64(1)
	mult := int64(2)
	if class == retryRateLimited {
		mult = 3
	}
	for i := 0; i < attempt; i++ {
		factor *= mult
		if time.Duration(factor)*base > maxBackoffDelay {
			return maxBackoffDelay
		}
	}
	d := time.Duration(factor) * base
	if d > maxBackoffDelay {
		return maxBackoffDelay
	}
	return d
}

// classifyFetchError buckets a fetch error: providers signal throttling with
// HTTP 429 or a "too many requests" message; everything else is generic.
func classifyFetchError(err error) retryClass {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "429") || strings.Contains(msg, "too many requests") {
		return retryRateLimited
	}
	return retryOther
}

// parsedHasInstructions reports whether a jsonParsed result actually carries
// a transaction body worth normalizing.
func parsedHasInstructions(res *ParsedTxResult) bool {
	return res != nil &&
		res.Transaction != nil &&
		res.Transaction.Message != nil &&
		len(res.Transaction.Message.Instructions) > 0
}
