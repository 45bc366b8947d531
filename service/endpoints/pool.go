// Package endpoints manages the rotation of Solana RPC endpoints.
//
// Public RPC providers throttle aggressively, so the pool enforces a minimum
// interval between requests to the same endpoint while handing endpoints out
// in strict round-robin order. Failures never change routing: a flaky endpoint
// keeps its slot in the rotation and its trouble shows up in the counters
// instead.
package endpoints

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Endpoint is one RPC provider address plus its usage counters.
// Endpoints are owned by the Pool; callers receive pointers but must only
// pass them back to RecordSuccess/RecordFailure, never mutate them.
type Endpoint struct {
	URL string

	mu          sync.Mutex
	requests    int
	successes   int
	failures    int
	lastRequest time.Time
}

// Stats is a point-in-time snapshot of one endpoint's counters.
type Stats struct {
	URL       string
	Requests  int
	Successes int
	Failures  int
}

// Pool hands out endpoints in strict round-robin order, pacing requests so
// that no endpoint is hit more often than once per minInterval.
type Pool struct {
	endpoints   []*Endpoint
	minInterval time.Duration

	mu   sync.Mutex
	next int
}

// New creates a Pool over the given endpoint URLs.
func New(urls []string, minInterval time.Duration) (*Pool, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("endpoint pool requires at least one endpoint")
	}

	eps := make([]*Endpoint, len(urls))
	for i, u := range urls {
		eps[i] = &Endpoint{URL: u}
	}

	return &Pool{
		endpoints:   eps,
		minInterval: minInterval,
	}, nil
}

// Len returns the number of configured endpoints.
func (p *Pool) Len() int {
	return len(p.endpoints)
}

// Next returns the next endpoint in rotation, sleeping until that endpoint's
// minimum request interval has elapsed. Only the caller waits; other
// goroutines can claim and use different endpoints in the meantime. The wait
// is abandoned if ctx is canceled.
//
// With a single endpoint the pacing degenerates to a global rate limit.
func (p *Pool) Next(ctx context.Context) (*Endpoint, error) {
	p.mu.Lock()
	ep := p.endpoints[p.next]
	p.next = (p.next + 1) % len(p.endpoints)
	p.mu.Unlock()

	// Claim the endpoint's next send slot under its own lock, then sleep
	// outside any lock. Concurrent claimants of the same endpoint queue up
	// one minInterval apart.
	ep.mu.Lock()
	now := time.Now()
	sendAt := ep.lastRequest.Add(p.minInterval)
	if sendAt.Before(now) {
		sendAt = now
	}
	ep.lastRequest = sendAt
	ep.requests++
	ep.mu.Unlock()

	if wait := time.Until(sendAt); wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	return ep, nil
}

// RecordSuccess increments the endpoint's success counter.
// Observability only; it never affects routing.
func (p *Pool) RecordSuccess(ep *Endpoint) {
	ep.mu.Lock()
	ep.successes++
	ep.mu.Unlock()
}

// RecordFailure increments the endpoint's failure counter.
// Observability only; it never affects routing.
func (p *Pool) RecordFailure(ep *Endpoint) {
	ep.mu.Lock()
	ep.failures++
	ep.mu.Unlock()
}

// Snapshot returns per-endpoint usage stats in configuration order.
func (p *Pool) Snapshot() []Stats {
	out := make([]Stats, len(p.endpoints))
	for i, ep := range p.endpoints {
		ep.mu.Lock()
		out[i] = Stats{
			URL:       ep.URL,
			Requests:  ep.requests,
			Successes: ep.successes,
			Failures:  ep.failures,
		}
		ep.mu.Unlock()
	}
	return out
}
