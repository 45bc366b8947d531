package batch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyonwav/txcanon/service/nats"
	"github.com/halcyonwav/txcanon/service/solana"
)

// mockFetcher returns a canned raw transaction per signature and records the
// maximum number of fetches in flight at once.
type mockFetcher struct {
	mu        sync.Mutex
	inFlight  int
	maxSeen   int
	responses map[string]*solana.RawTransaction
	errs      map[string]error
	fetched   []string
}

func (f *mockFetcher) Fetch(ctx context.Context, signature string) (*solana.RawTransaction, error) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxSeen {
		f.maxSeen = f.inFlight
	}
	f.fetched = append(f.fetched, signature)
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if err := f.errs[signature]; err != nil {
		return nil, err
	}
	return f.responses[signature], nil
}

func memoRaw(signature string) *solana.RawTransaction {
	return &solana.RawTransaction{
		Signature: signature,
		Parsed: &solana.ParsedTxResult{
			Transaction: &solana.ParsedTx{
				Message: &solana.ParsedMessage{
					Instructions: []solana.ParsedInstruction{
						{Program: "spl-memo", Parsed: json.RawMessage(`"hi"`)},
					},
				},
			},
		},
	}
}

func newTestOrchestrator(fetcher Fetcher, publisher nats.Publisher, concurrency int) *Orchestrator {
	return NewOrchestrator(OrchestratorOpts{
		Fetcher:       fetcher,
		Publisher:     publisher,
		Concurrency:   concurrency,
		ProgressEvery: 1,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestRun_ProcessesEverySignature(t *testing.T) {
	sigs := []string{"a", "b", "c", "d", "e"}
	fetcher := &mockFetcher{responses: map[string]*solana.RawTransaction{}}
	for _, s := range sigs {
		fetcher.responses[s] = memoRaw(s)
	}
	publisher := &nats.MockPublisher{}

	o := newTestOrchestrator(fetcher, publisher, 2)
	defer o.Stop()

	summary, err := o.Run(context.Background(), sigs)
	require.NoError(t, err)

	assert.Equal(t, 5, summary.Processed)
	assert.Equal(t, 5, summary.Succeeded)
	assert.Zero(t, summary.Failed)

	events := publisher.Events()
	require.Len(t, events, 5)
	published := make(map[string]solana.Classification)
	for _, ev := range events {
		published[ev.Signature] = ev.Classification
	}
	for _, s := range sigs {
		assert.Equal(t, solana.ClassMemo, published[s], "signature %s", s)
	}
}

func TestRun_ConcurrencyBounded(t *testing.T) {
	sigs := make([]string, 12)
	fetcher := &mockFetcher{responses: map[string]*solana.RawTransaction{}}
	for i := range sigs {
		sigs[i] = string(rune('a' + i))
		fetcher.responses[sigs[i]] = memoRaw(sigs[i])
	}
	publisher := &nats.MockPublisher{}

	o := newTestOrchestrator(fetcher, publisher, 3)
	defer o.Stop()

	_, err := o.Run(context.Background(), sigs)
	require.NoError(t, err)

	fetcher.mu.Lock()
	defer fetcher.mu.Unlock()
	assert.LessOrEqual(t, fetcher.maxSeen, 3)
}

func TestRun_PerSignatureFailuresAreIsolated(t *testing.T) {
	fetcher := &mockFetcher{
		responses: map[string]*solana.RawTransaction{
			"good": memoRaw("good"),
		},
		errs: map[string]error{
			"bad": &solana.FetchExhaustedError{Signature: "bad", Attempts: 5},
		},
	}
	publisher := &nats.MockPublisher{}

	o := newTestOrchestrator(fetcher, publisher, 1)
	defer o.Stop()

	summary, err := o.Run(context.Background(), []string{"bad", "good"})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)

	events := publisher.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "good", events[0].Signature)
}

func TestRun_EmptyTransactionIsNotAnError(t *testing.T) {
	fetcher := &mockFetcher{
		responses: map[string]*solana.RawTransaction{
			// A raw transaction with no instructions normalizes to nil.
			"hollow": {Signature: "hollow"},
		},
	}
	publisher := &nats.MockPublisher{}

	o := newTestOrchestrator(fetcher, publisher, 1)
	defer o.Stop()

	summary, err := o.Run(context.Background(), []string{"hollow"})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.Empty)
	assert.Zero(t, summary.Failed)
	assert.Empty(t, publisher.Events())
}

func TestRun_EmptyListIsZeroItemSuccess(t *testing.T) {
	fetcher := &mockFetcher{}
	publisher := &nats.MockPublisher{}

	o := newTestOrchestrator(fetcher, publisher, 4)
	defer o.Stop()

	summary, err := o.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, summary.Processed)
}

func TestRun_PublishFailureCountsAsError(t *testing.T) {
	fetcher := &mockFetcher{
		responses: map[string]*solana.RawTransaction{"a": memoRaw("a")},
	}
	publisher := &nats.MockPublisher{PublishErr: errors.New("broker down")}

	o := newTestOrchestrator(fetcher, publisher, 1)
	defer o.Stop()

	summary, err := o.Run(context.Background(), []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)
}
