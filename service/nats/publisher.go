package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/halcyonwav/txcanon/service/metrics"
)

// Publisher defines the interface for handing off processed results.
type Publisher interface {
	// PublishResult publishes one processed transaction.
	PublishResult(ctx context.Context, event *ResultEvent) error

	// Close releases the underlying connection, if any.
	Close() error
}

// JetStreamPublisher publishes result events to NATS JetStream.
type JetStreamPublisher struct {
	nc      *nats.Conn
	js      jetstream.JetStream
	logger  *slog.Logger
	metrics *metrics.Metrics
}

const (
	// StreamName is the name of the JetStream stream for processed results.
	StreamName = "CANONICAL_TXNS"

	// StreamSubjects is the subject pattern for the stream. Results are
	// published per classification tag so consumers can subscribe narrowly.
	StreamSubjects = "canon.*"

	// StreamRetention is how long messages are retained.
	StreamRetention = 30 * 24 * time.Hour
)

// NewPublisher creates a new JetStream publisher.
// It connects to NATS and ensures the stream exists. Metrics may be nil.
func NewPublisher(natsURL string, m *metrics.Metrics, logger *slog.Logger) (*JetStreamPublisher, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name("txcanon-publisher"),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(1*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	publisher := &JetStreamPublisher{
		nc:      nc,
		js:      js,
		logger:  logger,
		metrics: m,
	}

	if err := publisher.ensureStream(); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to ensure stream exists: %w", err)
	}

	logger.Info("NATS publisher initialized",
		"url", natsURL,
		"stream", StreamName,
	)

	return publisher, nil
}

// ensureStream creates the JetStream stream if it doesn't exist.
func (p *JetStreamPublisher) ensureStream() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := p.js.Stream(ctx, StreamName); err == nil {
		return nil
	}

	p.logger.Info("creating JetStream stream", "stream", StreamName)

	streamConfig := jetstream.StreamConfig{
		Name:        StreamName,
		Description: "Canonical transactions from signature sweeps",
		Subjects:    []string{StreamSubjects},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      StreamRetention,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
	}

	if _, err := p.js.CreateStream(ctx, streamConfig); err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// PublishResult publishes a single result event.
func (p *JetStreamPublisher) PublishResult(ctx context.Context, event *ResultEvent) error {
	subject := fmt.Sprintf("canon.%s", event.Classification)

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal result event: %w", err)
	}

	_, err = p.js.Publish(ctx, subject, data)
	if p.metrics != nil {
		p.metrics.RecordNATSPublish(subject, err)
	}
	if err != nil {
		return fmt.Errorf("failed to publish result: %w", err)
	}

	p.logger.Debug("published result event",
		"subject", subject,
		"signature", event.Signature,
	)

	return nil
}

// Close closes the connection to NATS.
func (p *JetStreamPublisher) Close() error {
	p.nc.Close()
	return nil
}

// LogPublisher is the default hand-off when no NATS URL is configured: it
// writes each result to the structured log. Useful for dry runs and tests of
// the full pipeline without a broker.
type LogPublisher struct {
	Logger *slog.Logger
}

func (p *LogPublisher) PublishResult(ctx context.Context, event *ResultEvent) error {
	instructions := 0
	if event.Transaction != nil {
		instructions = len(event.Transaction.Instructions)
	}
	p.Logger.InfoContext(ctx, "processed transaction",
		"signature", event.Signature,
		"classification", string(event.Classification),
		"instructions", instructions,
	)
	return nil
}

func (p *LogPublisher) Close() error {
	return nil
}
