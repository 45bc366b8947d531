package nats

import (
	"context"
	"sync"
)

// MockPublisher is an in-memory Publisher for tests.
type MockPublisher struct {
	mu     sync.Mutex
	events []*ResultEvent
	closed bool

	// PublishErr, when set, is returned by every PublishResult call.
	PublishErr error
}

func (m *MockPublisher) PublishResult(ctx context.Context, event *ResultEvent) error {
	if m.PublishErr != nil {
		return m.PublishErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Events returns a snapshot of everything published so far.
func (m *MockPublisher) Events() []*ResultEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*ResultEvent, len(m.events))
	copy(out, m.events)
	return out
}

// Closed reports whether Close was called.
func (m *MockPublisher) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
