package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type capturingSink struct {
	mu     sync.Mutex
	events []string
}

func (s *capturingSink) Send(ctx context.Context, eventType string, payload map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, eventType)
	return nil
}

func (s *capturingSink) captured() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	copy(out, s.events)
	return out
}

func TestAsyncAuditNotifier_DeliversInOrder(t *testing.T) {
	sink := &capturingSink{}
	notifier := NewAsyncAuditNotifier(sink, 16)

	notifier.Notify("fund.created", map[string]any{"fund_id": "f-1"})
	notifier.Notify("fund.blocked", map[string]any{"fund_id": "f-1"})
	notifier.Notify("fund.unblocked", map[string]any{"fund_id": "f-1"})

	// Close drains the buffer before returning.
	notifier.Close()

	assert.Equal(t, []string{"fund.created", "fund.blocked", "fund.unblocked"}, sink.captured())
}

func TestAsyncAuditNotifier_DropsWhenFull(t *testing.T) {
	block := make(chan struct{})
	sink := &blockingSink{release: block}
	notifier := NewAsyncAuditNotifier(sink, 1)

	// First event occupies the worker, second fills the buffer, the rest are
	// dropped without blocking the caller.
	for i := 0; i < 10; i++ {
		notifier.Notify("fund.adjusted", nil)
	}
	close(block)
	notifier.Close()

	assert.LessOrEqual(t, sink.count(), 3)
	assert.GreaterOrEqual(t, sink.count(), 1)
}

func TestAsyncAuditNotifier_NotifyAfterClose(t *testing.T) {
	sink := &capturingSink{}
	notifier := NewAsyncAuditNotifier(sink, 4)

	notifier.Notify("fund.created", nil)
	notifier.Close()

	// Late events are dropped, never sent on the closed channel.
	notifier.Notify("fund.blocked", nil)
	notifier.Close()

	assert.Equal(t, []string{"fund.created"}, sink.captured())
}

func TestAsyncAuditNotifier_CloseDuringNotify(t *testing.T) {
	sink := &capturingSink{}
	notifier := NewAsyncAuditNotifier(sink, 2)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			notifier.Notify("fund.adjusted", nil)
		}()
	}
	notifier.Close()
	wg.Wait()
}

type blockingSink struct {
	mu      sync.Mutex
	n       int
	once    sync.Once
	release chan struct{}
}

func (s *blockingSink) Send(ctx context.Context, eventType string, payload map[string]any) error {
	s.once.Do(func() { <-s.release })
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return nil
}

func (s *blockingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}
