package service

import (
	"context"
	"sync"
	"time"

	"travelfund-backend/internal/logger"
)

// AuditSink is the external audit system. Send may be slow or fail; the
// notifier shields callers from both.
type AuditSink interface {
	Send(ctx context.Context, eventType string, payload map[string]any) error
}

// LogAuditSink writes audit events to the application log. Stands in when no
// external sink is configured.
type LogAuditSink struct{}

func (LogAuditSink) Send(ctx context.Context, eventType string, payload map[string]any) error {
	logger.Info("audit event", "event_type", eventType, "payload", payload)
	return nil
}

type auditEvent struct {
	eventType string
	payload   map[string]any
}

// AsyncAuditNotifier forwards events to the sink on a single worker
// goroutine. Notify never blocks: when the buffer is full the event is
// dropped with a warning. Sink failures are logged and swallowed.
type AsyncAuditNotifier struct {
	mu     sync.Mutex
	closed bool
	events chan auditEvent
	done   chan struct{}
	sink   AuditSink
}

func NewAsyncAuditNotifier(sink AuditSink, bufferSize int) *AsyncAuditNotifier {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	n := &AsyncAuditNotifier{
		events: make(chan auditEvent, bufferSize),
		done:   make(chan struct{}),
		sink:   sink,
	}
	go n.run()
	return n
}

func (n *AsyncAuditNotifier) Notify(eventType string, payload map[string]any) {
	// The send must happen under the mutex so Close cannot close the channel
	// between the flag check and the send.
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		logger.Warn("audit notifier closed, dropping event", "event_type", eventType)
		return
	}
	select {
	case n.events <- auditEvent{eventType: eventType, payload: payload}:
	default:
		logger.Warn("audit buffer full, dropping event", "event_type", eventType)
	}
}

// Close stops accepting events and drains the buffer. Safe to call more than
// once and safe against concurrent Notify calls, which turn into drops.
func (n *AsyncAuditNotifier) Close() {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.events)
	}
	n.mu.Unlock()
	<-n.done
}

func (n *AsyncAuditNotifier) run() {
	defer close(n.done)
	for ev := range n.events {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := n.sink.Send(ctx, ev.eventType, ev.payload); err != nil {
			logger.Warn("audit sink delivery failed", "event_type", ev.eventType, "error", err)
		}
		cancel()
	}
}
