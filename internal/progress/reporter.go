package progress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// DefaultQueueSize bounds the pending event queue.
const DefaultQueueSize = 256

// Sink receives events. The task runner only depends on this; the HTTP
// reporter and the test recorder both implement it.
type Sink interface {
	Emit(event Event)
}

// Reporter delivers events to the callback API in order from a single
// worker. Delivery is at-most-once: a failed POST is logged and dropped,
// never retried, and a full queue drops the newest event. Nothing here can
// fail the task.
type Reporter struct {
	endpoint string
	http     *http.Client
	log      *slog.Logger

	queue chan Event
	done  chan struct{}
	once  sync.Once
}

// NewReporter creates a reporter posting to apiEndpoint and starts its
// delivery worker.
func NewReporter(apiEndpoint string, queueSize int, logger *slog.Logger) *Reporter {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Reporter{
		endpoint: apiEndpoint + "/api/v1/internal/events",
		http:     &http.Client{Timeout: 10 * time.Second},
		log:      logger.With("component", "progress"),
		queue:    make(chan Event, queueSize),
		done:     make(chan struct{}),
	}
	go r.deliver()
	return r
}

// Emit implements Sink. It never blocks: when the queue is full the event
// is dropped and logged.
func (r *Reporter) Emit(event Event) {
	select {
	case r.queue <- event:
	default:
		r.log.Warn("event queue full, dropping event", "type", event.Type)
	}
}

// Close stops accepting events, drains the queue, and waits for the
// worker to finish.
func (r *Reporter) Close() {
	r.once.Do(func() {
		close(r.queue)
		<-r.done
	})
}

func (r *Reporter) deliver() {
	defer close(r.done)
	for event := range r.queue {
		if err := r.post(event); err != nil {
			r.log.Warn("failed to deliver event", "type", event.Type, "error", err)
		}
	}
}

func (r *Reporter) post(event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("callback API returned %d", resp.StatusCode)
	}
	return nil
}

// Recorder is an in-memory Sink for tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit implements Sink.
func (r *Recorder) Emit(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns a copy of the recorded events in emission order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType returns recorded events matching kind.
func (r *Recorder) OfType(kind string) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == kind {
			out = append(out, e)
		}
	}
	return out
}
