// internal/notify/batcher.go
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"bitbucket-commit-mirror/internal/model"
)

// DefaultThreshold is the queue length above which an enqueue triggers an
// opportunistic delivery attempt.
const DefaultThreshold = 100

// Batcher accumulates outgoing events and posts them to the notification
// endpoint in bounded batches. Delivery is at-least-once: the queue is
// cleared only on a confirmed acknowledgment, otherwise events stay pending
// for the next flush trigger. There is no retry backoff and no cap on the
// retained queue; Pending is exposed so operators can alert on growth.
type Batcher struct {
	url    string
	client *http.Client
	logger *slog.Logger

	mu        sync.Mutex
	queue     []model.Event
	threshold int
	lastErr   string
}

// NewBatcher creates a Batcher posting to url. threshold <= 0 selects
// DefaultThreshold.
func NewBatcher(url string, threshold int, logger *slog.Logger) *Batcher {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Batcher{
		url:       url,
		client:    &http.Client{Timeout: 30 * time.Second},
		logger:    logger,
		threshold: threshold,
	}
}

// Enqueue appends an event to the queue. When the queue length exceeds the
// threshold a delivery attempt is made; on failure the events simply remain
// queued.
func (b *Batcher) Enqueue(ctx context.Context, ev model.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queue = append(b.queue, ev)
	if len(b.queue) > b.threshold {
		b.deliverLocked(ctx)
	}
}

// FlushIfPending delivers the queue regardless of size, used at the end of
// each repository's traversal.
func (b *Batcher) FlushIfPending(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queue) > 0 {
		b.deliverLocked(ctx)
	}
}

// Pending reports the number of queued events awaiting delivery.
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// LastError reports the most recent delivery failure, empty after a
// successful delivery.
func (b *Batcher) LastError() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErr
}

// deliverLocked posts the whole queue as one JSON array. The endpoint
// acknowledges with the literal body "OK"; any other response leaves the
// queue intact. Callers must hold b.mu.
func (b *Batcher) deliverLocked(ctx context.Context) {
	body, err := json.Marshal(b.queue)
	if err != nil {
		// Events are plain value structs; this cannot happen in practice.
		b.lastErr = err.Error()
		b.logger.Error("Failed to serialize event batch", "error", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url, bytes.NewReader(body))
	if err != nil {
		b.lastErr = err.Error()
		b.logger.Error("Failed to build notification request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		b.lastErr = err.Error()
		b.logger.Warn("Notification delivery failed, batch retained", "pending", len(b.queue), "error", err)
		return
	}
	defer resp.Body.Close()

	ack, err := io.ReadAll(resp.Body)
	if err != nil {
		b.lastErr = err.Error()
		b.logger.Warn("Failed to read notification response, batch retained", "pending", len(b.queue), "error", err)
		return
	}

	if string(ack) != "OK" {
		b.lastErr = "unexpected acknowledgment: " + string(ack)
		b.logger.Warn("Notification endpoint did not acknowledge, batch retained",
			"pending", len(b.queue), "status", resp.StatusCode)
		return
	}

	b.logger.Debug("Delivered event batch", "count", len(b.queue))
	b.queue = nil
	b.lastErr = ""
}
