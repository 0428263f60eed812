// Package events provides an asynchronous audit log. Writes are buffered
// through a channel and persisted by a background worker so that recording an
// expense never blocks on the event store.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/mmynk/tally/internal/models"
	"github.com/mmynk/tally/internal/storage"
)

// DefaultBuffer is the default channel capacity for pending events.
const DefaultBuffer = 256

// Worker drains buffered events into the store.
type Worker struct {
	store  storage.Store
	logger *slog.Logger
	ch     chan models.Event
	wg     sync.WaitGroup
	once   sync.Once
}

// NewWorker creates a worker with the given buffer capacity. A capacity of
// zero or less falls back to DefaultBuffer.
func NewWorker(store storage.Store, logger *slog.Logger, buffer int) *Worker {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Worker{
		store:  store,
		logger: logger,
		ch:     make(chan models.Event, buffer),
	}
}

// Start launches the background drain loop.
func (w *Worker) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for event := range w.ch {
			// Use a fresh context per write; the request that produced the
			// event may already have returned.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := w.store.AppendEvent(ctx, &event); err != nil {
				w.logger.Error("failed to persist event", "type", event.Type, "error", err)
			}
			cancel()
		}
	}()
}

// Log enqueues an event with the given payload. The payload is marshaled to
// JSON; if that fails or the buffer is full, the event is dropped with a
// warning rather than blocking the caller.
func (w *Worker) Log(eventType models.EventType, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		w.logger.Warn("failed to marshal event payload", "type", eventType, "error", err)
		return
	}
	event := models.Event{
		Type:    eventType,
		Payload: string(data),
	}
	select {
	case w.ch <- event:
	default:
		w.logger.Warn("event buffer full, dropping event", "type", eventType)
	}
}

// Shutdown stops accepting new events and blocks until the buffer is drained.
func (w *Worker) Shutdown() {
	w.once.Do(func() {
		close(w.ch)
	})
	w.wg.Wait()
}
