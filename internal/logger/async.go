package logger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Closer flushes buffered log output on shutdown.
type Closer interface {
	Close()
}

// nopCloser is the Closer for synchronous mode.
type nopCloser struct{}

func (nopCloser) Close() {}

// entry pairs a record with the handler that accepted it, so records
// written through WithAttrs or WithGroup derivatives keep their
// attributes when a worker finally formats them.
type entry struct {
	h   slog.Handler
	rec slog.Record
}

// asyncCore is the queue shared by an AsyncHandler and every handler
// derived from it. Closing the root drains the queue for all of them.
type asyncCore struct {
	queue   chan entry
	workers sync.WaitGroup
	dropped atomic.Int64
}

// AsyncHandler decouples log emission from log formatting. Records are
// queued and written by background workers; when the queue is full the
// record is dropped rather than stalling an analysis run.
type AsyncHandler struct {
	inner slog.Handler
	core  *asyncCore
}

// NewAsyncHandler wraps inner with a queue of the given capacity
// drained by the given number of workers.
func NewAsyncHandler(inner slog.Handler, queueSize, workers int) *AsyncHandler {
	core := &asyncCore{queue: make(chan entry, queueSize)}
	for range workers {
		core.workers.Add(1)
		go core.drain()
	}
	return &AsyncHandler{inner: inner, core: core}
}

func (c *asyncCore) drain() {
	defer c.workers.Done()
	for e := range c.queue {
		_ = e.h.Handle(context.Background(), e.rec)
	}
}

// Enabled delegates to the wrapped handler.
func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle enqueues the record, dropping it when the queue is full.
func (h *AsyncHandler) Handle(_ context.Context, rec slog.Record) error { //nolint:gocritic // the Handler interface passes records by value
	select {
	case h.core.queue <- entry{h: h.inner, rec: rec}:
	default:
		h.core.dropped.Add(1)
	}
	return nil
}

// WithAttrs derives a handler that shares the queue but formats
// through its own inner handler.
func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithAttrs(attrs), core: h.core}
}

// WithGroup derives a handler that shares the queue but formats
// through its own inner handler.
func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithGroup(name), core: h.core}
}

// Dropped reports how many records were discarded because the queue
// was full.
func (h *AsyncHandler) Dropped() int64 {
	return h.core.dropped.Load()
}

// Close stops accepting records and blocks until the workers have
// written everything still queued.
func (h *AsyncHandler) Close() {
	close(h.core.queue)
	h.core.workers.Wait()
}
