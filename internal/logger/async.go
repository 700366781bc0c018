package logger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Sink is the output side of a logger built by New.
type Sink interface {
	// Close flushes buffered records. Later records are written inline.
	Close()
	// Dropped reports how many records a full buffer discarded.
	Dropped() int64
}

// syncSink is the Sink of an unbuffered logger.
type syncSink struct{}

func (syncSink) Close()         {}
func (syncSink) Dropped() int64 { return 0 }

// BufferedHandler hands records to writer goroutines through a bounded
// buffer so a request never waits on log output. When the buffer is full,
// records below slog.LevelError are dropped and counted while errors are
// written inline by the caller.
type BufferedHandler struct {
	inner slog.Handler
	buf   *recordBuffer
}

// recordBuffer is shared by a handler and everything derived from it.
type recordBuffer struct {
	mu      sync.RWMutex
	closed  bool
	ch      chan bufferedRecord
	wg      sync.WaitGroup
	dropped atomic.Int64
}

// bufferedRecord keeps the handler chain that logged rec so attributes
// added with With survive the trip through the buffer.
type bufferedRecord struct {
	h   slog.Handler
	rec slog.Record
}

// NewBufferedHandler buffers up to size records for inner and starts
// writers goroutines to drain them.
func NewBufferedHandler(inner slog.Handler, size, writers int) *BufferedHandler {
	buf := &recordBuffer{ch: make(chan bufferedRecord, size)}
	for range writers {
		buf.wg.Add(1)
		go buf.drain()
	}
	return &BufferedHandler{inner: inner, buf: buf}
}

func (b *recordBuffer) drain() {
	defer b.wg.Done()
	for br := range b.ch {
		_ = br.h.Handle(context.Background(), br.rec)
	}
}

func (h *BufferedHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *BufferedHandler) Handle(ctx context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	h.buf.mu.RLock()
	defer h.buf.mu.RUnlock()

	if !h.buf.closed {
		select {
		case h.buf.ch <- bufferedRecord{h: h.inner, rec: rec.Clone()}:
			return nil
		default:
		}
		if rec.Level < slog.LevelError {
			h.buf.dropped.Add(1)
			return nil
		}
	}
	return h.inner.Handle(ctx, rec)
}

func (h *BufferedHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &BufferedHandler{inner: h.inner.WithAttrs(attrs), buf: h.buf}
}

func (h *BufferedHandler) WithGroup(name string) slog.Handler {
	return &BufferedHandler{inner: h.inner.WithGroup(name), buf: h.buf}
}

// Dropped returns the number of records discarded because the buffer was full.
func (h *BufferedHandler) Dropped() int64 {
	return h.buf.dropped.Load()
}

// Close stops accepting buffered records and waits for the writers to
// drain what is queued. It is safe to call more than once.
func (h *BufferedHandler) Close() {
	h.buf.mu.Lock()
	if h.buf.closed {
		h.buf.mu.Unlock()
		return
	}
	h.buf.closed = true
	close(h.buf.ch)
	h.buf.mu.Unlock()
	h.buf.wg.Wait()
}
