package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"campuspush/internal/types"
)

// LogWriter persists delivery records off the response path. Write returns
// immediately; failures are logged and reported to metrics, never to the
// caller.
type LogWriter struct {
	store   LogStore
	timeout time.Duration
	logger  *slog.Logger
	metrics Metrics

	wg sync.WaitGroup
}

// NewLogWriter creates a LogWriter. timeout bounds each batch write; zero
// leaves it unbounded.
func NewLogWriter(store LogStore, timeout time.Duration, logger *slog.Logger, metrics Metrics) *LogWriter {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &LogWriter{store: store, timeout: timeout, logger: logger, metrics: metrics}
}

// Write schedules entries for persistence. The write survives cancellation
// of ctx, which is only used to carry request-scoped values.
func (w *LogWriter) Write(ctx context.Context, entries []types.NotificationLogEntry) {
	if len(entries) == 0 {
		return
	}

	base := context.WithoutCancel(ctx)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				w.logger.Error("notification log write panicked", "panic", rec, "entries", len(entries))
			}
		}()

		writeCtx := base
		if w.timeout > 0 {
			var cancel context.CancelFunc
			writeCtx, cancel = context.WithTimeout(base, w.timeout)
			defer cancel()
		}

		err := w.store.InsertBatch(writeCtx, entries)
		w.metrics.RecordLogWrite(writeCtx, len(entries), err)
		if err != nil {
			w.logger.Error("failed to store notification log",
				"entries", len(entries),
				"request_id", types.GetRequestID(ctx),
				"error", err,
			)
		}
	}()
}

// Wait blocks until all scheduled writes have finished. It is used during
// shutdown so pending records are not lost.
func (w *LogWriter) Wait() {
	w.wg.Wait()
}

// WaitContext is Wait bounded by ctx. It reports whether all writes
// finished before ctx was done.
func (w *LogWriter) WaitContext(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
