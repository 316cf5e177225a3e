// Package flush runs the background maintenance loop: persisting progress
// that failed to save and evicting finished quiz sessions.
package flush

import (
	"context"
	"log/slog"
	"time"
)

// Progress is implemented by progress.Registry
type Progress interface {
	FlushAll(ctx context.Context) (flushed, failed int)
	Evict() int
}

// Sessions is implemented by quiz.Sessions
type Sessions interface {
	Evict() int
}

// Flusher handles periodic persistence retries and session eviction
type Flusher struct {
	progress Progress
	sessions Sessions
	interval time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// NewFlusher creates a new maintenance worker. sessions may be nil.
func NewFlusher(progress Progress, sessions Sessions, interval time.Duration) *Flusher {
	if interval <= 0 {
		interval = 30 * time.Second
	}

	return &Flusher{
		progress: progress,
		sessions: sessions,
		interval: interval,
	}
}

// finalFlushTimeout bounds the last flush made when the worker stops
const finalFlushTimeout = 10 * time.Second

// Start begins the worker in a goroutine
func (f *Flusher) Start(ctx context.Context) {
	ctx, f.cancel = context.WithCancel(ctx)
	f.done = make(chan struct{})
	go f.run(ctx)
}

// Stop cancels the worker and waits for its final flush to finish
func (f *Flusher) Stop() {
	if f.cancel == nil {
		return
	}
	f.cancel()
	<-f.done
}

// run is the main loop for the worker
func (f *Flusher) run(ctx context.Context) {
	defer close(f.done)
	slog.Info("flush worker started", "interval", f.interval)

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// One last attempt so pending writes survive a clean shutdown.
			final, cancel := context.WithTimeout(context.Background(), finalFlushTimeout)
			f.Tick(final)
			cancel()
			slog.Info("flush worker stopped")
			return
		case <-ticker.C:
			f.Tick(ctx)
		}
	}
}

// Tick runs a single maintenance cycle
func (f *Flusher) Tick(ctx context.Context) {
	slog.Debug("running flush cycle")

	flushed, failed := f.progress.FlushAll(ctx)
	switch {
	case failed > 0:
		slog.Warn("progress flush incomplete", "flushed", flushed, "failed", failed)
	case flushed > 0:
		slog.Info("pending progress persisted", "flushed", flushed)
	}

	if n := f.progress.Evict(); n > 0 {
		slog.Info("idle progress stores unloaded", "count", n)
	}

	if f.sessions != nil {
		f.sessions.Evict()
	}
}
