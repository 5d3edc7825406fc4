package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/webanalyst/corius/internal/otel"
)

// flushTimeout bounds one background save; a wedged gateway must not pin a
// goroutine forever.
const flushTimeout = 30 * time.Second

// flusher coalesces bursts of mutations into single snapshot saves.
//
// Invariants: at most one save is in flight at any moment; a mutation that
// arrives while a save runs sets the again flag, and exactly one follow-up
// save covering the latest state starts when the in-flight one completes.
// A failed background save is logged and retried on the next trigger (a
// synthetic one is scheduled if none is pending); it never surfaces to the
// mutation caller.
type flusher struct {
	delay time.Duration
	save  func(ctx context.Context) error

	mu       sync.Mutex
	timer    *time.Timer
	inFlight bool
	again    bool
	wait     chan struct{} // closed when the current in-flight save completes
}

func newFlusher(delay time.Duration, save func(ctx context.Context) error) *flusher {
	return &flusher{delay: delay, save: save}
}

// Schedule (re)starts the debounce timer.
func (f *flusher) Schedule() {
	f.mu.Lock()
	if f.timer != nil {
		f.timer.Stop()
	}
	f.timer = time.AfterFunc(f.delay, f.fire)
	f.mu.Unlock()
}

func (f *flusher) fire() {
	f.mu.Lock()
	f.timer = nil
	if f.inFlight {
		f.again = true
		f.mu.Unlock()
		return
	}
	f.startLocked()
	f.mu.Unlock()
}

func (f *flusher) startLocked() {
	f.inFlight = true
	f.wait = make(chan struct{})
	go f.run()
}

func (f *flusher) run() {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	start := time.Now()
	err := f.save(ctx)
	cancel()

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	otel.RecordFlush(context.Background(), outcome, time.Since(start))

	f.mu.Lock()
	f.inFlight = false
	close(f.wait)
	if err != nil {
		slog.Error("workspace flush failed", "err", err)
		if !f.again && f.timer == nil {
			f.timer = time.AfterFunc(f.delay, f.fire)
		}
	}
	if f.again {
		f.again = false
		f.startLocked()
	}
	f.mu.Unlock()
}

// Force drains any pending debounce and runs one save synchronously. A
// mutation whose debounce fires while the save runs is covered by a
// follow-up save before Force returns, same as the background rule. Unlike
// the background path, the save error is returned to the caller.
func (f *flusher) Force(ctx context.Context) error {
	f.mu.Lock()
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
	for f.inFlight {
		wait := f.wait
		f.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
			return ctx.Err()
		}
		f.mu.Lock()
		if f.timer != nil {
			f.timer.Stop()
			f.timer = nil
		}
	}
	f.inFlight = true
	f.wait = make(chan struct{})
	f.again = false
	f.mu.Unlock()

	for {
		err := f.save(ctx)

		f.mu.Lock()
		if err == nil && f.again {
			f.again = false
			f.mu.Unlock()
			continue
		}
		f.inFlight = false
		close(f.wait)
		if err != nil && f.again {
			// The caller gets this save's error; the pending mutation is
			// handed to the background machinery, which retries on failure.
			f.again = false
			f.startLocked()
		}
		f.mu.Unlock()
		return err
	}
}
