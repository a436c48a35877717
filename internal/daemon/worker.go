package daemon

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/fenrik/blogpub/internal/daemon/events"
	"github.com/fenrik/blogpub/internal/logfields"
)

// RunFunc executes one publish run. reason describes what triggered it.
type RunFunc func(ctx context.Context, reason string) error

// Worker consumes PublishNow events and executes publish runs one at a time.
// A run failure is logged and the worker keeps serving; the daemon never dies
// because a single publish failed.
type Worker struct {
	bus     *events.Bus
	run     RunFunc
	running atomic.Bool

	readyOnce chan struct{}
}

func NewWorker(bus *events.Bus, run RunFunc) *Worker {
	return &Worker{bus: bus, run: run, readyOnce: make(chan struct{})}
}

// Running reports whether a publish run is currently executing. The debouncer
// uses this to queue a follow-up instead of overlapping runs.
func (w *Worker) Running() bool {
	return w.running.Load()
}

// Ready is closed once Run has subscribed to events.
func (w *Worker) Ready() <-chan struct{} {
	return w.readyOnce
}

func (w *Worker) Run(ctx context.Context) error {
	ch, unsubscribe := events.Subscribe[events.PublishNow](w.bus, 1)
	defer unsubscribe()

	close(w.readyOnce)

	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-ch:
			if !ok {
				return nil
			}
			slog.Info("Publish triggered",
				slog.String("cause", evt.DebounceCause),
				slog.Int("coalesced_requests", evt.RequestCount),
				slog.String("reason", evt.LastReason))

			w.running.Store(true)
			err := w.run(ctx, evt.LastReason)
			w.running.Store(false)

			if err != nil && ctx.Err() == nil {
				slog.Error("Publish run failed", logfields.Error(err))
			}
		}
	}
}
