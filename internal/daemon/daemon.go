// Package daemon keeps a blog continuously published: it listens for forge
// push webhooks, debounces bursts of pushes into single publish runs, and
// optionally re-publishes on a fixed schedule.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fenrik/blogpub/internal/config"
	"github.com/fenrik/blogpub/internal/daemon/events"
	"github.com/fenrik/blogpub/internal/logfields"
)

// Daemon wires the bus, debouncer, worker, webhook server and scheduler into
// one long-running process.
type Daemon struct {
	cfg       config.DaemonConfig
	run       RunFunc
	registry  *prometheus.Registry
	bus       *events.Bus
	worker    *Worker
	debouncer *Debouncer
	scheduler *Scheduler
	server    *Server
}

// New assembles a daemon from config. run executes one publish; it is called
// serially, never concurrently with itself.
func New(cfg config.DaemonConfig, run RunFunc, registry *prometheus.Registry) (*Daemon, error) {
	bus := events.NewBus()
	worker := NewWorker(bus, run)

	debouncer, err := NewDebouncer(bus, DebouncerConfig{
		QuietWindow:  cfg.QuietWindow.Std(),
		MaxDelay:     cfg.MaxDelay.Std(),
		CheckRunning: worker.Running,
	})
	if err != nil {
		return nil, fmt.Errorf("create debouncer: %w", err)
	}

	d := &Daemon{
		cfg:       cfg,
		run:       run,
		registry:  registry,
		bus:       bus,
		worker:    worker,
		debouncer: debouncer,
	}

	webhook := NewWebhookHandler(bus, cfg.Branch, cfg.WebhookSecret)
	d.server = NewServer(cfg.Listen, webhook, registry)

	if cfg.Schedule > 0 {
		scheduler, err := NewScheduler(bus)
		if err != nil {
			return nil, err
		}
		if err := scheduler.SchedulePeriodicPublish(cfg.Schedule.Std()); err != nil {
			return nil, err
		}
		d.scheduler = scheduler
	}

	return d, nil
}

// Run starts everything and blocks until ctx is canceled, then shuts down
// gracefully. An in-flight publish gets a grace period to finish.
func (d *Daemon) Run(ctx context.Context) error {
	slog.Info("Daemon starting",
		slog.String("listen", d.cfg.Listen),
		slog.String("branch", d.cfg.Branch),
		slog.Duration("quiet_window", d.cfg.QuietWindow.Std()),
		slog.Duration("max_delay", d.cfg.MaxDelay.Std()))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := d.worker.Run(runCtx); err != nil {
			slog.Error("Worker stopped", logfields.Error(err))
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := d.debouncer.Run(runCtx); err != nil {
			slog.Error("Debouncer stopped", logfields.Error(err))
		}
	}()

	<-d.worker.Ready()
	<-d.debouncer.Ready()

	if d.scheduler != nil {
		d.scheduler.Start()
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- d.server.ListenAndServe()
	}()

	var err error
	select {
	case <-ctx.Done():
		slog.Info("Daemon shutting down")
	case err = <-serverErr:
		if err != nil {
			slog.Error("HTTP server failed", logfields.Error(err))
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if shutdownErr := d.server.Shutdown(shutdownCtx); shutdownErr != nil {
		slog.Warn("HTTP server shutdown incomplete", logfields.Error(shutdownErr))
	}
	if d.scheduler != nil {
		if stopErr := d.scheduler.Stop(); stopErr != nil {
			slog.Warn("Scheduler shutdown incomplete", logfields.Error(stopErr))
		}
	}

	cancel()
	d.bus.Close()
	wg.Wait()

	slog.Info("Daemon stopped")
	return err
}
