package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/fenrik/blogpub/internal/daemon/events"
	"github.com/fenrik/blogpub/internal/logfields"
)

// Scheduler wraps gocron for the optional periodic publish. It covers pushes
// the webhook missed (daemon downtime, forge outage) by requesting a publish
// at a fixed interval.
type Scheduler struct {
	scheduler gocron.Scheduler
	bus       *events.Bus
}

func NewScheduler(bus *events.Bus) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &Scheduler{scheduler: s, bus: bus}, nil
}

// SchedulePeriodicPublish registers a publish request every interval.
func (s *Scheduler) SchedulePeriodicPublish(interval time.Duration) error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.requestPublish),
		gocron.WithName("periodic-publish"),
	)
	if err != nil {
		return fmt.Errorf("create periodic publish job: %w", err)
	}
	return nil
}

func (s *Scheduler) requestPublish() {
	evt := events.PublishRequested{
		Source:      "schedule",
		Reason:      "periodic publish",
		RequestedAt: time.Now(),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.bus.Publish(ctx, evt); err != nil {
		slog.Error("Failed to publish scheduled request", logfields.Error(err))
	}
}

func (s *Scheduler) Start() {
	slog.Info("Starting scheduler")
	s.scheduler.Start()
}

func (s *Scheduler) Stop() error {
	slog.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}
