package daemon

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenrik/blogpub/internal/daemon/events"
)

func startDebouncer(t *testing.T, bus *events.Bus, cfg DebouncerConfig) context.CancelFunc {
	t.Helper()
	d, err := NewDebouncer(bus, cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = d.Run(ctx) }()
	<-d.Ready()
	return cancel
}

func waitForPublishNow(t *testing.T, ch <-chan events.PublishNow, within time.Duration) events.PublishNow {
	t.Helper()
	select {
	case evt := <-ch:
		return evt
	case <-time.After(within):
		t.Fatal("expected PublishNow event")
		return events.PublishNow{}
	}
}

func requireNoPublishNow(t *testing.T, ch <-chan events.PublishNow, within time.Duration) {
	t.Helper()
	select {
	case evt := <-ch:
		t.Fatalf("unexpected PublishNow: %+v", evt)
	case <-time.After(within):
	}
}

func TestNewDebouncer_InvalidConfig_ReturnsError(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()

	_, err := NewDebouncer(nil, DebouncerConfig{QuietWindow: time.Second, MaxDelay: time.Minute})
	require.Error(t, err)

	_, err = NewDebouncer(bus, DebouncerConfig{MaxDelay: time.Minute})
	require.Error(t, err)

	_, err = NewDebouncer(bus, DebouncerConfig{QuietWindow: time.Second})
	require.Error(t, err)
}

func TestDebouncer_BurstOfRequests_SinglePublishNow(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()

	nowCh, unsub := events.Subscribe[events.PublishNow](bus, 4)
	defer unsub()

	cancel := startDebouncer(t, bus, DebouncerConfig{
		QuietWindow: 50 * time.Millisecond,
		MaxDelay:    5 * time.Second,
	})
	defer cancel()

	ctx := context.Background()
	for range 5 {
		require.NoError(t, bus.Publish(ctx, events.PublishRequested{Reason: "push"}))
	}

	evt := waitForPublishNow(t, nowCh, 2*time.Second)
	assert.Equal(t, 5, evt.RequestCount)
	assert.Equal(t, "quiet", evt.DebounceCause)

	requireNoPublishNow(t, nowCh, 150*time.Millisecond)
}

func TestDebouncer_SteadyStream_MaxDelayForcesEmit(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()

	nowCh, unsub := events.Subscribe[events.PublishNow](bus, 4)
	defer unsub()

	cancel := startDebouncer(t, bus, DebouncerConfig{
		QuietWindow: 200 * time.Millisecond,
		MaxDelay:    400 * time.Millisecond,
	})
	defer cancel()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = bus.Publish(ctx, events.PublishRequested{Reason: "steady"})
			}
		}
	}()

	evt := waitForPublishNow(t, nowCh, 2*time.Second)
	assert.Equal(t, "max_delay", evt.DebounceCause)
}

func TestDebouncer_PublishRunning_ExactlyOneFollowUp(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()

	nowCh, unsub := events.Subscribe[events.PublishNow](bus, 4)
	defer unsub()

	var running atomic.Bool
	running.Store(true)

	cancel := startDebouncer(t, bus, DebouncerConfig{
		QuietWindow:  30 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		CheckRunning: running.Load,
		PollInterval: 20 * time.Millisecond,
	})
	defer cancel()

	ctx := context.Background()
	for range 3 {
		require.NoError(t, bus.Publish(ctx, events.PublishRequested{Reason: "while-running"}))
	}

	// Nothing may fire while the publish is still running.
	requireNoPublishNow(t, nowCh, 150*time.Millisecond)

	running.Store(false)

	evt := waitForPublishNow(t, nowCh, 2*time.Second)
	assert.Equal(t, "after_running", evt.DebounceCause)
	assert.Equal(t, 3, evt.RequestCount)

	requireNoPublishNow(t, nowCh, 150*time.Millisecond)
}

func TestDebouncer_LastRequestWinsMetadata(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()

	nowCh, unsub := events.Subscribe[events.PublishNow](bus, 1)
	defer unsub()

	cancel := startDebouncer(t, bus, DebouncerConfig{
		QuietWindow: 40 * time.Millisecond,
		MaxDelay:    5 * time.Second,
	})
	defer cancel()

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, events.PublishRequested{Reason: "first", Commit: "aaa"}))
	require.NoError(t, bus.Publish(ctx, events.PublishRequested{Reason: "second", Commit: "bbb"}))

	evt := waitForPublishNow(t, nowCh, 2*time.Second)
	assert.Equal(t, "second", evt.LastReason)
	assert.Equal(t, "bbb", evt.LastCommit)
}
