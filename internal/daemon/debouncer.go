package daemon

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fenrik/blogpub/internal/daemon/events"
)

// DebouncerConfig controls how publish requests are coalesced.
type DebouncerConfig struct {
	QuietWindow time.Duration
	MaxDelay    time.Duration

	// CheckRunning reports whether a publish is currently running. When true,
	// the debouncer avoids emitting PublishNow and instead schedules exactly
	// one follow-up publish after the running one finishes.
	CheckRunning func() bool

	// PollInterval controls how often the debouncer polls for publish
	// completion after detecting a running publish.
	PollInterval time.Duration
}

// Debouncer coalesces bursts of PublishRequested events into a single
// PublishNow. Guarantees:
//   - a quiet window after the last request before emitting
//   - a max delay so a steady request stream cannot postpone forever
//   - if a publish is already running, exactly one follow-up is queued
//
// It runs as a single goroutine.
type Debouncer struct {
	bus *events.Bus
	cfg DebouncerConfig

	mu        sync.Mutex
	readyOnce sync.Once
	ready     chan struct{}

	pending         bool
	pendingAfterRun bool
	firstRequestAt  time.Time
	lastRequestAt   time.Time
	lastReason      string
	lastCommit      string
	requestCount    int
	pollingAfterRun bool
}

func NewDebouncer(bus *events.Bus, cfg DebouncerConfig) (*Debouncer, error) {
	if bus == nil {
		return nil, errors.New("bus is required")
	}
	if cfg.QuietWindow <= 0 {
		return nil, errors.New("quiet window must be > 0")
	}
	if cfg.MaxDelay <= 0 {
		return nil, errors.New("max delay must be > 0")
	}
	if cfg.CheckRunning == nil {
		cfg.CheckRunning = func() bool { return false }
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 250 * time.Millisecond
	}

	return &Debouncer{bus: bus, cfg: cfg, ready: make(chan struct{})}, nil
}

// Ready is closed once Run has subscribed to events. Intended for tests and
// deterministic startup sequencing.
func (d *Debouncer) Ready() <-chan struct{} {
	return d.ready
}

func (d *Debouncer) Run(ctx context.Context) error {
	reqCh, unsubscribe := events.Subscribe[events.PublishRequested](d.bus, 64)
	defer unsubscribe()

	d.readyOnce.Do(func() { close(d.ready) })

	newStoppedTimer := func() *time.Timer {
		t := time.NewTimer(time.Hour)
		if !t.Stop() {
			select {
			case <-t.C:
			default:
			}
		}
		return t
	}
	quietTimer := newStoppedTimer()
	maxTimer := newStoppedTimer()
	pollTimer := newStoppedTimer()

	var (
		quietC <-chan time.Time
		maxC   <-chan time.Time
		pollC  <-chan time.Time
	)

	resetTimer := func(t *time.Timer, after time.Duration) {
		if !t.Stop() {
			select {
			case <-t.C:
			default:
			}
		}
		t.Reset(after)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case req, ok := <-reqCh:
			if !ok {
				return nil
			}
			d.onRequest(req)

			resetTimer(quietTimer, d.cfg.QuietWindow)
			quietC = quietTimer.C

			if d.shouldStartMaxTimer() {
				resetTimer(maxTimer, d.cfg.MaxDelay)
				maxC = maxTimer.C
			}

		case <-quietC:
			if d.tryEmit(ctx, "quiet") {
				quietC = nil
				maxC = nil
			}
			// else: publish running; pendingAfterRun stays set until it ends.

		case <-maxC:
			if d.tryEmit(ctx, "max_delay") {
				quietC = nil
				maxC = nil
			}

		case <-pollC:
			if d.tryEmitAfterRunning(ctx) {
				pollC = nil
				quietC = nil
				maxC = nil
				continue
			}
			resetTimer(pollTimer, d.cfg.PollInterval)
			pollC = pollTimer.C
		}

		if d.shouldPollAfterRun() && pollC == nil {
			resetTimer(pollTimer, d.cfg.PollInterval)
			pollC = pollTimer.C
		}
	}
}

func (d *Debouncer) onRequest(req events.PublishRequested) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := req.RequestedAt
	if now.IsZero() {
		now = time.Now()
	}

	if !d.pending {
		d.pending = true
		d.firstRequestAt = now
		d.requestCount = 0
	}

	d.lastRequestAt = now
	d.lastReason = req.Reason
	d.lastCommit = req.Commit
	d.requestCount++
}

func (d *Debouncer) shouldStartMaxTimer() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending && d.requestCount == 1
}

func (d *Debouncer) shouldPollAfterRun() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pendingAfterRun && !d.pollingAfterRun
}

func (d *Debouncer) tryEmit(ctx context.Context, cause string) bool {
	d.mu.Lock()
	pending := d.pending
	first := d.firstRequestAt
	last := d.lastRequestAt
	count := d.requestCount
	reason := d.lastReason
	commit := d.lastCommit
	if !pending {
		d.mu.Unlock()
		return true
	}

	if d.cfg.CheckRunning() {
		d.pendingAfterRun = true
		d.mu.Unlock()
		return false
	}

	d.pending = false
	d.pendingAfterRun = false
	d.pollingAfterRun = false
	d.mu.Unlock()

	evt := events.PublishNow{
		TriggeredAt:   time.Now(),
		RequestCount:  count,
		LastReason:    reason,
		LastCommit:    commit,
		FirstRequest:  first,
		LastRequest:   last,
		DebounceCause: cause,
	}

	_ = d.bus.Publish(ctx, evt)
	return true
}

func (d *Debouncer) tryEmitAfterRunning(ctx context.Context) bool {
	d.mu.Lock()
	if !d.pendingAfterRun {
		d.mu.Unlock()
		return true
	}
	d.pollingAfterRun = true
	d.mu.Unlock()

	if d.cfg.CheckRunning() {
		return false
	}

	// Publish finished; emit exactly one follow-up.
	return d.tryEmit(ctx, "after_running")
}
