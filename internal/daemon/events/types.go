package events

import "time"

// PublishRequested indicates that a site publish should happen soon. Emitted
// by webhook handlers and the periodic scheduler; consumed by the debouncer.
type PublishRequested struct {
	Source      string // "webhook", "schedule", "manual"
	Reason      string
	Ref         string
	Commit      string
	RequestedAt time.Time
}

// PublishNow is emitted by the debouncer once it decides a publish should
// start. The worker consumes it and runs exactly one publish per event.
type PublishNow struct {
	TriggeredAt   time.Time
	RequestCount  int
	LastReason    string
	LastCommit    string
	FirstRequest  time.Time
	LastRequest   time.Time
	DebounceCause string // "quiet", "max_delay" or "after_running"
}
