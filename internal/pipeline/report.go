package pipeline

import (
	"time"
)

// Outcome is the final status of a run.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeFailed   Outcome = "failed"
	OutcomeCanceled Outcome = "canceled"
)

// Report accumulates what happened during a run.
type Report struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Outcome    Outcome

	StageDurations map[Stage]time.Duration
	FailedStage    Stage
	Err            string

	// Render facts.
	ThemeName    string
	ThemeVersion string
	Commit       string
	Entries      int
	Drafts       int
	Files        int

	// Publish facts.
	UploadedFiles int
	UploadedBytes int64
	PrunedBlobs   int
}

// NewReport creates a report with the clock started.
func NewReport(runID string) *Report {
	return &Report{
		RunID:          runID,
		StartedAt:      time.Now(),
		StageDurations: make(map[Stage]time.Duration),
	}
}

// Finish stamps the end time and derives the outcome.
func (r *Report) Finish(err error, canceled bool) {
	r.FinishedAt = time.Now()
	switch {
	case canceled:
		r.Outcome = OutcomeCanceled
	case err != nil:
		r.Outcome = OutcomeFailed
		r.Err = err.Error()
	default:
		r.Outcome = OutcomeSuccess
	}
}

// Duration returns the total run duration.
func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
