// Package pipeline orchestrates a publish run as an ordered sequence of
// stages: prepare, fetch, load, render, verify, publish.
//
// A run is fail-fast by design: the first stage error aborts the run before
// any later stage executes, so a render or verify failure can never reach the
// upload. There are no retries and no rollback; a failed run leaves the
// previously deployed site untouched.
package pipeline

import (
	"github.com/fenrik/blogpub/internal/config"
	"github.com/fenrik/blogpub/internal/content"
	"github.com/fenrik/blogpub/internal/eventstore"
	"github.com/fenrik/blogpub/internal/linkcheck"
	"github.com/fenrik/blogpub/internal/metrics"
	"github.com/fenrik/blogpub/internal/publish"
	"github.com/fenrik/blogpub/internal/render"
	"github.com/fenrik/blogpub/internal/workspace"
)

// State carries everything a run accumulates while moving through stages.
type State struct {
	RunID       string
	Cfg         *config.Config
	Workspace   *workspace.Manager
	Incremental bool

	// Uploader performs the publish stage. Leaving it nil produces a
	// render-only run (the build command): the publish stage is skipped
	// entirely rather than stubbed.
	Uploader publish.Uploader

	// LinkReporter, when set, receives broken-link reports during verify.
	LinkReporter linkcheck.Reporter

	// Events, when set, receives durable stage/run events.
	Events eventstore.Store

	Recorder metrics.Recorder
	Report   *Report

	// Populated by stages.
	ContentRoot string
	Commit      string
	Entries     []*content.Entry
	About       *content.Entry
	Tree        render.Tree
}

// NewState creates run state with a report attached.
func NewState(runID string, cfg *config.Config) *State {
	return &State{
		RunID:    runID,
		Cfg:      cfg,
		Recorder: metrics.NoopRecorder{},
		Report:   NewReport(runID),
	}
}
