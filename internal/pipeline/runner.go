package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/fenrik/blogpub/internal/eventstore"
	"github.com/fenrik/blogpub/internal/logfields"
	"github.com/fenrik/blogpub/internal/metrics"
)

// Run executes the stages in order against st. The first stage error aborts
// the run; the returned error is a *StageError identifying where it failed.
// The report on st is finished before Run returns, success or not.
func Run(ctx context.Context, st *State, stages []StageDef) error {
	slog.Info("Run started", logfields.RunID(st.RunID))

	var runErr error
	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			runErr = NewStageError(stage.Name, err)
			break
		}

		start := time.Now()
		err := stage.Fn(ctx, st)
		elapsed := time.Since(start)

		st.Report.StageDurations[stage.Name] = elapsed
		st.Recorder.ObserveStageDuration(string(stage.Name), elapsed)
		st.Recorder.IncStageResult(string(stage.Name), stageResult(err))
		appendStageEvent(ctx, st, stage.Name, elapsed, err)

		if err != nil {
			st.Report.FailedStage = stage.Name
			runErr = NewStageError(stage.Name, err)
			slog.Error("Stage failed",
				logfields.RunID(st.RunID),
				logfields.Stage(string(stage.Name)),
				logfields.DurationMS(elapsed),
				logfields.Error(err))
			break
		}

		slog.Info("Stage completed",
			logfields.RunID(st.RunID),
			logfields.Stage(string(stage.Name)),
			logfields.DurationMS(elapsed))
	}

	st.Report.Finish(runErr, IsCanceled(runErr))
	st.Recorder.ObserveRunDuration(st.Report.Duration())
	st.Recorder.IncRunOutcome(string(st.Report.Outcome))
	appendRunEvent(ctx, st)

	if runErr != nil {
		slog.Error("Run finished",
			logfields.RunID(st.RunID),
			slog.String("outcome", string(st.Report.Outcome)),
			logfields.DurationMS(st.Report.Duration()),
			logfields.Error(runErr))
	} else {
		slog.Info("Run finished",
			logfields.RunID(st.RunID),
			slog.String("outcome", string(st.Report.Outcome)),
			logfields.DurationMS(st.Report.Duration()),
			slog.Int("entries", st.Report.Entries),
			slog.Int("files", st.Report.Files))
	}
	return runErr
}

func stageResult(err error) metrics.ResultLabel {
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case IsCanceled(err):
		return metrics.ResultCanceled
	default:
		return metrics.ResultFatal
	}
}

type stageEventPayload struct {
	Stage      string `json:"stage"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

type runEventPayload struct {
	Outcome     string `json:"outcome"`
	DurationMS  int64  `json:"duration_ms"`
	FailedStage string `json:"failed_stage,omitempty"`
	Error       string `json:"error,omitempty"`
	Commit      string `json:"commit,omitempty"`
	Entries     int    `json:"entries"`
	Files       int    `json:"files"`
}

func appendStageEvent(ctx context.Context, st *State, stage Stage, d time.Duration, stageErr error) {
	if st.Events == nil {
		return
	}
	p := stageEventPayload{Stage: string(stage), DurationMS: d.Milliseconds()}
	if stageErr != nil {
		p.Error = stageErr.Error()
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := st.Events.Append(ctx, st.RunID, eventstore.EventStageCompleted, payload, nil); err != nil {
		slog.Warn("Failed to append stage event", logfields.RunID(st.RunID), logfields.Error(err))
	}
}

func appendRunEvent(ctx context.Context, st *State) {
	if st.Events == nil {
		return
	}
	r := st.Report
	p := runEventPayload{
		Outcome:     string(r.Outcome),
		DurationMS:  r.Duration().Milliseconds(),
		FailedStage: string(r.FailedStage),
		Error:       r.Err,
		Commit:      r.Commit,
		Entries:     r.Entries,
		Files:       r.Files,
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := st.Events.Append(ctx, st.RunID, eventstore.EventRunCompleted, payload, nil); err != nil {
		slog.Warn("Failed to append run event", logfields.RunID(st.RunID), logfields.Error(err))
	}
}
