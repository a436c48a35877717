package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenrik/blogpub/internal/config"
	"github.com/fenrik/blogpub/internal/eventstore"
	"github.com/fenrik/blogpub/internal/publish"
	"github.com/fenrik/blogpub/internal/render"
)

func testState() *State {
	return NewState("run-1", &config.Config{})
}

func namedStage(name Stage, calls *[]Stage, err error) StageDef {
	return StageDef{Name: name, Fn: func(_ context.Context, _ *State) error {
		*calls = append(*calls, name)
		return err
	}}
}

func TestRun_AllStagesSucceed_RunsInOrder(t *testing.T) {
	st := testState()
	var calls []Stage

	err := Run(context.Background(), st, []StageDef{
		namedStage(StageFetch, &calls, nil),
		namedStage(StageRender, &calls, nil),
		namedStage(StagePublish, &calls, nil),
	})

	require.NoError(t, err)
	assert.Equal(t, []Stage{StageFetch, StageRender, StagePublish}, calls)
	assert.Equal(t, OutcomeSuccess, st.Report.Outcome)
	assert.Empty(t, st.Report.FailedStage)
	assert.Len(t, st.Report.StageDurations, 3)
}

func TestRun_StageFails_LaterStagesNeverRun(t *testing.T) {
	st := testState()
	var calls []Stage
	boom := errors.New("render exploded")

	err := Run(context.Background(), st, []StageDef{
		namedStage(StageFetch, &calls, nil),
		namedStage(StageRender, &calls, boom),
		namedStage(StagePublish, &calls, nil),
	})

	require.Error(t, err)
	assert.Equal(t, []Stage{StageFetch, StageRender}, calls)
	assert.Equal(t, OutcomeFailed, st.Report.Outcome)
	assert.Equal(t, StageRender, st.Report.FailedStage)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageRender, stageErr.Stage)
	assert.ErrorIs(t, err, boom)
}

func TestRun_CanceledContext_StopsBeforeNextStage(t *testing.T) {
	st := testState()
	var calls []Stage

	ctx, cancel := context.WithCancel(context.Background())
	cancelStage := StageDef{Name: StageFetch, Fn: func(_ context.Context, _ *State) error {
		calls = append(calls, StageFetch)
		cancel()
		return nil
	}}

	err := Run(ctx, st, []StageDef{
		cancelStage,
		namedStage(StagePublish, &calls, nil),
	})

	require.Error(t, err)
	assert.Equal(t, []Stage{StageFetch}, calls)
	assert.Equal(t, OutcomeCanceled, st.Report.Outcome)
	assert.True(t, IsCanceled(err))
}

func TestRun_EventStore_ReceivesStageAndRunEvents(t *testing.T) {
	store, err := eventstore.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	st := testState()
	st.Events = store
	var calls []Stage

	require.NoError(t, Run(context.Background(), st, []StageDef{
		namedStage(StageFetch, &calls, nil),
		namedStage(StageRender, &calls, nil),
	}))

	events, err := store.GetByRunID(context.Background(), st.RunID)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, eventstore.EventStageCompleted, events[0].Type())
	assert.Equal(t, eventstore.EventStageCompleted, events[1].Type())
	assert.Equal(t, eventstore.EventRunCompleted, events[2].Type())
}

type nopUploader struct{}

func (nopUploader) Upload(context.Context, render.Tree) (publish.Summary, error) {
	return publish.Summary{}, nil
}
func (nopUploader) Close() error { return nil }

func TestDefaultStages_NoUploader_PublishOmitted(t *testing.T) {
	st := testState()

	stages := DefaultStages(st)
	for _, s := range stages {
		assert.NotEqual(t, StagePublish, s.Name)
	}

	st.Uploader = nopUploader{}
	stages = DefaultStages(st)
	assert.Equal(t, StagePublish, stages[len(stages)-1].Name)
}

func TestStageError_UnwrapsToCause(t *testing.T) {
	cause := errors.New("root cause")
	err := NewStageError(StageVerify, cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "verify")
}

func TestReport_Finish_DerivesOutcome(t *testing.T) {
	r := NewReport("run-x")
	r.Finish(nil, false)
	assert.Equal(t, OutcomeSuccess, r.Outcome)

	r = NewReport("run-y")
	r.Finish(errors.New("nope"), false)
	assert.Equal(t, OutcomeFailed, r.Outcome)
	assert.Equal(t, "nope", r.Err)

	r = NewReport("run-z")
	r.Finish(context.Canceled, true)
	assert.Equal(t, OutcomeCanceled, r.Outcome)
}
