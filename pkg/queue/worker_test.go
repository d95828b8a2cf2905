package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"difykit/app/models/job"
	"difykit/pkg/dify"
)

type fakeRunner struct {
	got   dify.WorkflowRunRequest
	reply *dify.Reply
	err   error
}

func (f *fakeRunner) RunWorkflow(_ context.Context, req dify.WorkflowRunRequest, _ dify.StreamCallbacks) (*dify.Reply, error) {
	f.got = req
	return f.reply, f.err
}

func TestWorker_ExecuteRunsBlocking(t *testing.T) {
	runner := &fakeRunner{reply: &dify.Reply{Data: dify.JSON{
		"workflow_run_id": "r1",
		"data":            map[string]any{"status": "succeeded", "outputs": map[string]any{"text": "ok"}},
	}}}
	w := NewWorker(NewQueueService(nil, "test", time.Minute), runner, nil, WorkerConfig{})

	result, err := w.execute(context.Background(), &WorkflowJob{ID: "j1", User: "u1", Inputs: map[string]any{"q": "hi"}})

	require.NoError(t, err)
	assert.Equal(t, "r1", result["workflow_run_id"])
	assert.Equal(t, dify.ResponseModeBlocking, runner.got.ResponseMode)
	assert.Equal(t, "u1", runner.got.User)
	assert.Equal(t, map[string]any{"q": "hi"}, runner.got.Inputs)
}

func TestWorker_ExecuteWorkflowFailure(t *testing.T) {
	runner := &fakeRunner{reply: &dify.Reply{Data: dify.JSON{
		"data": map[string]any{"status": "failed", "error": "node timeout"},
	}}}
	w := NewWorker(NewQueueService(nil, "test", time.Minute), runner, nil, WorkerConfig{})

	result, err := w.execute(context.Background(), &WorkflowJob{ID: "j1", User: "u1"})

	assert.EqualError(t, err, "node timeout")
	assert.NotNil(t, result)
}

func TestWorker_ExecuteUpstreamError(t *testing.T) {
	upstream := &dify.HTTPError{StatusCode: 400}
	w := NewWorker(NewQueueService(nil, "test", time.Minute), &fakeRunner{err: upstream}, nil, WorkerConfig{})

	_, err := w.execute(context.Background(), &WorkflowJob{ID: "j1", User: "u1"})

	assert.True(t, dify.IsHTTPStatus(err, 400))
}

func TestBuildRecord(t *testing.T) {
	j := &WorkflowJob{ID: "j1", User: "u1", Inputs: map[string]any{"q": "hi"}}
	result := dify.JSON{
		"workflow_run_id": "r1",
		"data":            map[string]any{"outputs": map[string]any{"text": "ok"}},
	}

	record := buildRecord(j, result, nil, 1500*time.Millisecond)
	assert.Equal(t, "j1", record.JobID)
	assert.Equal(t, "r1", record.WorkflowRunID)
	assert.Equal(t, job.StatusSucceeded, record.Status)
	assert.Equal(t, job.JSONMap{"q": "hi"}, record.Inputs)
	assert.Equal(t, job.JSONMap{"text": "ok"}, record.Outputs)
	assert.EqualValues(t, 1500, record.ElapsedMS)
	assert.NoError(t, record.Validate())

	failed := buildRecord(j, nil, errors.New("boom"), time.Second)
	assert.Equal(t, job.StatusFailed, failed.Status)
	assert.Equal(t, "boom", failed.Error)
	assert.Nil(t, failed.Outputs)
}

func TestNewWorker_Defaults(t *testing.T) {
	w := NewWorker(nil, nil, nil, WorkerConfig{})

	assert.Equal(t, 4, w.config.WorkerCount)
	assert.Equal(t, 5*time.Minute, w.config.JobTimeout)
	assert.Equal(t, 5*time.Second, w.config.PollInterval)
	assert.Equal(t, 30*time.Second, w.config.ShutdownTimeout)
}

func TestQueueService_Keys(t *testing.T) {
	q := NewQueueService(nil, "difykit:jobs", time.Hour)

	assert.Equal(t, "difykit:jobs:pending", q.pendingKey())
	assert.Equal(t, "difykit:jobs:status:j1", q.statusKey("j1"))
	assert.Equal(t, "difykit:jobs:result:j1", q.resultKey("j1"))
	assert.Equal(t, "difykit:jobs:error:j1", q.errorKey("j1"))
}

func TestQueueMetrics_Snapshot(t *testing.T) {
	m := NewQueueMetrics()

	m.RecordSuccess(OpPush)
	m.RecordSuccess(OpPush)
	m.RecordError(OpProcess)
	m.RecordPushLatency(10 * time.Millisecond)
	m.RecordPushLatency(30 * time.Millisecond)
	m.RecordWait(time.Time{})
	m.BeginProcess()

	snap := m.Snapshot()
	assert.EqualValues(t, 2, snap.Succeeded[OpPush])
	assert.EqualValues(t, 1, snap.Failed[OpProcess])
	assert.EqualValues(t, 1, snap.InFlight)
	assert.Equal(t, LatencySnapshot{Count: 2, AvgMS: 20, MinMS: 10, MaxMS: 30}, snap.Push)
	assert.Zero(t, snap.Wait.Count)

	m.EndProcess(time.Second)
	snap = m.Snapshot()
	assert.Zero(t, snap.InFlight)
	assert.EqualValues(t, 1000, snap.Process.AvgMS)
}
