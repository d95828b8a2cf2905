package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"difykit/app/models/job"
	"difykit/pkg/dify"
)

func newTestQueue(t *testing.T) (*QueueService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewQueueService(client, "test:jobs", time.Hour), mr
}

func TestQueueService_RoundTrip(t *testing.T) {
	q, mr := newTestQueue(t)
	ctx := context.Background()

	j := &WorkflowJob{ID: "j1", User: "u1", Inputs: map[string]any{"q": "hi"}, CreatedAt: time.Now()}
	require.NoError(t, q.Push(ctx, j))

	p, err := q.Progress(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, job.StatusPending, p.Status)
	assert.True(t, mr.TTL(q.statusKey("j1")) > 0)

	popped, err := q.Pop(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, popped)
	assert.Equal(t, "j1", popped.ID)
	assert.Equal(t, "u1", popped.User)
	assert.Equal(t, map[string]any{"q": "hi"}, popped.Inputs)

	require.NoError(t, q.MarkRunning(ctx, "j1"))
	p, err = q.Progress(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, job.StatusRunning, p.Status)
	assert.Nil(t, p.Result)

	result := []byte(`{"workflow_run_id":"r1","data":{"outputs":{"text":"你好"}}}`)
	require.NoError(t, q.Complete(ctx, "j1", result))
	p, err = q.Progress(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, job.StatusSucceeded, p.Status)
	assert.JSONEq(t, string(result), string(p.Result))
	assert.Empty(t, p.Error)

	snap := q.Metrics().Snapshot()
	assert.EqualValues(t, 1, snap.Succeeded[OpPush])
	assert.EqualValues(t, 1, snap.Succeeded[OpPop])
}

func TestQueueService_Fail(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Push(ctx, &WorkflowJob{ID: "j2", User: "u1"}))
	require.NoError(t, q.Fail(ctx, "j2", "node timeout"))

	p, err := q.Progress(ctx, "j2")
	require.NoError(t, err)
	assert.Equal(t, job.StatusFailed, p.Status)
	assert.Equal(t, "node timeout", p.Error)
	assert.Nil(t, p.Result)
}

func TestQueueService_PopEmpty(t *testing.T) {
	q, _ := newTestQueue(t)

	j, err := q.Pop(context.Background(), 100*time.Millisecond)
	assert.NoError(t, err)
	assert.Nil(t, j)
}

func TestQueueService_PopIsFIFO(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Push(ctx, &WorkflowJob{ID: "first", User: "u1"}))
	require.NoError(t, q.Push(ctx, &WorkflowJob{ID: "second", User: "u1"}))

	j, err := q.Pop(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "first", j.ID)
}

func TestQueueService_PopMalformedPayload(t *testing.T) {
	q, mr := newTestQueue(t)

	_, err := mr.Lpush(q.pendingKey(), "not-json")
	require.NoError(t, err)

	_, err = q.Pop(context.Background(), time.Second)
	assert.Error(t, err)
	assert.EqualValues(t, 1, q.Metrics().Snapshot().Failed[OpPop])
}

func TestQueueService_ProgressMissingJob(t *testing.T) {
	q, _ := newTestQueue(t)

	p, err := q.Progress(context.Background(), "missing")
	assert.NoError(t, err)
	assert.Nil(t, p)
}

func TestQueueService_ProgressExpired(t *testing.T) {
	q, mr := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Push(ctx, &WorkflowJob{ID: "j3", User: "u1"}))
	mr.FastForward(2 * time.Hour)

	p, err := q.Progress(ctx, "j3")
	assert.NoError(t, err)
	assert.Nil(t, p)
}

func TestQueueService_Ping(t *testing.T) {
	q, _ := newTestQueue(t)

	assert.NoError(t, q.Ping(context.Background()))
}

type fakeRecorder struct {
	records []*job.Job
}

func (f *fakeRecorder) Create(_ context.Context, record *job.Job) error {
	f.records = append(f.records, record)
	return nil
}

func TestWorker_HandleStoresResult(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()
	runner := &fakeRunner{reply: &dify.Reply{Data: dify.JSON{
		"workflow_run_id": "r1",
		"data":            map[string]any{"status": "succeeded", "outputs": map[string]any{"text": "ok"}},
	}}}
	recorder := &fakeRecorder{}
	w := NewWorker(q, runner, recorder, WorkerConfig{})

	j := &WorkflowJob{ID: "j1", User: "u1", Inputs: map[string]any{"q": "hi"}, CreatedAt: time.Now()}
	require.NoError(t, q.Push(ctx, j))
	popped, err := q.Pop(ctx, time.Second)
	require.NoError(t, err)

	w.handle(popped)

	p, err := q.Progress(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, job.StatusSucceeded, p.Status)
	var stored map[string]any
	require.NoError(t, json.Unmarshal(p.Result, &stored))
	assert.Equal(t, "r1", stored["workflow_run_id"])

	require.Len(t, recorder.records, 1)
	assert.Equal(t, "r1", recorder.records[0].WorkflowRunID)
	assert.Equal(t, job.StatusSucceeded, recorder.records[0].Status)

	snap := q.Metrics().Snapshot()
	assert.EqualValues(t, 1, snap.Succeeded[OpProcess])
	assert.Zero(t, snap.InFlight)
}

func TestWorker_HandleStoresFailure(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()
	recorder := &fakeRecorder{}
	w := NewWorker(q, &fakeRunner{err: errors.New("upstream down")}, recorder, WorkerConfig{})

	require.NoError(t, q.Push(ctx, &WorkflowJob{ID: "j2", User: "u1"}))
	w.handle(&WorkflowJob{ID: "j2", User: "u1", CreatedAt: time.Now()})

	p, err := q.Progress(ctx, "j2")
	require.NoError(t, err)
	assert.Equal(t, job.StatusFailed, p.Status)
	assert.Equal(t, "upstream down", p.Error)

	require.Len(t, recorder.records, 1)
	assert.Equal(t, job.StatusFailed, recorder.records[0].Status)
	assert.EqualValues(t, 1, q.Metrics().Snapshot().Failed[OpProcess])
}

func TestWorker_StartAndStop(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()
	runner := &fakeRunner{reply: &dify.Reply{Data: dify.JSON{"data": map[string]any{"status": "succeeded"}}}}
	w := NewWorker(q, runner, nil, WorkerConfig{WorkerCount: 1, PollInterval: 100 * time.Millisecond})

	require.NoError(t, q.Push(ctx, &WorkflowJob{ID: "j1", User: "u1"}))
	w.Start()
	defer w.Stop()

	assert.Eventually(t, func() bool {
		p, err := q.Progress(ctx, "j1")
		return err == nil && p != nil && p.Status == job.StatusSucceeded
	}, 5*time.Second, 20*time.Millisecond)
}
