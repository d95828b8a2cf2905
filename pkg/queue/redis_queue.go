// Package queue 基于 Redis 的异步工作流任务队列
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"difykit/app/models/job"
)

// WorkflowJob 排队中的工作流任务
type WorkflowJob struct {
	ID        string         `json:"id"`
	User      string         `json:"user"`
	Inputs    map[string]any `json:"inputs"`
	CreatedAt time.Time      `json:"created_at"`
}

// JobProgress 任务进度
type JobProgress struct {
	JobID  string          `json:"job_id"`
	Status job.Status      `json:"status"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// QueueService Redis 队列服务
type QueueService struct {
	client  *goredis.Client
	prefix  string
	ttl     time.Duration
	metrics *QueueMetrics
}

// NewQueueService 创建队列服务，ttl 为状态与结果的保留时长
func NewQueueService(client *goredis.Client, prefix string, ttl time.Duration) *QueueService {
	return &QueueService{
		client:  client,
		prefix:  prefix,
		ttl:     ttl,
		metrics: NewQueueMetrics(),
	}
}

// Metrics 队列指标
func (q *QueueService) Metrics() *QueueMetrics {
	return q.metrics
}

func (q *QueueService) pendingKey() string {
	return q.prefix + ":pending"
}

func (q *QueueService) statusKey(jobID string) string {
	return fmt.Sprintf("%s:status:%s", q.prefix, jobID)
}

func (q *QueueService) resultKey(jobID string) string {
	return fmt.Sprintf("%s:result:%s", q.prefix, jobID)
}

func (q *QueueService) errorKey(jobID string) string {
	return fmt.Sprintf("%s:error:%s", q.prefix, jobID)
}

// Push 任务入队，状态置为 pending
func (q *QueueService) Push(ctx context.Context, j *WorkflowJob) error {
	start := time.Now()
	defer func() {
		q.metrics.RecordPushLatency(time.Since(start))
	}()

	payload, err := json.Marshal(j)
	if err != nil {
		q.metrics.RecordError(OpPush)
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	_, err = q.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, q.statusKey(j.ID), string(job.StatusPending), q.ttl)
		pipe.LPush(ctx, q.pendingKey(), payload)
		return nil
	})
	if err != nil {
		q.metrics.RecordError(OpPush)
		return fmt.Errorf("failed to push job: %w", err)
	}

	q.metrics.RecordSuccess(OpPush)
	return nil
}

// Pop 取出一个任务，wait 内没有任务时返回 nil, nil
func (q *QueueService) Pop(ctx context.Context, wait time.Duration) (*WorkflowJob, error) {
	result, err := q.client.BRPop(ctx, wait, q.pendingKey()).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		q.metrics.RecordError(OpPop)
		return nil, fmt.Errorf("failed to pop job: %w", err)
	}
	if len(result) != 2 {
		q.metrics.RecordError(OpPop)
		return nil, fmt.Errorf("invalid result from queue: %v", result)
	}

	var j WorkflowJob
	if err := json.Unmarshal([]byte(result[1]), &j); err != nil {
		q.metrics.RecordError(OpPop)
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}

	q.metrics.RecordSuccess(OpPop)
	return &j, nil
}

// MarkRunning 任务开始执行
func (q *QueueService) MarkRunning(ctx context.Context, jobID string) error {
	if err := q.client.Set(ctx, q.statusKey(jobID), string(job.StatusRunning), q.ttl).Err(); err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}
	return nil
}

// Complete 保存结果并置为 succeeded
func (q *QueueService) Complete(ctx context.Context, jobID string, result []byte) error {
	_, err := q.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, q.resultKey(jobID), result, q.ttl)
		pipe.Set(ctx, q.statusKey(jobID), string(job.StatusSucceeded), q.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save job result: %w", err)
	}
	return nil
}

// Fail 保存错误信息并置为 failed
func (q *QueueService) Fail(ctx context.Context, jobID, message string) error {
	_, err := q.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, q.errorKey(jobID), message, q.ttl)
		pipe.Set(ctx, q.statusKey(jobID), string(job.StatusFailed), q.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save job error: %w", err)
	}
	return nil
}

// Progress 任务进度，任务不存在或已过期时返回 nil, nil
func (q *QueueService) Progress(ctx context.Context, jobID string) (*JobProgress, error) {
	status, err := q.client.Get(ctx, q.statusKey(jobID)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job status: %w", err)
	}

	progress := &JobProgress{JobID: jobID, Status: job.Status(status)}

	switch progress.Status {
	case job.StatusSucceeded:
		result, err := q.client.Get(ctx, q.resultKey(jobID)).Bytes()
		if err != nil && !errors.Is(err, goredis.Nil) {
			return nil, fmt.Errorf("failed to get job result: %w", err)
		}
		if len(result) > 0 {
			progress.Result = result
		}
	case job.StatusFailed:
		message, err := q.client.Get(ctx, q.errorKey(jobID)).Result()
		if err != nil && !errors.Is(err, goredis.Nil) {
			return nil, fmt.Errorf("failed to get job error: %w", err)
		}
		progress.Error = message
	}

	return progress, nil
}

// Ping 检查队列连接
func (q *QueueService) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}
