package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cast"

	"difykit/app/models/job"
	"difykit/pkg/dify"
	"difykit/pkg/logger"
)

// WorkflowRunner 执行工作流，*dify.Client 满足该接口
type WorkflowRunner interface {
	RunWorkflow(ctx context.Context, req dify.WorkflowRunRequest, callbacks dify.StreamCallbacks) (*dify.Reply, error)
}

// JobRecorder 持久化执行记录
type JobRecorder interface {
	Create(ctx context.Context, record *job.Job) error
}

// WorkerConfig 工作器配置
type WorkerConfig struct {
	WorkerCount     int           // 并发工作器数量
	JobTimeout      time.Duration // 单个任务超时
	PollInterval    time.Duration // 阻塞读取队列的最长等待
	ShutdownTimeout time.Duration // 关闭时等待进行中任务的时长
}

// Worker 从队列取出工作流任务，以 blocking 模式执行
type Worker struct {
	queue    *QueueService
	runner   WorkflowRunner
	recorder JobRecorder
	config   WorkerConfig

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorker 创建工作器组，recorder 为空时不持久化执行记录
func NewWorker(qs *QueueService, runner WorkflowRunner, recorder JobRecorder, config WorkerConfig) *Worker {
	if config.WorkerCount <= 0 {
		config.WorkerCount = 4
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = 5 * time.Minute
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 5 * time.Second
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		queue:    qs,
		runner:   runner,
		recorder: recorder,
		config:   config,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start 启动工作器组
func (w *Worker) Start() {
	for i := 0; i < w.config.WorkerCount; i++ {
		w.wg.Add(1)
		go w.startWorker(i)
	}
}

func (w *Worker) startWorker(id int) {
	defer w.wg.Done()
	logger.InfoString("Worker", "Start", fmt.Sprintf("Worker %d started", id))

	for {
		if w.ctx.Err() != nil {
			logger.InfoString("Worker", "Stop", fmt.Sprintf("Worker %d stopping", id))
			return
		}

		j, err := w.queue.Pop(w.ctx, w.config.PollInterval)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				continue
			}
			logger.ErrorString("Worker", "Pop", fmt.Sprintf("Worker %d: %v", id, err))
			// 队列不可用时稍后再试
			select {
			case <-w.ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}
		if j == nil {
			continue
		}

		w.handle(j)
	}
}

// handle 执行一个任务并写回状态
//
// 任务一旦取出就会执行完毕，关闭时只等待不取消。
func (w *Worker) handle(j *WorkflowJob) {
	ctx := context.Background()
	metrics := w.queue.Metrics()
	metrics.RecordWait(j.CreatedAt)
	metrics.BeginProcess()
	start := time.Now()

	if err := w.queue.MarkRunning(ctx, j.ID); err != nil {
		logger.ErrorString("Worker", "MarkRunning", err.Error())
	}

	jobCtx, cancel := context.WithTimeout(ctx, w.config.JobTimeout)
	result, runErr := w.execute(jobCtx, j)
	cancel()

	elapsed := time.Since(start)
	metrics.EndProcess(elapsed)

	if w.recorder != nil {
		if err := w.recorder.Create(ctx, buildRecord(j, result, runErr, elapsed)); err != nil {
			// 记录保存失败不影响任务状态
			logger.ErrorString("Worker", "SaveJob", err.Error())
		}
	}

	if runErr != nil {
		metrics.RecordError(OpProcess)
		logger.WarnString("Worker", "Job", fmt.Sprintf("任务 %s 执行失败: %v", j.ID, runErr))
		logger.LogIf(w.queue.Fail(ctx, j.ID, runErr.Error()))
		return
	}

	payload, err := json.Marshal(result)
	if err != nil {
		logger.LogIf(w.queue.Fail(ctx, j.ID, err.Error()))
		return
	}
	if err := w.queue.Complete(ctx, j.ID, payload); err != nil {
		logger.ErrorString("Worker", "Complete", err.Error())
		return
	}

	metrics.RecordSuccess(OpProcess)
	logger.InfoString("Worker", "Job", fmt.Sprintf("任务 %s 执行完成 耗时:%v", j.ID, elapsed))
}

// execute 以 blocking 模式执行工作流
//
// 上游返回成功但工作流本身失败时（data.status 为 failed）同样视为失败。
func (w *Worker) execute(ctx context.Context, j *WorkflowJob) (dify.JSON, error) {
	reply, err := w.runner.RunWorkflow(ctx, dify.WorkflowRunRequest{
		Inputs:       j.Inputs,
		User:         j.User,
		ResponseMode: dify.ResponseModeBlocking,
	}, dify.StreamCallbacks{})
	if err != nil {
		return nil, err
	}

	data := cast.ToStringMap(reply.Data["data"])
	if cast.ToString(data["status"]) == "failed" {
		message := cast.ToString(data["error"])
		if message == "" {
			message = "workflow failed"
		}
		return reply.Data, errors.New(message)
	}
	return reply.Data, nil
}

// buildRecord 组装持久化记录
func buildRecord(j *WorkflowJob, result dify.JSON, runErr error, elapsed time.Duration) *job.Job {
	record := &job.Job{
		JobID:         j.ID,
		User:          j.User,
		WorkflowRunID: cast.ToString(result["workflow_run_id"]),
		Status:        job.StatusSucceeded,
		Inputs:        job.JSONMap(j.Inputs),
		ElapsedMS:     elapsed.Milliseconds(),
	}
	if outputs := cast.ToStringMap(cast.ToStringMap(result["data"])["outputs"]); len(outputs) > 0 {
		record.Outputs = job.JSONMap(outputs)
	}
	if runErr != nil {
		record.Status = job.StatusFailed
		record.Error = runErr.Error()
	}
	return record
}

// Stop 停止取新任务，等待进行中的任务结束
func (w *Worker) Stop() {
	w.cancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.InfoString("Worker", "Stop", "All workers stopped gracefully")
	case <-time.After(w.config.ShutdownTimeout):
		logger.WarnString("Worker", "Stop", "Worker shutdown timed out")
	}
}
