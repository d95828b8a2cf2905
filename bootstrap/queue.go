package bootstrap

import (
	"errors"
	"time"

	"difykit/app/repositories"
	"difykit/pkg/app"
	"difykit/pkg/config"
	"difykit/pkg/logger"
	"difykit/pkg/queue"
	"difykit/pkg/redis"
)

// SetupQueue 创建任务队列并启动 worker，repo 为 nil 时不保存执行记录
func SetupQueue(runner queue.WorkflowRunner, repo *repositories.JobRepository) (*queue.QueueService, *queue.Worker, error) {
	rds := redis.GetRedis(redis.QueueDB)
	if rds == nil {
		return nil, nil, errors.New("Redis 未初始化")
	}

	queueService := queue.NewQueueService(
		rds.Client,
		config.GetString("queue.prefix"),
		app.SecondsToDuration(config.GetInt("queue.ttl"), 24*time.Hour),
	)

	var recorder queue.JobRecorder
	if repo != nil {
		recorder = repo
	}

	worker := queue.NewWorker(queueService, runner, recorder, queue.WorkerConfig{
		WorkerCount:     config.GetInt("queue.worker_count", 4),
		JobTimeout:      app.SecondsToDuration(config.GetInt("queue.job_timeout"), 5*time.Minute),
		ShutdownTimeout: app.SecondsToDuration(config.GetInt("queue.shutdown_timeout"), 30*time.Second),
	})
	worker.Start()

	logger.InfoString("Queue", "Setup", "队列服务启动成功")
	return queueService, worker, nil
}
