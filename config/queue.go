package config

import "difykit/pkg/config"

func init() {
	config.Add("queue", func() map[string]interface{} {
		return map[string]interface{}{
			// 键前缀
			"prefix": config.Env("QUEUE_PREFIX", "difykit:jobs"),
			// 任务状态与结果的保留秒数
			"ttl": config.Env("QUEUE_TTL", 24*3600),
			// 并发执行工作流的 worker 数量
			"worker_count": config.Env("QUEUE_WORKER_COUNT", 4),
			// 单个工作流任务的超时秒数
			"job_timeout": config.Env("QUEUE_JOB_TIMEOUT", 300),
			// 关闭时等待进行中任务的秒数
			"shutdown_timeout": config.Env("QUEUE_SHUTDOWN_TIMEOUT", 30),
		}
	})
}
