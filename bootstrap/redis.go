package bootstrap

import (
	"fmt"

	"difykit/pkg/config"
	"difykit/pkg/redis"
)

// SetupRedis 初始化 Redis，主库用于缓存，队列库用于异步任务
func SetupRedis() error {
	return redis.InitRedis(
		fmt.Sprintf("%v:%v", config.GetString("redis.host"), config.GetString("redis.port")),
		config.GetString("redis.username"),
		config.GetString("redis.password"),
		config.GetInt("redis.database"),
		config.GetInt("redis.queue_database"),
	)
}
