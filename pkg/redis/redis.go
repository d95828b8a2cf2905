// Package redis Redis 连接管理
//
// 主库用于业务缓存，队列库专门存放异步工作流任务。
package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"

	"difykit/pkg/logger"
)

const (
	// DefaultPoolSize 连接池大小
	DefaultPoolSize = 50
	// DefaultMinIdleConns 最小空闲连接数
	DefaultMinIdleConns = 5
	// DefaultTimeout 单次操作超时
	DefaultTimeout = 5 * time.Second
	// DefaultMaxRetries 网络错误重试次数
	DefaultMaxRetries = 3
)

// RedisInstance 实例名称
type RedisInstance string

const (
	MainDB  RedisInstance = "main"
	QueueDB RedisInstance = "queue"
)

// RedisClient Redis 客户端封装
type RedisClient struct {
	Client  *redis.Client
	Context context.Context
}

// RedisConfig 单个实例的连接配置
type RedisConfig struct {
	Address  string
	Username string
	Password string
	DB       int
}

// RedisManager 按名称管理多个实例
type RedisManager struct {
	instances map[RedisInstance]*RedisClient
	mutex     sync.RWMutex
}

var (
	once    sync.Once
	Manager *RedisManager
	// Redis 主库实例
	Redis *RedisClient
)

// NewClient 创建客户端并检查连通性
func NewClient(cfg RedisConfig) (*RedisClient, error) {
	rds := &RedisClient{
		Context: context.Background(),
		Client: redis.NewClient(&redis.Options{
			Addr:         cfg.Address,
			Username:     cfg.Username,
			Password:     cfg.Password,
			DB:           cfg.DB,
			PoolSize:     DefaultPoolSize,
			MinIdleConns: DefaultMinIdleConns,
			PoolTimeout:  DefaultTimeout,
			// 队列使用阻塞读取，读超时由调用方的 ctx 控制
			ReadTimeout:           -1,
			WriteTimeout:          3 * time.Second,
			ContextTimeoutEnabled: true,
			MaxRetries:            DefaultMaxRetries,
			MinRetryBackoff:       8 * time.Millisecond,
			MaxRetryBackoff:       512 * time.Millisecond,
		}),
	}

	if err := rds.Ping(); err != nil {
		_ = rds.Client.Close()
		return nil, fmt.Errorf("redis %s db=%d: %w", cfg.Address, cfg.DB, err)
	}
	return rds, nil
}

// Ping 测试连接
func (rds *RedisClient) Ping() error {
	ctx, cancel := context.WithTimeout(rds.Context, DefaultTimeout)
	defer cancel()
	return rds.Client.Ping(ctx).Err()
}

// Set 存储键值对
func (rds *RedisClient) Set(key string, value interface{}, expiration time.Duration) bool {
	ctx, cancel := context.WithTimeout(rds.Context, DefaultTimeout)
	defer cancel()

	if err := rds.Client.Set(ctx, key, value, expiration).Err(); err != nil {
		logger.ErrorString("Redis", "Set", err.Error())
		return false
	}
	return true
}

// Get 获取键值，不存在时返回空串
func (rds *RedisClient) Get(key string) string {
	ctx, cancel := context.WithTimeout(rds.Context, DefaultTimeout)
	defer cancel()

	result, err := rds.Client.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			logger.ErrorString("Redis", "Get", err.Error())
		}
		return ""
	}
	return result
}

// InitRedis 初始化主库与队列库
func InitRedis(address, username, password string, mainDB, queueDB int) error {
	var initErr error
	once.Do(func() {
		manager := &RedisManager{instances: make(map[RedisInstance]*RedisClient)}

		for name, db := range map[RedisInstance]int{MainDB: mainDB, QueueDB: queueDB} {
			client, err := NewClient(RedisConfig{
				Address:  address,
				Username: username,
				Password: password,
				DB:       db,
			})
			if err != nil {
				initErr = err
				return
			}
			manager.instances[name] = client
		}

		Manager = manager
		Redis = manager.instances[MainDB]
	})
	return initErr
}

// GetRedis 获取指定实例，未注册时返回主库
func GetRedis(instance RedisInstance) *RedisClient {
	if Manager == nil {
		return nil
	}
	Manager.mutex.RLock()
	defer Manager.mutex.RUnlock()

	if client, ok := Manager.instances[instance]; ok {
		return client
	}
	return Redis
}
