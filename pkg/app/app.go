// Package app 应用环境相关的辅助函数
package app

import (
	"time"

	"difykit/pkg/config"
)

// IsLocal 本地开发环境
func IsLocal() bool {
	return config.Get("app.env") == "local"
}

// IsProduction 生产环境
func IsProduction() bool {
	return config.Get("app.env") == "production"
}

// IsTesting 测试环境
func IsTesting() bool {
	return config.Get("app.env") == "testing"
}

// TimenowInTimezone 按 app.timezone 返回当前时间，时区无效时使用 UTC
func TimenowInTimezone() time.Time {
	loc, err := time.LoadLocation(config.GetString("app.timezone", "UTC"))
	if err != nil {
		loc = time.UTC
	}
	return time.Now().In(loc)
}

// SecondsToDuration 配置中的秒数转换为 time.Duration，非正数时使用 fallback
func SecondsToDuration(seconds int, fallback time.Duration) time.Duration {
	if seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}
