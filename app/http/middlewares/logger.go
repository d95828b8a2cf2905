// Package middlewares 存放系统中间件
package middlewares

import (
	"bytes"
	"io"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"difykit/pkg/logger"
)

type responseBodyWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

// maxLoggedBody 日志中保留的请求体与响应体长度
const maxLoggedBody = 1024

func (r responseBodyWriter) Write(b []byte) (int, error) {
	// 事件流可能很长，只保留开头部分
	if r.body.Len() <= maxLoggedBody {
		r.body.Write(b)
	}
	return r.ResponseWriter.Write(b)
}

// Logger 记录请求日志
//
// 事件流响应与文件上传不记录内容。
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 获取 response 内容
		w := &responseBodyWriter{body: &bytes.Buffer{}, ResponseWriter: c.Writer}
		c.Writer = w

		// 获取请求数据
		var requestBody []byte
		if c.Request.Body != nil && !strings.HasPrefix(c.ContentType(), "multipart/") {
			// c.Request.Body 是一个 buffer 对象，只能读取一次
			requestBody, _ = io.ReadAll(c.Request.Body)
			// 读取后，重新赋值 c.Request.Body ，以供后续的其他操作
			c.Request.Body = io.NopCloser(bytes.NewBuffer(requestBody))
		}

		start := time.Now()
		c.Next()

		cost := time.Since(start)
		responStatus := c.Writer.Status()

		logFields := []zap.Field{
			zap.Int("status", responStatus),
			zap.String("request", c.Request.Method+" "+c.Request.URL.String()),
			zap.String("query", c.Request.URL.RawQuery),
			zap.String("ip", c.ClientIP()),
			zap.String("user-agent", c.Request.UserAgent()),
			zap.String("errors", c.Errors.ByType(gin.ErrorTypePrivate).String()),
			zap.String("time", cast.ToString(cost.Milliseconds())+"ms"),
		}
		if c.Request.Method != "GET" && len(requestBody) > 0 {
			logFields = append(logFields, zap.String("Request Body", truncate(requestBody)))
		}
		if !strings.HasPrefix(c.Writer.Header().Get("Content-Type"), "text/event-stream") {
			logFields = append(logFields, zap.String("Response Body", truncate(w.body.Bytes())))
		}

		if responStatus > 400 && responStatus <= 499 {
			logger.Warn("HTTP Warning "+cast.ToString(responStatus), logFields...)
		} else if responStatus >= 500 && responStatus <= 599 {
			logger.Error("HTTP Error "+cast.ToString(responStatus), logFields...)
		} else {
			logger.Debug("HTTP Access Log", logFields...)
		}
	}
}

func truncate(b []byte) string {
	if len(b) > maxLoggedBody {
		return string(b[:maxLoggedBody]) + "..."
	}
	return string(b)
}
