// Package v1 处理业务逻辑, 控制器 v1 版本
package v1

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"difykit/app/requests"
	"difykit/pkg/dify"
	"difykit/pkg/logger"
	"difykit/pkg/response"
)

// relayBuffer 事件转发的缓冲条数
const relayBuffer = 64

// BaseAPIController 基础控制器
type BaseAPIController struct {
	// Timeout blocking 调用的超时，为 0 时不限制
	Timeout time.Duration
}

// BlockingContext blocking 调用使用的 ctx
func (bc *BaseAPIController) BlockingContext(c *gin.Context) (context.Context, context.CancelFunc) {
	if bc.Timeout > 0 {
		return context.WithTimeout(c.Request.Context(), bc.Timeout)
	}
	return context.WithCancel(c.Request.Context())
}

// Call 执行一次 blocking 调用并原样返回 Dify 的响应体
func (bc *BaseAPIController) Call(c *gin.Context, call func(ctx context.Context) (dify.JSON, error)) {
	ctx, cancel := bc.BlockingContext(c)
	defer cancel()

	data, err := call(ctx)
	if err != nil {
		response.Upstream(c, err)
		return
	}
	response.JSON(c, data)
}

// Dispatcher 执行一次可流式的调用
type Dispatcher func(ctx context.Context, callbacks dify.StreamCallbacks) (*dify.Reply, error)

type relayMessage struct {
	event dify.StreamEvent
	err   error
}

// Dispatch streaming 为 true 时把 Dify 事件流转发为 SSE，否则返回完整响应
//
// 流在第一条消息之前就出错时（如上游返回 4xx），按普通错误响应返回对应状态码。
func (bc *BaseAPIController) Dispatch(c *gin.Context, streaming bool, call Dispatcher) {
	if !streaming {
		ctx, cancel := bc.BlockingContext(c)
		defer cancel()

		reply, err := call(ctx, dify.StreamCallbacks{})
		if err != nil {
			response.Upstream(c, err)
			return
		}
		response.JSON(c, reply.Data)
		return
	}

	ctx := c.Request.Context()
	messages := make(chan relayMessage, relayBuffer)
	send := func(m relayMessage) {
		select {
		case messages <- m:
		case <-ctx.Done():
		}
	}

	reply, err := call(ctx, dify.StreamCallbacks{
		OnEvent: func(ev dify.StreamEvent) { send(relayMessage{event: ev}) },
		OnError: func(err error) { send(relayMessage{err: err}) },
	})
	if err != nil {
		response.Upstream(c, err)
		return
	}
	if !reply.IsStream() {
		response.JSON(c, reply.Data)
		return
	}

	stream := reply.Stream
	defer stream.Close()

	var first *relayMessage
	select {
	case m := <-messages:
		first = &m
	case <-stream.Done():
		select {
		case m := <-messages:
			first = &m
		default:
		}
	case <-ctx.Done():
		return
	}

	if first == nil {
		if err := stream.Err(); err != nil {
			response.Upstream(c, err)
			return
		}
		c.Status(http.StatusNoContent)
		return
	}
	var decodeErr *dify.DecodeError
	if first.err != nil && !errors.As(first.err, &decodeErr) {
		response.Upstream(c, first.err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	writeMessage(c.Writer, *first)

	c.Stream(func(w io.Writer) bool {
		select {
		case m := <-messages:
			writeMessage(w, m)
			return true
		case <-stream.Done():
			// 终态之后不会再有新消息，把缓冲区里剩下的写完
			for {
				select {
				case m := <-messages:
					writeMessage(w, m)
				default:
					return false
				}
			}
		case <-ctx.Done():
			return false
		}
	})
}

// writeMessage 按 Dify 的格式写出一帧：data: <json>\n\n
func writeMessage(w io.Writer, m relayMessage) {
	var payload any = m.event
	if m.err != nil {
		status := http.StatusBadGateway
		if he, ok := dify.AsHTTPError(m.err); ok {
			status = he.StatusCode
		}
		payload = gin.H{"event": "error", "status": status, "message": m.err.Error()}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		logger.ErrorString("Relay", "Marshal", err.Error())
		return
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		logger.WarnString("Relay", "Write", err.Error())
	}
}

// ValidationFailed 请求验证失败的响应
func ValidationFailed(c *gin.Context, err error) {
	var verr requests.ValidationError
	if errors.As(err, &verr) {
		response.ValidationError(c, verr.Errors)
		return
	}
	response.BadRequest(c, err)
}

// RequireQuery 读取必填的查询参数，缺失时直接响应 422
func RequireQuery(c *gin.Context, keys ...string) (map[string]string, bool) {
	values := make(map[string]string, len(keys))
	missing := map[string][]string{}
	for _, key := range keys {
		value := c.Query(key)
		if value == "" {
			missing[key] = []string{key + " 为必填项"}
			continue
		}
		values[key] = value
	}
	if len(missing) > 0 {
		response.ValidationError(c, missing)
		return nil, false
	}
	return values, true
}
