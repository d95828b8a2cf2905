package dify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/r3labs/sse/v2"
	"gopkg.in/cenkalti/backoff.v1"
)

// pushStreamer 服务端推送能力，只用于无请求体的 GET 流
type pushStreamer interface {
	// subscribe 阻塞到数据源结束，数据源正常结束时返回 nil
	subscribe(ctx context.Context, url string, headers map[string]string, onMessage func(data []byte)) error
}

// sseStreamer 基于 r3labs/sse 的推送流
type sseStreamer struct {
	client *http.Client
}

func newSSEStreamer(client *http.Client) *sseStreamer {
	return &sseStreamer{client: client}
}

func (s *sseStreamer) subscribe(ctx context.Context, url string, headers map[string]string, onMessage func(data []byte)) error {
	client := sse.NewClient(url)
	client.Connection = s.client
	for key, value := range headers {
		client.Headers[key] = value
	}
	// 出错即结束，不自动重连
	client.ReconnectStrategy = &backoff.StopBackOff{}
	client.ResponseValidator = func(_ *sse.Client, resp *http.Response) error {
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &HTTPError{
			Method:     http.MethodGet,
			URL:        url,
			StatusCode: resp.StatusCode,
			Body:       body,
		}
	}

	return client.SubscribeRawWithContext(ctx, func(msg *sse.Event) {
		if len(msg.Data) == 0 {
			return
		}
		onMessage(msg.Data)
	})
}

// openPush 推送流路径：每条消息解析为 JSON，解析失败回调 OnError 但不结束流
func (c *Client) openPush(ctx context.Context, h *StreamHandle, url string, spec *RequestSpec) {
	if !h.activate(nil) {
		return
	}

	err := c.push.subscribe(ctx, url, spec.Headers, func(data []byte) {
		if !h.active() {
			return
		}
		var ev StreamEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			h.reportError(&DecodeError{Data: string(data), Cause: err})
			return
		}
		h.emit(ev)
	})

	if err != nil {
		if _, ok := AsHTTPError(err); !ok {
			err = &TransportError{Method: http.MethodGet, URL: url, Cause: err}
		}
		h.terminate(StateErrored, err)
		return
	}
	h.terminate(StateComplete, nil)
}
