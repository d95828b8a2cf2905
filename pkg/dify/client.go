// Package dify 是 Dify 对话与工作流 API 的客户端
//
// 同一个调用既可以一次性返回完整 JSON（blocking），也可以按事件流逐条回调（streaming），
// 由请求中的 response_mode 决定。
package dify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"difykit/pkg/logger"
)

// DefaultBaseURL 云端版地址，私有部署需通过 WithBaseURL 覆盖
const DefaultBaseURL = "https://api.dify.ai/v1"

// ResponseModeStreaming 流式返回
const ResponseModeStreaming = "streaming"

// ResponseModeBlocking 阻塞返回
const ResponseModeBlocking = "blocking"

// JSON 完整解析后的响应体
type JSON map[string]any

// ClientConfig 客户端配置，构造后只读
type ClientConfig struct {
	APIKey  string
	BaseURL string
}

// Client Dify API 客户端，可被多个 goroutine 同时使用
type Client struct {
	config    ClientConfig
	transport Transport
	push      pushStreamer
}

type clientOptions struct {
	baseURL     string
	kind        TransportKind
	doer        Doer
	transport   Transport
	eventSource bool
}

// Option 客户端构造选项
type Option func(*clientOptions)

// WithBaseURL 设置 API 地址，如 https://your-instance.com/v1
func WithBaseURL(baseURL string) Option {
	return func(o *clientOptions) {
		o.baseURL = baseURL
	}
}

// WithHTTPClient 使用指定的底层请求原语
//
// *http.Client 会被原生传输层复用；其他 Doer 实现会使客户端退回兼容传输层。
func WithHTTPClient(doer Doer) Option {
	return func(o *clientOptions) {
		o.doer = doer
	}
}

// WithTransportKind 强制指定传输层
func WithTransportKind(kind TransportKind) Option {
	return func(o *clientOptions) {
		o.kind = kind
	}
}

// WithTransport 直接注入传输层，此时不提供推送流能力
func WithTransport(t Transport) Option {
	return func(o *clientOptions) {
		o.transport = t
	}
}

// WithEventSource 是否为无请求体的 GET 流启用服务端推送，默认启用
func WithEventSource(enabled bool) Option {
	return func(o *clientOptions) {
		o.eventSource = enabled
	}
}

// New 创建客户端，apiKey 为空时返回 ErrMissingAPIKey
func New(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	o := &clientOptions{
		baseURL:     DefaultBaseURL,
		kind:        TransportAuto,
		eventSource: true,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.baseURL == "" {
		o.baseURL = DefaultBaseURL
	}

	c := &Client{
		config: ClientConfig{
			APIKey:  apiKey,
			BaseURL: strings.TrimRight(o.baseURL, "/"),
		},
	}
	if o.transport != nil {
		c.transport = o.transport
	} else {
		c.transport, c.push = selectTransport(o.kind, o.doer, o.eventSource)
	}

	logger.DebugString("Dify", "Setup", fmt.Sprintf(
		"客户端已创建 BaseURL:%s 传输层:%T 推送流:%v",
		c.config.BaseURL, c.transport, c.push != nil))

	return c, nil
}

// BaseURL 返回 API 地址
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// Reply 可流式调用的返回值，Data 与 Stream 只会设置其中一个
type Reply struct {
	// Data blocking 模式下的完整响应
	Data JSON
	// Stream streaming 模式下的流句柄
	Stream *StreamHandle
}

// IsStream 是否为流式返回
func (r *Reply) IsStream() bool {
	return r.Stream != nil
}

// dispatch 按 response_mode 选择阻塞或流式执行
func (c *Client) dispatch(ctx context.Context, endpoint, responseMode string, opts Options, callbacks StreamCallbacks) (*Reply, error) {
	if responseMode == ResponseModeStreaming {
		return &Reply{Stream: c.Stream(ctx, endpoint, opts, callbacks)}, nil
	}
	data, err := c.Request(ctx, endpoint, opts)
	if err != nil {
		return nil, err
	}
	return &Reply{Data: data}, nil
}

func (c *Client) defaultOptions(stream bool) Options {
	headers := map[string]any{
		"Authorization": "Bearer " + c.config.APIKey,
		"Content-Type":  "application/json",
	}
	if stream {
		headers["Accept"] = "text/event-stream"
	}
	return Options{optHeaders: headers}
}

// Request 阻塞调用：发送请求，读取并解析完整 JSON 响应
//
// 非 2xx 返回 *HTTPError，网络错误返回 *TransportError，均不重试。
func (c *Client) Request(ctx context.Context, endpoint string, opts Options) (JSON, error) {
	merged := MergeOptions(c.defaultOptions(false), opts)
	return c.execute(ctx, c.config.BaseURL+endpoint, newRequestSpec(merged))
}

func (c *Client) execute(ctx context.Context, url string, spec *RequestSpec) (JSON, error) {
	start := time.Now()

	resp, err := c.transport.Send(ctx, url, spec)
	if err != nil {
		logger.ErrorString("Dify", "Request", fmt.Sprintf("请求失败 %s %s 错误:%v", spec.Method, url, err))
		return nil, err
	}
	defer resp.Close()

	if !resp.OK() {
		body, _ := resp.Bytes()
		logger.WarnString("Dify", "Response", fmt.Sprintf("请求完成 %s %s 状态:%d", spec.Method, url, resp.StatusCode))
		return nil, &HTTPError{
			Method:     spec.Method,
			URL:        url,
			StatusCode: resp.StatusCode,
			Body:       truncateBody(body),
		}
	}

	data, err := resp.JSON()
	if err != nil {
		return nil, fmt.Errorf("dify: decode response: %w", err)
	}

	logger.DebugString("Dify", "Response", fmt.Sprintf(
		"请求完成 %s %s 状态:%d 耗时:%v", spec.Method, url, resp.StatusCode, time.Since(start)))
	return data, nil
}

// Stream 流式调用，立即返回句柄，事件通过 callbacks 异步投递
//
// 推送流可用且 method 显式为 GET 时走推送流（body 编码为查询字符串），
// 其余情况发送请求后逐块读取响应体并按 "data: " 行解析。
// ctx 取消等同于数据源出错；调用方主动结束请使用 StreamHandle.Close。
func (c *Client) Stream(ctx context.Context, endpoint string, opts Options, callbacks StreamCallbacks) *StreamHandle {
	url := c.config.BaseURL + endpoint
	merged := MergeOptions(c.defaultOptions(true), opts)
	spec := newRequestSpec(merged)

	streamCtx, cancel := context.WithCancel(ctx)
	h := newStreamHandle(cancel, callbacks)

	if c.push != nil && merged.rawMethod() == http.MethodGet {
		target := url
		if body, ok := asMap(spec.Body); ok {
			if query := queryFromMap(body); query != "" {
				target += "?" + query
			}
		}
		logger.DebugString("Dify", "Stream", "推送流 "+target)
		go c.openPush(streamCtx, h, target, spec)
		return h
	}

	logger.DebugString("Dify", "Stream", fmt.Sprintf("分块读取 %s %s", spec.Method, url))
	go c.openChunked(streamCtx, h, url, spec)
	return h
}

// openChunked 分块读取路径
func (c *Client) openChunked(ctx context.Context, h *StreamHandle, url string, spec *RequestSpec) {
	resp, err := c.transport.Send(ctx, url, spec)
	if err != nil {
		h.terminate(StateErrored, err)
		return
	}

	if !resp.OK() {
		body, _ := resp.Bytes()
		resp.Close()
		h.terminate(StateErrored, &HTTPError{
			Method:     spec.Method,
			URL:        url,
			StatusCode: resp.StatusCode,
			Body:       truncateBody(body),
		})
		return
	}

	body := resp.Body()
	if body == nil {
		resp.Close()
		h.terminate(StateErrored, ErrStreamingUnsupported)
		return
	}

	if !h.activate(func() { body.Close() }) {
		// 拿到响应之前已经被关闭
		body.Close()
		return
	}
	h.readFrames(ctx, body)
}
