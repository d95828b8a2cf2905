package dify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"

	"difykit/pkg/logger"
)

// Transport 发送一次请求，返回一次响应
type Transport interface {
	Send(ctx context.Context, url string, spec *RequestSpec) (*Response, error)
}

// Doer 底层请求原语，*http.Client 满足该接口
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// TransportKind 传输层选择策略
type TransportKind string

const (
	// TransportAuto 优先使用原生传输层，不可用时退回兼容传输层
	TransportAuto TransportKind = "auto"
	// TransportNative 基于 resty 的原生传输层，支持逐块读取响应体
	TransportNative TransportKind = "native"
	// TransportCompat 基于 Doer 的兼容传输层，响应体整体读取
	TransportCompat TransportKind = "compat"
)

// Response 传输层返回的响应
type Response struct {
	StatusCode int
	Header     http.Header

	// stream 可逐块读取的响应体，兼容传输层为 nil
	stream io.ReadCloser
	// data 兼容传输层已读取完毕的响应体
	data []byte
}

// OK 状态码是否为 2xx
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Body 返回可逐块读取的响应体，传输层不支持时返回 nil
func (r *Response) Body() io.ReadCloser {
	return r.stream
}

// Bytes 读取完整响应体
func (r *Response) Bytes() ([]byte, error) {
	if r.stream == nil {
		return r.data, nil
	}
	defer r.stream.Close()
	data, err := io.ReadAll(r.stream)
	if err != nil {
		return nil, err
	}
	r.stream = nil
	r.data = data
	return data, nil
}

// JSON 读取并解析完整响应体，空响应体返回空对象
func (r *Response) JSON() (JSON, error) {
	data, err := r.Bytes()
	if err != nil {
		return nil, err
	}
	result := JSON{}
	if len(bytes.TrimSpace(data)) == 0 {
		return result, nil
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Close 释放响应体
func (r *Response) Close() error {
	if r.stream == nil {
		return nil
	}
	return r.stream.Close()
}

// restyTransport 原生传输层
type restyTransport struct {
	client *resty.Client
}

func newRestyTransport(hc *http.Client) *restyTransport {
	var client *resty.Client
	if hc != nil {
		client = resty.NewWithClient(hc)
	} else {
		client = resty.New()
	}

	// 不做自动重试，错误原样交给调用方
	client.SetRetryCount(0).
		SetLogger(logger.Logger.Sugar())

	return &restyTransport{client: client}
}

// httpClient 推送流复用同一个底层连接池
func (t *restyTransport) httpClient() *http.Client {
	return t.client.GetClient()
}

func (t *restyTransport) Send(ctx context.Context, url string, spec *RequestSpec) (*Response, error) {
	req := t.client.R().
		SetContext(ctx).
		SetHeaders(spec.Headers).
		SetDoNotParseResponse(true)

	switch body := spec.Body.(type) {
	case nil:
	case *FormData:
		for _, field := range body.fields {
			if field.reader != nil {
				req.SetFileReader(field.name, field.fileName, field.reader)
				continue
			}
			req.SetMultipartFormData(map[string]string{field.name: field.value})
		}
	default:
		req.SetBody(body)
	}

	resp, err := req.Execute(spec.Method, url)
	if err != nil {
		return nil, &TransportError{Method: spec.Method, URL: url, Cause: err}
	}

	return &Response{
		StatusCode: resp.StatusCode(),
		Header:     resp.Header(),
		stream:     resp.RawBody(),
	}, nil
}

// httpTransport 兼容传输层，等价于只有完成回调的请求原语
type httpTransport struct {
	doer Doer
}

func newHTTPTransport(doer Doer) *httpTransport {
	if doer == nil {
		doer = http.DefaultClient
	}
	return &httpTransport{doer: doer}
}

func (t *httpTransport) Send(ctx context.Context, url string, spec *RequestSpec) (*Response, error) {
	body, contentType, err := encodeBody(spec.Body)
	if err != nil {
		return nil, fmt.Errorf("dify: encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, spec.Method, url, body)
	if err != nil {
		return nil, fmt.Errorf("dify: build request: %w", err)
	}
	for key, value := range spec.Headers {
		req.Header.Set(key, value)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := t.doer.Do(req)
	if err != nil {
		return nil, &TransportError{Method: spec.Method, URL: url, Cause: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Method: spec.Method, URL: url, Cause: err}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		data:       data,
	}, nil
}

// encodeBody 原样写出 []byte / string / io.Reader，表单编码为 multipart，其余值编码为 JSON
func encodeBody(body any) (io.Reader, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case []byte:
		return bytes.NewReader(b), "", nil
	case string:
		return strings.NewReader(b), "", nil
	case *FormData:
		return b.encode()
	case io.Reader:
		return b, "", nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, "", err
		}
		return bytes.NewReader(data), "", nil
	}
}

// selectTransport 在构造客户端时决定一次传输层，调用过程中不再切换
//
// 未提供 Doer 或提供的是 *http.Client 时使用原生传输层，否则使用兼容传输层。
// 只有原生传输层提供推送流能力。
func selectTransport(kind TransportKind, doer Doer, eventSource bool) (Transport, pushStreamer) {
	hc, isHTTPClient := doer.(*http.Client)
	nativeAvailable := doer == nil || isHTTPClient

	if kind == TransportCompat || (kind != TransportNative && !nativeAvailable) {
		return newHTTPTransport(doer), nil
	}

	native := newRestyTransport(hc)
	if !eventSource {
		return native, nil
	}
	return native, newSSEStreamer(native.httpClient())
}
