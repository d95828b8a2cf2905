package dify

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrMissingAPIKey 构造客户端时未提供 API Key
	ErrMissingAPIKey = errors.New("dify: api key is required")

	// ErrStreamingUnsupported 当前传输层无法逐块读取响应体
	ErrStreamingUnsupported = errors.New("dify: streaming not supported by transport")
)

// HTTPError 服务端返回非 2xx 状态码
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	// Body 截断后的响应体，便于排查
	Body []byte
}

func (e *HTTPError) Error() string {
	var b strings.Builder
	b.WriteString("dify: ")
	if e.Method != "" {
		b.WriteString(e.Method)
		b.WriteString(" ")
	}
	if e.URL != "" {
		b.WriteString(e.URL)
		b.WriteString(": ")
	}
	b.WriteString(fmt.Sprintf("http error! status: %d", e.StatusCode))
	if text := http.StatusText(e.StatusCode); text != "" {
		b.WriteString(" ")
		b.WriteString(text)
	}
	return b.String()
}

// TransportError 网络层错误，没有状态码
type TransportError struct {
	Method string
	URL    string
	Cause  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("dify: %s %s: request failed: %v", e.Method, e.URL, e.Cause)
}

func (e *TransportError) Unwrap() error { return e.Cause }

// DecodeError 推送流中的消息不是合法 JSON
type DecodeError struct {
	Data  string
	Cause error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("dify: decode stream message: %v", e.Cause)
}

func (e *DecodeError) Unwrap() error { return e.Cause }

// AsHTTPError 提取 *HTTPError
func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	if errors.As(err, &he) {
		return he, true
	}
	return nil, false
}

// IsHTTPStatus 判断错误是否为指定状态码的 HTTPError
func IsHTTPStatus(err error, code int) bool {
	he, ok := AsHTTPError(err)
	return ok && he.StatusCode == code
}

// IsTransportError 判断错误是否发生在网络层
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// maxErrorBody 错误中保留的响应体长度
const maxErrorBody = 2048

func truncateBody(body []byte) []byte {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return append([]byte(nil), body...)
}
