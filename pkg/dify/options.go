package dify

import (
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/spf13/cast"
)

// 配置树中核心使用的键
const (
	optMethod  = "method"
	optHeaders = "headers"
	optBody    = "body"
)

// Options 单次请求的配置树
//
// 约定键：method（string）、headers（嵌套 map）、body（[]byte / string / io.Reader / *FormData / map）
type Options map[string]any

// MergeOptions 深度合并两棵配置树，override 中的值优先
//
// 两边同为 map 时递归合并，其余值（包括切片）整体覆盖。
// 两个入参都不会被修改，结果中的每一层 map 都是新建的。
func MergeOptions(base, override Options) Options {
	return Options(mergeMaps(base, override))
}

func mergeMaps(base, override map[string]any) map[string]any {
	result := make(map[string]any, len(base)+len(override))

	for key, value := range base {
		if nested, ok := asMap(value); ok {
			result[key] = mergeMaps(nested, nil)
			continue
		}
		result[key] = value
	}

	for key, value := range override {
		if nested, ok := asMap(value); ok {
			prev, _ := asMap(result[key])
			result[key] = mergeMaps(prev, nested)
			continue
		}
		result[key] = value
	}

	return result
}

// asMap 识别可以递归合并的 map 值
func asMap(value any) (map[string]any, bool) {
	switch m := value.(type) {
	case map[string]any:
		return m, true
	case Options:
		return m, true
	case map[string]string:
		converted := make(map[string]any, len(m))
		for k, v := range m {
			converted[k] = v
		}
		return converted, true
	}
	return nil, false
}

// Method 返回请求方法，未设置时为 GET
func (o Options) Method() string {
	if method := o.rawMethod(); method != "" {
		return method
	}
	return http.MethodGet
}

// rawMethod 返回显式设置的请求方法
func (o Options) rawMethod() string {
	return strings.ToUpper(cast.ToString(o[optMethod]))
}

// Headers 返回扁平化的请求头
func (o Options) Headers() map[string]string {
	return cast.ToStringMapString(o[optHeaders])
}

// Body 返回请求体
func (o Options) Body() any {
	return o[optBody]
}

// RequestSpec 由合并后的配置生成的一次性请求描述
type RequestSpec struct {
	Method  string
	Headers map[string]string
	Body    any
}

func newRequestSpec(opts Options) *RequestSpec {
	return &RequestSpec{
		Method:  opts.Method(),
		Headers: opts.Headers(),
		Body:    opts.Body(),
	}
}

// QueryParam 有序的查询参数
type QueryParam struct {
	Key   string
	Value any
}

// EncodeQuery 按参数顺序编码查询字符串，编码规则与 encodeURIComponent 一致
func EncodeQuery(params ...QueryParam) string {
	parts := make([]string, 0, len(params))
	for _, p := range params {
		parts = append(parts, encodeURIComponent(p.Key)+"="+encodeURIComponent(cast.ToString(p.Value)))
	}
	return strings.Join(parts, "&")
}

// queryFromMap 把 map 形式的 body 编码为查询字符串，键按字典序排列
func queryFromMap(body map[string]any) string {
	keys := make([]string, 0, len(body))
	for k := range body {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	params := make([]QueryParam, 0, len(keys))
	for _, k := range keys {
		params = append(params, QueryParam{Key: k, Value: body[k]})
	}
	return EncodeQuery(params...)
}

var uriComponentReplacer = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

func encodeURIComponent(s string) string {
	return uriComponentReplacer.Replace(url.QueryEscape(s))
}
