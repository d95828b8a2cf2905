// Package response 统一的 HTTP 响应处理
package response

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"difykit/pkg/dify"
	"difykit/pkg/logger"
)

// 响应状态
const (
	Success = "success"
	Error   = "error"
)

/* 标准响应结构
{
    "status": "success",
    "data": {},     // 成功时返回的数据
    "error": "",    // 错误时返回的信息
    "message": "",  // 提示信息
}
*/

// Response 统一响应结构体
type Response struct {
	Status  string      `json:"status"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

// ------------------ 成功响应 ------------------

// Data 响应 200 和数据
func Data(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Status: Success,
		Data:   data,
	})
}

// JSON 原样返回 JSON，用于透传 Dify 的响应体
func JSON(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Accepted 异步任务已受理
func Accepted(c *gin.Context, data interface{}, msg ...string) {
	c.JSON(http.StatusAccepted, Response{
		Status:  Success,
		Message: getMsg("任务已加入队列", msg...),
		Data:    data,
	})
}

// ------------------ 错误响应 ------------------

// Abort404 响应 404 错误
func Abort404(c *gin.Context, msg ...string) {
	c.AbortWithStatusJSON(http.StatusNotFound, Response{
		Status:  Error,
		Message: getMsg("资源不存在", msg...),
	})
}

// Abort500 响应 500 错误
func Abort500(c *gin.Context, msg ...string) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, Response{
		Status:  Error,
		Message: getMsg("服务器内部错误", msg...),
	})
}

// Abort503 依赖的服务不可用
func Abort503(c *gin.Context, msg ...string) {
	c.AbortWithStatusJSON(http.StatusServiceUnavailable, Response{
		Status:  Error,
		Message: getMsg("服务暂不可用", msg...),
	})
}

// BadRequest 响应 400 错误（带错误信息）
func BadRequest(c *gin.Context, err error, msg ...string) {
	logger.LogIf(err)
	c.AbortWithStatusJSON(http.StatusBadRequest, Response{
		Status:  Error,
		Message: getMsg("请求格式错误", msg...),
		Error:   err.Error(),
	})
}

// ValidationError 响应 422 表单验证错误
func ValidationError(c *gin.Context, errors map[string][]string) {
	c.AbortWithStatusJSON(http.StatusUnprocessableEntity, Response{
		Status:  Error,
		Message: "请求验证不通过，具体请查看 data",
		Data:    errors,
	})
}

// BadGateway 调用 Dify 失败（网络错误、响应无法解析等）
func BadGateway(c *gin.Context, err error, msg ...string) {
	logger.LogIf(err)
	c.AbortWithStatusJSON(http.StatusBadGateway, Response{
		Status:  Error,
		Message: getMsg("上游服务调用失败", msg...),
		Error:   err.Error(),
	})
}

// Upstream 按错误类型响应：Dify 返回的非 2xx 状态码原样透传，其余为 502
func Upstream(c *gin.Context, err error) {
	he, ok := dify.AsHTTPError(err)
	if !ok {
		BadGateway(c, err)
		return
	}

	logger.WarnString("Response", "Upstream", err.Error())
	resp := Response{
		Status:  Error,
		Message: "上游服务返回错误",
		Error:   err.Error(),
	}
	// Dify 的错误体一般为 {"code": "...", "message": "..."}
	if json.Valid(he.Body) {
		resp.Data = json.RawMessage(he.Body)
	}
	c.AbortWithStatusJSON(he.StatusCode, resp)
}

func getMsg(defaultMsg string, msg ...string) string {
	if len(msg) > 0 {
		return msg[0]
	}
	return defaultMsg
}
