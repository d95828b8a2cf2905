package dify

import (
	"context"
	"io"
	"net/http"
)

// GetAppInfo 应用基本信息
func (c *Client) GetAppInfo(ctx context.Context) (JSON, error) {
	return c.Request(ctx, "/info", Options{optMethod: http.MethodGet})
}

// GetAppParameters 应用参数，包括开场白、输入表单等
func (c *Client) GetAppParameters(ctx context.Context) (JSON, error) {
	return c.Request(ctx, "/parameters", Options{optMethod: http.MethodGet})
}

// GetAppSite WebApp 设置
func (c *Client) GetAppSite(ctx context.Context) (JSON, error) {
	return c.Request(ctx, "/site", Options{optMethod: http.MethodGet})
}

// UploadFile 上传文件，供发送消息或执行工作流时引用
//
// 只携带 Authorization 头，Content-Type 由 multipart 编码决定。
func (c *Client) UploadFile(ctx context.Context, fileName string, file io.Reader, user string) (JSON, error) {
	form := NewFormData().
		AppendFile("file", fileName, file).
		Append("user", user)

	spec := &RequestSpec{
		Method: http.MethodPost,
		Headers: map[string]string{
			"Authorization": "Bearer " + c.config.APIKey,
		},
		Body: form,
	}
	return c.execute(ctx, c.config.BaseURL+"/files/upload", spec)
}
