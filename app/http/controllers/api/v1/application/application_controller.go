// Package application 应用信息、文件上传与健康检查接口
package application

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"

	v1 "difykit/app/http/controllers/api/v1"
	"difykit/pkg/dify"
	"difykit/pkg/logger"
	"difykit/pkg/response"
)

// parametersTTL 应用参数的缓存时长
const parametersTTL = 5 * time.Minute

// Cache 键值缓存
type Cache interface {
	Get(key string) string
	Set(key string, value interface{}, expiration time.Duration) bool
}

// ApplicationController 应用信息控制器
type ApplicationController struct {
	v1.BaseAPIController
	client *dify.Client
	cache  Cache
}

// NewApplicationController 创建控制器，cache 为 nil 时不缓存
func NewApplicationController(client *dify.Client, cache Cache, timeout time.Duration) *ApplicationController {
	return &ApplicationController{
		BaseAPIController: v1.BaseAPIController{Timeout: timeout},
		client:            client,
		cache:             cache,
	}
}

// Info 应用基本信息
// GET /v1/info
func (ac *ApplicationController) Info(c *gin.Context) {
	ac.Call(c, ac.client.GetAppInfo)
}

// Site WebApp 设置
// GET /v1/site
func (ac *ApplicationController) Site(c *gin.Context) {
	ac.Call(c, ac.client.GetAppSite)
}

// Parameters 应用参数，启用缓存时先读缓存
// GET /v1/parameters
func (ac *ApplicationController) Parameters(c *gin.Context) {
	key := "difykit:parameters:" + ac.client.BaseURL()

	if ac.cache != nil {
		if cached := ac.cache.Get(key); cached != "" {
			var data dify.JSON
			if err := json.Unmarshal([]byte(cached), &data); err == nil {
				response.JSON(c, data)
				return
			}
		}
	}

	ac.Call(c, func(ctx context.Context) (dify.JSON, error) {
		data, err := ac.client.GetAppParameters(ctx)
		if err != nil || ac.cache == nil {
			return data, err
		}
		if encoded, err := json.Marshal(data); err == nil {
			ac.cache.Set(key, encoded, parametersTTL)
		} else {
			logger.WarnString("ApplicationController", "缓存应用参数", err.Error())
		}
		return data, nil
	})
}

// Upload 上传文件，表单字段 file 与 user
// POST /v1/files/upload
func (ac *ApplicationController) Upload(c *gin.Context) {
	user := c.PostForm("user")
	if user == "" {
		response.ValidationError(c, map[string][]string{"user": {"user 为必填项"}})
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		response.ValidationError(c, map[string][]string{"file": {"file 为必填项"}})
		return
	}

	file, err := header.Open()
	if err != nil {
		response.BadRequest(c, err, "读取上传文件失败")
		return
	}
	defer file.Close()

	ac.Call(c, func(ctx context.Context) (dify.JSON, error) {
		return ac.client.UploadFile(ctx, header.Filename, file, user)
	})
}
