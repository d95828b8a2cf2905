package requests

import (
	"github.com/gin-gonic/gin"
	"github.com/thedevsaddam/govalidator"

	"difykit/pkg/dify"
)

// WorkflowRunRequest 执行工作流
type WorkflowRunRequest struct {
	Inputs       map[string]any `json:"inputs"`
	ResponseMode string         `json:"response_mode"`
	User         string         `json:"user"`
	Files        []dify.File    `json:"files"`
}

// ToDify 转换为客户端请求
func (r *WorkflowRunRequest) ToDify() dify.WorkflowRunRequest {
	return dify.WorkflowRunRequest{
		Inputs:       r.Inputs,
		ResponseMode: r.ResponseMode,
		User:         r.User,
		Files:        r.Files,
	}
}

// ValidateWorkflowRun 验证工作流执行请求
func ValidateWorkflowRun(c *gin.Context) (*WorkflowRunRequest, error) {
	rules := govalidator.MapData{
		"user":          []string{"required", "max:255"},
		"response_mode": []string{"in:streaming,blocking"},
	}
	messages := govalidator.MapData{
		"user": []string{
			"required:user 为必填项",
			"max:user 长度不能超过 255 个字符",
		},
		"response_mode": []string{
			"in:response_mode 只能是 streaming 或 blocking",
		},
	}
	return ValidateJSON[WorkflowRunRequest](c, rules, messages)
}

// WorkflowJobRequest 异步执行工作流
type WorkflowJobRequest struct {
	Inputs map[string]any `json:"inputs"`
	User   string         `json:"user"`
}

// ValidateWorkflowJob 验证异步任务请求
func ValidateWorkflowJob(c *gin.Context) (*WorkflowJobRequest, error) {
	rules := govalidator.MapData{
		"user": []string{"required", "max:255"},
	}
	messages := govalidator.MapData{
		"user": []string{
			"required:user 为必填项",
			"max:user 长度不能超过 255 个字符",
		},
	}
	return ValidateJSON[WorkflowJobRequest](c, rules, messages)
}
