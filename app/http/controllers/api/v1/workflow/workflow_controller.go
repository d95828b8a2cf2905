// Package workflow 工作流应用相关接口
package workflow

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"

	v1 "difykit/app/http/controllers/api/v1"
	"difykit/app/requests"
	"difykit/pkg/dify"
)

// WorkflowController 工作流控制器
type WorkflowController struct {
	v1.BaseAPIController
	client *dify.Client
}

// NewWorkflowController 创建工作流控制器
func NewWorkflowController(client *dify.Client, timeout time.Duration) *WorkflowController {
	return &WorkflowController{
		BaseAPIController: v1.BaseAPIController{Timeout: timeout},
		client:            client,
	}
}

// Run 执行工作流，streaming 模式下以 SSE 转发事件
// POST /v1/workflows/run
func (wc *WorkflowController) Run(c *gin.Context) {
	req, err := requests.ValidateWorkflowRun(c)
	if err != nil {
		v1.ValidationFailed(c, err)
		return
	}

	wc.Dispatch(c, req.ResponseMode == dify.ResponseModeStreaming,
		func(ctx context.Context, callbacks dify.StreamCallbacks) (*dify.Reply, error) {
			return wc.client.RunWorkflow(ctx, req.ToDify(), callbacks)
		})
}

// Show 工作流执行详情
// GET /v1/workflows/run/:workflow_run_id
func (wc *WorkflowController) Show(c *gin.Context) {
	runID := c.Param("workflow_run_id")

	wc.Call(c, func(ctx context.Context) (dify.JSON, error) {
		return wc.client.GetWorkflowRun(ctx, runID)
	})
}

// Stop 停止工作流任务
// POST /v1/workflows/tasks/:task_id/stop
func (wc *WorkflowController) Stop(c *gin.Context) {
	req, err := requests.ValidateUser(c)
	if err != nil {
		v1.ValidationFailed(c, err)
		return
	}
	taskID := c.Param("task_id")

	wc.Call(c, func(ctx context.Context) (dify.JSON, error) {
		return wc.client.StopWorkflow(ctx, taskID, req.User)
	})
}

// Logs 工作流日志
// GET /v1/workflows/logs?keyword=&status=&page=&limit=
func (wc *WorkflowController) Logs(c *gin.Context) {
	q := dify.WorkflowLogsQuery{
		Keyword: c.Query("keyword"),
		Status:  c.Query("status"),
		Page:    cast.ToInt(c.Query("page")),
		Limit:   cast.ToInt(c.Query("limit")),
	}

	wc.Call(c, func(ctx context.Context) (dify.JSON, error) {
		return wc.client.GetWorkflowLogs(ctx, q)
	})
}
