package dify

import (
	"context"
	"net/http"
	"net/url"
)

// RunWorkflow 执行工作流
//
// ResponseMode 为 streaming 时返回流句柄，否则返回完整响应。
func (c *Client) RunWorkflow(ctx context.Context, req WorkflowRunRequest, callbacks StreamCallbacks) (*Reply, error) {
	payload := workflowRunPayload{
		Inputs:       req.Inputs,
		ResponseMode: orDefault(req.ResponseMode, ResponseModeBlocking),
		User:         req.User,
		Files:        req.Files,
	}
	if payload.Inputs == nil {
		payload.Inputs = map[string]any{}
	}
	if payload.Files == nil {
		payload.Files = []File{}
	}

	opts, err := jsonOptions(http.MethodPost, payload)
	if err != nil {
		return nil, err
	}
	return c.dispatch(ctx, "/workflows/run", req.ResponseMode, opts, callbacks)
}

// GetWorkflowRun 工作流执行详情
func (c *Client) GetWorkflowRun(ctx context.Context, workflowRunID string) (JSON, error) {
	return c.Request(ctx, "/workflows/run/"+url.PathEscape(workflowRunID), Options{optMethod: http.MethodGet})
}

// StopWorkflow 停止工作流任务，仅支持 streaming 模式
func (c *Client) StopWorkflow(ctx context.Context, taskID, user string) (JSON, error) {
	opts, err := jsonOptions(http.MethodPost, userPayload{User: user})
	if err != nil {
		return nil, err
	}
	return c.Request(ctx, "/workflows/tasks/"+url.PathEscape(taskID)+"/stop", opts)
}

// GetWorkflowLogs 工作流日志，倒序分页
func (c *Client) GetWorkflowLogs(ctx context.Context, q WorkflowLogsQuery) (JSON, error) {
	query := EncodeQuery(
		QueryParam{"keyword", q.Keyword},
		QueryParam{"status", q.Status},
		QueryParam{"page", intOrDefault(q.Page, 1)},
		QueryParam{"limit", intOrDefault(q.Limit, 20)},
	)
	return c.Request(ctx, "/workflows/logs?"+query, Options{optMethod: http.MethodGet})
}
