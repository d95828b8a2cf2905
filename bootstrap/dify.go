package bootstrap

import (
	"errors"
	"fmt"

	"difykit/pkg/config"
	"difykit/pkg/dify"
	"difykit/pkg/logger"
)

// DifyClients 对话应用与工作流应用各自的客户端
type DifyClients struct {
	Chat     *dify.Client
	Workflow *dify.Client
}

// SetupDify 根据配置创建 Dify 客户端
func SetupDify() (*DifyClients, error) {
	baseURL := config.GetString("dify.base_url")
	opts := []dify.Option{
		dify.WithBaseURL(baseURL),
		dify.WithTransportKind(dify.TransportKind(config.GetString("dify.transport"))),
		dify.WithEventSource(config.GetBool("dify.event_source")),
	}

	apiKey := config.GetString("dify.api_key")
	if apiKey == "" {
		return nil, errors.New("缺少必要的配置: DIFY_API_KEY 未设置")
	}
	chat, err := dify.New(apiKey, opts...)
	if err != nil {
		return nil, fmt.Errorf("创建对话应用客户端失败: %w", err)
	}

	workflow := chat
	if workflowKey := config.GetString("dify.workflow_api_key"); workflowKey != apiKey {
		if workflow, err = dify.New(workflowKey, opts...); err != nil {
			return nil, fmt.Errorf("创建工作流应用客户端失败: %w", err)
		}
	}

	logger.InfoString("Dify", "Setup", fmt.Sprintf(
		"Dify 客户端初始化成功 [BaseURL: %s, Transport: %s]",
		chat.BaseURL(),
		config.GetString("dify.transport"),
	))
	return &DifyClients{Chat: chat, Workflow: workflow}, nil
}
