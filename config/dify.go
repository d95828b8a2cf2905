package config

import "difykit/pkg/config"

func init() {
	config.Add("dify", func() map[string]interface{} {
		apiKey := config.Env("DIFY_API_KEY", "")

		return map[string]interface{}{
			// API 地址，私有部署填写自己的实例，如 https://dify.example.com/v1
			"base_url": config.Env("DIFY_BASE_URL", "https://api.dify.ai/v1"),

			// 对话应用的 API Key
			"api_key": apiKey,

			// 工作流应用的 API Key，未设置时与对话应用共用
			"workflow_api_key": config.Env("DIFY_WORKFLOW_API_KEY", apiKey),

			// 传输层：auto / native / compat
			"transport": config.Env("DIFY_TRANSPORT", "auto"),

			// 无请求体的 GET 流是否使用服务端推送
			"event_source": config.Env("DIFY_EVENT_SOURCE", true),

			// blocking 调用的超时秒数，流式调用不受限制
			"timeout": config.Env("DIFY_TIMEOUT", 90),
		}
	})
}
