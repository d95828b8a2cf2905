package requests

import (
	"github.com/gin-gonic/gin"
	"github.com/thedevsaddam/govalidator"

	"difykit/pkg/dify"
)

// ChatMessageRequest 发送对话消息
type ChatMessageRequest struct {
	Query            string         `json:"query"`
	Inputs           map[string]any `json:"inputs"`
	ResponseMode     string         `json:"response_mode"`
	User             string         `json:"user"`
	ConversationID   string         `json:"conversation_id"`
	Files            []dify.File    `json:"files"`
	AutoGenerateName *bool          `json:"auto_generate_name"`
}

// ToDify 转换为客户端请求
func (r *ChatMessageRequest) ToDify() dify.ChatMessageRequest {
	return dify.ChatMessageRequest{
		Query:            r.Query,
		Inputs:           r.Inputs,
		ResponseMode:     r.ResponseMode,
		User:             r.User,
		ConversationID:   r.ConversationID,
		Files:            r.Files,
		AutoGenerateName: r.AutoGenerateName,
	}
}

// ValidateChatMessage 验证对话消息
func ValidateChatMessage(c *gin.Context) (*ChatMessageRequest, error) {
	rules := govalidator.MapData{
		"query":         []string{"required"},
		"user":          []string{"required", "max:255"},
		"response_mode": []string{"in:streaming,blocking"},
	}
	messages := govalidator.MapData{
		"query": []string{
			"required:query 为必填项",
		},
		"user": []string{
			"required:user 为必填项",
			"max:user 长度不能超过 255 个字符",
		},
		"response_mode": []string{
			"in:response_mode 只能是 streaming 或 blocking",
		},
	}
	return ValidateJSON[ChatMessageRequest](c, rules, messages)
}

// UserRequest 只携带用户标识的请求，如停止生成、删除会话
type UserRequest struct {
	User string `json:"user"`
}

// ValidateUser 验证用户标识
func ValidateUser(c *gin.Context) (*UserRequest, error) {
	rules := govalidator.MapData{
		"user": []string{"required"},
	}
	messages := govalidator.MapData{
		"user": []string{"required:user 为必填项"},
	}
	return ValidateJSON[UserRequest](c, rules, messages)
}

// FeedbackRequest 消息反馈
type FeedbackRequest struct {
	Rating  string `json:"rating"`
	User    string `json:"user"`
	Content string `json:"content"`
}

// ValidateFeedback 验证消息反馈，rating 为空表示撤销
func ValidateFeedback(c *gin.Context) (*FeedbackRequest, error) {
	rules := govalidator.MapData{
		"rating": []string{"in:like,dislike"},
		"user":   []string{"required"},
	}
	messages := govalidator.MapData{
		"rating": []string{"in:rating 只能是 like 或 dislike"},
		"user":   []string{"required:user 为必填项"},
	}
	return ValidateJSON[FeedbackRequest](c, rules, messages)
}

// RenameConversationRequest 会话重命名
type RenameConversationRequest struct {
	Name         string `json:"name"`
	AutoGenerate bool   `json:"auto_generate"`
	User         string `json:"user"`
}

// ValidateRenameConversation 验证会话重命名，未开启自动生成时 name 必填
func ValidateRenameConversation(c *gin.Context) (*RenameConversationRequest, error) {
	rules := govalidator.MapData{
		"user": []string{"required"},
	}
	messages := govalidator.MapData{
		"user": []string{"required:user 为必填项"},
	}
	req, err := ValidateJSON[RenameConversationRequest](c, rules, messages)
	if err != nil {
		return nil, err
	}
	if !req.AutoGenerate && req.Name == "" {
		return nil, ValidationError{Errors: map[string][]string{
			"name": {"未开启 auto_generate 时 name 为必填项"},
		}}
	}
	return req, nil
}
