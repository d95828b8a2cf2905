// Package chat 对话应用相关接口
package chat

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"

	v1 "difykit/app/http/controllers/api/v1"
	"difykit/app/requests"
	"difykit/pkg/dify"
)

// ChatController 对话控制器
type ChatController struct {
	v1.BaseAPIController
	client *dify.Client
}

// NewChatController 创建对话控制器
func NewChatController(client *dify.Client, timeout time.Duration) *ChatController {
	return &ChatController{
		BaseAPIController: v1.BaseAPIController{Timeout: timeout},
		client:            client,
	}
}

// SendMessage 发送对话消息
// POST /v1/chat-messages
func (cc *ChatController) SendMessage(c *gin.Context) {
	req, err := requests.ValidateChatMessage(c)
	if err != nil {
		v1.ValidationFailed(c, err)
		return
	}

	cc.Dispatch(c, req.ResponseMode == dify.ResponseModeStreaming,
		func(ctx context.Context, callbacks dify.StreamCallbacks) (*dify.Reply, error) {
			return cc.client.SendChatMessage(ctx, req.ToDify(), callbacks)
		})
}

// Stop 停止生成
// POST /v1/chat-messages/:task_id/stop
func (cc *ChatController) Stop(c *gin.Context) {
	req, err := requests.ValidateUser(c)
	if err != nil {
		v1.ValidationFailed(c, err)
		return
	}
	taskID := c.Param("task_id")

	cc.Call(c, func(ctx context.Context) (dify.JSON, error) {
		return cc.client.StopChatMessage(ctx, taskID, req.User)
	})
}

// Feedback 消息反馈
// POST /v1/messages/:message_id/feedbacks
func (cc *ChatController) Feedback(c *gin.Context) {
	req, err := requests.ValidateFeedback(c)
	if err != nil {
		v1.ValidationFailed(c, err)
		return
	}
	messageID := c.Param("message_id")

	cc.Call(c, func(ctx context.Context) (dify.JSON, error) {
		return cc.client.SendMessageFeedback(ctx, messageID, req.Rating, req.User, req.Content)
	})
}

// Suggested 下一轮建议问题
// GET /v1/messages/:message_id/suggested?user=
func (cc *ChatController) Suggested(c *gin.Context) {
	query, ok := v1.RequireQuery(c, "user")
	if !ok {
		return
	}
	messageID := c.Param("message_id")

	cc.Call(c, func(ctx context.Context) (dify.JSON, error) {
		return cc.client.GetSuggestedQuestions(ctx, messageID, query["user"])
	})
}

// Messages 会话历史消息
// GET /v1/messages?conversation_id=&user=&first_id=&limit=
func (cc *ChatController) Messages(c *gin.Context) {
	query, ok := v1.RequireQuery(c, "conversation_id", "user")
	if !ok {
		return
	}
	q := dify.MessagesQuery{
		ConversationID: query["conversation_id"],
		User:           query["user"],
		FirstID:        c.Query("first_id"),
		Limit:          cast.ToInt(c.Query("limit")),
	}

	cc.Call(c, func(ctx context.Context) (dify.JSON, error) {
		return cc.client.GetMessages(ctx, q)
	})
}

// Conversations 会话列表
// GET /v1/conversations?user=&last_id=&limit=&sort_by=
func (cc *ChatController) Conversations(c *gin.Context) {
	query, ok := v1.RequireQuery(c, "user")
	if !ok {
		return
	}
	q := dify.ConversationsQuery{
		User:   query["user"],
		LastID: c.Query("last_id"),
		Limit:  cast.ToInt(c.Query("limit")),
		SortBy: c.Query("sort_by"),
	}

	cc.Call(c, func(ctx context.Context) (dify.JSON, error) {
		return cc.client.GetConversations(ctx, q)
	})
}

// DeleteConversation 删除会话
// DELETE /v1/conversations/:conversation_id
func (cc *ChatController) DeleteConversation(c *gin.Context) {
	req, err := requests.ValidateUser(c)
	if err != nil {
		v1.ValidationFailed(c, err)
		return
	}
	conversationID := c.Param("conversation_id")

	cc.Call(c, func(ctx context.Context) (dify.JSON, error) {
		return cc.client.DeleteConversation(ctx, conversationID, req.User)
	})
}

// RenameConversation 会话重命名
// POST /v1/conversations/:conversation_id/name
func (cc *ChatController) RenameConversation(c *gin.Context) {
	req, err := requests.ValidateRenameConversation(c)
	if err != nil {
		v1.ValidationFailed(c, err)
		return
	}
	conversationID := c.Param("conversation_id")

	cc.Call(c, func(ctx context.Context) (dify.JSON, error) {
		return cc.client.RenameConversation(ctx, conversationID, dify.RenameConversationRequest{
			Name:         req.Name,
			AutoGenerate: req.AutoGenerate,
			User:         req.User,
		})
	})
}
