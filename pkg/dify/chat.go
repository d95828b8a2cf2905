package dify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// SendChatMessage 发送对话消息
//
// ResponseMode 为 streaming 时返回流句柄，事件通过 callbacks 投递；否则返回完整响应。
func (c *Client) SendChatMessage(ctx context.Context, req ChatMessageRequest, callbacks StreamCallbacks) (*Reply, error) {
	payload := chatMessagePayload{
		Query:            req.Query,
		Inputs:           req.Inputs,
		ResponseMode:     orDefault(req.ResponseMode, ResponseModeBlocking),
		User:             req.User,
		ConversationID:   req.ConversationID,
		Files:            req.Files,
		AutoGenerateName: req.AutoGenerateName == nil || *req.AutoGenerateName,
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
	return c.dispatch(ctx, "/chat-messages", req.ResponseMode, opts, callbacks)
}

// StopChatMessage 停止流式生成，仅支持 streaming 模式产生的任务
func (c *Client) StopChatMessage(ctx context.Context, taskID, user string) (JSON, error) {
	opts, err := jsonOptions(http.MethodPost, userPayload{User: user})
	if err != nil {
		return nil, err
	}
	return c.Request(ctx, "/chat-messages/"+url.PathEscape(taskID)+"/stop", opts)
}

// SendMessageFeedback 消息反馈，rating 为 like / dislike，空串表示撤销
func (c *Client) SendMessageFeedback(ctx context.Context, messageID, rating, user, content string) (JSON, error) {
	payload := struct {
		Rating  *string `json:"rating"`
		User    string  `json:"user"`
		Content string  `json:"content"`
	}{
		User:    user,
		Content: content,
	}
	if rating != "" {
		payload.Rating = &rating
	}

	opts, err := jsonOptions(http.MethodPost, payload)
	if err != nil {
		return nil, err
	}
	return c.Request(ctx, "/messages/"+url.PathEscape(messageID)+"/feedbacks", opts)
}

// GetSuggestedQuestions 获取下一轮建议问题
func (c *Client) GetSuggestedQuestions(ctx context.Context, messageID, user string) (JSON, error) {
	endpoint := "/messages/" + url.PathEscape(messageID) + "/suggested?" + EncodeQuery(QueryParam{"user", user})
	return c.Request(ctx, endpoint, Options{optMethod: http.MethodGet})
}

// GetMessages 会话历史消息，倒序分页
func (c *Client) GetMessages(ctx context.Context, q MessagesQuery) (JSON, error) {
	query := EncodeQuery(
		QueryParam{"conversation_id", q.ConversationID},
		QueryParam{"user", q.User},
		QueryParam{"first_id", q.FirstID},
		QueryParam{"limit", intOrDefault(q.Limit, 20)},
	)
	return c.Request(ctx, "/messages?"+query, Options{optMethod: http.MethodGet})
}

// GetConversations 当前用户的会话列表
func (c *Client) GetConversations(ctx context.Context, q ConversationsQuery) (JSON, error) {
	query := EncodeQuery(
		QueryParam{"user", q.User},
		QueryParam{"last_id", q.LastID},
		QueryParam{"limit", intOrDefault(q.Limit, 20)},
		QueryParam{"sort_by", orDefault(q.SortBy, "-updated_at")},
	)
	return c.Request(ctx, "/conversations?"+query, Options{optMethod: http.MethodGet})
}

// DeleteConversation 删除会话
func (c *Client) DeleteConversation(ctx context.Context, conversationID, user string) (JSON, error) {
	opts, err := jsonOptions(http.MethodDelete, userPayload{User: user})
	if err != nil {
		return nil, err
	}
	return c.Request(ctx, "/conversations/"+url.PathEscape(conversationID), opts)
}

// RenameConversation 会话重命名，AutoGenerate 为 true 时由服务端生成名称
func (c *Client) RenameConversation(ctx context.Context, conversationID string, req RenameConversationRequest) (JSON, error) {
	payload := struct {
		Name         string `json:"name"`
		AutoGenerate bool   `json:"auto_generate"`
		User         string `json:"user"`
	}{
		Name:         req.Name,
		AutoGenerate: req.AutoGenerate,
		User:         req.User,
	}

	opts, err := jsonOptions(http.MethodPost, payload)
	if err != nil {
		return nil, err
	}
	return c.Request(ctx, "/conversations/"+url.PathEscape(conversationID)+"/name", opts)
}

// jsonOptions 以 JSON 字符串作为请求体
func jsonOptions(method string, payload any) (Options, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("dify: encode payload: %w", err)
	}
	return Options{optMethod: method, optBody: body}, nil
}
