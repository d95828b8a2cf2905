package dify

// File 随消息或工作流提交的文件
type File struct {
	Type           string `json:"type"`            // image / document / audio / video / custom
	TransferMethod string `json:"transfer_method"` // remote_url / local_file
	URL            string `json:"url,omitempty"`
	UploadFileID   string `json:"upload_file_id,omitempty"`
}

// ChatMessageRequest 发送对话消息
type ChatMessageRequest struct {
	Query          string
	Inputs         map[string]any
	ResponseMode   string // streaming / blocking，默认 blocking
	User           string
	ConversationID string
	Files          []File
	// AutoGenerateName 为空时默认 true
	AutoGenerateName *bool
}

type chatMessagePayload struct {
	Query            string         `json:"query"`
	Inputs           map[string]any `json:"inputs"`
	ResponseMode     string         `json:"response_mode"`
	User             string         `json:"user"`
	ConversationID   string         `json:"conversation_id"`
	Files            []File         `json:"files"`
	AutoGenerateName bool           `json:"auto_generate_name"`
}

// MessagesQuery 会话历史消息查询
type MessagesQuery struct {
	ConversationID string
	User           string
	FirstID        string
	Limit          int // 默认 20
}

// ConversationsQuery 会话列表查询
type ConversationsQuery struct {
	User   string
	LastID string
	Limit  int    // 默认 20
	SortBy string // 默认 -updated_at
}

// RenameConversationRequest 会话重命名
type RenameConversationRequest struct {
	Name         string
	AutoGenerate bool
	User         string
}

// WorkflowRunRequest 执行工作流
type WorkflowRunRequest struct {
	Inputs       map[string]any
	ResponseMode string // streaming / blocking，默认 blocking
	User         string
	Files        []File
}

type workflowRunPayload struct {
	Inputs       map[string]any `json:"inputs"`
	ResponseMode string         `json:"response_mode"`
	User         string         `json:"user"`
	Files        []File         `json:"files"`
}

// WorkflowLogsQuery 工作流日志查询
type WorkflowLogsQuery struct {
	Keyword string
	Status  string // succeeded / failed / stopped
	Page    int    // 默认 1
	Limit   int    // 默认 20
}

type userPayload struct {
	User string `json:"user"`
}

// Bool 返回 v 的指针，便于设置可选布尔字段
func Bool(v bool) *bool {
	return &v
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func intOrDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
