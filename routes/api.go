// Package routes 注册路由
package routes

import (
	"database/sql"
	"time"

	"github.com/gin-gonic/gin"

	"difykit/app/http/controllers/api/v1/application"
	"difykit/app/http/controllers/api/v1/chat"
	"difykit/app/http/controllers/api/v1/workflow"
	"difykit/app/http/middlewares"
	"difykit/app/repositories"
	"difykit/pkg/dify"
	"difykit/pkg/queue"
	"difykit/pkg/redis"
)

// Dependencies 路由依赖的服务，未启用的可以为 nil
type Dependencies struct {
	Chat     *dify.Client
	Workflow *dify.Client
	Queue    *queue.QueueService
	Jobs     *repositories.JobRepository
	Cache    *redis.RedisClient
	SQLDB    *sql.DB
	// Timeout blocking 调用 Dify 的超时
	Timeout time.Duration
}

// RegisterAPIRoutes 注册所有 API 路由
func RegisterAPIRoutes(r *gin.Engine, deps Dependencies) {
	v1 := r.Group("/v1")

	v1.Use(
		middlewares.SecurityHeaders(),
		middlewares.Cors(),
	)

	// 以下接口与 Dify 的路径保持一致，请求原样转发
	if deps.Chat != nil {
		cc := chat.NewChatController(deps.Chat, deps.Timeout)

		v1.POST("/chat-messages", cc.SendMessage)
		v1.POST("/chat-messages/:task_id/stop", cc.Stop)
		v1.POST("/messages/:message_id/feedbacks", cc.Feedback)
		v1.GET("/messages/:message_id/suggested", cc.Suggested)
		v1.GET("/messages", cc.Messages)
		v1.GET("/conversations", cc.Conversations)
		v1.DELETE("/conversations/:conversation_id", cc.DeleteConversation)
		v1.POST("/conversations/:conversation_id/name", cc.RenameConversation)

		var cache application.Cache
		if deps.Cache != nil {
			cache = deps.Cache
		}
		ac := application.NewApplicationController(deps.Chat, cache, deps.Timeout)
		v1.GET("/info", ac.Info)
		v1.GET("/parameters", ac.Parameters)
		v1.GET("/site", ac.Site)
		v1.POST("/files/upload", ac.Upload)
	}

	workflowRoutes := v1.Group("/workflows")
	{
		if deps.Workflow != nil {
			wc := workflow.NewWorkflowController(deps.Workflow, deps.Timeout)
			workflowRoutes.POST("/run", wc.Run)
			workflowRoutes.GET("/run/:workflow_run_id", wc.Show)
			workflowRoutes.POST("/tasks/:task_id/stop", wc.Stop)
			workflowRoutes.GET("/logs", wc.Logs)
		}

		// 异步任务：入队后由 worker 以 blocking 模式执行
		var (
			jobQueue workflow.JobQueue
			jobStore workflow.JobStore
		)
		if deps.Queue != nil {
			jobQueue = deps.Queue
		}
		if deps.Jobs != nil {
			jobStore = deps.Jobs
		}
		jc := workflow.NewJobController(jobQueue, jobStore)
		workflowRoutes.POST("/jobs", jc.Store)
		workflowRoutes.GET("/jobs/:id", jc.Show)
		v1.GET("/users/:user/jobs", jc.History)
	}

	var probe application.QueueProbe
	if deps.Queue != nil {
		probe = deps.Queue
	}
	hc := application.NewHealthController(probe, deps.SQLDB)
	v1.GET("/health", hc.Show)
}
