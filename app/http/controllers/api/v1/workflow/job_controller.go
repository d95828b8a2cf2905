package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/spf13/cast"
	"go.uber.org/zap"
	"gorm.io/gorm"

	v1 "difykit/app/http/controllers/api/v1"
	"difykit/app/models/job"
	"difykit/app/requests"
	"difykit/pkg/logger"
	"difykit/pkg/queue"
	"difykit/pkg/response"
)

// 历史记录分页
const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// JobQueue 任务队列
type JobQueue interface {
	Push(ctx context.Context, j *queue.WorkflowJob) error
	Progress(ctx context.Context, jobID string) (*queue.JobProgress, error)
}

// JobStore 任务执行记录
type JobStore interface {
	ListByUser(ctx context.Context, user string, page, pageSize int) ([]job.Job, int64, error)
	GetByJobID(ctx context.Context, user, jobID string) (*job.Job, error)
}

// JobController 异步工作流任务控制器
type JobController struct {
	queue JobQueue
	store JobStore
}

// NewJobController 创建任务控制器，queue 或 store 为 nil 时对应接口返回 503
func NewJobController(q JobQueue, store JobStore) *JobController {
	return &JobController{
		queue: q,
		store: store,
	}
}

// Store 创建异步工作流任务
// POST /v1/workflows/jobs
func (jc *JobController) Store(c *gin.Context) {
	if jc.queue == nil {
		response.Abort503(c, "任务队列未启用")
		return
	}

	req, err := requests.ValidateWorkflowJob(c)
	if err != nil {
		v1.ValidationFailed(c, err)
		return
	}

	j := &queue.WorkflowJob{
		ID:        uuid.New().String(),
		User:      req.User,
		Inputs:    req.Inputs,
		CreatedAt: time.Now(),
	}
	if j.Inputs == nil {
		j.Inputs = map[string]any{}
	}

	if err := jc.queue.Push(c.Request.Context(), j); err != nil {
		logger.Error("JobController: 任务入队失败",
			zap.String("job_id", j.ID),
			zap.Error(err),
		)
		response.Abort500(c, "创建任务失败")
		return
	}

	logger.Info("JobController: 任务已创建",
		zap.String("job_id", j.ID),
		zap.String("user", j.User),
	)
	response.Accepted(c, gin.H{
		"job_id": j.ID,
		"status": job.StatusPending,
	})
}

// Show 任务进度
//
// Redis 中的状态过期后，携带 user 参数时回落到数据库里的执行记录。
// GET /v1/workflows/jobs/:id?user=
func (jc *JobController) Show(c *gin.Context) {
	if jc.queue == nil {
		response.Abort503(c, "任务队列未启用")
		return
	}
	jobID := c.Param("id")

	progress, err := jc.queue.Progress(c.Request.Context(), jobID)
	if err != nil {
		logger.Error("JobController: 获取任务进度失败",
			zap.String("job_id", jobID),
			zap.Error(err),
		)
		response.Abort500(c, "获取任务进度失败")
		return
	}
	if progress != nil {
		response.Data(c, progress)
		return
	}

	user := c.Query("user")
	if user == "" || jc.store == nil {
		response.Abort404(c, "任务不存在或已过期")
		return
	}
	record, err := jc.store.GetByJobID(c.Request.Context(), user, jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.Abort404(c, "任务不存在或已过期")
			return
		}
		logger.Error("JobController: 查询任务记录失败",
			zap.String("job_id", jobID),
			zap.Error(err),
		)
		response.Abort500(c, "查询任务记录失败")
		return
	}
	response.Data(c, record)
}

// History 用户的历史任务
// GET /v1/users/:user/jobs?page=&page_size=
func (jc *JobController) History(c *gin.Context) {
	if jc.store == nil {
		response.Abort503(c, "数据库未启用")
		return
	}

	user := c.Param("user")
	page := cast.ToInt(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize := cast.ToInt(c.DefaultQuery("page_size", cast.ToString(defaultPageSize)))
	if pageSize < 1 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}

	jobs, total, err := jc.store.ListByUser(c.Request.Context(), user, page, pageSize)
	if err != nil {
		logger.Error("JobController: 查询历史任务失败",
			zap.String("user", user),
			zap.Error(err),
		)
		response.Abort500(c, "查询历史任务失败")
		return
	}

	response.Data(c, gin.H{
		"items":     jobs,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}
