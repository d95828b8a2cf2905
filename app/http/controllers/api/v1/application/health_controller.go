package application

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"difykit/pkg/app"
	"difykit/pkg/queue"
)

const healthTimeout = 3 * time.Second

// QueueProbe 队列的健康检查
type QueueProbe interface {
	Ping(ctx context.Context) error
	Metrics() *queue.QueueMetrics
}

// HealthController 健康检查
type HealthController struct {
	queue QueueProbe
	db    *sql.DB
}

// NewHealthController 创建健康检查控制器，未启用的依赖传 nil
func NewHealthController(q QueueProbe, db *sql.DB) *HealthController {
	return &HealthController{queue: q, db: db}
}

// Show 各依赖的状态，任一依赖异常时返回 503
// GET /v1/health
func (hc *HealthController) Show(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	healthy := true
	checks := gin.H{}

	if hc.queue != nil {
		if err := hc.queue.Ping(ctx); err != nil {
			healthy = false
			checks["queue"] = gin.H{"status": "down", "error": err.Error()}
		} else {
			checks["queue"] = gin.H{"status": "up", "metrics": hc.queue.Metrics().Snapshot()}
		}
	}

	if hc.db != nil {
		if err := hc.db.PingContext(ctx); err != nil {
			healthy = false
			checks["database"] = gin.H{"status": "down", "error": err.Error()}
		} else {
			checks["database"] = gin.H{"status": "up"}
		}
	}

	status, code := "up", http.StatusOK
	if !healthy {
		status, code = "down", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status": status,
		"time":   app.TimenowInTimezone().Format(time.RFC3339),
		"checks": checks,
	})
}
