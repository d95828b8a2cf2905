package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"difykit/app/repositories"
	"difykit/bootstrap"
	btsConfig "difykit/config"
	"difykit/pkg/app"
	"difykit/pkg/config"
	"difykit/pkg/database"
	"difykit/pkg/logger"
	"difykit/pkg/queue"
	"difykit/pkg/redis"
	"difykit/routes"
)

// 加载应用程序的基础配置
func init() {
	btsConfig.Initialize()
}

// App 应用程序上下文，用于优雅关闭
type App struct {
	server *http.Server
	worker *queue.Worker
}

func main() {
	env := parseFlags()

	config.InitConfig(env)
	bootstrap.SetupLogger()

	deps, worker, err := setupApplication()
	if err != nil {
		logger.Fatal("初始化应用程序失败", zap.Error(err))
	}

	a := &App{
		server: &http.Server{
			Addr:    ":" + config.Get("app.port"),
			Handler: setupServer(deps),
		},
		worker: worker,
	}

	a.start()
}

// parseFlags 解析命令行参数
func parseFlags() string {
	var env string
	flag.StringVar(&env, "env", "", "加载 .env 文件，例如 --env=testing 将加载 .env.testing 文件")
	flag.Parse()
	return env
}

// setupApplication 初始化各组件
//
// Dify 客户端是必需的；数据库与 Redis 不可用时只关闭异步任务相关的功能。
func setupApplication() (routes.Dependencies, *queue.Worker, error) {
	deps := routes.Dependencies{
		Timeout: app.SecondsToDuration(config.GetInt("dify.timeout"), 90*time.Second),
	}

	clients, err := bootstrap.SetupDify()
	if err != nil {
		return deps, nil, err
	}
	deps.Chat, deps.Workflow = clients.Chat, clients.Workflow

	if err := bootstrap.SetupDB(); err != nil {
		logger.Warn("数据库不可用，执行记录不会保存", zap.Error(err))
	} else {
		deps.Jobs = repositories.NewJobRepository(database.DB)
		deps.SQLDB = database.SQLDB
	}

	if err := bootstrap.SetupRedis(); err != nil {
		logger.Warn("Redis 不可用，异步任务已关闭", zap.Error(err))
		return deps, nil, nil
	}
	deps.Cache = redis.GetRedis(redis.MainDB)

	qs, worker, err := bootstrap.SetupQueue(clients.Workflow, deps.Jobs)
	if err != nil {
		logger.Warn("队列启动失败，异步任务已关闭", zap.Error(err))
		return deps, nil, nil
	}
	deps.Queue = qs

	return deps, worker, nil
}

// setupServer 配置并返回 Gin 服务器实例
func setupServer(deps routes.Dependencies) *gin.Engine {
	if !config.GetBool("app.debug") {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	bootstrap.SetupRoute(router, deps)
	return router
}

// start 启动服务器并处理优雅关闭
func (a *App) start() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.InfoString("Server", "Start", "服务器正在启动，监听端口 "+a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("服务器启动失败", zap.Error(err))
		}
	}()

	<-quit
	logger.InfoString("Server", "Shutdown", "正在关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	// 等待进行中的工作流任务
	if a.worker != nil {
		a.worker.Stop()
	}

	logger.InfoString("Server", "Shutdown", "服务器已成功关闭")
}
