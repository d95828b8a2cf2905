package bootstrap

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"difykit/pkg/config"
	"difykit/pkg/database"
	"difykit/pkg/database/migrations"
	"difykit/pkg/logger"
)

// SetupDB 初始化数据库和 ORM，用于保存异步任务的执行记录
func SetupDB() error {
	var dialector gorm.Dialector
	switch connection := config.GetString("database.connection"); connection {
	case "postgresql":
		dialector = setupPostgreSQL()
	case "sqlite":
		d, err := setupSQLite()
		if err != nil {
			return err
		}
		dialector = d
	default:
		return fmt.Errorf("暂不支持该数据库类型: %s", connection)
	}

	if err := database.Connect(dialector, logger.NewGormLogger()); err != nil {
		return err
	}

	setupDBPool()

	if err := database.AutoMigrate(migrations.RegisterTables()); err != nil {
		return fmt.Errorf("数据表结构迁移失败: %w", err)
	}
	logger.InfoString("数据库", "自动迁移", "数据表结构迁移成功 "+database.CurrentDatabase())
	return nil
}

// setupPostgreSQL 配置 PostgreSQL 连接
func setupPostgreSQL() gorm.Dialector {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable TimeZone=%s",
		config.Get("database.postgresql.host"),
		config.Get("database.postgresql.port"),
		config.Get("database.postgresql.username"),
		config.Get("database.postgresql.password"),
		config.Get("database.postgresql.database"),
		config.GetString("app.timezone"),
	)
	return postgres.New(postgres.Config{
		DSN: dsn,
	})
}

// setupSQLite 配置 SQLite 连接，数据库文件所在目录不存在时创建
func setupSQLite() (gorm.Dialector, error) {
	file := config.GetString("database.sqlite.database")
	if dir := filepath.Dir(file); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("创建数据库目录失败: %w", err)
		}
	}
	return sqlite.Open(file), nil
}

// setupDBPool 配置数据库连接池
func setupDBPool() {
	if config.GetString("database.connection") != "postgresql" {
		return
	}
	database.SQLDB.SetMaxOpenConns(config.GetInt("database.postgresql.max_open_connections"))
	database.SQLDB.SetMaxIdleConns(config.GetInt("database.postgresql.max_idle_connections"))
	database.SQLDB.SetConnMaxLifetime(time.Duration(config.GetInt("database.postgresql.max_life_seconds")) * time.Second)
}
