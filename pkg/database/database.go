// Package database 数据库连接
package database

import (
	"database/sql"
	"fmt"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DB gorm 实例
var DB *gorm.DB

// SQLDB 底层连接池
var SQLDB *sql.DB

// Connect 连接数据库
func Connect(dialector gorm.Dialector, _logger gormlogger.Interface) error {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: _logger,
	})
	if err != nil {
		return fmt.Errorf("连接数据库失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("获取底层连接失败: %w", err)
	}

	DB, SQLDB = db, sqlDB
	return nil
}

// AutoMigrate 自动迁移所有数据表
func AutoMigrate(tables []interface{}) error {
	return DB.AutoMigrate(tables...)
}

// CurrentDatabase 当前连接的数据库名称
func CurrentDatabase() string {
	if DB == nil {
		return ""
	}
	return DB.Migrator().CurrentDatabase()
}
