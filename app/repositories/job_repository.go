// Package repositories 数据访问层
package repositories

import (
	"context"

	"gorm.io/gorm"

	"difykit/app/models/job"
)

// JobRepository 工作流任务记录仓库
type JobRepository struct {
	db *gorm.DB
}

// NewJobRepository 创建仓库实例
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create 保存任务记录
func (r *JobRepository) Create(ctx context.Context, record *job.Job) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// ListByUser 用户的历史任务，按创建时间倒序分页
func (r *JobRepository) ListByUser(ctx context.Context, user string, page, pageSize int) ([]job.Job, int64, error) {
	var (
		jobs  []job.Job
		total int64
	)

	scope := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&job.Job{}).Where("user_id = ?", user)
	}
	if err := scope().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := scope().Order("created_at DESC").Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&jobs).Error

	return jobs, total, err
}

// GetByJobID 用户的单条任务记录
func (r *JobRepository) GetByJobID(ctx context.Context, user, jobID string) (*job.Job, error) {
	var record job.Job

	err := r.db.WithContext(ctx).
		Where("user_id = ? AND job_id = ?", user, jobID).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}
