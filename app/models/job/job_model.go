// Package job 异步工作流任务的执行记录
package job

import (
	"gorm.io/gorm"

	"difykit/app/models"
)

// Job 一次异步工作流执行的结果
type Job struct {
	models.BaseModel

	JobID         string  `gorm:"type:varchar(36);uniqueIndex" json:"job_id"`
	User          string  `gorm:"column:user_id;type:varchar(255);index" json:"user"`
	WorkflowRunID string  `gorm:"type:varchar(64)" json:"workflow_run_id,omitempty"`
	Status        Status  `gorm:"type:varchar(20);index" json:"status"`
	Inputs        JSONMap `gorm:"type:json" json:"inputs"`
	Outputs       JSONMap `gorm:"type:json" json:"outputs,omitempty"`
	Error         string  `gorm:"type:text" json:"error,omitempty"`
	ElapsedMS     int64   `json:"elapsed_ms"`

	models.CommonTimestampsField
}

// TableName 指定表名
func (Job) TableName() string {
	return "workflow_jobs"
}

// BeforeSave GORM 钩子
func (j *Job) BeforeSave(*gorm.DB) error {
	return j.Validate()
}
