// Package migrations 需要自动迁移的模型
package migrations

import "difykit/app/models/job"

// RegisterTables 返回需要迁移的表的模型列表
func RegisterTables() []interface{} {
	return []interface{}{
		&job.Job{},
	}
}
