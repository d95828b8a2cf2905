package job

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// Status 任务状态
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Finished 是否已结束
func (s Status) Finished() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// JSONMap 以 JSON 文本存储的对象
type JSONMap map[string]any

// Value 实现 driver.Valuer 接口
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan 实现 sql.Scanner 接口
func (m *JSONMap) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*m = JSONMap{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("invalid type for JSONMap: %T", value)
	}

	result := JSONMap{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &result); err != nil {
			return err
		}
	}
	*m = result
	return nil
}

// Validate 验证记录
func (j *Job) Validate() error {
	if j.JobID == "" {
		return errors.New("job_id is required")
	}
	if j.User == "" {
		return errors.New("user is required")
	}
	switch j.Status {
	case StatusPending, StatusRunning, StatusSucceeded, StatusFailed:
	default:
		return fmt.Errorf("invalid job status %q", j.Status)
	}
	return nil
}

// IsSucceeded 是否执行成功
func (j *Job) IsSucceeded() bool {
	return j.Status == StatusSucceeded
}

// IsFailed 是否执行失败
func (j *Job) IsFailed() bool {
	return j.Status == StatusFailed
}
