// Package requests 处理请求数据和表单验证
package requests

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/thedevsaddam/govalidator"
)

// ValidationError 字段验证失败
type ValidationError struct {
	Errors url.Values
}

// Error 实现 error 接口
func (v ValidationError) Error() string {
	fields := make([]string, 0, len(v.Errors))
	for field, msgs := range v.Errors {
		fields = append(fields, field+": "+strings.Join(msgs, ", "))
	}
	return fmt.Sprintf("验证错误: %s", strings.Join(fields, "; "))
}

// ValidateStruct 按 json 标签名验证结构体，data 必须是结构体指针
func ValidateStruct(data interface{}, rules govalidator.MapData, messages govalidator.MapData) error {
	opts := govalidator.Options{
		Data:          data,
		Rules:         rules,
		TagIdentifier: "json",
		Messages:      messages,
	}

	if errs := govalidator.New(opts).ValidateStruct(); len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

// ValidateJSON 解析 JSON 请求体并验证
func ValidateJSON[T any](c *gin.Context, rules govalidator.MapData, messages govalidator.MapData) (*T, error) {
	req := new(T)

	if err := c.ShouldBindJSON(req); err != nil {
		return nil, fmt.Errorf("解析请求失败: %w", err)
	}
	if err := ValidateStruct(req, rules, messages); err != nil {
		return nil, err
	}
	return req, nil
}
