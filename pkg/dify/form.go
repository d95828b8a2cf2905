package dify

import (
	"bytes"
	"io"
	"mime/multipart"
)

// FormData multipart 表单，字段按添加顺序写出
type FormData struct {
	fields []formField
}

type formField struct {
	name     string
	value    string
	fileName string
	reader   io.Reader
}

// NewFormData 创建空表单
func NewFormData() *FormData {
	return &FormData{}
}

// Append 添加普通字段
func (f *FormData) Append(name, value string) *FormData {
	f.fields = append(f.fields, formField{name: name, value: value})
	return f
}

// AppendFile 添加文件字段
func (f *FormData) AppendFile(name, fileName string, r io.Reader) *FormData {
	f.fields = append(f.fields, formField{name: name, fileName: fileName, reader: r})
	return f
}

// encode 兼容传输层使用的 multipart 编码
func (f *FormData) encode() (io.Reader, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	for _, field := range f.fields {
		if field.reader == nil {
			if err := w.WriteField(field.name, field.value); err != nil {
				return nil, "", err
			}
			continue
		}
		part, err := w.CreateFormFile(field.name, field.fileName)
		if err != nil {
			return nil, "", err
		}
		if _, err := io.Copy(part, field.reader); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}
