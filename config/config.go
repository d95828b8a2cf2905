// Package config 存放各配置分组，import 时通过 init 注册
package config

// Initialize 触发 config 目录下所有文件的 init 方法
func Initialize() {}
