// difyctl 在命令行调用 Dify 应用
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"difykit/pkg/config"
)

func main() {
	// 读取当前目录的 .env，DIFYCTL_ENV=name 时优先读取 .env.name
	config.InitConfig(os.Getenv("DIFYCTL_ENV"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
