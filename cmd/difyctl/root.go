package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/cobra"

	"difykit/pkg/config"
	"difykit/pkg/dify"
)

// cli 全局参数与共享的客户端
type cli struct {
	apiKey    string
	baseURL   string
	transport string

	out    io.Writer
	client *dify.Client
}

func newRootCmd(out io.Writer) *cobra.Command {
	c := &cli{out: out}

	root := &cobra.Command{
		Use:           "difyctl",
		Short:         "Call Dify chat and workflow apps from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if c.apiKey == "" {
				return errors.New("missing API key: pass --api-key or set DIFY_API_KEY")
			}
			client, err := dify.New(c.apiKey,
				dify.WithBaseURL(c.baseURL),
				dify.WithTransportKind(dify.TransportKind(c.transport)),
			)
			if err != nil {
				return err
			}
			c.client = client
			return nil
		},
	}

	flags := root.PersistentFlags()
	// 默认值来自环境变量或 .env
	flags.StringVar(&c.apiKey, "api-key", cast.ToString(config.Env("DIFY_API_KEY", "")), "app API key (env DIFY_API_KEY)")
	flags.StringVar(&c.baseURL, "base-url", cast.ToString(config.Env("DIFY_BASE_URL", dify.DefaultBaseURL)), "API base URL (env DIFY_BASE_URL)")
	flags.StringVar(&c.transport, "transport", cast.ToString(config.Env("DIFY_TRANSPORT", string(dify.TransportAuto))), "transport: auto, native or compat (env DIFY_TRANSPORT)")

	root.AddCommand(
		newChatCmd(c),
		newWorkflowCmd(c),
		newMessagesCmd(c),
		newConversationsCmd(c),
		newUploadCmd(c),
		newInfoCmd(c),
	)
	return root
}

// printJSON 缩进输出完整响应
func (c *cli) printJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// streamCallbacks 每个事件输出一行 JSON
func (c *cli) streamCallbacks() dify.StreamCallbacks {
	enc := json.NewEncoder(c.out)
	enc.SetEscapeHTML(false)
	return dify.StreamCallbacks{
		OnEvent: func(ev dify.StreamEvent) {
			_ = enc.Encode(ev)
		},
		OnError: func(err error) {
			fmt.Fprintln(os.Stderr, "stream:", err)
		},
	}
}

// finish 打印 blocking 响应，或等待流结束
func (c *cli) finish(reply *dify.Reply) error {
	if !reply.IsStream() {
		return c.printJSON(reply.Data)
	}
	defer reply.Stream.Close()
	return reply.Stream.Wait()
}

// parseInputs 解析重复的 --input key=value
func parseInputs(pairs []string) (map[string]any, error) {
	inputs := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --input %q, want key=value", pair)
		}
		inputs[key] = value
	}
	return inputs, nil
}

func responseMode(stream bool) string {
	if stream {
		return dify.ResponseModeStreaming
	}
	return dify.ResponseModeBlocking
}
