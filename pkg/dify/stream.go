package dify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/spf13/cast"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"difykit/pkg/logger"
)

// StreamState 流式调用的状态
type StreamState int32

const (
	StateInit     StreamState = iota // 已创建，尚未拿到响应
	StateActive                      // 正在读取
	StateComplete                    // 数据源正常结束
	StateErrored                     // 出错结束
	StateClosed                      // 调用方主动关闭
)

func (s StreamState) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateActive:
		return "active"
	case StateComplete:
		return "complete"
	case StateErrored:
		return "errored"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("StreamState(%d)", int32(s))
}

// Terminal 是否为终态
func (s StreamState) Terminal() bool {
	return s >= StateComplete
}

// StreamEvent 从一行 data 帧解析出的 JSON 对象
type StreamEvent map[string]any

// Event 返回事件类型，如 message、message_end、workflow_finished
func (e StreamEvent) Event() string {
	return cast.ToString(e["event"])
}

// StreamCallbacks 流式调用的回调，均可为空
//
// 同一个流的回调依次执行，不会并发。OnEvent 按帧到达顺序调用。
// OnComplete 与 OnError(终态错误) 至多触发一个，且只触发一次，之后不再有任何回调。
type StreamCallbacks struct {
	OnEvent    func(StreamEvent)
	OnError    func(error)
	OnComplete func()
}

// StreamHandle 进行中的流式调用
type StreamHandle struct {
	mu      sync.Mutex
	state   StreamState
	err     error
	stop    func()
	dropped int
	// delivering 非终态回调正在执行
	delivering bool

	cancel    context.CancelFunc
	done      chan struct{}
	callbacks StreamCallbacks
}

func newStreamHandle(cancel context.CancelFunc, callbacks StreamCallbacks) *StreamHandle {
	return &StreamHandle{
		state:     StateInit,
		cancel:    cancel,
		done:      make(chan struct{}),
		callbacks: callbacks,
	}
}

// Close 停止读取并触发 OnComplete，可重复调用
//
// 在回调执行期间调用（包括在 OnEvent 内部调用）时，OnComplete 等该回调返回后再触发。
func (h *StreamHandle) Close() {
	h.terminate(StateClosed, nil)
}

// State 当前状态
func (h *StreamHandle) State() StreamState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Err 以出错结束时的错误
func (h *StreamHandle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// DroppedFrames 因无法解析而丢弃的数据行数
func (h *StreamHandle) DroppedFrames() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}

// Done 进入终态且终态回调执行完毕后关闭
func (h *StreamHandle) Done() <-chan struct{} {
	return h.done
}

// Wait 阻塞到流结束，返回终态错误
func (h *StreamHandle) Wait() error {
	<-h.done
	return h.Err()
}

// activate INIT -> ACTIVE，stop 用于在终态时关闭底层数据源
func (h *StreamHandle) activate(stop func()) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != StateInit {
		return false
	}
	h.state = StateActive
	h.stop = stop
	return true
}

func (h *StreamHandle) active() bool {
	return h.State() == StateActive
}

// terminate 进入终态并触发对应回调，已处于终态时什么也不做
func (h *StreamHandle) terminate(state StreamState, err error) {
	h.mu.Lock()
	if h.state.Terminal() {
		h.mu.Unlock()
		return
	}
	h.state = state
	h.err = err
	stop := h.stop
	pending := h.delivering
	h.mu.Unlock()

	h.cancel()
	if stop != nil {
		stop()
	}
	// 正在执行的回调返回后由 deliver 收尾
	if pending {
		return
	}
	h.finish()
}

// finish 触发终态回调，每个流只执行一次
func (h *StreamHandle) finish() {
	h.mu.Lock()
	state, err := h.state, h.err
	h.mu.Unlock()

	switch state {
	case StateErrored:
		logger.WarnString("Dify", "Stream", fmt.Sprintf("流式请求出错: %v", err))
		if h.callbacks.OnError != nil {
			h.callbacks.OnError(err)
		}
	default:
		logger.DebugString("Dify", "Stream", "流式请求结束: "+state.String())
		if h.callbacks.OnComplete != nil {
			h.callbacks.OnComplete()
		}
	}
	close(h.done)
}

// deliver 只在 ACTIVE 状态下执行非终态回调
func (h *StreamHandle) deliver(fn func()) {
	h.mu.Lock()
	if h.state != StateActive {
		h.mu.Unlock()
		return
	}
	h.delivering = true
	h.mu.Unlock()

	fn()

	h.mu.Lock()
	h.delivering = false
	pending := h.state.Terminal()
	h.mu.Unlock()
	if pending {
		h.finish()
	}
}

// emit 投递事件
func (h *StreamHandle) emit(ev StreamEvent) {
	if h.callbacks.OnEvent == nil {
		return
	}
	h.deliver(func() { h.callbacks.OnEvent(ev) })
}

// reportError 非终态错误，流继续
func (h *StreamHandle) reportError(err error) {
	if h.callbacks.OnError == nil {
		return
	}
	h.deliver(func() { h.callbacks.OnError(err) })
}

func (h *StreamHandle) drop(line string) {
	h.mu.Lock()
	h.dropped++
	h.mu.Unlock()
	logger.DebugString("Dify", "Stream", "丢弃无法解析的数据行: "+line)
}

// framePrefix 携带数据的帧前缀
const framePrefix = "data: "

// frameKind 单行帧的处理结果
type frameKind int

const (
	// frameIgnored 非 data 行
	frameIgnored frameKind = iota
	// frameEvent 解析成功的事件
	frameEvent
	// frameDropped data 行不是 JSON 对象。
	// 半截的行、服务端的非 JSON 数据都会落到这里，直接丢弃并继续读取，不回调 OnError。
	frameDropped
)

// parseFrame 解析一行帧
func parseFrame(line string) (StreamEvent, frameKind) {
	if !strings.HasPrefix(line, framePrefix) {
		return nil, frameIgnored
	}
	var ev StreamEvent
	if err := json.Unmarshal([]byte(line[len(framePrefix):]), &ev); err != nil || ev == nil {
		return nil, frameDropped
	}
	return ev, frameEvent
}

// lineBuffer 跨块拼接的行缓冲，处理完一次后最多保留一个不完整的行
type lineBuffer struct {
	pending string
}

// push 追加文本，返回所有完整的行；按换行切分后的最后一段（可能为空串）留在缓冲区
func (b *lineBuffer) push(text string) []string {
	lines := strings.Split(b.pending+text, "\n")
	b.pending = lines[len(lines)-1]
	return lines[:len(lines)-1]
}

// chunkSize 每次读取的字节数
const chunkSize = 4096

// readFrames 逐块读取响应体，直到结束、出错或被关闭
func (h *StreamHandle) readFrames(ctx context.Context, body io.Reader) {
	// 多字节字符被切在两个块之间时，解码器会保留前半部分直到下一块到达
	reader := transform.NewReader(body, unicode.UTF8.NewDecoder())
	chunk := make([]byte, chunkSize)
	var buf lineBuffer

	for {
		n, err := reader.Read(chunk)
		if !h.active() {
			return
		}

		if n > 0 {
			for _, line := range buf.push(string(chunk[:n])) {
				if !h.active() {
					return
				}
				ev, kind := parseFrame(line)
				switch kind {
				case frameEvent:
					h.emit(ev)
				case frameDropped:
					h.drop(line)
				}
			}
		}

		if errors.Is(err, io.EOF) {
			h.terminate(StateComplete, nil)
			return
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				err = ctxErr
			}
			h.terminate(StateErrored, fmt.Errorf("dify: read stream: %w", err))
			return
		}
	}
}
