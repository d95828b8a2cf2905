package dify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipeTransport 响应体由测试逐块写入
type pipeTransport struct {
	pr *io.PipeReader
}

func (t *pipeTransport) Send(ctx context.Context, _ string, _ *RequestSpec) (*Response, error) {
	go func() {
		<-ctx.Done()
		t.pr.CloseWithError(ctx.Err())
	}()
	return &Response{StatusCode: http.StatusOK, stream: t.pr}, nil
}

func newPipeClient(t *testing.T) (*Client, *io.PipeWriter) {
	t.Helper()
	pr, pw := io.Pipe()
	c, err := New("k", WithBaseURL("https://dify.test/v1"), WithTransport(&pipeTransport{pr: pr}))
	require.NoError(t, err)
	return c, pw
}

// blockingTransport 直到 ctx 结束才返回
type blockingTransport struct{}

func (blockingTransport) Send(ctx context.Context, url string, spec *RequestSpec) (*Response, error) {
	<-ctx.Done()
	return nil, &TransportError{Method: spec.Method, URL: url, Cause: ctx.Err()}
}

// recorder 收集回调，只在 Wait 返回后读取
type recorder struct {
	events    []StreamEvent
	errs      []error
	completes int
}

func (r *recorder) callbacks() StreamCallbacks {
	return StreamCallbacks{
		OnEvent:    func(ev StreamEvent) { r.events = append(r.events, ev) },
		OnError:    func(err error) { r.errs = append(r.errs, err) },
		OnComplete: func() { r.completes++ },
	}
}

func waitDone(t *testing.T, h *StreamHandle) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not finish")
	}
}

var postStream = Options{optMethod: http.MethodPost}

func TestStreamState(t *testing.T) {
	assert.Equal(t, "active", StateActive.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.False(t, StateInit.Terminal())
	assert.False(t, StateActive.Terminal())
	assert.True(t, StateComplete.Terminal())
	assert.True(t, StateErrored.Terminal())
	assert.True(t, StateClosed.Terminal())
}

func TestLineBuffer_KeepsTrailingSegment(t *testing.T) {
	var buf lineBuffer

	assert.Equal(t, []string{"a"}, buf.push("a\nb"))
	assert.Equal(t, "b", buf.pending)

	assert.Equal(t, []string{"bc"}, buf.push("c\n"))
	assert.Equal(t, "", buf.pending)

	assert.Equal(t, []string{"x", ""}, buf.push("x\n\n"))
	assert.Empty(t, buf.push("partial"))
	assert.Equal(t, "partial", buf.pending)
}

func TestParseFrame(t *testing.T) {
	tests := []struct {
		line string
		kind frameKind
	}{
		{`data: {"event":"message"}`, frameEvent},
		{"", frameIgnored},
		{"event: ping", frameIgnored},
		{`data:{"a":1}`, frameIgnored},
		{"data: not-json", frameDropped},
		{"data: [1,2]", frameDropped},
		{"data: null", frameDropped},
		{`data: {"a":`, frameDropped},
	}
	for _, tt := range tests {
		_, kind := parseFrame(tt.line)
		assert.Equal(t, tt.kind, kind, tt.line)
	}

	ev, _ := parseFrame(`data: {"event":"message_end","id":"m1"}`)
	assert.Equal(t, "message_end", ev.Event())
	assert.Equal(t, "m1", ev["id"])
}

func TestStream_FrameSplitAcrossChunks(t *testing.T) {
	c, pw := newPipeClient(t)
	rec := &recorder{}

	h := c.Stream(context.Background(), "/chat-messages", postStream, rec.callbacks())

	_, err := pw.Write([]byte("data: {\"a\":1}\ndata: {\"a"))
	require.NoError(t, err)
	_, err = pw.Write([]byte("\":2}\n"))
	require.NoError(t, err)
	require.NoError(t, pw.Close())

	waitDone(t, h)
	assert.Equal(t, []StreamEvent{{"a": float64(1)}, {"a": float64(2)}}, rec.events)
	assert.Empty(t, rec.errs)
	assert.Equal(t, 1, rec.completes)
	assert.Equal(t, StateComplete, h.State())
	assert.Zero(t, h.DroppedFrames())
}

func TestStream_MultiByteCharacterSplitAcrossChunks(t *testing.T) {
	c, pw := newPipeClient(t)
	rec := &recorder{}

	h := c.Stream(context.Background(), "/chat-messages", postStream, rec.callbacks())

	frame := []byte("data: {\"answer\":\"你好\"}\n")
	// 切在 "你" 的第二个字节之后
	cut := len("data: {\"answer\":\"") + 2
	_, err := pw.Write(frame[:cut])
	require.NoError(t, err)
	_, err = pw.Write(frame[cut:])
	require.NoError(t, err)
	require.NoError(t, pw.Close())

	waitDone(t, h)
	require.Len(t, rec.events, 1)
	assert.Equal(t, "你好", rec.events[0]["answer"])
}

func TestStream_MalformedFrameIsDropped(t *testing.T) {
	c, pw := newPipeClient(t)
	rec := &recorder{}

	h := c.Stream(context.Background(), "/chat-messages", postStream, rec.callbacks())

	_, err := pw.Write([]byte("data: not-json\nevent: ping\n\ndata: {\"event\":\"message\"}\n"))
	require.NoError(t, err)
	require.NoError(t, pw.Close())

	waitDone(t, h)
	require.Len(t, rec.events, 1)
	assert.Equal(t, "message", rec.events[0].Event())
	assert.Empty(t, rec.errs)
	assert.Equal(t, 1, h.DroppedFrames())
	assert.Equal(t, 1, rec.completes)
}

func TestStream_PartialTrailingLineNotDelivered(t *testing.T) {
	c, pw := newPipeClient(t)
	rec := &recorder{}

	h := c.Stream(context.Background(), "/chat-messages", postStream, rec.callbacks())

	_, err := pw.Write([]byte("data: {\"a\":1}\ndata: {\"b\":2}"))
	require.NoError(t, err)
	require.NoError(t, pw.Close())

	waitDone(t, h)
	assert.Equal(t, []StreamEvent{{"a": float64(1)}}, rec.events)
	assert.Equal(t, 1, rec.completes)
	assert.NoError(t, h.Err())
}

func TestStream_CloseIsIdempotentAndStopsDelivery(t *testing.T) {
	c, pw := newPipeClient(t)
	got := make(chan StreamEvent, 8)
	var completes, errs int32

	h := c.Stream(context.Background(), "/chat-messages", postStream, StreamCallbacks{
		OnEvent:    func(ev StreamEvent) { got <- ev },
		OnError:    func(error) { atomic.AddInt32(&errs, 1) },
		OnComplete: func() { atomic.AddInt32(&completes, 1) },
	})

	_, err := pw.Write([]byte("data: {\"a\":1}\n"))
	require.NoError(t, err)
	select {
	case <-got:
	case <-time.After(5 * time.Second):
		t.Fatal("first event not delivered")
	}

	h.Close()
	h.Close()
	waitDone(t, h)

	// 读端已关闭
	_, err = pw.Write([]byte("data: {\"a\":2}\n"))
	assert.Error(t, err)

	assert.Empty(t, got)
	assert.EqualValues(t, 1, atomic.LoadInt32(&completes))
	assert.EqualValues(t, 0, atomic.LoadInt32(&errs))
	assert.Equal(t, StateClosed, h.State())
	assert.NoError(t, h.Wait())
}

func TestStream_CloseDuringEventWaitsForCallback(t *testing.T) {
	c, pw := newPipeClient(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	var inEvent, overlapped, completes int32

	h := c.Stream(context.Background(), "/chat-messages", postStream, StreamCallbacks{
		OnEvent: func(StreamEvent) {
			atomic.StoreInt32(&inEvent, 1)
			close(entered)
			<-release
			atomic.StoreInt32(&inEvent, 0)
		},
		OnComplete: func() {
			if atomic.LoadInt32(&inEvent) == 1 {
				atomic.StoreInt32(&overlapped, 1)
			}
			atomic.AddInt32(&completes, 1)
		},
	})

	go func() { _, _ = pw.Write([]byte("data: {\"a\":1}\ndata: {\"a\":2}\n")) }()
	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("event not delivered")
	}

	closed := make(chan struct{})
	go func() {
		h.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("Close blocked on a running callback")
	}

	assert.Equal(t, StateClosed, h.State())
	select {
	case <-h.Done():
		t.Fatal("stream finished while OnEvent was still running")
	default:
	}
	assert.Zero(t, atomic.LoadInt32(&completes))

	close(release)
	waitDone(t, h)
	assert.Zero(t, atomic.LoadInt32(&overlapped))
	assert.EqualValues(t, 1, atomic.LoadInt32(&completes))
}

func TestStream_CloseFromInsideOnEvent(t *testing.T) {
	c, pw := newPipeClient(t)
	rec := &recorder{}
	var h *StreamHandle
	callbacks := rec.callbacks()
	onEvent := callbacks.OnEvent
	callbacks.OnEvent = func(ev StreamEvent) {
		onEvent(ev)
		h.Close()
	}

	h = c.Stream(context.Background(), "/chat-messages", postStream, callbacks)
	go func() { _, _ = pw.Write([]byte("data: {\"a\":1}\ndata: {\"a\":2}\n")) }()

	waitDone(t, h)
	assert.Equal(t, []StreamEvent{{"a": float64(1)}}, rec.events)
	assert.Equal(t, 1, rec.completes)
	assert.Empty(t, rec.errs)
	assert.Equal(t, StateClosed, h.State())
}

func TestStream_CloseBeforeResponse(t *testing.T) {
	c, err := New("k", WithTransport(blockingTransport{}))
	require.NoError(t, err)
	var completes, errs int32

	h := c.Stream(context.Background(), "/workflows/run", postStream, StreamCallbacks{
		OnError:    func(error) { atomic.AddInt32(&errs, 1) },
		OnComplete: func() { atomic.AddInt32(&completes, 1) },
	})
	h.Close()
	waitDone(t, h)

	// 让传输层有机会返回
	time.Sleep(20 * time.Millisecond)
	assert.EqualValues(t, 1, atomic.LoadInt32(&completes))
	assert.EqualValues(t, 0, atomic.LoadInt32(&errs))
	assert.Equal(t, StateClosed, h.State())
}

func TestStream_ParentContextCancelIsError(t *testing.T) {
	c, _ := newPipeClient(t)
	rec := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())

	h := c.Stream(ctx, "/chat-messages", postStream, rec.callbacks())
	cancel()

	waitDone(t, h)
	assert.Equal(t, StateErrored, h.State())
	assert.ErrorIs(t, h.Err(), context.Canceled)
	require.Len(t, rec.errs, 1)
	assert.Zero(t, rec.completes)
}

func TestStream_OpeningHTTPError(t *testing.T) {
	tr := &recordingTransport{status: http.StatusInternalServerError, body: `{"message":"boom"}`}
	c := newRecordingClient(t, tr)
	rec := &recorder{}

	h := c.Stream(context.Background(), "/chat-messages", postStream, rec.callbacks())

	err := h.Wait()
	require.Error(t, err)
	assert.True(t, IsHTTPStatus(err, http.StatusInternalServerError))
	require.Len(t, rec.errs, 1)
	assert.Same(t, err, rec.errs[0])
	assert.Zero(t, rec.completes)
	assert.Empty(t, rec.events)
	assert.Equal(t, StateErrored, h.State())
}

func TestStream_TransportError(t *testing.T) {
	c, err := New("k", WithHTTPClient(doerFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("dial tcp: refused")
	})))
	require.NoError(t, err)
	rec := &recorder{}

	h := c.Stream(context.Background(), "/chat-messages", postStream, rec.callbacks())

	assert.True(t, IsTransportError(h.Wait()))
	assert.Len(t, rec.errs, 1)
	assert.Zero(t, rec.completes)
}

func TestStream_CompatTransportUnsupported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("data: {\"a\":1}\n"))
	}))
	defer srv.Close()

	c, err := New("k", WithBaseURL(srv.URL), WithTransportKind(TransportCompat))
	require.NoError(t, err)
	rec := &recorder{}

	h := c.Stream(context.Background(), "/chat-messages", postStream, rec.callbacks())

	assert.ErrorIs(t, h.Wait(), ErrStreamingUnsupported)
	assert.Empty(t, rec.events)
	assert.Zero(t, rec.completes)
}

func TestStream_NativeChunkedEndToEnd(t *testing.T) {
	var accept, method string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accept, method = r.Header.Get("Accept"), r.Method
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for i := 1; i <= 3; i++ {
			fmt.Fprintf(w, "data: {\"event\":\"message\",\"seq\":%d}\n\n", i)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: {\"event\":\"message_end\"}\n\n")
	}))
	defer srv.Close()

	c, err := New("k", WithBaseURL(srv.URL))
	require.NoError(t, err)

	var events []string
	reply, err := c.SendChatMessage(context.Background(), ChatMessageRequest{
		Query:        "hi",
		User:         "u1",
		ResponseMode: ResponseModeStreaming,
	}, StreamCallbacks{OnEvent: func(ev StreamEvent) { events = append(events, ev.Event()) }})
	require.NoError(t, err)
	require.NoError(t, reply.Stream.Wait())

	assert.Equal(t, []string{"message", "message", "message", "message_end"}, events)
	assert.Equal(t, "text/event-stream", accept)
	assert.Equal(t, http.MethodPost, method)
	assert.Equal(t, StateComplete, reply.Stream.State())
}

func TestStream_PushForExplicitGet(t *testing.T) {
	var query, auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query, auth = r.URL.RawQuery, r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		for _, data := range []string{`{"event":"ping","n":1}`, "not-json", `{"event":"ping","n":2}`} {
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}))
	defer srv.Close()

	c, err := New("k", WithBaseURL(srv.URL))
	require.NoError(t, err)
	rec := &recorder{}

	h := c.Stream(context.Background(), "/events", Options{
		optMethod: http.MethodGet,
		optBody:   map[string]any{"user": "u1"},
	}, rec.callbacks())

	waitDone(t, h)
	assert.Equal(t, "user=u1", query)
	assert.Equal(t, "Bearer k", auth)
	require.Len(t, rec.events, 2)
	assert.Equal(t, float64(1), rec.events[0]["n"])
	assert.Equal(t, float64(2), rec.events[1]["n"])

	// 无法解析的消息只报告错误，流继续
	require.Len(t, rec.errs, 1)
	var de *DecodeError
	require.ErrorAs(t, rec.errs[0], &de)
	assert.Equal(t, "not-json", de.Data)
	assert.Equal(t, 1, rec.completes)
	assert.Equal(t, StateComplete, h.State())
}

func TestStream_PushOpeningHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"code":"unauthorized"}`))
	}))
	defer srv.Close()

	c, err := New("k", WithBaseURL(srv.URL))
	require.NoError(t, err)
	rec := &recorder{}

	h := c.Stream(context.Background(), "/events", Options{optMethod: http.MethodGet}, rec.callbacks())

	err = h.Wait()
	assert.True(t, IsHTTPStatus(err, http.StatusUnauthorized), "err=%v", err)
	assert.Len(t, rec.errs, 1)
	assert.Zero(t, rec.completes)
}

func TestStream_ImplicitGetUsesChunkedPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 没有显式 GET 时不走推送流，按普通响应体读取
		_, _ = w.Write([]byte("data: {\"a\":1}\n"))
	}))
	defer srv.Close()

	c, err := New("k", WithBaseURL(srv.URL))
	require.NoError(t, err)
	rec := &recorder{}

	h := c.Stream(context.Background(), "/events", Options{}, rec.callbacks())

	require.NoError(t, h.Wait())
	assert.Equal(t, []StreamEvent{{"a": float64(1)}}, rec.events)
}
