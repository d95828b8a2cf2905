package application

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"difykit/pkg/dify"
	"difykit/pkg/queue"
)

type memoryCache struct {
	values map[string]string
}

func (m *memoryCache) Get(key string) string {
	return m.values[key]
}

func (m *memoryCache) Set(key string, value interface{}, _ time.Duration) bool {
	switch v := value.(type) {
	case []byte:
		m.values[key] = string(v)
	default:
		m.values[key] = fmt.Sprint(v)
	}
	return true
}

func newAppRouter(t *testing.T, upstream http.HandlerFunc, cache Cache) *gin.Engine {
	t.Helper()

	fake := httptest.NewServer(upstream)
	t.Cleanup(fake.Close)

	client, err := dify.New("app-test", dify.WithBaseURL(fake.URL+"/v1"))
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	ac := NewApplicationController(client, cache, 5*time.Second)
	r.GET("/v1/info", ac.Info)
	r.GET("/v1/site", ac.Site)
	r.GET("/v1/parameters", ac.Parameters)
	r.POST("/v1/files/upload", ac.Upload)
	return r
}

func TestInfoAndSite(t *testing.T) {
	r := newAppRouter(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"path":%q}`, r.URL.Path)
	}, nil)

	for _, path := range []string{"/v1/info", "/v1/site"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, fmt.Sprintf(`{"path":%q}`, path), w.Body.String())
	}
}

func TestParameters_Cached(t *testing.T) {
	var hits atomic.Int32
	cache := &memoryCache{values: map[string]string{}}
	r := newAppRouter(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, `{"opening_statement":"欢迎"}`)
	}, cache)

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/parameters", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"opening_statement":"欢迎"}`, w.Body.String())
	}
	assert.EqualValues(t, 1, hits.Load())
	assert.Len(t, cache.values, 1)
}

func TestParameters_UpstreamErrorNotCached(t *testing.T) {
	cache := &memoryCache{values: map[string]string{}}
	r := newAppRouter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"code":"unauthorized"}`)
	}, cache)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/parameters", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, cache.values)
}

func TestUpload(t *testing.T) {
	var user, fileName, content string
	r := newAppRouter(t, func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		if err == nil {
			data, _ := io.ReadAll(file)
			content, fileName = string(data), header.Filename
		}
		user = r.FormValue("user")
		fmt.Fprint(w, `{"id":"f1","name":"a.txt"}`)
	}, nil)

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	require.NoError(t, mw.WriteField("user", "u1"))
	part, err := mw.CreateFormFile("file", "a.txt")
	require.NoError(t, err)
	_, _ = part.Write([]byte("hello"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/files/upload", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"f1"`)
	assert.Equal(t, "u1", user)
	assert.Equal(t, "a.txt", fileName)
	assert.Equal(t, "hello", content)
}

func TestUpload_MissingFile(t *testing.T) {
	r := newAppRouter(t, func(w http.ResponseWriter, r *http.Request) {}, nil)

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	require.NoError(t, mw.WriteField("user", "u1"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/files/upload", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "file")
}

type fakeProbe struct {
	err     error
	metrics *queue.QueueMetrics
}

func (p *fakeProbe) Ping(context.Context) error { return p.err }
func (p *fakeProbe) Metrics() *queue.QueueMetrics { return p.metrics }

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	healthy := gin.New()
	healthy.GET("/health", NewHealthController(&fakeProbe{metrics: queue.NewQueueMetrics()}, nil).Show)
	w := httptest.NewRecorder()
	healthy.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"up"`)

	down := gin.New()
	down.GET("/health", NewHealthController(&fakeProbe{err: errors.New("connection refused")}, nil).Show)
	w = httptest.NewRecorder()
	down.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}
