package queue

import (
	"sync"
	"sync/atomic"
	"time"
)

// MetricOperation 指标操作类型
type MetricOperation string

const (
	OpPush    MetricOperation = "push"
	OpPop     MetricOperation = "pop"
	OpProcess MetricOperation = "process"
)

// LatencyStats 延迟统计
type LatencyStats struct {
	mu    sync.Mutex
	count int64
	total time.Duration
	min   time.Duration
	max   time.Duration
}

func (s *LatencyStats) record(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.count++
	s.total += d
	if s.min == 0 || d < s.min {
		s.min = d
	}
	if d > s.max {
		s.max = d
	}
}

// LatencySnapshot 延迟统计快照，单位毫秒
type LatencySnapshot struct {
	Count int64 `json:"count"`
	AvgMS int64 `json:"avg_ms"`
	MinMS int64 `json:"min_ms"`
	MaxMS int64 `json:"max_ms"`
}

func (s *LatencyStats) snapshot() LatencySnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := LatencySnapshot{
		Count: s.count,
		MinMS: s.min.Milliseconds(),
		MaxMS: s.max.Milliseconds(),
	}
	if s.count > 0 {
		snap.AvgMS = (s.total / time.Duration(s.count)).Milliseconds()
	}
	return snap
}

// QueueMetrics 队列指标
type QueueMetrics struct {
	succeeded map[MetricOperation]*atomic.Int64
	failed    map[MetricOperation]*atomic.Int64

	pushLatency    LatencyStats
	waitLatency    LatencyStats
	processLatency LatencyStats

	inFlight atomic.Int64
}

// NewQueueMetrics 创建指标收集器
func NewQueueMetrics() *QueueMetrics {
	m := &QueueMetrics{
		succeeded: make(map[MetricOperation]*atomic.Int64),
		failed:    make(map[MetricOperation]*atomic.Int64),
	}
	for _, op := range []MetricOperation{OpPush, OpPop, OpProcess} {
		m.succeeded[op] = &atomic.Int64{}
		m.failed[op] = &atomic.Int64{}
	}
	return m
}

// RecordSuccess 记录成功操作
func (m *QueueMetrics) RecordSuccess(op MetricOperation) {
	if c, ok := m.succeeded[op]; ok {
		c.Add(1)
	}
}

// RecordError 记录失败操作
func (m *QueueMetrics) RecordError(op MetricOperation) {
	if c, ok := m.failed[op]; ok {
		c.Add(1)
	}
}

// RecordPushLatency 记录入队耗时
func (m *QueueMetrics) RecordPushLatency(d time.Duration) {
	m.pushLatency.record(d)
}

// RecordWait 任务开始执行，按入队时间记录排队时长
func (m *QueueMetrics) RecordWait(enqueuedAt time.Time) {
	if enqueuedAt.IsZero() {
		return
	}
	m.waitLatency.record(time.Since(enqueuedAt))
}

// BeginProcess 任务开始执行
func (m *QueueMetrics) BeginProcess() {
	m.inFlight.Add(1)
}

// EndProcess 任务执行结束，记录执行耗时
func (m *QueueMetrics) EndProcess(d time.Duration) {
	m.inFlight.Add(-1)
	m.processLatency.record(d)
}

// MetricsSnapshot 指标快照，用于健康检查输出
type MetricsSnapshot struct {
	Succeeded map[MetricOperation]int64 `json:"succeeded"`
	Failed    map[MetricOperation]int64 `json:"failed"`
	InFlight  int64                     `json:"in_flight"`
	Push      LatencySnapshot           `json:"push_latency"`
	Wait      LatencySnapshot           `json:"wait_latency"`
	Process   LatencySnapshot           `json:"process_latency"`
}

// Snapshot 当前指标
func (m *QueueMetrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		Succeeded: make(map[MetricOperation]int64, len(m.succeeded)),
		Failed:    make(map[MetricOperation]int64, len(m.failed)),
		InFlight:  m.inFlight.Load(),
		Push:      m.pushLatency.snapshot(),
		Wait:      m.waitLatency.snapshot(),
		Process:   m.processLatency.snapshot(),
	}
	for op, c := range m.succeeded {
		snap.Succeeded[op] = c.Load()
	}
	for op, c := range m.failed {
		snap.Failed[op] = c.Load()
	}
	return snap
}
