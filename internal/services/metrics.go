package services

import (
	"sync"
	"sync/atomic"
	"time"
)

type Metrics struct {
	totalFrames      atomic.Int64
	noFaceFrames     atomic.Int64
	degenerateFrames atomic.Int64
	totalErrors      atomic.Int64
	totalLatency     atomic.Int64
	lastFrameTime    atomic.Int64

	blinks        atomic.Int64
	alarmsRaised  atomic.Int64
	alarmFailures atomic.Int64

	wsConnections atomic.Int64
	wsMessages    atomic.Int64
	wsErrors      atomic.Int64
}

var (
	metricsInstance *Metrics
	metricsOnce     sync.Once
)

func NewMetrics() *Metrics {
	return &Metrics{}
}

func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = NewMetrics()
	})
	return metricsInstance
}

func (m *Metrics) IncrementFrames() {
	m.totalFrames.Add(1)
	m.lastFrameTime.Store(time.Now().Unix())
}

func (m *Metrics) IncrementNoFaceFrames() {
	m.noFaceFrames.Add(1)
}

func (m *Metrics) IncrementDegenerateFrames() {
	m.degenerateFrames.Add(1)
}

func (m *Metrics) IncrementErrors() {
	m.totalErrors.Add(1)
}

func (m *Metrics) RecordLatency(duration time.Duration) {
	m.totalLatency.Add(duration.Microseconds())
}

func (m *Metrics) IncrementBlinks() {
	m.blinks.Add(1)
}

func (m *Metrics) IncrementAlarms() {
	m.alarmsRaised.Add(1)
}

func (m *Metrics) IncrementAlarmFailures() {
	m.alarmFailures.Add(1)
}

func (m *Metrics) GetTotalFrames() int64 {
	return m.totalFrames.Load()
}

func (m *Metrics) GetNoFaceFrames() int64 {
	return m.noFaceFrames.Load()
}

func (m *Metrics) GetDegenerateFrames() int64 {
	return m.degenerateFrames.Load()
}

func (m *Metrics) GetTotalErrors() int64 {
	return m.totalErrors.Load()
}

// GetAvgLatency returns the mean frame latency in milliseconds.
func (m *Metrics) GetAvgLatency() float64 {
	frames := m.totalFrames.Load()
	if frames == 0 {
		return 0
	}
	return float64(m.totalLatency.Load()) / 1000 / float64(frames)
}

func (m *Metrics) GetBlinks() int64 {
	return m.blinks.Load()
}

func (m *Metrics) GetAlarms() int64 {
	return m.alarmsRaised.Load()
}

func (m *Metrics) GetAlarmFailures() int64 {
	return m.alarmFailures.Load()
}

func (m *Metrics) GetLastFrameTime() int64 {
	return m.lastFrameTime.Load()
}

func (m *Metrics) IncrementWebSocketConnections() {
	m.wsConnections.Add(1)
}

// DecrementWebSocketConnections decrements WebSocket connection count
func (m *Metrics) DecrementWebSocketConnections() {
	m.wsConnections.Add(-1)
}

// GetWebSocketConnections returns current WebSocket connections
func (m *Metrics) GetWebSocketConnections() int64 {
	return m.wsConnections.Load()
}

// IncrementWebSocketMessages increments WebSocket message count
func (m *Metrics) IncrementWebSocketMessages() {
	m.wsMessages.Add(1)
}

// GetWebSocketMessages returns total WebSocket messages
func (m *Metrics) GetWebSocketMessages() int64 {
	return m.wsMessages.Load()
}

// IncrementWebSocketErrors increments WebSocket error count
func (m *Metrics) IncrementWebSocketErrors() {
	m.wsErrors.Add(1)
}

// GetWebSocketErrors returns total WebSocket errors
func (m *Metrics) GetWebSocketErrors() int64 {
	return m.wsErrors.Load()
}

// Snapshot returns all counters, keyed for the /api/metrics payload.
func (m *Metrics) Snapshot() map[string]interface{} {
	return map[string]interface{}{
		"total_frames":      m.totalFrames.Load(),
		"no_face_frames":    m.noFaceFrames.Load(),
		"degenerate_frames": m.degenerateFrames.Load(),
		"total_errors":      m.totalErrors.Load(),
		"avg_latency_ms":    m.GetAvgLatency(),
		"last_frame_time":   m.lastFrameTime.Load(),
		"blinks":            m.blinks.Load(),
		"alarms_raised":     m.alarmsRaised.Load(),
		"alarm_failures":    m.alarmFailures.Load(),
		"websocket": map[string]interface{}{
			"connections": m.wsConnections.Load(),
			"messages":    m.wsMessages.Load(),
			"errors":      m.wsErrors.Load(),
		},
	}
}
