package models

import "time"

// FrameResult is produced for every measured face in a frame.
type FrameResult struct {
	SessionID     string  `json:"session_id"`
	Seq           uint64  `json:"seq"`
	Face          int     `json:"face"`
	Box           [4]int  `json:"box"`
	EAR           float64 `json:"ear"`
	FPS           float64 `json:"fps"`
	Blinks        int     `json:"blinks"`
	BlinkRate     float64 `json:"blink_rate"`
	DurationLevel string  `json:"duration_level"`
	RateLevel     string  `json:"rate_level"`
	Alertness     string  `json:"alertness"`
	AlarmActive   bool    `json:"alarm_active"`
	ClosedFrames  int     `json:"closed_frames"`
	Timestamp     int64   `json:"timestamp"`
}

// Record projects the result onto the frame log columns.
func (r FrameResult) Record() FrameRecord {
	return FrameRecord{
		SessionID:  r.SessionID,
		Seq:        r.Seq,
		Blink:      r.Blinks,
		BlinkRate:  r.BlinkRate,
		EAR:        r.EAR,
		FPS:        r.FPS,
		RecordedAt: time.UnixMilli(r.Timestamp),
	}
}

// AlarmEvent is raised once when a closed-eye run reaches the alarm level.
type AlarmEvent struct {
	SessionID    string    `json:"session_id"`
	Camera       int       `json:"camera"`
	Seq          uint64    `json:"seq"`
	BlinkCount   int       `json:"blink_count"`
	ClosedFrames int       `json:"closed_frames"`
	EAR          float64   `json:"ear"`
	RaisedAt     time.Time `json:"raised_at"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Timestamp int64  `json:"timestamp"`
	Code      string `json:"code,omitempty"`
}

type HealthStatus struct {
	Status          string `json:"status"`
	LandmarkService bool   `json:"landmark_service"`
	Database        bool   `json:"database"`
	ActiveClients   int    `json:"active_clients"`
	UptimeSec       int64  `json:"uptime_sec"`
	Version         string `json:"version,omitempty"`
}
