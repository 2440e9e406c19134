package models

import "time"

type Session struct {
	ID          string     `json:"id" db:"id"`
	Camera      int        `json:"camera" db:"camera"`
	StartedAt   time.Time  `json:"started_at" db:"started_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty" db:"ended_at"`
	TotalBlinks int        `json:"total_blinks" db:"total_blinks"`
	Alarms      int        `json:"alarms" db:"alarms"`
	Status      string     `json:"status" db:"status"`
}

const (
	SessionActive    = "active"
	SessionCompleted = "completed"
	SessionFailed    = "failed"
)

// Event is a persisted alarm occurrence.
type Event struct {
	ID           int64     `json:"id" db:"id"`
	SessionID    string    `json:"session_id" db:"session_id"`
	Kind         string    `json:"kind" db:"kind"`
	BlinkCount   int       `json:"blink_count" db:"blink_count"`
	ClosedFrames int       `json:"closed_frames" db:"closed_frames"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

const EventDrowsinessAlarm = "drowsiness_alarm"

// FrameRecord is one row of the frame log. Column names follow the log
// format: Blink, blink_rate, EAR, FPS.
type FrameRecord struct {
	SessionID  string    `json:"-" db:"session_id"`
	Seq        uint64    `json:"-" db:"seq"`
	Blink      int       `json:"Blink" db:"blink"`
	BlinkRate  float64   `json:"blink_rate" db:"blink_rate"`
	EAR        float64   `json:"EAR" db:"ear"`
	FPS        float64   `json:"FPS" db:"fps"`
	RecordedAt time.Time `json:"-" db:"recorded_at"`
}

// FrameRecordColumns is the log header in output order.
var FrameRecordColumns = []string{"Blink", "blink_rate", "EAR", "FPS"}

// Summary is what a finished session reports.
type Summary struct {
	SessionID   string        `json:"session_id"`
	Frames      uint64        `json:"frames"`
	TotalBlinks int           `json:"total_blinks"`
	Alarms      int           `json:"alarms"`
	BlinkRate   float64       `json:"blink_rate"`
	Processing  time.Duration `json:"processing"`
	Skipped     int           `json:"skipped"`
}
