// Package blink tracks eye-closure runs frame by frame and turns them into
// blink counts, duration levels and the drowsiness alarm state.
//
// Durations are measured in frames, not wall-clock time. The default
// thresholds assume a roughly constant camera frame rate; when the real
// frame rate differs, the Thresholds must be recalibrated for it.
package blink

import "fmt"

// DurationLevel buckets how long the current or last closed-eye run lasted.
type DurationLevel int

const (
	DurationNormal DurationLevel = iota
	DurationLong
	DurationVeryLong
)

func (d DurationLevel) String() string {
	switch d {
	case DurationNormal:
		return "Normal"
	case DurationLong:
		return "Long"
	case DurationVeryLong:
		return "Very Long"
	default:
		return "N/A"
	}
}

// Thresholds configures the state machine. Frame counts are per closed run.
type Thresholds struct {
	EAR          float64 `yaml:"ear_threshold"`
	Frames100ms  int     `yaml:"frames_100ms"`
	Frames400ms  int     `yaml:"frames_400ms"`
	Frames1000ms int     `yaml:"frames_1000ms"`
}

// DefaultThresholds returns the calibration-guide defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		EAR:          0.20,
		Frames100ms:  3,
		Frames400ms:  12,
		Frames1000ms: 48,
	}
}

// Validate checks that the frame counts are positive and ordered.
func (t Thresholds) Validate() error {
	if t.EAR <= 0 {
		return fmt.Errorf("ear_threshold must be > 0, got %v", t.EAR)
	}
	if t.Frames100ms <= 0 {
		return fmt.Errorf("frames_100ms must be > 0, got %d", t.Frames100ms)
	}
	if t.Frames400ms <= t.Frames100ms || t.Frames1000ms <= t.Frames400ms {
		return fmt.Errorf("frame thresholds must increase: %d < %d < %d",
			t.Frames100ms, t.Frames400ms, t.Frames1000ms)
	}
	return nil
}

// Update is the outcome of feeding one frame to the Machine.
type Update struct {
	BlinkCompleted bool
	Duration       DurationLevel
	// AlarmActive stays true for the rest of a very long closed run.
	AlarmActive bool
	// AlarmStarted is true only on the frame the alarm became active.
	AlarmStarted bool
	ClosedFrames int
	TotalBlinks  int
}

// Machine holds the blink state of one camera session.
// It is not safe for concurrent use; the session driver is its only writer.
type Machine struct {
	th Thresholds

	closedFrames    int
	totalBlinks     int
	blinkInProgress bool
	alarmActive     bool
	duration        DurationLevel
	skipped         int
}

// NewMachine creates a Machine in its initial state.
func NewMachine(th Thresholds) *Machine {
	return &Machine{th: th, duration: DurationNormal}
}

// Update consumes one eye aspect ratio.
func (m *Machine) Update(ear float64) Update {
	var u Update

	if ear < m.th.EAR {
		m.closedFrames++

		switch {
		case m.closedFrames >= m.th.Frames1000ms:
			m.duration = DurationVeryLong
			if !m.alarmActive {
				m.alarmActive = true
				u.AlarmStarted = true
			}
		case m.closedFrames >= m.th.Frames400ms:
			m.duration = DurationLong
		case m.closedFrames >= m.th.Frames100ms:
			m.duration = DurationNormal
		}

		if m.closedFrames >= m.th.Frames100ms {
			m.blinkInProgress = true
		}
	} else {
		if m.blinkInProgress {
			m.totalBlinks++
			m.blinkInProgress = false
			u.BlinkCompleted = true
		}
		m.closedFrames = 0
		m.alarmActive = false
	}

	u.Duration = m.duration
	u.AlarmActive = m.alarmActive
	u.ClosedFrames = m.closedFrames
	u.TotalBlinks = m.totalBlinks
	return u
}

// Skip records a frame whose openness is unknown. Counters are left as is.
func (m *Machine) Skip() {
	m.skipped++
}

// TotalBlinks returns the number of completed blinks.
func (m *Machine) TotalBlinks() int { return m.totalBlinks }

// Duration returns the current duration level.
func (m *Machine) Duration() DurationLevel { return m.duration }

// AlarmActive reports whether the current closed run reached the alarm level.
func (m *Machine) AlarmActive() bool { return m.alarmActive }

// Skipped returns how many frames had no usable measurement.
func (m *Machine) Skipped() int { return m.skipped }

// Thresholds returns the machine's configuration.
func (m *Machine) Thresholds() Thresholds { return m.th }
