// Package rate derives blink frequency and maps it, together with the blink
// duration, to qualitative levels. All functions are pure.
package rate

import (
	"fmt"
	"time"

	"EYE_MONITOR/go-backend/internal/blink"
)

// Level buckets the blink rate.
type Level int

const (
	Low Level = iota
	Normal
	High
)

func (l Level) String() string {
	switch l {
	case Low:
		return "Low"
	case Normal:
		return "Normal"
	case High:
		return "High"
	default:
		return "N/A"
	}
}

// Thresholds bound the Normal rate interval, in blinks per second (inclusive).
type Thresholds struct {
	Low  float64 `yaml:"rate_low"`
	High float64 `yaml:"rate_high"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{Low: 0.25, High: 0.33}
}

func (t Thresholds) Validate() error {
	if t.Low < 0 || t.High < t.Low {
		return fmt.Errorf("rate thresholds must satisfy 0 <= low <= high, got %v/%v", t.Low, t.High)
	}
	return nil
}

// Rate returns blinks per second. It is 0 until some processing time has
// been accumulated.
func Rate(totalBlinks int, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(totalBlinks) / elapsed.Seconds()
}

// Classify maps a blink rate to its level.
func (t Thresholds) Classify(rate float64) Level {
	switch {
	case rate < t.Low:
		return Low
	case rate > t.High:
		return High
	default:
		return Normal
	}
}

// Alertness is the overall state suggested by the calibration guide.
type Alertness int

const (
	Alert Alertness = iota
	LowAlertness
	Drowsy
	Sleeping
)

func (a Alertness) String() string {
	switch a {
	case Alert:
		return "Alert"
	case LowAlertness:
		return "Low Alertness"
	case Drowsy:
		return "Drowsy"
	case Sleeping:
		return "Sleeping"
	default:
		return "N/A"
	}
}

// Assess combines blink rate and duration levels:
//
//	Very Long duration         -> Sleeping
//	Long duration, High rate   -> Drowsy
//	Long duration, other rates -> Low Alertness
//	Normal duration            -> Alert
func Assess(level Level, duration blink.DurationLevel) Alertness {
	switch duration {
	case blink.DurationVeryLong:
		return Sleeping
	case blink.DurationLong:
		if level == High {
			return Drowsy
		}
		return LowAlertness
	default:
		return Alert
	}
}
