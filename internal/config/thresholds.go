package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"EYE_MONITOR/go-backend/internal/blink"
	"EYE_MONITOR/go-backend/internal/rate"
)

// Thresholds is the calibration file. Missing keys keep their defaults.
//
//	ear_threshold: 0.20
//	frames_100ms: 3
//	frames_400ms: 12
//	frames_1000ms: 48
//	rate_low: 0.25
//	rate_high: 0.33
type Thresholds struct {
	Blink blink.Thresholds `yaml:",inline"`
	Rate  rate.Thresholds  `yaml:",inline"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		Blink: blink.DefaultThresholds(),
		Rate:  rate.DefaultThresholds(),
	}
}

// LoadThresholds reads a calibration file. An empty path yields the defaults.
func LoadThresholds(path string) (Thresholds, error) {
	th := DefaultThresholds()
	if path == "" {
		return th, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return th, fmt.Errorf("failed to read thresholds file: %w", err)
	}

	if err := yaml.Unmarshal(data, &th); err != nil {
		return th, fmt.Errorf("failed to parse thresholds: %w", err)
	}

	if err := th.Validate(); err != nil {
		return th, fmt.Errorf("invalid thresholds: %w", err)
	}

	return th, nil
}

func (t Thresholds) Validate() error {
	if err := t.Blink.Validate(); err != nil {
		return err
	}
	return t.Rate.Validate()
}
