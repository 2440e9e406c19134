// Package framelog writes the per-frame log (Blink, blink_rate, EAR, FPS)
// to files and to the database as frames are processed.
package framelog

import (
	"errors"

	"EYE_MONITOR/go-backend/internal/models"
)

// Sink receives frame records in frame order.
type Sink interface {
	Record(rec models.FrameRecord) error
	Close() error
}

// Multi fans records out to several sinks. Every sink sees every record,
// even when an earlier one fails.
type Multi []Sink

func (m Multi) Record(rec models.FrameRecord) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
