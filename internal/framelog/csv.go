package framelog

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"EYE_MONITOR/go-backend/internal/models"
)

// csvFlushEvery bounds how many rows sit in the writer buffer.
const csvFlushEvery = 30

type CSVSink struct {
	f    *os.File
	w    *csv.Writer
	rows int
}

// NewCSVSink creates path and writes the header row.
func NewCSVSink(path string) (*CSVSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create frame log: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(models.FrameRecordColumns); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write frame log header: %w", err)
	}

	return &CSVSink{f: f, w: w}, nil
}

func (s *CSVSink) Record(rec models.FrameRecord) error {
	row := []string{
		strconv.Itoa(rec.Blink),
		strconv.FormatFloat(rec.BlinkRate, 'f', -1, 64),
		strconv.FormatFloat(rec.EAR, 'f', -1, 64),
		strconv.FormatFloat(rec.FPS, 'f', -1, 64),
	}
	if err := s.w.Write(row); err != nil {
		return fmt.Errorf("failed to write frame log row: %w", err)
	}

	s.rows++
	if s.rows%csvFlushEvery == 0 {
		s.w.Flush()
		return s.w.Error()
	}
	return nil
}

// Rows returns how many records were written.
func (s *CSVSink) Rows() int {
	return s.rows
}

func (s *CSVSink) Close() error {
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		s.f.Close()
		return err
	}
	return s.f.Close()
}
