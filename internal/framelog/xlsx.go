package framelog

import (
	"fmt"

	"EYE_MONITOR/go-backend/internal/models"

	"github.com/xuri/excelize/v2"
)

const xlsxSheet = "Sheet1"

// XLSXSink streams records into a spreadsheet that is saved on Close.
type XLSXSink struct {
	path string
	f    *excelize.File
	sw   *excelize.StreamWriter
	row  int
}

func NewXLSXSink(path string) (*XLSXSink, error) {
	f := excelize.NewFile()

	sw, err := f.NewStreamWriter(xlsxSheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create spreadsheet stream: %w", err)
	}

	header := make([]interface{}, len(models.FrameRecordColumns))
	for i, c := range models.FrameRecordColumns {
		header[i] = c
	}
	if err := sw.SetRow("A1", header); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write spreadsheet header: %w", err)
	}

	return &XLSXSink{path: path, f: f, sw: sw, row: 1}, nil
}

func (s *XLSXSink) Record(rec models.FrameRecord) error {
	s.row++
	cell, err := excelize.CoordinatesToCellName(1, s.row)
	if err != nil {
		return err
	}
	return s.sw.SetRow(cell, []interface{}{rec.Blink, rec.BlinkRate, rec.EAR, rec.FPS})
}

func (s *XLSXSink) Close() error {
	defer s.f.Close()

	if err := s.sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush spreadsheet: %w", err)
	}
	if err := s.f.SaveAs(s.path); err != nil {
		return fmt.Errorf("failed to save spreadsheet: %w", err)
	}
	return nil
}
