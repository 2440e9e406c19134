package config

import (
	"errors"
	"flag"
	"io"
)

// Flags are the command-line options of the monitor.
type Flags struct {
	ShapePredictor string
	Alarm          string
	Webcam         int
	FramesDir      string
	Thresholds     string
	LogCSV         string
	ExportXLSX     string
	Display        bool
	Debug          bool
}

var ErrMissingShapePredictor = errors.New("--shape-predictor is required")

// ParseFlags parses args (without the program name).
func ParseFlags(name string, args []string, output io.Writer) (*Flags, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(output)

	f := &Flags{}
	fs.StringVar(&f.ShapePredictor, "shape-predictor", "", "path to facial landmark predictor")
	fs.StringVar(&f.Alarm, "alarm", "", "path alarm .WAV file")
	fs.IntVar(&f.Webcam, "webcam", 0, "index of webcam on system")
	fs.StringVar(&f.FramesDir, "frames-dir", "", "replay frames from a directory instead of the webcam")
	fs.StringVar(&f.Thresholds, "thresholds", "", "YAML calibration file")
	fs.StringVar(&f.LogCSV, "log-csv", "", "stream the frame log to this CSV file")
	fs.StringVar(&f.ExportXLSX, "export-xlsx", "", "export the frame log to this XLSX file")
	fs.BoolVar(&f.Display, "display", false, "show the annotated video window (press q to stop)")
	fs.BoolVar(&f.Debug, "debug", false, "enable debug logging")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if f.ShapePredictor == "" {
		return nil, ErrMissingShapePredictor
	}

	return f, nil
}
