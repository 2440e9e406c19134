package video

import (
	"log/slog"

	"EYE_MONITOR/go-backend/internal/capture"
	"EYE_MONITOR/go-backend/internal/display"
	"EYE_MONITOR/go-backend/internal/models"

	"gocv.io/x/gocv"
)

// Window is the preview window. Pressing q stops the session.
type Window struct {
	w *gocv.Window
}

func NewWindow(title string) *Window {
	return &Window{w: gocv.NewWindow(title)}
}

// Show draws results over frame and reports whether q was pressed.
func (v *Window) Show(frame capture.Frame, results []models.FrameResult) bool {
	img, err := gocv.IMDecode(frame.Data, gocv.IMReadColor)
	if err != nil {
		slog.Warn("failed to decode frame for display", "seq", frame.Seq, "error", err)
		return false
	}
	defer img.Close()

	o := display.Layout(results, img.Rows())
	for _, box := range o.Boxes {
		gocv.Rectangle(&img, box, display.Cyan, 1)
	}
	for _, l := range o.Labels {
		gocv.PutText(&img, l.Text, l.At, gocv.FontHersheySimplex, l.Scale, l.Color, 2)
	}

	v.w.IMShow(img)
	return v.w.WaitKey(1)&0xFF == 'q'
}

func (v *Window) Close() error {
	return v.w.Close()
}
