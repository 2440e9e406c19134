// Package display lays out the text and boxes drawn over a preview frame.
package display

import (
	"fmt"
	"image"
	"image/color"

	"EYE_MONITOR/go-backend/internal/models"
)

var (
	Red  = color.RGBA{R: 255, A: 255}
	Cyan = color.RGBA{G: 255, B: 255, A: 255}
)

const AlertText = "DROWSINESS ALERT!"

type Label struct {
	Text  string
	At    image.Point
	Scale float64
	Color color.RGBA
}

type Overlay struct {
	Boxes  []image.Rectangle
	Labels []Label
}

// Layout places the readouts of each result on a frame of the given height.
// The bottom rows follow the frame height so small frames keep them visible.
func Layout(results []models.FrameResult, height int) Overlay {
	var o Overlay
	if len(results) == 0 {
		return o
	}

	bottom := height - 20
	if bottom < 60 {
		bottom = 60
	}

	for _, r := range results {
		o.Boxes = append(o.Boxes, image.Rect(r.Box[0], r.Box[1], r.Box[2], r.Box[3]))
	}

	// Readouts are for the last measured face, like the session counters.
	r := results[len(results)-1]
	if r.AlarmActive {
		o.Labels = append(o.Labels, Label{Text: AlertText, At: image.Pt(10, 30), Scale: 0.7, Color: Red})
	}
	o.Labels = append(o.Labels,
		Label{Text: fmt.Sprintf("EAR: %.2f", r.EAR), At: image.Pt(330, 30), Scale: 0.5, Color: Red},
		Label{Text: fmt.Sprintf("FPS: %.1f", r.FPS), At: image.Pt(330, 55), Scale: 0.5, Color: Red},
		Label{Text: "Blink Rate Level: " + r.RateLevel, At: image.Pt(120, bottom-30), Scale: 0.5, Color: Red},
		Label{Text: "Blink Duration Level: " + r.DurationLevel, At: image.Pt(120, bottom), Scale: 0.5, Color: Red},
		Label{Text: fmt.Sprintf("Blink: %d", r.Blinks), At: image.Pt(10, bottom), Scale: 0.5, Color: Red},
		Label{Text: r.Alertness, At: image.Pt(10, bottom-30), Scale: 0.5, Color: Red},
	)
	return o
}
