// Package capture supplies video frames to the session loop.
//
// Sources return JPEG-encoded frames already resized to the working width.
// A finite source reports io.EOF after its last frame; any other error is a
// capture failure.
package capture

import (
	"context"
	"time"
)

// Frame is a single encoded video frame.
type Frame struct {
	// Seq is the monotonic sequence number
	Seq uint64
	// Timestamp is when the frame was captured
	Timestamp time.Time
	Width     int
	Height    int
	// Data holds the JPEG encoding of the frame. Consumers must not modify it.
	Data []byte
}

// Source provides frames in order.
type Source interface {
	// Read blocks until the next frame is available.
	Read(ctx context.Context) (Frame, error)
	// Close releases the capture device.
	Close() error
}

// ScaledHeight keeps the aspect ratio when resizing to width.
func ScaledHeight(srcWidth, srcHeight, width int) int {
	if srcWidth == 0 {
		return 0
	}
	h := srcHeight * width / srcWidth
	if h < 1 {
		h = 1
	}
	return h
}
