// Package video holds the OpenCV-backed webcam source and preview window.
package video

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"EYE_MONITOR/go-backend/internal/capture"

	"gocv.io/x/gocv"
)

// maxEmptyReads is how many consecutive empty frames the device may return
// before it is considered failed.
const maxEmptyReads = 30

// Webcam captures from a local camera on a background goroutine and hands
// the most recent frame to the reader.
type Webcam struct {
	device int
	width  int
	vc     *gocv.VideoCapture
	slot   *capture.LatestSlot

	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
	seq    uint64
}

// OpenWebcam opens camera device and starts capturing.
func OpenWebcam(device, width int) (*Webcam, error) {
	vc, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("failed to open webcam %d: %w", device, err)
	}

	w := &Webcam{
		device: device,
		width:  width,
		vc:     vc,
		slot:   capture.NewLatestSlot(),
		stopCh: make(chan struct{}),
	}

	slog.Info("webcam opened", "device", device, "width", width)

	w.wg.Add(1)
	go w.captureLoop()

	return w, nil
}

func (w *Webcam) captureLoop() {
	defer w.wg.Done()

	img := gocv.NewMat()
	defer img.Close()
	resized := gocv.NewMat()
	defer resized.Close()

	empty := 0
	for {
		select {
		case <-w.stopCh:
			w.slot.Fail(capture.ErrSlotClosed)
			return
		default:
		}

		if ok := w.vc.Read(&img); !ok {
			w.slot.Fail(fmt.Errorf("webcam %d: device closed", w.device))
			return
		}
		if img.Empty() {
			empty++
			if empty >= maxEmptyReads {
				w.slot.Fail(fmt.Errorf("webcam %d: %d consecutive empty frames", w.device, empty))
				return
			}
			continue
		}
		empty = 0

		frame, err := w.encode(img, &resized)
		if err != nil {
			slog.Warn("failed to encode webcam frame", "device", w.device, "error", err)
			continue
		}
		w.slot.Put(frame)
	}
}

func (w *Webcam) encode(img gocv.Mat, resized *gocv.Mat) (capture.Frame, error) {
	height := capture.ScaledHeight(img.Cols(), img.Rows(), w.width)
	gocv.Resize(img, resized, image.Pt(w.width, height), 0, 0, gocv.InterpolationLinear)

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *resized)
	if err != nil {
		return capture.Frame{}, err
	}
	defer buf.Close()

	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())

	w.seq++
	return capture.Frame{
		Seq:       w.seq,
		Timestamp: time.Now(),
		Width:     w.width,
		Height:    height,
		Data:      data,
	}, nil
}

// Read returns the most recent captured frame.
func (w *Webcam) Read(ctx context.Context) (capture.Frame, error) {
	frame, err := w.slot.Get(ctx)
	if errors.Is(err, capture.ErrSlotClosed) {
		return capture.Frame{}, fmt.Errorf("webcam %d: %w", w.device, err)
	}
	return frame, err
}

// Close stops the capture goroutine and releases the device.
func (w *Webcam) Close() error {
	var err error
	w.once.Do(func() {
		close(w.stopCh)
		w.wg.Wait()
		err = w.vc.Close()
		slog.Info("webcam released",
			"device", w.device,
			"frames", w.seq,
			"dropped", w.slot.Dropped(),
		)
	})
	return err
}
