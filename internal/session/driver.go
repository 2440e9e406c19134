// Package session runs the per-frame monitoring loop: read a frame, find
// the faces, measure eye openness, update the blink state and hand the
// results to the outputs.
package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"EYE_MONITOR/go-backend/internal/blink"
	"EYE_MONITOR/go-backend/internal/capture"
	"EYE_MONITOR/go-backend/internal/geometry"
	"EYE_MONITOR/go-backend/internal/models"
	"EYE_MONITOR/go-backend/internal/rate"
	"EYE_MONITOR/go-backend/internal/services"

	"github.com/google/uuid"
)

var ErrCapture = errors.New("capture failure")

type Detector interface {
	Detect(ctx context.Context, frame capture.Frame) ([]geometry.Face, error)
}

type Recorder interface {
	Record(rec models.FrameRecord) error
}

type Publisher interface {
	Publish(r models.FrameResult)
}

// Alarm must return without waiting for the side effects.
type Alarm interface {
	Raise(ev models.AlarmEvent)
}

// Viewer shows a frame with its results. Returning stop ends the session.
type Viewer interface {
	Show(frame capture.Frame, results []models.FrameResult) (stop bool)
}

// Store records the session lifecycle.
type Store interface {
	CreateSession(ctx context.Context, s models.Session) error
	EndSession(ctx context.Context, id string, endedAt time.Time, totalBlinks, alarms int, status string) error
}

type Options struct {
	SessionID string
	Camera    int

	Blink blink.Thresholds
	Rate  rate.Thresholds

	// Optional outputs.
	Recorder  Recorder
	Publisher Publisher
	Alarm     Alarm
	Viewer    Viewer
	Store     Store

	Metrics *services.Metrics
	// Now is called twice per frame: before the read and after the faces
	// are measured.
	Now func() time.Time
}

type Driver struct {
	source   capture.Source
	detector Detector
	opts     Options

	machine    *blink.Machine
	processing time.Duration
	frames     uint64
	alarms     int

	latest atomic.Pointer[models.FrameResult]
}

func New(source capture.Source, detector Detector, opts Options) *Driver {
	if opts.SessionID == "" {
		opts.SessionID = uuid.NewString()
	}
	if opts.Blink == (blink.Thresholds{}) {
		opts.Blink = blink.DefaultThresholds()
	}
	if opts.Rate == (rate.Thresholds{}) {
		opts.Rate = rate.DefaultThresholds()
	}
	if opts.Metrics == nil {
		opts.Metrics = services.GetMetrics()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Driver{
		source:   source,
		detector: detector,
		opts:     opts,
		machine:  blink.NewMachine(opts.Blink),
	}
}

func (d *Driver) SessionID() string {
	return d.opts.SessionID
}

// Latest returns the most recent frame result, if any.
func (d *Driver) Latest() (models.FrameResult, bool) {
	r := d.latest.Load()
	if r == nil {
		return models.FrameResult{}, false
	}
	return *r, true
}

// Run processes frames until the source ends, ctx is cancelled, the viewer
// asks to stop or capture fails. Only a capture failure is returned as an
// error. The source is closed before Run returns.
func (d *Driver) Run(ctx context.Context) (models.Summary, error) {
	defer func() {
		if err := d.source.Close(); err != nil {
			slog.Warn("failed to release capture source", "error", err)
		}
	}()

	log := slog.With("session_id", d.opts.SessionID)
	log.Info("session started",
		"camera", d.opts.Camera,
		"ear_threshold", d.opts.Blink.EAR,
		"frames_100ms", d.opts.Blink.Frames100ms,
		"frames_400ms", d.opts.Blink.Frames400ms,
		"frames_1000ms", d.opts.Blink.Frames1000ms,
	)
	d.createSession(ctx)

	runErr := d.loop(ctx)

	summary := d.Summary()
	status := models.SessionCompleted
	if runErr != nil {
		status = models.SessionFailed
		log.Error("session failed", "error", runErr)
	}
	d.endSession(status)

	log.Info("session ended",
		"status", status,
		"frames", summary.Frames,
		"blinks", summary.TotalBlinks,
		"alarms", summary.Alarms,
		"blink_rate", summary.BlinkRate,
		"processing", summary.Processing,
	)
	return summary, runErr
}

func (d *Driver) loop(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		stop, err := d.step(ctx)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
}

// step processes one frame.
func (d *Driver) step(ctx context.Context) (bool, error) {
	start := d.opts.Now()

	frame, err := d.source.Read(ctx)
	if err != nil {
		switch {
		case errors.Is(err, io.EOF):
			slog.Info("frame source exhausted", "session_id", d.opts.SessionID)
			return true, nil
		case ctx.Err() != nil:
			return true, nil
		default:
			return true, fmt.Errorf("%w: %w", ErrCapture, err)
		}
	}
	d.frames++
	d.opts.Metrics.IncrementFrames()

	faces, detectErr := d.detector.Detect(ctx, frame)
	if detectErr != nil && ctx.Err() != nil {
		return true, nil
	}
	measured := d.measure(frame, faces)
	elapsed := d.opts.Now().Sub(start)

	switch {
	case detectErr != nil:
		d.opts.Metrics.IncrementErrors()
		slog.Warn("landmark detection failed, skipping frame",
			"session_id", d.opts.SessionID,
			"seq", frame.Seq,
			"error", detectErr,
		)
		return d.show(frame, nil), nil
	case len(faces) == 0:
		d.opts.Metrics.IncrementNoFaceFrames()
		return d.show(frame, nil), nil
	}

	d.processing += elapsed
	d.opts.Metrics.RecordLatency(elapsed)

	var fps float64
	if elapsed > 0 {
		fps = 1 / elapsed.Seconds()
	}

	results := make([]models.FrameResult, 0, len(measured))
	for _, m := range measured {
		r := d.result(frame, m, fps)
		results = append(results, r)
		d.emit(r, m)
	}

	return d.show(frame, results), nil
}

type measurement struct {
	face   int
	box    image.Rectangle
	ear    float64
	update blink.Update
}

// measure feeds every face with usable eye geometry to the machine.
func (d *Driver) measure(frame capture.Frame, faces []geometry.Face) []measurement {
	measured := make([]measurement, 0, len(faces))
	for i := range faces {
		ear, err := geometry.FaceRatio(&faces[i].Landmarks)
		if err != nil {
			d.machine.Skip()
			d.opts.Metrics.IncrementDegenerateFrames()
			slog.Debug("skipping face with degenerate eye geometry",
				"seq", frame.Seq, "face", i, "error", err)
			continue
		}
		measured = append(measured, measurement{
			face:   i,
			box:    faces[i].Box,
			ear:    ear,
			update: d.machine.Update(ear),
		})
	}
	return measured
}

func (d *Driver) result(frame capture.Frame, m measurement, fps float64) models.FrameResult {
	blinkRate := rate.Rate(m.update.TotalBlinks, d.processing)
	level := d.opts.Rate.Classify(blinkRate)

	return models.FrameResult{
		SessionID:     d.opts.SessionID,
		Seq:           frame.Seq,
		Face:          m.face,
		Box:           [4]int{m.box.Min.X, m.box.Min.Y, m.box.Max.X, m.box.Max.Y},
		EAR:           m.ear,
		FPS:           fps,
		Blinks:        m.update.TotalBlinks,
		BlinkRate:     blinkRate,
		DurationLevel: m.update.Duration.String(),
		RateLevel:     level.String(),
		Alertness:     rate.Assess(level, m.update.Duration).String(),
		AlarmActive:   m.update.AlarmActive,
		ClosedFrames:  m.update.ClosedFrames,
		Timestamp:     frame.Timestamp.UnixMilli(),
	}
}

func (d *Driver) emit(r models.FrameResult, m measurement) {
	if m.update.BlinkCompleted {
		d.opts.Metrics.IncrementBlinks()
	}

	if m.update.AlarmStarted {
		d.alarms++
		if d.opts.Alarm != nil {
			d.opts.Alarm.Raise(models.AlarmEvent{
				SessionID:    d.opts.SessionID,
				Camera:       d.opts.Camera,
				Seq:          r.Seq,
				BlinkCount:   r.Blinks,
				ClosedFrames: r.ClosedFrames,
				EAR:          r.EAR,
				RaisedAt:     time.UnixMilli(r.Timestamp),
			})
		}
	}

	if d.opts.Recorder != nil {
		if err := d.opts.Recorder.Record(r.Record()); err != nil {
			d.opts.Metrics.IncrementErrors()
			slog.Warn("failed to record frame", "seq", r.Seq, "error", err)
		}
	}

	d.latest.Store(&r)

	if d.opts.Publisher != nil {
		d.opts.Publisher.Publish(r)
	}
}

func (d *Driver) show(frame capture.Frame, results []models.FrameResult) bool {
	if d.opts.Viewer == nil {
		return false
	}
	return d.opts.Viewer.Show(frame, results)
}

// Summary reports the session counters so far.
func (d *Driver) Summary() models.Summary {
	total := d.machine.TotalBlinks()
	return models.Summary{
		SessionID:   d.opts.SessionID,
		Frames:      d.frames,
		TotalBlinks: total,
		Alarms:      d.alarms,
		BlinkRate:   rate.Rate(total, d.processing),
		Processing:  d.processing,
		Skipped:     d.machine.Skipped(),
	}
}

func (d *Driver) createSession(ctx context.Context) {
	if d.opts.Store == nil {
		return
	}
	err := d.opts.Store.CreateSession(ctx, models.Session{
		ID:        d.opts.SessionID,
		Camera:    d.opts.Camera,
		StartedAt: time.Now().UTC(),
		Status:    models.SessionActive,
	})
	if err != nil {
		slog.Error("failed to store session", "session_id", d.opts.SessionID, "error", err)
	}
}

// endSession uses its own context; the run context is usually cancelled by now.
func (d *Driver) endSession(status string) {
	if d.opts.Store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := d.opts.Store.EndSession(ctx, d.opts.SessionID, time.Now().UTC(), d.machine.TotalBlinks(), d.alarms, status)
	if err != nil {
		slog.Error("failed to close session", "session_id", d.opts.SessionID, "error", err)
	}
}
