package alarm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"EYE_MONITOR/go-backend/internal/models"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/wav"
)

// speakerOnce guards speaker.Init, which may only run once per process.
var (
	speakerOnce sync.Once
	speakerErr  error
)

// SoundNotifier plays a WAV file through the default audio device.
type SoundNotifier struct {
	path    string
	playing atomic.Bool
}

// NewSoundNotifier checks that path is readable. An empty path disables
// sound, and the caller should not register a notifier.
func NewSoundNotifier(path string) (*SoundNotifier, error) {
	if path == "" {
		return nil, fmt.Errorf("alarm sound path is empty")
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("alarm sound unavailable: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("alarm sound %s is a directory", path)
	}
	return &SoundNotifier{path: path}, nil
}

// Notify plays the sound to the end. A second alarm while the sound is
// still playing is ignored.
func (s *SoundNotifier) Notify(ctx context.Context, ev models.AlarmEvent) error {
	if !s.playing.CompareAndSwap(false, true) {
		slog.Debug("alarm sound already playing", "seq", ev.Seq)
		return nil
	}
	defer s.playing.Store(false)

	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("failed to open alarm sound: %w", err)
	}

	streamer, format, err := wav.Decode(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to decode alarm sound: %w", err)
	}
	defer streamer.Close()

	speakerOnce.Do(func() {
		speakerErr = speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10))
	})
	if speakerErr != nil {
		return fmt.Errorf("audio device unavailable: %w", speakerErr)
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(streamer, beep.Callback(func() {
		close(done)
	})))

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		speaker.Clear()
		return ctx.Err()
	}
}
