package capture

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/disintegration/imaging"
)

var replayExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
}

// Replay feeds the images of a directory, in file name order, as frames.
// It is used to analyse recorded sessions offline.
type Replay struct {
	dir   string
	width int
	files []string
	next  int
	seq   uint64
}

// OpenReplay lists the images in dir.
func OpenReplay(dir string, width int) (*Replay, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read frames dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if replayExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no images found in %s", dir)
	}
	sort.Strings(files)

	return &Replay{dir: dir, width: width, files: files}, nil
}

// Len returns the number of frames in the replay.
func (r *Replay) Len() int {
	return len(r.files)
}

// Read decodes, resizes and re-encodes the next image. It returns io.EOF
// after the last one.
func (r *Replay) Read(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	if r.next >= len(r.files) {
		return Frame{}, io.EOF
	}

	path := r.files[r.next]
	r.next++

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return Frame{}, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	resized := imaging.Resize(img, r.width, 0, imaging.Linear)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		return Frame{}, fmt.Errorf("failed to encode %s: %w", path, err)
	}

	r.seq++
	b := resized.Bounds()
	return Frame{
		Seq:       r.seq,
		Timestamp: time.Now(),
		Width:     b.Dx(),
		Height:    b.Dy(),
		Data:      buf.Bytes(),
	}, nil
}

func (r *Replay) Close() error {
	r.next = len(r.files)
	return nil
}
