package geometry

import (
	"errors"
	"fmt"
	"image"
)

// LandmarkCount is the size of the 68-point facial landmark layout.
const LandmarkCount = 68

// Eye index ranges in the 68-point layout (half-open).
const (
	rightEyeStart = 36
	rightEyeEnd   = 42
	leftEyeStart  = 42
	leftEyeEnd    = 48
)

var ErrInvalidLandmarks = errors.New("invalid landmark set")

// Landmarks is one face's fixed-layout landmark set.
type Landmarks [LandmarkCount]Point

// Face is a detected face region with its landmarks.
type Face struct {
	Box       image.Rectangle
	Landmarks Landmarks
}

// NewLandmarks builds a landmark set from a flat x0,y0,x1,y1,... slice.
func NewLandmarks(coords []float64) (Landmarks, error) {
	var lm Landmarks
	if len(coords) != LandmarkCount*2 {
		return lm, fmt.Errorf("%w: got %d coordinates, want %d", ErrInvalidLandmarks, len(coords), LandmarkCount*2)
	}
	for i := range lm {
		lm[i] = Point{X: coords[2*i], Y: coords[2*i+1]}
	}
	return lm, nil
}

func (l *Landmarks) eye(start, end int) EyePoints {
	var eye EyePoints
	copy(eye[:], l[start:end])
	return eye
}

// LeftEye returns the subject's left eye contour.
func (l *Landmarks) LeftEye() EyePoints {
	return l.eye(leftEyeStart, leftEyeEnd)
}

// RightEye returns the subject's right eye contour.
func (l *Landmarks) RightEye() EyePoints {
	return l.eye(rightEyeStart, rightEyeEnd)
}

// FaceRatio averages the ratios of both eyes. If either eye is degenerate
// the face yields no measurement.
func FaceRatio(l *Landmarks) (float64, error) {
	left, err := Ratio(l.LeftEye())
	if err != nil {
		return 0, fmt.Errorf("left eye: %w", err)
	}
	right, err := Ratio(l.RightEye())
	if err != nil {
		return 0, fmt.Errorf("right eye: %w", err)
	}
	return (left + right) / 2.0, nil
}
