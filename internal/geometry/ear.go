// Package geometry computes the eye aspect ratio (EAR) from facial landmarks.
package geometry

import (
	"errors"
	"math"
)

// ErrDegenerateGeometry is returned when the eye corners coincide and no
// ratio can be computed for the frame.
var ErrDegenerateGeometry = errors.New("degenerate eye geometry: corner distance is zero")

// Point is a 2-D landmark coordinate in frame pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Distance returns the euclidean distance between p and q.
func (p Point) Distance(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// EyePoints is the six-point eye contour in canonical order:
// outer corner, two upper-lid points, inner corner, two lower-lid points.
type EyePoints [6]Point

// Ratio returns (|p1-p5| + |p2-p4|) / (2 * |p0-p3|).
// Smaller values mean a more closed eye.
func Ratio(eye EyePoints) (float64, error) {
	a := eye[1].Distance(eye[5])
	b := eye[2].Distance(eye[4])
	c := eye[0].Distance(eye[3])

	if c == 0 {
		return 0, ErrDegenerateGeometry
	}

	return (a + b) / (2.0 * c), nil
}

// Mirror reflects the contour around the vertical axis x = axis and
// reorders the points so the result is again in canonical order.
func (e EyePoints) Mirror(axis float64) EyePoints {
	flip := func(p Point) Point {
		return Point{X: 2*axis - p.X, Y: p.Y}
	}
	return EyePoints{
		flip(e[3]),
		flip(e[2]),
		flip(e[1]),
		flip(e[0]),
		flip(e[5]),
		flip(e[4]),
	}
}
