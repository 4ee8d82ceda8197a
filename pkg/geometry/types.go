// Package geometry provides basic geometric types used throughout the application.
package geometry

import (
	"image"
	"math"
)

// Point2D represents a 2D point with floating-point coordinates.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NewPoint2D creates a new Point2D.
func NewPoint2D(x, y float64) Point2D {
	return Point2D{X: x, Y: y}
}

// Distance returns the Euclidean distance to another point.
func (p Point2D) Distance(other Point2D) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Sub returns the difference of two points.
func (p Point2D) Sub(other Point2D) Point2D {
	return Point2D{X: p.X - other.X, Y: p.Y - other.Y}
}

// Scale returns the point scaled by a factor.
func (p Point2D) Scale(factor float64) Point2D {
	return Point2D{X: p.X * factor, Y: p.Y * factor}
}

// Round converts to the nearest integer pixel.
func (p Point2D) Round() image.Point {
	return image.Pt(int(math.Round(p.X)), int(math.Round(p.Y)))
}

// Size represents image dimensions in pixels (width, height).
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// NewSize creates a new Size.
func NewSize(width, height int) Size {
	return Size{Width: width, Height: height}
}

// MaxDim returns the larger of width and height.
func (s Size) MaxDim() int {
	if s.Width > s.Height {
		return s.Width
	}
	return s.Height
}

// PixelDistance returns the Euclidean distance between two pixel coordinates.
func PixelDistance(a, b image.Point) float64 {
	dx := float64(a.X - b.X)
	dy := float64(a.Y - b.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

// ScaleToOriginal maps a pixel coordinate from the resized working frame
// into the original full-resolution frame.
func ScaleToOriginal(p image.Point, original, resized Size) image.Point {
	sx := float64(original.Width) / float64(resized.Width)
	sy := float64(original.Height) / float64(resized.Height)
	return image.Pt(int(float64(p.X)*sx), int(float64(p.Y)*sy))
}

// ScaleToResized maps a pixel coordinate from the original full-resolution
// frame into the resized working frame.
func ScaleToResized(p image.Point, original, resized Size) image.Point {
	sx := float64(resized.Width) / float64(original.Width)
	sy := float64(resized.Height) / float64(original.Height)
	return image.Pt(int(float64(p.X)*sx), int(float64(p.Y)*sy))
}

// ExtendAlong returns p moved by offset pixels along the direction from
// anchor towards p. If the two points coincide, p is returned unchanged.
func ExtendAlong(p, anchor image.Point, offset float64) image.Point {
	dx := float64(p.X - anchor.X)
	dy := float64(p.Y - anchor.Y)
	norm := math.Sqrt(dx*dx + dy*dy)
	if norm == 0 {
		return p
	}
	return image.Pt(
		p.X+int(math.Round(offset*dx/norm)),
		p.Y+int(math.Round(offset*dy/norm)),
	)
}
