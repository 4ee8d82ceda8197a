package geometry

import "image"

// CropRegion is an axis-aligned search window inside a frame, stored as
// half-open pixel bounds. It is recomputed every frame and never persisted.
type CropRegion struct {
	Top    int
	Bottom int
	Left   int
	Right  int
}

// CropAround computes the crop region enclosing tip and base expanded by
// margin pixels on every side, clamped to the frame bounds.
func CropAround(tip, base image.Point, margin int, bounds Size) CropRegion {
	top := minInt(tip.Y, base.Y) - margin
	bottom := maxInt(tip.Y, base.Y) + margin
	left := minInt(tip.X, base.X) - margin
	right := maxInt(tip.X, base.X) + margin

	return CropRegion{
		Top:    maxInt(top, 0),
		Bottom: minInt(bottom, bounds.Height),
		Left:   maxInt(left, 0),
		Right:  minInt(right, bounds.Width),
	}
}

// Rect returns the region as an image.Rectangle.
func (c CropRegion) Rect() image.Rectangle {
	return image.Rect(c.Left, c.Top, c.Right, c.Bottom)
}

// Width returns the horizontal extent of the region.
func (c CropRegion) Width() int { return c.Right - c.Left }

// Height returns the vertical extent of the region.
func (c CropRegion) Height() int { return c.Bottom - c.Top }

// OnBoundary reports whether p lies within buffer pixels of any edge of the
// region. A detection landing here usually means the crop clipped the probe.
func (c CropRegion) OnBoundary(p image.Point, buffer int) bool {
	return (c.Top-buffer <= p.Y && p.Y <= c.Top+buffer) ||
		(c.Bottom-buffer <= p.Y && p.Y <= c.Bottom+buffer) ||
		(c.Left-buffer <= p.X && p.X <= c.Left+buffer) ||
		(c.Right-buffer <= p.X && p.X <= c.Right+buffer)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
