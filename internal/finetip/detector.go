// Package finetip refines a coarse probe-tip estimate to sub-pixel
// precision by analyzing corner features in a small original-resolution
// patch around the tip.
package finetip

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/AllenNeuralDynamics/parallax-sub001/internal/logging"
	"github.com/AllenNeuralDynamics/parallax-sub001/internal/probe"
	"github.com/AllenNeuralDynamics/parallax-sub001/pkg/geometry"
)

const (
	harrisBlockSize = 7
	harrisKSize     = 5
	harrisK         = 0.1
	// harrisFraction of the strongest response a corner pixel must reach.
	harrisFraction = 0.3
	// tipExtension pushes the accepted tip this many pixels further along
	// the base-to-tip axis; the Harris response peaks slightly inside the
	// physical tip.
	tipExtension = 3.0
)

// Refine returns the sub-pixel tip for the given patch, or the coarse tip
// and false when the patch is too ambiguous to trust. The patch is a crop
// of the original-resolution frame; offsetX/offsetY translate patch
// coordinates back into frame coordinates. The compass direction selects
// which extremal point of each corner feature is the tip candidate.
func Refine(patch gocv.Mat, coarseTip, base image.Point, offsetX, offsetY int, dir probe.Direction) (image.Point, bool) {
	if patch.Empty() {
		return coarseTip, false
	}

	binary := preprocess(patch)
	defer binary.Close()

	if !isUnambiguous(binary) {
		logging.Debugf("finetip: ambiguous patch near %v", coarseTip)
		return coarseTip, false
	}

	tip := closestCornerTip(binary, coarseTip, offsetX, offsetY, dir)
	return geometry.ExtendAlong(tip, base, tipExtension), true
}

// preprocess blurs and Otsu-binarizes the patch.
func preprocess(patch gocv.Mat) gocv.Mat {
	out := gocv.NewMat()
	gocv.GaussianBlur(patch, &out, image.Pt(7, 7), 0, 0, gocv.BorderDefault)
	gocv.Threshold(out, &out, 0, 255, gocv.ThresholdBinary+gocv.ThresholdOtsu)
	return out
}

// isUnambiguous validates the patch: if more than one foreground region
// touches the patch boundary, or more than one touches the corner pixels
// specifically, two structures overlap the tip area and refinement would be
// guessing.
func isUnambiguous(binary gocv.Mat) bool {
	rows, cols := binary.Rows(), binary.Cols()

	boundary := gocv.Zeros(rows, cols, gocv.MatTypeCV8U)
	defer boundary.Close()
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	gocv.Rectangle(&boundary, image.Rect(0, 0, cols-1, rows-1), white, 1)

	inverted := gocv.NewMat()
	defer inverted.Close()
	gocv.BitwiseNot(binary, &inverted)

	onBoundary := gocv.NewMat()
	defer onBoundary.Close()
	gocv.BitwiseAnd(inverted, boundary, &onBoundary)

	if countContours(onBoundary) >= 2 {
		return false
	}

	// Same test restricted to the four corner pixels.
	boundary.SetUCharAt(0, 0, 255)
	boundary.SetUCharAt(0, cols-1, 255)
	boundary.SetUCharAt(rows-1, 0, 255)
	boundary.SetUCharAt(rows-1, cols-1, 255)

	onCorners := gocv.NewMat()
	defer onCorners.Close()
	gocv.BitwiseAnd(onBoundary, boundary, &onCorners)

	return countContours(onCorners) < 2
}

func countContours(img gocv.Mat) int {
	contours := gocv.FindContours(img, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()
	return contours.Size()
}

// closestCornerTip runs the Harris corner detector over the patch,
// thresholds the response, and picks the direction-consistent extremal
// point of each corner feature; the candidate nearest the coarse tip wins.
func closestCornerTip(binary gocv.Mat, coarseTip image.Point, offsetX, offsetY int, dir probe.Direction) image.Point {
	harris := gocv.NewMat()
	defer harris.Close()
	gocv.CornerHarris(binary, &harris, harrisBlockSize, harrisKSize, harrisK)

	_, maxVal, _, _ := gocv.MinMaxLoc(harris)

	marks32 := gocv.NewMat()
	defer marks32.Close()
	gocv.Threshold(harris, &marks32, harrisFraction*maxVal, 255, gocv.ThresholdBinary)

	marks := gocv.NewMat()
	defer marks.Close()
	marks32.ConvertTo(&marks, gocv.MatTypeCV8U)

	contours := gocv.FindContours(marks, gocv.RetrievalTree, gocv.ChainApproxSimple)
	defer contours.Close()

	best := coarseTip
	bestDist := -1.0
	for i := 0; i < contours.Size(); i++ {
		extremal := directionExtremal(contours.At(i), dir)
		candidate := image.Pt(extremal.X+offsetX, extremal.Y+offsetY)
		d := geometry.PixelDistance(candidate, coarseTip)
		if bestDist < 0 || d < bestDist {
			bestDist = d
			best = candidate
		}
	}
	return best
}

// directionExtremal picks the point of the contour consistent with the
// probe's pointing direction, e.g. the maximum-y point for a south-pointing
// probe.
func directionExtremal(contour gocv.PointVector, dir probe.Direction) image.Point {
	var best image.Point
	for i := 0; i < contour.Size(); i++ {
		p := contour.At(i)
		if i == 0 || better(p, best, dir) {
			best = p
		}
	}
	return best
}

func better(p, best image.Point, dir probe.Direction) bool {
	switch dir {
	case probe.DirS:
		return p.Y > best.Y
	case probe.DirN:
		return p.Y < best.Y
	case probe.DirE:
		return p.X > best.X
	case probe.DirW:
		return p.X < best.X
	case probe.DirNE:
		return p.Y-p.X < best.Y-best.X
	case probe.DirNW:
		return p.Y+p.X < best.Y+best.X
	case probe.DirSE:
		return p.Y+p.X > best.Y+best.X
	case probe.DirSW:
		return p.Y-p.X > best.Y-best.X
	default:
		return p.Y > best.Y
	}
}
