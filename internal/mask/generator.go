// Package mask derives a binary foreground mask per frame, isolating the
// working area from reticle and background clutter, and classifies once per
// camera whether a calibration reticle is visible.
package mask

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/AllenNeuralDynamics/parallax-sub001/internal/logging"
)

// Generator produces foreground masks. One instance serves one camera; the
// reticle classification is computed on the first processed frame and
// cached for the camera's lifetime.
type Generator struct {
	// InitialDetect selects the coarser first-sighting path: a much smaller
	// working size and gentler morphology, useful when scanning for a probe
	// before any lock exists.
	InitialDetect bool

	reticleChecked bool
	reticlePresent bool
}

// NewGenerator creates a mask generator for one camera.
func NewGenerator() *Generator {
	return &Generator{}
}

// ReticleDetected reports the cached reticle classification. It is false
// until the first frame has been processed.
func (g *Generator) ReticleDetected() bool {
	return g.reticleChecked && g.reticlePresent
}

// Process generates a binary foreground mask at the input's resolution.
// Color input is converted to grayscale. An empty input yields an empty
// Mat; Process never panics.
func (g *Generator) Process(img gocv.Mat) gocv.Mat {
	if img.Empty() {
		logging.Debugf("mask: empty input frame")
		return gocv.NewMat()
	}

	gray := gocv.NewMat()
	switch img.Channels() {
	case 4:
		gocv.CvtColor(img, &gray, gocv.ColorBGRAToGray)
	case 1:
		gray.Close()
		gray = img.Clone()
	default:
		gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	}
	defer gray.Close()
	originalSize := image.Pt(gray.Cols(), gray.Rows())

	work := gocv.NewMat()
	defer work.Close()
	if g.InitialDetect {
		gocv.Resize(gray, &work, image.Pt(120, 90), 0, 0, gocv.InterpolationDefault)
	} else {
		gocv.Resize(gray, &work, image.Pt(400, 300), 0, 0, gocv.InterpolationDefault)
		gocv.GaussianBlur(work, &work, image.Pt(9, 9), 0, 0, gocv.BorderDefault)
	}

	if !g.reticleChecked {
		g.reticlePresent = detectReticle(work)
		g.reticleChecked = true
		logging.Debugf("mask: reticle present=%v", g.reticlePresent)
	}

	gocv.Threshold(work, &work, 0, 255, gocv.ThresholdBinary+gocv.ThresholdOtsu)

	keepLargestContour(&work)
	g.applyMorphology(&work)

	out := gocv.NewMat()
	gocv.Resize(work, &out, originalSize, 0, 0, gocv.InterpolationDefault)
	gocv.ConvertScaleAbs(out, &out, 1, 0)
	return out
}

// keepLargestContour blacks out every contour except the largest, removing
// speckle before the morphology pass.
func keepLargestContour(img *gocv.Mat) {
	contours := gocv.FindContours(*img, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	if contours.Size() < 2 {
		return
	}

	largestIdx := 0
	largestArea := 0.0
	for i := 0; i < contours.Size(); i++ {
		if a := gocv.ContourArea(contours.At(i)); a > largestArea {
			largestArea = a
			largestIdx = i
		}
	}

	black := color.RGBA{}
	for i := 0; i < contours.Size(); i++ {
		if i != largestIdx {
			gocv.DrawContours(img, contours, i, black, -1)
		}
	}
}

// applyMorphology smooths the mask boundary: close then erode, followed by
// an inverted pass that drops small residual contours and dilates.
func (g *Generator) applyMorphology(img *gocv.Mat) {
	closeSize, dilateSize := image.Pt(8, 8), image.Pt(10, 10)
	minContourSide := 50.0
	if g.InitialDetect {
		closeSize, dilateSize = image.Pt(2, 2), image.Pt(3, 3)
		minContourSide = 5.0
	}

	closeKernel := gocv.GetStructuringElement(gocv.MorphEllipse, closeSize)
	defer closeKernel.Close()
	dilateKernel := gocv.GetStructuringElement(gocv.MorphEllipse, dilateSize)
	defer dilateKernel.Close()

	gocv.MorphologyEx(*img, img, gocv.MorphClose, closeKernel)
	gocv.Erode(*img, img, dilateKernel)

	gocv.BitwiseNot(*img, img)
	removeSmallContours(img, minContourSide*minContourSide)
	gocv.Dilate(*img, img, dilateKernel)
	gocv.BitwiseNot(*img, img)
}

// removeSmallContours blacks out contours below the given area.
func removeSmallContours(img *gocv.Mat, minArea float64) {
	contours := gocv.FindContours(*img, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	black := color.RGBA{}
	for i := 0; i < contours.Size(); i++ {
		if gocv.ContourArea(contours.At(i)) < minArea {
			gocv.DrawContours(img, contours, i, black, -1)
		}
	}
}
