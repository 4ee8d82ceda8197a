package diffproc

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/AllenNeuralDynamics/parallax-sub001/internal/probe"
	"github.com/AllenNeuralDynamics/parallax-sub001/pkg/geometry"
)

// BackgroundProcessor detects the probe by comparing the current frame
// against a persistent binarized background model, which covers probes
// that hold still between frames. The model is seeded from the first frame
// seen and refreshed after every confirmed detection by erasing the probe
// stroke from the binarized frame.
type BackgroundProcessor struct {
	det      *probe.Detector
	params   Params
	original geometry.Size
	resized  geometry.Size

	bg      gocv.Mat
	hasBg   bool
	currBin gocv.Mat
	hasBin  bool

	reticleZone gocv.Mat
	hasZone     bool
}

// NewBackgroundProcessor creates a background-comparison processor driving
// the given detector. Close must be called to release the model Mats.
func NewBackgroundProcessor(det *probe.Detector, original, resized geometry.Size, p Params) *BackgroundProcessor {
	return &BackgroundProcessor{det: det, params: p, original: original, resized: resized}
}

// SetReticleZone installs a binary mask of reticle pixels at the working
// resolution. Detections whose tip and base both land inside the zone are
// rejected as reticle edges.
func (bp *BackgroundProcessor) SetReticleZone(zone gocv.Mat) {
	if bp.hasZone {
		bp.reticleZone.Close()
	}
	bp.reticleZone = zone.Clone()
	bp.hasZone = true
}

// Close releases the background model and cached Mats.
func (bp *BackgroundProcessor) Close() {
	if bp.hasBg {
		bp.bg.Close()
		bp.hasBg = false
	}
	if bp.hasBin {
		bp.currBin.Close()
		bp.hasBin = false
	}
	if bp.hasZone {
		bp.reticleZone.Close()
		bp.hasZone = false
	}
}

// FirstCompare runs a full-frame search on the background difference and
// initializes the probe state. On success the background model is reseeded
// so the newly found probe no longer appears in future differences.
func (bp *BackgroundProcessor) FirstCompare(curr, mask, org gocv.Mat) bool {
	diff := bp.diffImage(curr, mask)
	defer diff.Close()

	if !bp.det.FirstDetect(diff, mask, probe.SearchOptions{
		ContourThresh: bp.params.FirstContourThresh,
		MinLineLength: bp.params.FirstMinLineLength,
		MaxLineGap:    bp.params.FirstMaxLineGap,
	}) {
		return false
	}

	refineTip(bp.det, org, bp.params.BgFinePatchRadius, bp.original, bp.resized, true)
	bp.reseedBackground(diff, mask)
	return true
}

// UpdateCompare re-locates an already-acquired probe with the growing-crop
// search, refines the tip, and on full success refreshes the background
// model. The refined original-frame tip is invalidated up front so a stale
// value from an earlier frame can never be reported.
func (bp *BackgroundProcessor) UpdateCompare(curr, mask, org gocv.Mat) bool {
	bp.det.HasTipOriginal = false

	diff := bp.diffImage(curr, mask)
	defer diff.Close()

	var zone *gocv.Mat
	if bp.hasZone {
		zone = &bp.reticleZone
	}
	region, ok := searchGrowingCrop(bp.det, diff, mask, bp.resized, bp.params,
		bp.params.BgMinLineBase, bp.params.BgUpdateMaxLineGap, zone)
	if !ok {
		return false
	}
	if !refineTip(bp.det, org, bp.params.BgFinePatchRadius, bp.original, bp.resized, true) {
		return false
	}

	bp.refreshBackground(diff, mask, region)
	return true
}

// TipInOriginal returns the probe tip in original-frame coordinates,
// preferring the sub-pixel refined tip when one is held.
func (bp *BackgroundProcessor) TipInOriginal() image.Point {
	if bp.det.HasTipOriginal {
		return bp.det.TipOriginal
	}
	return geometry.ScaleToOriginal(bp.det.Tip, bp.original, bp.resized)
}

// BaseInOriginal returns the probe base in original-frame coordinates.
func (bp *BackgroundProcessor) BaseInOriginal() image.Point {
	return geometry.ScaleToOriginal(bp.det.Base, bp.original, bp.resized)
}

// diffImage binarizes the frame with an inverted adaptive threshold and
// intersects it with the background model and the working-area mask. The
// background is lazily seeded from the first frame's inverse, making the
// initial difference empty. The binarized frame is retained for the next
// model refresh.
func (bp *BackgroundProcessor) diffImage(curr, mask gocv.Mat) gocv.Mat {
	bin := gocv.NewMat()
	gocv.AdaptiveThreshold(curr, &bin, 255, gocv.AdaptiveThresholdGaussian, gocv.ThresholdBinary,
		bp.params.AdaptiveBlock, bp.params.AdaptiveC)
	gocv.BitwiseNot(bin, &bin)

	if !bp.hasBg {
		bp.bg = gocv.NewMat()
		gocv.BitwiseNot(bin, &bp.bg)
		bp.hasBg = true
	}

	diff := gocv.NewMat()
	gocv.BitwiseAnd(bin, bp.bg, &diff)
	applyMask(&diff, mask)

	if bp.hasBin {
		bp.currBin.Close()
	}
	bp.currBin = bin
	bp.hasBin = true
	return diff
}

// reseedBackground rebuilds the model after a first sighting: everything
// that differs between the diff and the binarized frame is background.
func (bp *BackgroundProcessor) reseedBackground(diff, mask gocv.Mat) {
	xor := gocv.NewMat()
	defer xor.Close()
	gocv.BitwiseXor(diff, bp.currBin, &xor)

	bp.bg.Close()
	bp.bg = gocv.NewMat()
	gocv.BitwiseNot(xor, &bp.bg)
	applyMask(&bp.bg, mask)
}

// refreshBackground folds a confirmed detection into the model. The diff
// crop is dilated and reduced to its largest contour, then the probe
// stroke, extended past both endpoints, is erased from the binarized frame
// and the masked inverse becomes the new background.
func (bp *BackgroundProcessor) refreshBackground(diff, mask gocv.Mat, region geometry.CropRegion) {
	crop := diff.Region(region.Rect())
	defer crop.Close()

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3))
	defer kernel.Close()
	gocv.Dilate(crop, &crop, kernel)
	keepLargestContour(&crop)

	stroke := gocv.Zeros(diff.Rows(), diff.Cols(), diff.Type())
	defer stroke.Close()
	ext := float64(bp.params.BgLineExtension)
	tip := geometry.ExtendAlong(bp.det.Tip, bp.det.Base, ext)
	base := geometry.ExtendAlong(bp.det.Base, bp.det.Tip, ext)
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	gocv.Line(&stroke, tip, base, white, bp.params.BgLineThickness)

	erased := gocv.NewMat()
	defer erased.Close()
	gocv.BitwiseNot(stroke, &erased)
	gocv.BitwiseAnd(bp.currBin, erased, &erased)

	bp.bg.Close()
	bp.bg = gocv.NewMat()
	gocv.BitwiseNot(erased, &bp.bg)
	applyMask(&bp.bg, mask)
}

// keepLargestContour blacks out every contour except the largest.
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
