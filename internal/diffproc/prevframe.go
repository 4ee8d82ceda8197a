package diffproc

import (
	"gocv.io/x/gocv"

	"github.com/AllenNeuralDynamics/parallax-sub001/internal/logging"
	"github.com/AllenNeuralDynamics/parallax-sub001/internal/probe"
	"github.com/AllenNeuralDynamics/parallax-sub001/pkg/geometry"
)

// PrevFrameProcessor detects the probe by comparing the current frame
// against the immediately preceding one: a moving probe is the dominant
// structure in their difference. It is the preferred strategy while the
// probe moves; a stationary probe produces no difference and the caller
// falls back to the background strategy.
type PrevFrameProcessor struct {
	det      *probe.Detector
	params   Params
	original geometry.Size
	resized  geometry.Size
}

// NewPrevFrameProcessor creates a consecutive-frame processor driving the
// given detector. The sizes describe the camera's original resolution and
// the resized working resolution.
func NewPrevFrameProcessor(det *probe.Detector, original, resized geometry.Size, p Params) *PrevFrameProcessor {
	return &PrevFrameProcessor{det: det, params: p, original: original, resized: resized}
}

// FirstCompare runs a full-frame line search on the prev/curr difference
// and initializes the probe state. curr and prev are resized grayscale
// frames, org is the original-resolution grayscale frame used for fine-tip
// refinement. Refinement failure does not void a first sighting; the
// coarse tip is enough to anchor the subsequent crop searches.
func (pp *PrevFrameProcessor) FirstCompare(curr, prev, mask, org gocv.Mat) bool {
	diff, ok := pp.diffImage(curr, prev, mask)
	if !ok {
		return false
	}
	defer diff.Close()

	if !pp.det.FirstDetect(diff, mask, probe.SearchOptions{
		ContourThresh: pp.params.FirstContourThresh,
		MinLineLength: pp.params.FirstMinLineLength,
		MaxLineGap:    pp.params.FirstMaxLineGap,
	}) {
		return false
	}

	refineTip(pp.det, org, pp.params.PrevFinePatchRadius, pp.original, pp.resized, false)
	return true
}

// UpdateCompare re-locates an already-acquired probe near its last
// position with the growing-crop search, then refines the tip. Both must
// succeed; on failure the detector keeps its previous state.
func (pp *PrevFrameProcessor) UpdateCompare(curr, prev, mask, org gocv.Mat) bool {
	diff, ok := pp.diffImage(curr, prev, mask)
	if !ok {
		return false
	}
	defer diff.Close()

	_, ok = searchGrowingCrop(pp.det, diff, mask, pp.resized, pp.params,
		pp.params.PrevMinLineBase, pp.params.PrevUpdateMaxLineGap, nil)
	if !ok {
		return false
	}
	return refineTip(pp.det, org, pp.params.PrevFinePatchRadius, pp.original, pp.resized, false)
}

// diffImage builds the binary motion image: masked saturating subtraction,
// a weak-signal gate, shadow suppression at a fraction of the peak, then
// Otsu binarization re-masked to the working area.
func (pp *PrevFrameProcessor) diffImage(curr, prev, mask gocv.Mat) (gocv.Mat, bool) {
	diff := gocv.NewMat()
	gocv.Subtract(prev, curr, &diff)
	applyMask(&diff, mask)

	_, maxVal, _, _ := gocv.MinMaxLoc(diff)
	if float64(maxVal) < pp.params.WeakSignalFloor {
		logging.Debugf("probe %s: weak frame difference (max %.0f)", pp.det.SN, maxVal)
		diff.Close()
		return gocv.Mat{}, false
	}

	gocv.Threshold(diff, &diff, float32(pp.params.ShadowFraction)*maxVal, 255, gocv.ThresholdToZero)
	gocv.Threshold(diff, &diff, 0, 255, gocv.ThresholdBinary+gocv.ThresholdOtsu)
	applyMask(&diff, mask)
	return diff, true
}

// applyMask zeroes img outside the mask in place. An empty mask is a
// no-op.
func applyMask(img *gocv.Mat, mask gocv.Mat) {
	if mask.Empty() {
		return
	}
	masked := gocv.Zeros(img.Rows(), img.Cols(), img.Type())
	gocv.BitwiseAndWithMask(*img, *img, &masked, mask)
	img.Close()
	*img = masked
}
