package diffproc

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/AllenNeuralDynamics/parallax-sub001/internal/probe"
	"github.com/AllenNeuralDynamics/parallax-sub001/pkg/geometry"
)

var (
	originalSize = geometry.NewSize(2000, 1500)
	resizedSize  = geometry.NewSize(1000, 750)
)

// uniformFrame is a featureless working-resolution grayscale frame.
func uniformFrame(value float64) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(value, 0, 0, 0), 750, 1000, gocv.MatTypeCV8U)
}

// probeFrame draws a dark probe stroke from base to tip on a light frame,
// at working resolution and again at original resolution.
func probeFrame(tip, base image.Point) (resized, org gocv.Mat) {
	dark := color.RGBA{R: 40, G: 40, B: 40, A: 255}
	resized = uniformFrame(200)
	gocv.Line(&resized, base, tip, dark, 3)

	org = gocv.NewMatWithSizeFromScalar(gocv.NewScalar(200, 0, 0, 0), 1500, 2000, gocv.MatTypeCV8U)
	gocv.Line(&org, base.Mul(2), tip.Mul(2), dark, 6)
	return resized, org
}

func fullMask() gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 0, 0, 0), 750, 1000, gocv.MatTypeCV8U)
}

func newTestDetector() *probe.Detector {
	return probe.NewDetector("SN0001", resizedSize, probe.DefaultConfig())
}

func TestFirstCompareWeakSignal(t *testing.T) {
	det := newTestDetector()
	pp := NewPrevFrameProcessor(det, originalSize, resizedSize, DefaultParams())

	curr := uniformFrame(200)
	defer curr.Close()
	prev := uniformFrame(200)
	defer prev.Close()
	mask := fullMask()
	defer mask.Close()
	org := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(200, 0, 0, 0), 1500, 2000, gocv.MatTypeCV8U)
	defer org.Close()

	require.False(t, pp.FirstCompare(curr, prev, mask, org))
	require.False(t, det.Acquired())
}

func TestFirstCompareDetectsAppearingProbe(t *testing.T) {
	det := newTestDetector()
	pp := NewPrevFrameProcessor(det, originalSize, resizedSize, DefaultParams())

	prev := uniformFrame(200)
	defer prev.Close()
	curr, org := probeFrame(image.Pt(400, 100), image.Pt(100, 700))
	defer curr.Close()
	defer org.Close()
	mask := fullMask()
	defer mask.Close()

	require.True(t, pp.FirstCompare(curr, prev, mask, org))
	require.True(t, det.Acquired())
	require.Equal(t, 117, det.Angle)
	require.InDelta(t, 400, float64(det.Tip.X), 10)
	require.InDelta(t, 100, float64(det.Tip.Y), 10)
}

func TestUpdateCompareWeakSignalKeepsState(t *testing.T) {
	det := newTestDetector()
	pp := NewPrevFrameProcessor(det, originalSize, resizedSize, DefaultParams())

	prev := uniformFrame(200)
	defer prev.Close()
	curr, org := probeFrame(image.Pt(400, 100), image.Pt(100, 700))
	defer curr.Close()
	defer org.Close()
	mask := fullMask()
	defer mask.Close()
	require.True(t, pp.FirstCompare(curr, prev, mask, org))
	tip, angle := det.Tip, det.Angle

	// Probe holds still: consecutive frames are identical, the strategy
	// yields nothing and the lock is untouched.
	require.False(t, pp.UpdateCompare(curr, curr, mask, org))
	require.Equal(t, tip, det.Tip)
	require.Equal(t, angle, det.Angle)
}

func TestUpdateCompareCropSearchTerminates(t *testing.T) {
	det := newTestDetector()
	pp := NewPrevFrameProcessor(det, originalSize, resizedSize, DefaultParams())

	mask := fullMask()
	defer mask.Close()
	blank := uniformFrame(200)
	defer blank.Close()
	prev, prevOrg := probeFrame(image.Pt(400, 100), image.Pt(100, 700))
	defer prev.Close()
	defer prevOrg.Close()
	require.True(t, pp.FirstCompare(prev, blank, mask, prevOrg))
	tip, angle := det.Tip, det.Angle

	// The probe vanished; a small unrelated blob keeps the diff above the
	// weak-signal floor but offers no line. The crop search must exhaust
	// the frame and fail instead of looping.
	curr := uniformFrame(200)
	defer curr.Close()
	gocv.Rectangle(&curr, image.Rect(800, 600, 815, 615), color.RGBA{R: 40, G: 40, B: 40, A: 255}, -1)

	require.False(t, pp.UpdateCompare(curr, prev, mask, prevOrg))
	require.Equal(t, tip, det.Tip)
	require.Equal(t, angle, det.Angle)
}

func TestUpdateCompareTracksMotion(t *testing.T) {
	det := newTestDetector()
	pp := NewPrevFrameProcessor(det, originalSize, resizedSize, DefaultParams())

	mask := fullMask()
	defer mask.Close()

	blank := uniformFrame(200)
	defer blank.Close()
	prev, prevOrg := probeFrame(image.Pt(400, 100), image.Pt(100, 700))
	defer prev.Close()
	defer prevOrg.Close()
	require.True(t, pp.FirstCompare(prev, blank, mask, prevOrg))

	curr, org := probeFrame(image.Pt(410, 110), image.Pt(110, 710))
	defer curr.Close()
	defer org.Close()

	require.True(t, pp.UpdateCompare(curr, prev, mask, org))
	require.InDelta(t, 410, float64(det.Tip.X), 10)
	require.InDelta(t, 110, float64(det.Tip.Y), 10)
	require.True(t, det.HasTipOriginal)
	require.InDelta(t, 820, float64(det.TipOriginal.X), 25)
	require.InDelta(t, 220, float64(det.TipOriginal.Y), 25)
}
