package finetip

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/AllenNeuralDynamics/parallax-sub001/internal/probe"
	"github.com/AllenNeuralDynamics/parallax-sub001/pkg/geometry"
)

func TestRefineEmptyPatch(t *testing.T) {
	empty := gocv.NewMat()
	defer empty.Close()

	coarse := image.Pt(25, 25)
	tip, ok := Refine(empty, coarse, image.Pt(25, 0), 0, 0, probe.DirS)
	require.False(t, ok)
	require.Equal(t, coarse, tip)
}

func TestRefineCleanTip(t *testing.T) {
	// A white patch with one dark stroke entering from the top edge and
	// ending inside: an unambiguous south-pointing tip.
	patch := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(230, 0, 0, 0), 50, 50, gocv.MatTypeCV8U)
	defer patch.Close()
	gocv.Line(&patch, image.Pt(22, 0), image.Pt(25, 30), color.RGBA{A: 255}, 8)

	coarse := image.Pt(25, 30)
	tip, ok := Refine(patch, coarse, image.Pt(22, 0), 0, 0, probe.DirS)
	require.True(t, ok)
	require.Less(t, geometry.PixelDistance(tip, coarse), 15.0)
	// The refined tip is pushed along the probe axis, never pulled back
	// above the stroke entry.
	require.Greater(t, tip.Y, 10)
}

func TestRefineRejectsAmbiguousPatch(t *testing.T) {
	// Two separate dark structures touch the patch boundary; the tip
	// cannot be attributed to either.
	patch := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(230, 0, 0, 0), 50, 50, gocv.MatTypeCV8U)
	defer patch.Close()
	black := color.RGBA{A: 255}
	gocv.Rectangle(&patch, image.Rect(0, 10, 10, 40), black, -1)
	gocv.Rectangle(&patch, image.Rect(40, 10, 50, 40), black, -1)

	coarse := image.Pt(25, 25)
	tip, ok := Refine(patch, coarse, image.Pt(25, 0), 0, 0, probe.DirS)
	require.False(t, ok)
	require.Equal(t, coarse, tip)
}

func TestRefineAppliesOffsets(t *testing.T) {
	patch := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(230, 0, 0, 0), 50, 50, gocv.MatTypeCV8U)
	defer patch.Close()
	gocv.Line(&patch, image.Pt(22, 0), image.Pt(25, 30), color.RGBA{A: 255}, 8)

	// Same patch placed at (400, 200) in the original frame.
	coarse := image.Pt(425, 230)
	tip, ok := Refine(patch, coarse, image.Pt(422, 200), 400, 200, probe.DirS)
	require.True(t, ok)
	require.Less(t, geometry.PixelDistance(tip, coarse), 15.0)
}

func TestDirectionExtremalComparisons(t *testing.T) {
	a, b := image.Pt(10, 10), image.Pt(20, 20)

	require.True(t, better(b, a, probe.DirS))
	require.True(t, better(a, b, probe.DirN))
	require.True(t, better(b, a, probe.DirE))
	require.True(t, better(a, b, probe.DirW))
	require.True(t, better(b, a, probe.DirSE))
	require.True(t, better(a, b, probe.DirNW))
	// NE favors small y-x, SW large y-x.
	require.True(t, better(image.Pt(30, 5), image.Pt(5, 30), probe.DirNE))
	require.True(t, better(image.Pt(5, 30), image.Pt(30, 5), probe.DirSW))
}
