package mask

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestProcessEmptyInput(t *testing.T) {
	g := NewGenerator()
	empty := gocv.NewMat()
	defer empty.Close()

	out := g.Process(empty)
	defer out.Close()
	require.True(t, out.Empty())
	require.False(t, g.ReticleDetected())
}

func TestProcessPreservesResolution(t *testing.T) {
	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(200, 0, 0, 0), 1500, 2000, gocv.MatTypeCV8U)
	defer frame.Close()
	gocv.Rectangle(&frame, image.Rect(0, 1100, 2000, 1500), color.RGBA{A: 255}, -1)

	g := NewGenerator()
	out := g.Process(frame)
	defer out.Close()

	require.False(t, out.Empty())
	require.Equal(t, 1500, out.Rows())
	require.Equal(t, 2000, out.Cols())
	require.Equal(t, gocv.MatTypeCV8U, out.Type())
}

func TestProcessColorInput(t *testing.T) {
	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(180, 180, 180, 0), 750, 1000, gocv.MatTypeCV8UC3)
	defer frame.Close()

	g := NewGenerator()
	g.InitialDetect = true
	out := g.Process(frame)
	defer out.Close()

	require.False(t, out.Empty())
	require.Equal(t, 750, out.Rows())
	require.Equal(t, 1000, out.Cols())
}

func TestReticleClassificationCachedOnFirstFrame(t *testing.T) {
	// Left half dark, right half bright: a strongly bimodal histogram.
	bimodal := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(60, 0, 0, 0), 300, 400, gocv.MatTypeCV8U)
	defer bimodal.Close()
	gocv.Rectangle(&bimodal, image.Rect(200, 0, 400, 300), color.RGBA{R: 200, G: 200, B: 200, A: 255}, -1)

	g := NewGenerator()
	out := g.Process(bimodal)
	out.Close()
	require.True(t, g.ReticleDetected())

	// A later unimodal frame must not flip the cached classification.
	uniform := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(128, 0, 0, 0), 300, 400, gocv.MatTypeCV8U)
	defer uniform.Close()
	out = g.Process(uniform)
	out.Close()
	require.True(t, g.ReticleDetected())
}

func TestDetectReticle(t *testing.T) {
	bimodal := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(60, 0, 0, 0), 100, 100, gocv.MatTypeCV8U)
	defer bimodal.Close()
	gocv.Rectangle(&bimodal, image.Rect(50, 0, 100, 100), color.RGBA{R: 200, G: 200, B: 200, A: 255}, -1)
	require.True(t, detectReticle(bimodal))

	uniform := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(128, 0, 0, 0), 100, 100, gocv.MatTypeCV8U)
	defer uniform.Close()
	require.False(t, detectReticle(uniform))
}

func TestSmooth(t *testing.T) {
	values := []float64{0, 0, 10, 0, 0}
	smoothed := smooth(values, 5)
	require.InDelta(t, 10.0/3, smoothed[0], 1e-9)
	require.InDelta(t, 2, smoothed[2], 1e-9)

	// Window below 2 is a copy.
	require.Equal(t, values, smooth(values, 1))
}

func TestCountPeaks(t *testing.T) {
	require.Equal(t, 2, countPeaks([]float64{0, 5, 0, 0, 7, 0}, 1))
	// Peaks below the floor do not count.
	require.Equal(t, 0, countPeaks([]float64{0, 5, 0, 0, 7, 0}, 10))
	// A flat-topped mode counts once.
	require.Equal(t, 1, countPeaks([]float64{0, 5, 5, 5, 0, 0}, 1))
}
