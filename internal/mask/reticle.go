package mask

import (
	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/floats"
)

const (
	histBins = 256
	// smoothWindow is the moving-average width applied to the histogram
	// before peak finding, suppressing single-bin noise.
	smoothWindow = 5
	// peakFraction of the total pixel count a local maximum must exceed to
	// count as a genuine intensity mode.
	peakFraction = 0.01
)

// detectReticle classifies reticle presence from the intensity histogram of
// the processed frame. A plain working area is close to unimodal; the dark
// grid of a calibration reticle adds a second mode, so two or more strong
// smoothed peaks imply a reticle pattern is visible.
func detectReticle(gray gocv.Mat) bool {
	hist := intensityHistogram(gray)
	smoothed := smooth(hist, smoothWindow)

	minCount := peakFraction * float64(gray.Cols()*gray.Rows())
	return countPeaks(smoothed, minCount) >= 2
}

// intensityHistogram computes the 256-bin histogram of a grayscale Mat.
func intensityHistogram(gray gocv.Mat) []float64 {
	histMat := gocv.NewMat()
	defer histMat.Close()
	noMask := gocv.NewMat()
	defer noMask.Close()

	gocv.CalcHist([]gocv.Mat{gray}, []int{0}, noMask, &histMat, []int{histBins}, []float64{0, 256}, false)

	hist := make([]float64, histBins)
	for i := 0; i < histBins && i < histMat.Rows(); i++ {
		hist[i] = float64(histMat.GetFloatAt(i, 0))
	}
	return hist
}

// smooth applies a centered moving average of the given window width.
func smooth(values []float64, window int) []float64 {
	if window < 2 {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}

	half := window / 2
	out := make([]float64, len(values))
	for i := range values {
		lo := i - half
		if lo < 0 {
			lo = 0
		}
		hi := i + half + 1
		if hi > len(values) {
			hi = len(values)
		}
		out[i] = floats.Sum(values[lo:hi]) / float64(hi-lo)
	}
	return out
}

// countPeaks counts local maxima whose smoothed count exceeds minCount.
func countPeaks(values []float64, minCount float64) int {
	peaks := 0
	for i := 1; i < len(values)-1; i++ {
		if values[i] <= minCount {
			continue
		}
		if values[i] > values[i-1] && values[i] >= values[i+1] {
			peaks++
			// Skip the plateau so a flat-topped mode counts once.
			for i+1 < len(values)-1 && values[i+1] == values[i] {
				i++
			}
		}
	}
	return peaks
}
