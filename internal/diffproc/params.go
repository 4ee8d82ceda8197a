// Package diffproc implements the two difference-image detection
// strategies: consecutive-frame comparison and persistent-background
// comparison, plus the adaptive crop-growing search both share.
package diffproc

// Params holds the tuned thresholds for both comparison strategies.
// These are rig- and lens-dependent; see internal/config for environment
// overrides.
type Params struct {
	// WeakSignalFloor is the maximum-intensity floor for the frame
	// difference: below it the diff carries no usable motion.
	WeakSignalFloor float64
	// ShadowFraction of the diff maximum used to zero out shadow pixels
	// before Otsu binarization.
	ShadowFraction float64

	// CropInit is the initial crop margin around the previous tip/base;
	// CropGrow is added on every failed attempt until the crop covers the
	// frame.
	CropInit int
	CropGrow int
	// BoundaryBuffer rejects detections landing this close to the crop's
	// own edge (the crop clipped the probe and must grow).
	BoundaryBuffer int

	// Minimum Hough line length grows with the crop: base + step per
	// growth iteration. The background strategy uses a longer base since
	// its diff images are noisier.
	PrevMinLineBase int
	BgMinLineBase   int
	MinLineStep     int

	// Contour-area gates for first and update line searches.
	FirstContourThresh  float64
	UpdateContourThresh float64

	// Hough settings for the full-frame first detection.
	FirstMinLineLength int
	FirstMaxLineGap    int
	// Maximum line gaps for the update searches.
	PrevUpdateMaxLineGap int
	BgUpdateMaxLineGap   int

	// Adaptive threshold window for binarizing frames in the background
	// strategy.
	AdaptiveBlock int
	AdaptiveC     float32

	// Background maintenance: the tip-base segment is extended by
	// BgLineExtension pixels on both ends and erased with a stroke of
	// BgLineThickness.
	BgLineExtension int
	BgLineThickness int

	// Fine-tip patch radii in original-resolution pixels.
	PrevFinePatchRadius int
	BgFinePatchRadius   int
}

// DefaultParams returns the calibrated strategy parameters.
func DefaultParams() Params {
	return Params{
		WeakSignalFloor:      20,
		ShadowFraction:       0.5,
		CropInit:             50,
		CropGrow:             100,
		BoundaryBuffer:       5,
		PrevMinLineBase:      40,
		BgMinLineBase:        60,
		MinLineStep:          5,
		FirstContourThresh:   50,
		UpdateContourThresh:  20,
		FirstMinLineLength:   130,
		FirstMaxLineGap:      50,
		PrevUpdateMaxLineGap: 10,
		BgUpdateMaxLineGap:   0,
		AdaptiveBlock:        17,
		AdaptiveC:            2,
		BgLineExtension:      10,
		BgLineThickness:      10,
		PrevFinePatchRadius:  25,
		BgFinePatchRadius:    20,
	}
}

// WithCropSearch returns a copy with the crop search margins replaced.
func (p Params) WithCropSearch(init, grow int) Params {
	p.CropInit = init
	p.CropGrow = grow
	return p
}

// WithWeakSignal returns a copy with the weak-signal thresholds replaced.
func (p Params) WithWeakSignal(floor, shadowFraction float64) Params {
	p.WeakSignalFloor = floor
	p.ShadowFraction = shadowFraction
	return p
}
