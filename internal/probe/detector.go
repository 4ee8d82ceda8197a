// Package probe maintains per-probe orientation state and locates the
// probe's tip and base in binary difference images using line-segment
// detection with angle-bin consensus.
package probe

import (
	"image"
	"image/color"
	"math"
	"sort"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat"

	"github.com/AllenNeuralDynamics/parallax-sub001/internal/logging"
	"github.com/AllenNeuralDynamics/parallax-sub001/pkg/geometry"
)

// AngleUnset marks a detector that has not yet acquired the probe.
const AngleUnset = -1

// Config holds the detector's tuned thresholds.
type Config struct {
	// AngleStep is the orientation bin width in degrees.
	AngleStep int
	// MinSeparation is the minimum tip/base distance in pixels; candidate
	// pairs closer than this are treated as a failed detection.
	MinSeparation float64
	// MaxLineCount rejects a frame outright when the line-segment transform
	// returns this many segments or more (flat or plain image heuristic).
	MaxLineCount int
}

// DefaultConfig returns the calibrated detector thresholds.
func DefaultConfig() Config {
	return Config{
		AngleStep:     9,
		MinSeparation: 50,
		MaxLineCount:  30,
	}
}

// SearchOptions tunes a single line search. Offsets translate points found
// in a cropped sub-image back into full-frame coordinates.
type SearchOptions struct {
	ContourThresh float64 // minimum area of the largest contour
	MinLineLength int
	MaxLineGap    int
	OffsetX       int
	OffsetY       int
}

// Detector tracks one probe's angle, tip and base across frames. All public
// methods return a boolean; on failure previously stored state is left
// untouched so tracking resumes on a later frame without re-initialization.
type Detector struct {
	SN string

	// Angle is the canonical orientation bin in degrees, AngleUnset until
	// the first successful detection.
	Angle int
	// Tip and Base are in resized-frame coordinates.
	Tip  image.Point
	Base image.Point
	// TipOriginal is the sub-pixel refined tip in original-frame
	// coordinates; valid only when HasTipOriginal is set.
	TipOriginal    image.Point
	HasTipOriginal bool
	// TipDirection is the compass octant the tip points towards.
	TipDirection Direction

	frameSize geometry.Size
	bins      Bins
	cfg       Config
	gradients []int
}

// NewDetector creates a detector for the probe with the given serial number
// operating at the resized working resolution.
func NewDetector(sn string, frameSize geometry.Size, cfg Config) *Detector {
	if cfg.AngleStep <= 0 {
		cfg = DefaultConfig()
	}
	return &Detector{
		SN:           sn,
		Angle:        AngleUnset,
		TipDirection: DirS,
		frameSize:    frameSize,
		bins:         NewBins(cfg.AngleStep),
		cfg:          cfg,
	}
}

// Bins exposes the detector's angle discretization.
func (d *Detector) Bins() Bins { return d.bins }

// Acquired reports whether the detector has locked onto an orientation.
func (d *Detector) Acquired() bool { return d.Angle != AngleUnset }

// FirstDetect runs a full line search over diff and, on success, stores the
// canonical angle (median of snapped segment orientations), tip, base and
// tip direction. The mask resolves which endpoint is the tip.
func (d *Detector) FirstDetect(diff, mask gocv.Mat, opts SearchOptions) bool {
	if !d.contourPrefilter(&diff, opts.ContourThresh, true, 1) {
		return false
	}

	angle, highest, lowest, ok := d.houghFirst(diff, opts.MinLineLength, opts.MaxLineGap)
	if !ok {
		return false
	}

	d.Angle = angle
	d.Tip, d.Base = d.resolveTipBase(mask, highest, lowest)
	d.TipDirection = ClassifyDirection(d.Tip, d.Base)
	d.Tip = d.Tip.Add(image.Pt(opts.OffsetX, opts.OffsetY))
	d.Base = d.Base.Add(image.Pt(opts.OffsetX, opts.OffsetY))
	logging.Debugf("probe %s: first detect angle=%d tip=%v base=%v dir=%s",
		d.SN, d.Angle, d.Tip, d.Base, d.TipDirection)
	return true
}

// Update runs a narrow-angle line search restricted to diff (typically a
// crop) and refreshes tip, base and angle. Only segments snapping into the
// current angle bin or one of its two neighbors are considered, which
// tolerates slow probe rotation while rejecting unrelated edges.
func (d *Detector) Update(diff, mask gocv.Mat, opts SearchOptions) bool {
	if !d.contourPrefilter(&diff, opts.ContourThresh, false, 1) {
		logging.Debugf("probe %s: update contour prefilter failed", d.SN)
		return false
	}

	angle, highest, lowest, ok := d.houghUpdate(diff, opts.MinLineLength, opts.MaxLineGap)
	if !ok {
		logging.Debugf("probe %s: update line search failed", d.SN)
		return false
	}

	highest = highest.Add(image.Pt(opts.OffsetX, opts.OffsetY))
	lowest = lowest.Add(image.Pt(opts.OffsetX, opts.OffsetY))

	if angle == d.Angle {
		// Unchanged orientation: assign roles from the known direction,
		// which is cheaper and avoids tip/base flicker.
		d.Tip, d.Base = tipBaseFromDirection(highest, lowest, d.TipDirection)
	} else {
		d.Angle = angle
		d.Tip, d.Base = d.resolveTipBase(mask, highest, lowest)
		d.TipDirection = ClassifyDirection(d.Tip, d.Base)
	}
	return true
}

// contourPrefilter rejects diff when its largest contour is below areaThresh
// and optionally erases speckle contours in place.
func (d *Detector) contourPrefilter(img *gocv.Mat, areaThresh float64, removeNoise bool, noiseThresh float64) bool {
	contours := gocv.FindContours(*img, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	if contours.Size() == 0 {
		return false
	}

	largest := 0.0
	for i := 0; i < contours.Size(); i++ {
		if a := gocv.ContourArea(contours.At(i)); a > largest {
			largest = a
		}
	}
	if largest < areaThresh {
		logging.Debugf("probe %s: largest contour %.0f below threshold %.0f", d.SN, largest, areaThresh)
		return false
	}

	if removeNoise {
		black := color.RGBA{}
		for i := 0; i < contours.Size(); i++ {
			if gocv.ContourArea(contours.At(i)) < noiseThresh*noiseThresh {
				gocv.DrawContours(img, contours, i, black, -1)
			}
		}
	}
	return true
}

// houghFirst runs the full line-segment transform and takes the median of
// all snapped orientations as the canonical angle.
func (d *Detector) houghFirst(img gocv.Mat, minLineLength, maxLineGap int) (angle int, highest, lowest image.Point, ok bool) {
	segments := d.lineSegments(img, 100, minLineLength, maxLineGap)
	if segments == nil {
		return 0, highest, lowest, false
	}

	d.gradients = d.gradients[:0]
	maxY, minY := 0, img.Rows()
	for _, s := range segments {
		d.gradients = append(d.gradients, d.bins.Snap(SegmentAngle(s[0], s[1], s[2], s[3])))
		highest, lowest, maxY, minY = trackExtremes(s, highest, lowest, maxY, minY)
	}

	if len(d.gradients) == 0 {
		return 0, highest, lowest, false
	}
	if geometry.PixelDistance(highest, lowest) < d.cfg.MinSeparation {
		logging.Debugf("probe %s: tip/base too close %v %v", d.SN, highest, lowest)
		return 0, highest, lowest, false
	}

	return d.bins.Snap(medianOf(d.gradients)), highest, lowest, true
}

// houghUpdate runs a localized line-segment transform keeping only segments
// within the neighbor-bin window; the mode of the survivors becomes the new
// canonical angle.
func (d *Detector) houghUpdate(img gocv.Mat, minLineLength, maxLineGap int) (angle int, highest, lowest image.Point, ok bool) {
	neighbors := d.bins.Neighbors(d.Angle)
	if neighbors == nil {
		return 0, highest, lowest, false
	}

	segments := d.lineSegments(img, 50, minLineLength, maxLineGap)
	if segments == nil {
		return 0, highest, lowest, false
	}

	d.gradients = d.gradients[:0]
	maxY, minY := 0, img.Rows()
	for _, s := range segments {
		snapped := d.bins.Snap(SegmentAngle(s[0], s[1], s[2], s[3]))
		if !containsInt(neighbors, snapped) {
			continue
		}
		d.gradients = append(d.gradients, snapped)
		highest, lowest, maxY, minY = trackExtremes(s, highest, lowest, maxY, minY)
	}

	if len(d.gradients) == 0 {
		return 0, highest, lowest, false
	}
	if geometry.PixelDistance(highest, lowest) < d.cfg.MinSeparation {
		logging.Debugf("probe %s: tip/base too close %v %v", d.SN, highest, lowest)
		return 0, highest, lowest, false
	}

	return modeOf(d.gradients), highest, lowest, true
}

// lineSegments runs HoughLinesP and unpacks the result, or returns nil when
// no coherent probe can be present (no lines, or too many).
func (d *Detector) lineSegments(img gocv.Mat, votes, minLineLength, maxLineGap int) [][4]int {
	lines := gocv.NewMat()
	defer lines.Close()
	gocv.HoughLinesPWithParams(img, &lines, 1, math.Pi/180, votes,
		float32(minLineLength), float32(maxLineGap))

	n := lines.Rows()
	if n == 0 {
		return nil
	}
	if n >= d.cfg.MaxLineCount {
		logging.Debugf("probe %s: %d segments detected, possibly plain image", d.SN, n)
		return nil
	}

	segments := make([][4]int, n)
	for i := 0; i < n; i++ {
		v := lines.GetVeciAt(i, 0)
		segments[i] = [4]int{int(v[0]), int(v[1]), int(v[2]), int(v[3])}
	}
	return segments
}

// resolveTipBase decides which endpoint is the tip using the mask's distance
// transform: the probe's free end sits nearer open space, so the point
// closer to a mask boundary is the tip and the farther one the base.
func (d *Detector) resolveTipBase(mask gocv.Mat, p1, p2 image.Point) (tip, base image.Point) {
	work := mask
	owned := false
	if mask.Empty() {
		work = gocv.Zeros(d.frameSize.Height, d.frameSize.Width, gocv.MatTypeCV8U)
		owned = true
	}
	if owned {
		defer work.Close()
	}

	bordered := gocv.NewMat()
	defer bordered.Close()
	gocv.CopyMakeBorder(work, &bordered, 1, 1, 1, 1, gocv.BorderConstant, color.RGBA{})

	dist := gocv.NewMat()
	defer dist.Close()
	labels := gocv.NewMat()
	defer labels.Close()
	gocv.DistanceTransform(bordered, &dist, &labels, gocv.DistL2, gocv.DistanceMask3, gocv.DistanceLabelCComp)

	d1 := distanceAt(dist, p1)
	d2 := distanceAt(dist, p2)
	logging.Debugf("probe %s: boundary distance p1=%.1f p2=%.1f", d.SN, d1, d2)
	if d1 >= d2 {
		return p2, p1
	}
	return p1, p2
}

// distanceAt samples the bordered distance transform at a frame coordinate.
func distanceAt(dist gocv.Mat, p image.Point) float64 {
	y, x := p.Y+1, p.X+1
	if y < 0 || y >= dist.Rows() || x < 0 || x >= dist.Cols() {
		return 0
	}
	return float64(dist.GetFloatAt(y, x))
}

// tipBaseFromDirection assigns tip/base roles from the already-known probe
// direction: south- and west-pointing probes have their tip at the lowest
// detected point.
func tipBaseFromDirection(highest, lowest image.Point, dir Direction) (tip, base image.Point) {
	switch dir {
	case DirS, DirW, DirSW, DirSE:
		return lowest, highest
	default:
		return highest, lowest
	}
}

// trackExtremes folds a segment's endpoints into the running topmost and
// bottommost points.
func trackExtremes(s [4]int, highest, lowest image.Point, maxY, minY int) (image.Point, image.Point, int, int) {
	x2, y2, x1, y1 := s[0], s[1], s[2], s[3]
	if y1 > maxY {
		maxY = y1
		lowest = image.Pt(x1, y1)
	}
	if y2 > maxY {
		maxY = y2
		lowest = image.Pt(x2, y2)
	}
	if y1 < minY {
		minY = y1
		highest = image.Pt(x1, y1)
	}
	if y2 <= minY {
		minY = y2
		highest = image.Pt(x2, y2)
	}
	return highest, lowest, maxY, minY
}

func containsInt(values []int, v int) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

// medianOf returns the median of the snapped bin values. The median of an
// even count can land between two bins; callers snap it back.
func medianOf(values []int) float64 {
	xs := make([]float64, len(values))
	for i, v := range values {
		xs[i] = float64(v)
	}
	sort.Float64s(xs)
	return stat.Quantile(0.5, stat.Empirical, xs, nil)
}

// modeOf returns the most frequent bin value (majority vote; update samples
// are sparser than first-detection samples, so the mode is more robust than
// the median here).
func modeOf(values []int) int {
	xs := make([]float64, len(values))
	for i, v := range values {
		xs[i] = float64(v)
	}
	sort.Float64s(xs)
	mode, _ := stat.Mode(xs, nil)
	return int(mode)
}
