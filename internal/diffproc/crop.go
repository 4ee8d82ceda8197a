package diffproc

import (
	"image"

	"gocv.io/x/gocv"

	"github.com/AllenNeuralDynamics/parallax-sub001/internal/finetip"
	"github.com/AllenNeuralDynamics/parallax-sub001/internal/logging"
	"github.com/AllenNeuralDynamics/parallax-sub001/internal/probe"
	"github.com/AllenNeuralDynamics/parallax-sub001/pkg/geometry"
)

// searchGrowingCrop re-locates the probe near its last known position. It
// crops the diff image around the previous tip/base with an expanding
// margin and retries until the detector accepts, raising the minimum line
// length with the crop so that larger windows demand stronger evidence.
//
// A detection landing on the crop's own edge means the window clipped the
// probe; it is discarded and the crop grows. The detector's state is
// refreshed by each accepted attempt, so a boundary-rejected hit still
// re-centers the next window. With a reticle zone installed, a detection
// whose tip and base both fall inside it is a reticle edge, not a probe,
// and fails the whole search.
func searchGrowingCrop(det *probe.Detector, diff, mask gocv.Mat, frame geometry.Size, p Params,
	minLineBase, maxLineGap int, reticleZone *gocv.Mat) (geometry.CropRegion, bool) {

	var region geometry.CropRegion
	for margin := p.CropInit; ; margin += p.CropGrow {
		region = geometry.CropAround(det.Tip, det.Base, margin, frame)
		view := diff.Region(region.Rect())
		ok := det.Update(view, mask, probe.SearchOptions{
			ContourThresh: p.UpdateContourThresh,
			MinLineLength: minLineBase + (margin/p.CropInit)*p.MinLineStep,
			MaxLineGap:    maxLineGap,
			OffsetX:       region.Left,
			OffsetY:       region.Top,
		})
		view.Close()

		if ok && region.OnBoundary(det.Tip, p.BoundaryBuffer) {
			logging.Debugf("probe %s: tip %v on crop boundary, growing", det.SN, det.Tip)
			ok = false
		}
		if ok && reticleZone != nil && !reticleZone.Empty() &&
			inZone(*reticleZone, det.Tip) && inZone(*reticleZone, det.Base) {
			logging.Debugf("probe %s: detection inside reticle zone", det.SN)
			return region, false
		}
		if ok {
			return region, true
		}
		if margin >= frame.MaxDim() {
			return region, false
		}
	}
}

func inZone(zone gocv.Mat, p image.Point) bool {
	if p.X < 0 || p.Y < 0 || p.X >= zone.Cols() || p.Y >= zone.Rows() {
		return false
	}
	return zone.GetUCharAt(p.Y, p.X) > 0
}

// refineTip maps the detector's resized-frame tip into the original frame,
// crops a patch of the original-resolution grayscale image around it and
// runs the corner refinement. On success the sub-pixel tip is stored on
// the detector; with register set, the resized tip is also re-anchored to
// the refined point so the next crop search starts from it.
func refineTip(det *probe.Detector, org gocv.Mat, radius int, original, resized geometry.Size, register bool) bool {
	tipOrg := geometry.ScaleToOriginal(det.Tip, original, resized)
	baseOrg := geometry.ScaleToOriginal(det.Base, original, resized)

	region := geometry.CropAround(tipOrg, tipOrg, radius, original)
	patch := org.Region(region.Rect())
	defer patch.Close()

	tip, ok := finetip.Refine(patch, tipOrg, baseOrg, region.Left, region.Top, det.TipDirection)
	if !ok {
		logging.Debugf("probe %s: fine tip refinement failed near %v", det.SN, tipOrg)
		return false
	}

	det.TipOriginal = tip
	det.HasTipOriginal = true
	if register {
		det.Tip = geometry.ScaleToResized(tip, original, resized)
	}
	return true
}
