package probe

import "math"

// Bins discretizes line orientation into step-degree buckets over [0, 180].
// Raw Hough segment angles are snapped to the nearest bin so that consensus
// voting compares bucket values instead of raw floating angles. The wrap
// table treats 0 and 180 as adjacent, since both describe the same
// undirected line orientation.
type Bins struct {
	Step    int
	values  []int
	wrapped []int
}

// NewBins creates the angle bins for the given step in degrees.
func NewBins(step int) Bins {
	if step <= 0 {
		step = 9
	}
	var values []int
	for a := 0; a <= 180; a += step {
		values = append(values, a)
	}

	wrapped := make([]int, 0, len(values)+2)
	wrapped = append(wrapped, 180)
	wrapped = append(wrapped, values...)
	wrapped = append(wrapped, 0)

	return Bins{Step: step, values: values, wrapped: wrapped}
}

// Snap returns the bin value nearest to the given angle in degrees.
func (b Bins) Snap(angle float64) int {
	best := b.values[0]
	bestDist := math.Abs(angle - float64(best))
	for _, v := range b.values[1:] {
		if d := math.Abs(angle - float64(v)); d < bestDist {
			bestDist = d
			best = v
		}
	}
	return best
}

// Neighbors returns the bin together with its two adjacent bins, wrapping
// 180 back onto 0. Returns nil if bin is not a valid bin value.
func (b Bins) Neighbors(bin int) []int {
	for i, v := range b.values {
		if v == bin {
			return b.wrapped[i : i+3]
		}
	}
	return nil
}

// SegmentAngle returns the orientation of the segment (x1,y1)-(x2,y2)
// normalized to [0, 180) degrees.
func SegmentAngle(x1, y1, x2, y2 int) float64 {
	deg := math.Atan2(float64(y2-y1), float64(x2-x1)) * 180 / math.Pi
	deg += 180
	return math.Mod(deg, 180)
}
