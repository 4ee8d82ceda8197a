package probe

import "image"

// Direction is the eight-way compass classification of the probe's tip
// relative to its base. The fine-tip stage uses it to pick the extremal
// corner consistent with the probe's pointing direction.
type Direction int

const (
	DirUnknown Direction = iota
	DirN
	DirNE
	DirE
	DirSE
	DirS
	DirSW
	DirW
	DirNW
)

func (d Direction) String() string {
	switch d {
	case DirN:
		return "N"
	case DirNE:
		return "NE"
	case DirE:
		return "E"
	case DirSE:
		return "SE"
	case DirS:
		return "S"
	case DirSW:
		return "SW"
	case DirW:
		return "W"
	case DirNW:
		return "NW"
	default:
		return "Unknown"
	}
}

// ClassifyDirection buckets the tip-minus-base displacement into a compass
// octant. Coincident points yield DirUnknown.
func ClassifyDirection(tip, base image.Point) Direction {
	dx := tip.X - base.X
	dy := tip.Y - base.Y

	switch {
	case dy > 0 && dx > 0:
		return DirSE
	case dy > 0 && dx < 0:
		return DirSW
	case dy > 0:
		return DirS
	case dy < 0 && dx > 0:
		return DirNE
	case dy < 0 && dx < 0:
		return DirNW
	case dy < 0:
		return DirN
	case dx > 0:
		return DirE
	case dx < 0:
		return DirW
	default:
		return DirUnknown
	}
}
