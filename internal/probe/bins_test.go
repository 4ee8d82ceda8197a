package probe

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBinsSnap(t *testing.T) {
	b := NewBins(9)

	require.Equal(t, 0, b.Snap(0))
	require.Equal(t, 0, b.Snap(4))
	require.Equal(t, 9, b.Snap(5))
	require.Equal(t, 117, b.Snap(116.57))
	require.Equal(t, 180, b.Snap(179.2))
}

func TestBinsNeighborsWrap(t *testing.T) {
	b := NewBins(9)

	require.Equal(t, []int{9, 18, 27}, b.Neighbors(18))
	// 0 and 180 describe the same undirected orientation.
	require.Equal(t, []int{180, 0, 9}, b.Neighbors(0))
	require.Equal(t, []int{171, 180, 0}, b.Neighbors(180))
	require.Nil(t, b.Neighbors(13))
}

func TestSegmentAngleNormalized(t *testing.T) {
	// Endpoint order must not matter for an undirected orientation.
	a1 := SegmentAngle(100, 700, 400, 100)
	a2 := SegmentAngle(400, 100, 100, 700)
	require.InDelta(t, a1, a2, 1e-9)
	require.InDelta(t, 116.565, a1, 0.01)

	require.InDelta(t, 0, SegmentAngle(0, 0, 10, 0), 1e-9)
	require.InDelta(t, 90, SegmentAngle(5, 0, 5, 10), 1e-9)
	require.InDelta(t, 45, SegmentAngle(0, 0, 10, 10), 1e-9)
}
