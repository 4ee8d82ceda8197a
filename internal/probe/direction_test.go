package probe

import (
	"image"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyDirection(t *testing.T) {
	base := image.Pt(100, 100)

	cases := []struct {
		tip  image.Point
		want Direction
	}{
		{image.Pt(100, 50), DirN},
		{image.Pt(150, 50), DirNE},
		{image.Pt(150, 100), DirE},
		{image.Pt(150, 150), DirSE},
		{image.Pt(100, 150), DirS},
		{image.Pt(50, 150), DirSW},
		{image.Pt(50, 100), DirW},
		{image.Pt(50, 50), DirNW},
		{image.Pt(100, 100), DirUnknown},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, ClassifyDirection(tc.tip, base), "tip %v", tc.tip)
	}
}

func TestDirectionString(t *testing.T) {
	require.Equal(t, "NE", DirNE.String())
	require.Equal(t, "Unknown", DirUnknown.String())
}
