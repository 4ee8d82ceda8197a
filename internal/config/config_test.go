package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	d := Defaults()
	require.Equal(t, 1000, d.FrameWidth)
	require.Equal(t, 750, d.FrameHeight)
	require.Equal(t, 9, d.AngleStep)
	require.InDelta(t, 50, d.MinSeparation, 1e-9)
	require.Equal(t, 50, d.CropInit)
	require.Equal(t, 100, d.CropGrow)
	require.InDelta(t, 20, d.WeakSignalFloor, 1e-9)
	require.InDelta(t, 0.5, d.ShadowFraction, 1e-9)
	require.Equal(t, 30, d.MaxLineCount)
	require.False(t, d.Debug)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PROBETRACK_ANGLE_STEP", "10")
	t.Setenv("PROBETRACK_SHADOW_FRACTION", "0.4")
	t.Setenv("PROBETRACK_DEBUG", "true")

	tun := Load()
	require.Equal(t, 10, tun.AngleStep)
	require.InDelta(t, 0.4, tun.ShadowFraction, 1e-9)
	require.True(t, tun.Debug)
	// Untouched keys keep their defaults.
	require.Equal(t, 1000, tun.FrameWidth)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("PROBETRACK_CROP_INIT", "not-a-number")
	t.Setenv("PROBETRACK_WEAK_SIGNAL_FLOOR", "")

	tun := Load()
	require.Equal(t, 50, tun.CropInit)
	require.InDelta(t, 20, tun.WeakSignalFloor, 1e-9)
}
