// Package config exposes the empirically tuned detection constants as
// configuration. The defaults reproduce the values the pipeline was tuned
// with; they are rig- and lens-dependent, so every one can be overridden
// from the environment (or a .env file) with PROBETRACK_-prefixed keys.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Tuning holds the rig-dependent detection constants.
type Tuning struct {
	// Working resolution the coarse search runs at.
	FrameWidth  int
	FrameHeight int

	// Angle discretization step in degrees for the orientation bins.
	AngleStep int

	// Minimum tip/base separation in pixels; closer pairs are rejected.
	MinSeparation float64

	// Adaptive crop search: initial margin and growth increment in pixels.
	CropInit int
	CropGrow int

	// Frame differencing: maximum-intensity floor below which the diff is
	// considered to carry no motion, and the fraction of the maximum used
	// to suppress shadows before binarization.
	WeakSignalFloor float64
	ShadowFraction  float64

	// Line-segment count above which a frame is treated as a plain image.
	MaxLineCount int

	// Debug enables debug-level logging in the detection packages.
	Debug bool
}

// Defaults returns the tuning the pipeline was calibrated with.
func Defaults() Tuning {
	return Tuning{
		FrameWidth:      1000,
		FrameHeight:     750,
		AngleStep:       9,
		MinSeparation:   50,
		CropInit:        50,
		CropGrow:        100,
		WeakSignalFloor: 20,
		ShadowFraction:  0.5,
		MaxLineCount:    30,
		Debug:           false,
	}
}

// Load reads tuning overrides from the environment. A .env file in the
// working directory is honored when present; a missing file is not an error.
func Load() Tuning {
	_ = godotenv.Load()

	t := Defaults()
	t.FrameWidth = envInt("PROBETRACK_FRAME_WIDTH", t.FrameWidth)
	t.FrameHeight = envInt("PROBETRACK_FRAME_HEIGHT", t.FrameHeight)
	t.AngleStep = envInt("PROBETRACK_ANGLE_STEP", t.AngleStep)
	t.MinSeparation = envFloat("PROBETRACK_MIN_SEPARATION", t.MinSeparation)
	t.CropInit = envInt("PROBETRACK_CROP_INIT", t.CropInit)
	t.CropGrow = envInt("PROBETRACK_CROP_GROW", t.CropGrow)
	t.WeakSignalFloor = envFloat("PROBETRACK_WEAK_SIGNAL_FLOOR", t.WeakSignalFloor)
	t.ShadowFraction = envFloat("PROBETRACK_SHADOW_FRACTION", t.ShadowFraction)
	t.MaxLineCount = envInt("PROBETRACK_MAX_LINE_COUNT", t.MaxLineCount)
	t.Debug = envBool("PROBETRACK_DEBUG", t.Debug)
	return t
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
