package run

import (
	"fmt"
	"sort"
	"time"
)

// Mode selects the finish condition of a run.
type Mode string

const (
	// ModeEighthMile finishes at 201 m of accumulated distance.
	ModeEighthMile Mode = "201"
	// ModeQuarterMile finishes at 402 m of accumulated distance.
	ModeQuarterMile Mode = "402"
	// ModeZeroTo100 finishes when peak speed reaches 100 km/h.
	ModeZeroTo100 Mode = "0-100"
	// ModeZeroTo140 finishes when peak speed reaches 140 km/h.
	ModeZeroTo140 Mode = "0-140"
	// ModeSixtyTo100 finishes once the rolling sample buffer has seen both
	// a sample at or above 60 km/h and one at or above 100 km/h.
	ModeSixtyTo100 Mode = "60-100"
)

// Modes lists every supported test mode.
var Modes = []Mode{ModeEighthMile, ModeQuarterMile, ModeZeroTo100, ModeZeroTo140, ModeSixtyTo100}

// IsValidMode reports whether m is a supported test mode.
func IsValidMode(m Mode) bool {
	for _, known := range Modes {
		if m == known {
			return true
		}
	}
	return false
}

// Config holds the tuning parameters of the pipeline. Invalid configuration
// is a construction-time contract violation: Validate is called by
// NewMachine and fails fast.
type Config struct {
	// GhostSpeedKmh is the floor below which a measured speed is clamped to
	// exactly 0, so receiver jitter at a standstill never registers motion.
	GhostSpeedKmh float64

	// StartSpeedKmh and StartWindow define start detection: every sample in
	// the trailing window must show smoothed speed at or above the
	// threshold before the run starts.
	StartSpeedKmh float64
	StartWindow   time.Duration

	// SmoothingAlpha is the exponential low-pass weight of the current
	// Kalman output against the previous emitted speed.
	SmoothingAlpha float64

	// ProcessNoise and MeasurementNoise parameterise the scalar Kalman
	// filter.
	ProcessNoise     float64
	MeasurementNoise float64

	// MaxHeadingDeviationDeg is the heading-gate limit on bearing change
	// between consecutive fixes.
	MaxHeadingDeviationDeg float64

	// MaxReconstructionGap bounds the inter-sample gap within which a
	// missing speed reading may be reconstructed from the position delta.
	MaxReconstructionGap time.Duration

	// RolloutM is subtracted from milestone and finish thresholds when
	// RolloutEnabled is set. Displayed distance stays raw.
	RolloutM       float64
	RolloutEnabled bool

	// MilestonesM are the fixed capture distances, ascending.
	MilestonesM []float64

	// Mode selects the finish condition.
	Mode Mode

	// AccuracyLockM is the horizontal-accuracy bound a fix must satisfy
	// before the starting position is accepted.
	AccuracyLockM float64

	// BufferWindow bounds the rolling (time, speed) sample buffer used by
	// the start and 60-100 window heuristics.
	BufferWindow time.Duration
}

// DefaultConfig returns the canonical tuning defaults.
func DefaultConfig() Config {
	return Config{
		GhostSpeedKmh:          2.5,
		StartSpeedKmh:          3,
		StartWindow:            450 * time.Millisecond,
		SmoothingAlpha:         0.25,
		ProcessNoise:           0.1,
		MeasurementNoise:       2.0,
		MaxHeadingDeviationDeg: 25,
		MaxReconstructionGap:   1200 * time.Millisecond,
		RolloutM:               0.3048,
		RolloutEnabled:         false,
		MilestonesM:            []float64{20, 100, 201, 402},
		Mode:                   ModeQuarterMile,
		AccuracyLockM:          50,
		BufferWindow:           3 * time.Second,
	}
}

// Validate checks that the configuration values are usable.
func (c Config) Validate() error {
	if c.GhostSpeedKmh < 0 {
		return fmt.Errorf("ghost speed threshold must be non-negative, got %v", c.GhostSpeedKmh)
	}
	if c.StartSpeedKmh <= 0 {
		return fmt.Errorf("start speed threshold must be positive, got %v", c.StartSpeedKmh)
	}
	if c.StartWindow <= 0 {
		return fmt.Errorf("start window must be positive, got %v", c.StartWindow)
	}
	if c.SmoothingAlpha <= 0 || c.SmoothingAlpha > 1 {
		return fmt.Errorf("smoothing alpha must be in (0, 1], got %v", c.SmoothingAlpha)
	}
	if c.ProcessNoise <= 0 {
		return fmt.Errorf("process noise must be positive, got %v", c.ProcessNoise)
	}
	if c.MeasurementNoise <= 0 {
		return fmt.Errorf("measurement noise must be positive, got %v", c.MeasurementNoise)
	}
	if c.MaxHeadingDeviationDeg <= 0 || c.MaxHeadingDeviationDeg > 180 {
		return fmt.Errorf("max heading deviation must be in (0, 180], got %v", c.MaxHeadingDeviationDeg)
	}
	if c.MaxReconstructionGap <= 0 {
		return fmt.Errorf("max reconstruction gap must be positive, got %v", c.MaxReconstructionGap)
	}
	if c.RolloutM < 0 {
		return fmt.Errorf("rollout distance must be non-negative, got %v", c.RolloutM)
	}
	if len(c.MilestonesM) == 0 {
		return fmt.Errorf("at least one milestone distance is required")
	}
	if !sort.Float64sAreSorted(c.MilestonesM) {
		return fmt.Errorf("milestone distances must be ascending, got %v", c.MilestonesM)
	}
	if c.MilestonesM[0] <= 0 {
		return fmt.Errorf("milestone distances must be positive, got %v", c.MilestonesM)
	}
	if !IsValidMode(c.Mode) {
		return fmt.Errorf("unknown test mode %q", c.Mode)
	}
	if c.AccuracyLockM <= 0 {
		return fmt.Errorf("accuracy lock bound must be positive, got %v", c.AccuracyLockM)
	}
	if c.BufferWindow <= 0 {
		return fmt.Errorf("buffer window must be positive, got %v", c.BufferWindow)
	}
	return nil
}

// rolloutOffset is the threshold adjustment in effect for this config.
func (c Config) rolloutOffset() float64 {
	if c.RolloutEnabled {
		return c.RolloutM
	}
	return 0
}
