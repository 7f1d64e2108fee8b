package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gpsbench/dragtimer/internal/run"
)

// RunTuning represents the root configuration for pipeline tuning
// parameters. All fields are optional pointers so the same JSON can be used
// for both startup configuration and partial runtime overrides; the Get*
// methods provide fallback defaults for anything not specified.
type RunTuning struct {
	// Filter params
	GhostSpeedKmh           *float64 `json:"ghost_speed_kmh,omitempty"`
	SmoothingAlpha          *float64 `json:"smoothing_alpha,omitempty"`
	KalmanProcessNoise      *float64 `json:"kalman_process_noise,omitempty"`
	KalmanMeasurementNoise  *float64 `json:"kalman_measurement_noise,omitempty"`
	MaxHeadingDeviationDeg  *float64 `json:"max_heading_deviation_deg,omitempty"`
	MaxReconstructionGapMs  *int64   `json:"max_reconstruction_gap_ms,omitempty"`

	// Launch params
	StartSpeedKmh *float64 `json:"start_speed_kmh,omitempty"`
	StartWindowMs *int64   `json:"start_window_ms,omitempty"`
	AccuracyLockM *float64 `json:"accuracy_lock_m,omitempty"`

	// Run params
	Mode           *string   `json:"mode,omitempty"`
	MilestonesM    []float64 `json:"milestones_m,omitempty"`
	RolloutM       *float64  `json:"rollout_m,omitempty"`
	RolloutEnabled *bool     `json:"rollout_enabled,omitempty"`
	BufferWindowMs *int64    `json:"buffer_window_ms,omitempty"`
}

// EmptyRunTuning returns a RunTuning with all fields unset.
func EmptyRunTuning() *RunTuning {
	return &RunTuning{}
}

// LoadRunTuning loads a RunTuning from a JSON file. The file is validated
// to have a .json extension and to be under the max file size. Fields
// omitted from the JSON retain their defaults, so partial configs are safe.
func LoadRunTuning(path string) (*RunTuning, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyRunTuning()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration by materialising it into a run.Config.
// A misconfigured filter has no meaningful sample-time recovery, so this is
// called at load time and fails fast.
func (c *RunTuning) Validate() error {
	return c.RunConfig().Validate()
}

// RunConfig materialises the tuning into the pipeline's concrete
// configuration, falling back to defaults for unset fields.
func (c *RunTuning) RunConfig() run.Config {
	cfg := run.DefaultConfig()
	if c.GhostSpeedKmh != nil {
		cfg.GhostSpeedKmh = *c.GhostSpeedKmh
	}
	if c.SmoothingAlpha != nil {
		cfg.SmoothingAlpha = *c.SmoothingAlpha
	}
	if c.KalmanProcessNoise != nil {
		cfg.ProcessNoise = *c.KalmanProcessNoise
	}
	if c.KalmanMeasurementNoise != nil {
		cfg.MeasurementNoise = *c.KalmanMeasurementNoise
	}
	if c.MaxHeadingDeviationDeg != nil {
		cfg.MaxHeadingDeviationDeg = *c.MaxHeadingDeviationDeg
	}
	if c.MaxReconstructionGapMs != nil {
		cfg.MaxReconstructionGap = time.Duration(*c.MaxReconstructionGapMs) * time.Millisecond
	}
	if c.StartSpeedKmh != nil {
		cfg.StartSpeedKmh = *c.StartSpeedKmh
	}
	if c.StartWindowMs != nil {
		cfg.StartWindow = time.Duration(*c.StartWindowMs) * time.Millisecond
	}
	if c.AccuracyLockM != nil {
		cfg.AccuracyLockM = *c.AccuracyLockM
	}
	if c.Mode != nil {
		cfg.Mode = run.Mode(*c.Mode)
	}
	if len(c.MilestonesM) > 0 {
		cfg.MilestonesM = append([]float64(nil), c.MilestonesM...)
	}
	if c.RolloutM != nil {
		cfg.RolloutM = *c.RolloutM
	}
	if c.RolloutEnabled != nil {
		cfg.RolloutEnabled = *c.RolloutEnabled
	}
	if c.BufferWindowMs != nil {
		cfg.BufferWindow = time.Duration(*c.BufferWindowMs) * time.Millisecond
	}
	return cfg
}
