package run

import (
	"time"

	"github.com/gpsbench/dragtimer/internal/geomath"
	"github.com/gpsbench/dragtimer/internal/units"
)

// minDirectSpeedKmh is the reading below which a reported speed is treated
// as unreliable and the position-delta reconstruction path is preferred.
const minDirectSpeedKmh = 0.5

// Measurement is the estimator's per-sample output.
type Measurement struct {
	// SmoothedKmh is the exponentially smoothed speed surfaced to all
	// downstream consumers as "current speed".
	SmoothedKmh float64

	// MeasuredKmh is the pre-smoothing measurement (direct or
	// reconstructed, after the ghost clamp). Valid only when HasMeasured.
	MeasuredKmh float64
	HasMeasured bool

	// DistanceDeltaM is the heading-gated distance contribution of this
	// sample's segment. Zero when the gate rejects the segment or no
	// previous position exists.
	DistanceDeltaM float64
}

// Estimator converts a raw, possibly-absent speed reading plus position
// history into one trustworthy smoothed speed per sample. It owns the
// Kalman filter state, the heading gate and the previous accepted position.
type Estimator struct {
	cfg    Config
	kalman *kalmanFilter
	gate   *headingGate

	lastPos  *geomath.Coordinate
	lastTime time.Time

	smoothed    float64
	hasSmoothed bool
}

// NewEstimator creates an estimator in its neutral state.
func NewEstimator(cfg Config) *Estimator {
	return &Estimator{
		cfg:    cfg,
		kalman: newKalmanFilter(cfg.ProcessNoise, cfg.MeasurementNoise),
		gate:   newHeadingGate(cfg.MaxHeadingDeviationDeg),
	}
}

// Process runs the full per-sample filter: direct speed conversion, delta
// reconstruction when speed is missing or unreliable, ghost clamp, Kalman
// smoothing and the exponential low-pass. The previous position and heading
// memory are updated as a side effect.
func (e *Estimator) Process(s Sample) Measurement {
	measured, hasMeasured := directSpeedKmh(s)

	cur := s.Coordinate()
	var deltaM float64
	if e.lastPos != nil {
		segmentM := geomath.DistanceMeters(*e.lastPos, cur)
		accepted := e.gate.Accept(*e.lastPos, cur)
		if accepted {
			deltaM = segmentM
		}

		dt := s.Time.Sub(e.lastTime)
		needsReconstruction := !hasMeasured || measured < minDirectSpeedKmh
		if needsReconstruction && accepted && dt > 0 && dt <= e.cfg.MaxReconstructionGap {
			measured = segmentM / dt.Seconds() * 3.6
			hasMeasured = true
		}
	}
	e.lastPos = &cur
	e.lastTime = s.Time

	return e.fuse(measured, hasMeasured, deltaM)
}

// ProcessSpeedOnly runs the filter without touching position or heading
// state. Used while waiting for GPS lock, where fixes update display-level
// speed only.
func (e *Estimator) ProcessSpeedOnly(s Sample) Measurement {
	measured, hasMeasured := directSpeedKmh(s)
	return e.fuse(measured, hasMeasured, 0)
}

// fuse applies the ghost clamp, Kalman update and exponential smoothing.
func (e *Estimator) fuse(measured float64, hasMeasured bool, deltaM float64) Measurement {
	if hasMeasured && measured < e.cfg.GhostSpeedKmh {
		measured = 0
	}

	var smoothed float64
	if hasMeasured {
		estimate := units.MpsToKmh(e.kalman.Update(units.KmhToMps(measured)))
		if e.hasSmoothed {
			smoothed = e.cfg.SmoothingAlpha*estimate + (1-e.cfg.SmoothingAlpha)*e.smoothed
		} else {
			smoothed = estimate
		}
		e.smoothed = smoothed
		e.hasSmoothed = true
	} else {
		// No measurement at all: skip the Kalman update and reuse the last
		// emitted smoothed speed.
		smoothed = e.smoothed
	}

	return Measurement{
		SmoothedKmh:    smoothed,
		MeasuredKmh:    measured,
		HasMeasured:    hasMeasured,
		DistanceDeltaM: deltaM,
	}
}

// Smoothed returns the last emitted smoothed speed in km/h.
func (e *Estimator) Smoothed() float64 { return e.smoothed }

// Reset returns the estimator, its filter and its heading memory to the
// neutral state. Called on re-arm and reset.
func (e *Estimator) Reset() {
	e.kalman.Reset()
	e.gate.Reset()
	e.lastPos = nil
	e.lastTime = time.Time{}
	e.smoothed = 0
	e.hasSmoothed = false
}

func directSpeedKmh(s Sample) (float64, bool) {
	if s.SpeedMps == nil {
		return 0, false
	}
	return units.MpsToKmh(*s.SpeedMps), true
}
