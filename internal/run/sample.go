// Package run implements the sample fusion pipeline and the lifecycle state
// machine for a point-to-point acceleration run: speed filtering and
// reconstruction, heading-gated distance accumulation, start/finish
// detection and milestone capture.
package run

import (
	"time"

	"github.com/gpsbench/dragtimer/internal/geomath"
)

// Sample is one position/velocity/accuracy fix from the positioning
// receiver. Samples are immutable once created; arrival order is the only
// meaningful order.
type Sample struct {
	Lat       float64
	Lon       float64
	AccuracyM float64

	// SpeedMps is the receiver-reported speed over ground in m/s, or nil
	// when the receiver omits velocity.
	SpeedMps *float64

	// Time is the monotonic timestamp assigned at ingestion.
	Time time.Time
}

// Coordinate returns the sample position.
func (s Sample) Coordinate() geomath.Coordinate {
	return geomath.Coordinate{Lat: s.Lat, Lon: s.Lon}
}
