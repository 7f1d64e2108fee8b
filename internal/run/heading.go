package run

import "github.com/gpsbench/dragtimer/internal/geomath"

// headingGate rejects a segment's distance contribution when the bearing
// between consecutive fixes changes too sharply, so standstill jitter that
// zig-zags around the true position cannot inflate accumulated distance.
type headingGate struct {
	maxDeviationDeg float64
	lastBearing     *float64
}

func newHeadingGate(maxDeviationDeg float64) *headingGate {
	return &headingGate{maxDeviationDeg: maxDeviationDeg}
}

// Accept reports whether the segment prev->cur may contribute distance.
// The first segment is always accepted. The bearing memory is updated even
// when the segment is rejected: rejection affects only this segment's
// distance, not future comparisons.
func (g *headingGate) Accept(prev, cur geomath.Coordinate) bool {
	bearing := geomath.BearingDegrees(prev, cur)
	accepted := true
	if g.lastBearing != nil {
		accepted = geomath.AngleDiffDegrees(*g.lastBearing, bearing) <= g.maxDeviationDeg
	}
	g.lastBearing = &bearing
	return accepted
}

// Reset clears the bearing memory.
func (g *headingGate) Reset() {
	g.lastBearing = nil
}
