// Package analysis computes summary statistics over stored run traces.
package analysis

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/gpsbench/dragtimer/internal/history"
	"github.com/gpsbench/dragtimer/internal/run"
	"github.com/gpsbench/dragtimer/internal/units"
)

// Split is the time taken between two consecutive captured milestones.
type Split struct {
	FromM  float64 `json:"from_m"`
	ToM    float64 `json:"to_m"`
	DeltaS float64 `json:"delta_s"`
}

// Summary condenses a run's trace into a handful of comparable numbers.
type Summary struct {
	MeanSpeedKmh   float64 `json:"mean_speed_kmh"`
	StdDevSpeedKmh float64 `json:"std_dev_speed_kmh"`
	MedianSpeedKmh float64 `json:"median_speed_kmh"`
	P95SpeedKmh    float64 `json:"p95_speed_kmh"`

	// PeakAccelMps2 is the largest speed increase between consecutive trace
	// points, in m/s^2. Braking at the end of a run does not count.
	PeakAccelMps2 float64 `json:"peak_accel_mps2"`

	Splits []Split `json:"splits"`
}

// Summarize computes a Summary for a stored record and its trace. An empty
// trace yields zero statistics but milestone splits are still reported.
func Summarize(rec *run.Record, trace []history.TracePoint) Summary {
	var s Summary

	if len(trace) > 0 {
		speeds := make([]float64, len(trace))
		for i, tp := range trace {
			speeds[i] = tp.SpeedKmh
		}

		s.MeanSpeedKmh = stat.Mean(speeds, nil)
		if len(speeds) > 1 {
			s.StdDevSpeedKmh = stat.StdDev(speeds, nil)
		}

		sorted := append([]float64(nil), speeds...)
		sort.Float64s(sorted)
		s.MedianSpeedKmh = stat.Quantile(0.5, stat.Empirical, sorted, nil)
		s.P95SpeedKmh = stat.Quantile(0.95, stat.Empirical, sorted, nil)

		s.PeakAccelMps2 = peakAcceleration(trace)
	}

	s.Splits = splits(rec.Milestones)
	return s
}

func peakAcceleration(trace []history.TracePoint) float64 {
	var peak float64
	for i := 1; i < len(trace); i++ {
		dtS := float64(trace[i].OffsetMs-trace[i-1].OffsetMs) / 1000
		if dtS <= 0 {
			continue
		}
		dv := units.KmhToMps(trace[i].SpeedKmh - trace[i-1].SpeedKmh)
		if a := dv / dtS; a > peak {
			peak = a
		}
	}
	return peak
}

func splits(milestones []run.Milestone) []Split {
	var out []Split
	var prev *run.Milestone
	for i := range milestones {
		ms := &milestones[i]
		if !ms.Captured {
			continue
		}
		if prev == nil {
			out = append(out, Split{FromM: 0, ToM: ms.TargetM, DeltaS: ms.ElapsedS})
		} else {
			out = append(out, Split{
				FromM:  prev.TargetM,
				ToM:    ms.TargetM,
				DeltaS: ms.ElapsedS - prev.ElapsedS,
			})
		}
		prev = ms
	}
	return out
}
