package run

import (
	"time"

	"github.com/google/uuid"
)

// Milestone is a fixed distance checkpoint. Once captured it is immutable:
// the first crossing wins and is never overwritten.
type Milestone struct {
	TargetM  float64 `json:"target_m"`
	Captured bool    `json:"captured"`
	ElapsedS float64 `json:"elapsed_s,omitempty"`
	SpeedKmh float64 `json:"speed_kmh,omitempty"`
}

// Record is the finished, immutable snapshot of a completed run. It is
// created exactly once per run; ownership then passes to the history
// collaborator.
type Record struct {
	ID             string      `json:"id"`
	Mode           Mode        `json:"mode"`
	CreatedAt      time.Time   `json:"created_at"`
	PeakSpeedKmh   float64     `json:"peak_speed_kmh"`
	AvgSpeedKmh    float64     `json:"avg_speed_kmh"`
	DistanceM      float64     `json:"distance_m"`
	ElapsedS       float64     `json:"elapsed_s"`
	RolloutEnabled bool        `json:"rollout_enabled"`
	Milestones     []Milestone `json:"milestones"`
}

// buildRecord freezes the machine's final values into a Record. The
// milestone slice is copied so later resets cannot reach the snapshot.
func buildRecord(m *Machine, createdAt time.Time) Record {
	milestones := make([]Milestone, len(m.milestones))
	copy(milestones, m.milestones)

	return Record{
		ID:             uuid.NewString(),
		Mode:           m.cfg.Mode,
		CreatedAt:      createdAt,
		PeakSpeedKmh:   m.peakKmh,
		AvgSpeedKmh:    m.avgKmh,
		DistanceM:      m.distanceM,
		ElapsedS:       m.elapsed.Seconds(),
		RolloutEnabled: m.cfg.RolloutEnabled,
		Milestones:     milestones,
	}
}
