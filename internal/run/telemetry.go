package run

// Telemetry is a read-only snapshot of the live pipeline, exposed for
// display purposes only. Consuming it never affects core state.
type Telemetry struct {
	State          State   `json:"state"`
	WaitingForLock bool    `json:"waiting_for_lock"`
	SpeedKmh       float64 `json:"speed_kmh"`
	DistanceM      float64 `json:"distance_m"`
	ElapsedS       float64 `json:"elapsed_s"`
	PeakSpeedKmh   float64 `json:"peak_speed_kmh"`
	AvgSpeedKmh    float64 `json:"avg_speed_kmh"`
	AccuracyM      float64 `json:"accuracy_m"`
}
