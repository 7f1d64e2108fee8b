package history

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/gpsbench/dragtimer/internal/run"
)

// WriteRunCSV writes a stored run as CSV: a header block with the record
// summary and milestones, then the trace rows.
func WriteRunCSV(w io.Writer, rec *run.Record, trace []TracePoint) error {
	cw := csv.NewWriter(w)

	summary := [][]string{
		{"id", rec.ID},
		{"mode", string(rec.Mode)},
		{"created_at", rec.CreatedAt.UTC().Format(time.RFC3339)},
		{"peak_speed_kmh", formatFloat(rec.PeakSpeedKmh)},
		{"avg_speed_kmh", formatFloat(rec.AvgSpeedKmh)},
		{"distance_m", formatFloat(rec.DistanceM)},
		{"elapsed_s", formatFloat(rec.ElapsedS)},
		{"rollout_enabled", strconv.FormatBool(rec.RolloutEnabled)},
	}
	for _, row := range summary {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write summary row: %w", err)
		}
	}

	if err := cw.Write([]string{"milestone_m", "captured", "elapsed_s", "speed_kmh"}); err != nil {
		return err
	}
	for _, ms := range rec.Milestones {
		row := []string{
			formatFloat(ms.TargetM),
			strconv.FormatBool(ms.Captured),
			formatFloat(ms.ElapsedS),
			formatFloat(ms.SpeedKmh),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write milestone row: %w", err)
		}
	}

	if err := cw.Write([]string{"offset_ms", "speed_kmh", "distance_m"}); err != nil {
		return err
	}
	for _, tp := range trace {
		row := []string{
			strconv.FormatInt(tp.OffsetMs, 10),
			formatFloat(tp.SpeedKmh),
			formatFloat(tp.DistanceM),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write trace row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
