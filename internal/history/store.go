package history

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gpsbench/dragtimer/internal/run"
)

// ErrNotFound is returned when a run ID does not exist in the database.
var ErrNotFound = errors.New("run not found")

// TracePoint is one sampled point of a run's speed/distance curve, keyed by
// offset from launch.
type TracePoint struct {
	OffsetMs  int64   `json:"offset_ms"`
	SpeedKmh  float64 `json:"speed_kmh"`
	DistanceM float64 `json:"distance_m"`
}

// SaveRun stores a finished record together with its trace. The write is
// transactional: a run never appears without its milestones.
func (db *DB) SaveRun(rec run.Record, trace []TracePoint) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO runs (
			id, mode, created_at, peak_speed_kmh, avg_speed_kmh,
			distance_m, elapsed_s, rollout_enabled
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, string(rec.Mode), rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		rec.PeakSpeedKmh, rec.AvgSpeedKmh, rec.DistanceM, rec.ElapsedS,
		rec.RolloutEnabled,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", rec.ID, err)
	}

	for _, ms := range rec.Milestones {
		_, err = tx.Exec(
			`INSERT INTO run_milestones (run_id, target_m, captured, elapsed_s, speed_kmh)
			 VALUES (?, ?, ?, ?, ?)`,
			rec.ID, ms.TargetM, ms.Captured, ms.ElapsedS, ms.SpeedKmh,
		)
		if err != nil {
			return fmt.Errorf("insert milestone %v for run %s: %w", ms.TargetM, rec.ID, err)
		}
	}

	for _, tp := range trace {
		_, err = tx.Exec(
			`INSERT INTO run_trace (run_id, offset_ms, speed_kmh, distance_m)
			 VALUES (?, ?, ?, ?)`,
			rec.ID, tp.OffsetMs, tp.SpeedKmh, tp.DistanceM,
		)
		if err != nil {
			return fmt.Errorf("insert trace point for run %s: %w", rec.ID, err)
		}
	}

	return tx.Commit()
}

// Runs returns stored records newest first, without traces. A limit of 0
// applies a sane default.
func (db *DB) Runs(limit int) ([]run.Record, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(
		`SELECT id, mode, created_at, peak_speed_kmh, avg_speed_kmh,
		        distance_m, elapsed_s, rollout_enabled
		 FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []run.Record
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range records {
		if records[i].Milestones, err = db.milestones(records[i].ID); err != nil {
			return nil, err
		}
	}
	return records, nil
}

// Run returns a single stored record by ID.
func (db *DB) Run(id string) (*run.Record, error) {
	row := db.QueryRow(
		`SELECT id, mode, created_at, peak_speed_kmh, avg_speed_kmh,
		        distance_m, elapsed_s, rollout_enabled
		 FROM runs WHERE id = ?`, id)

	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if rec.Milestones, err = db.milestones(rec.ID); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Trace returns the speed/distance curve of a stored run ordered by offset.
func (db *DB) Trace(id string) ([]TracePoint, error) {
	rows, err := db.Query(
		`SELECT offset_ms, speed_kmh, distance_m
		 FROM run_trace WHERE run_id = ? ORDER BY offset_ms`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trace []TracePoint
	for rows.Next() {
		var tp TracePoint
		if err := rows.Scan(&tp.OffsetMs, &tp.SpeedKmh, &tp.DistanceM); err != nil {
			return nil, err
		}
		trace = append(trace, tp)
	}
	return trace, rows.Err()
}

// DeleteRun removes a run; milestones and trace cascade.
func (db *DB) DeleteRun(id string) error {
	res, err := db.Exec(`DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *DB) milestones(runID string) ([]run.Milestone, error) {
	rows, err := db.Query(
		`SELECT target_m, captured, elapsed_s, speed_kmh
		 FROM run_milestones WHERE run_id = ? ORDER BY target_m`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var milestones []run.Milestone
	for rows.Next() {
		var ms run.Milestone
		if err := rows.Scan(&ms.TargetM, &ms.Captured, &ms.ElapsedS, &ms.SpeedKmh); err != nil {
			return nil, err
		}
		milestones = append(milestones, ms)
	}
	return milestones, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (run.Record, error) {
	var rec run.Record
	var mode, createdAt string
	err := row.Scan(&rec.ID, &mode, &createdAt, &rec.PeakSpeedKmh,
		&rec.AvgSpeedKmh, &rec.DistanceM, &rec.ElapsedS, &rec.RolloutEnabled)
	if err != nil {
		return rec, err
	}
	rec.Mode = run.Mode(mode)
	rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return rec, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	return rec, nil
}
