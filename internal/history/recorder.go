package history

import (
	"sync"

	"github.com/gpsbench/dragtimer/internal/monitoring"
	"github.com/gpsbench/dragtimer/internal/run"
)

// Recorder accumulates the live speed/distance curve of the run in progress
// and persists it together with the finished record. It is wired as both the
// telemetry observer and the record sink of the state machine.
type Recorder struct {
	db *DB

	mu     sync.Mutex
	points []TracePoint
}

func NewRecorder(db *DB) *Recorder {
	return &Recorder{db: db}
}

// Observe collects one trace point per telemetry update while a run is in
// progress. A transition back to idle or armed means the run was stopped or
// reset before finishing, so the partial trace is dropped rather than left
// to contaminate the next finished run. Finished snapshots keep the buffer
// intact for the Persist call that follows.
func (r *Recorder) Observe(tel run.Telemetry) {
	switch tel.State {
	case run.StateRunning:
		r.mu.Lock()
		defer r.mu.Unlock()
		r.points = append(r.points, TracePoint{
			OffsetMs:  int64(tel.ElapsedS * 1000),
			SpeedKmh:  tel.SpeedKmh,
			DistanceM: tel.DistanceM,
		})
	case run.StateIdle, run.StateArmed:
		r.Discard()
	}
}

// Persist stores the finished record with the collected trace and clears the
// buffer for the next run. Failures are logged, not returned: the machine's
// record sink has no error path and a failed write must not affect the run.
func (r *Recorder) Persist(rec run.Record) {
	r.mu.Lock()
	trace := r.points
	r.points = nil
	r.mu.Unlock()

	if err := r.db.SaveRun(rec, trace); err != nil {
		monitoring.Logf("history: failed to save run %s: %v", rec.ID, err)
		return
	}
	monitoring.Logf("history: saved run %s (%s, %.2fs, %d trace points)",
		rec.ID, rec.Mode, rec.ElapsedS, len(trace))
}

// Discard drops any partially collected trace, for example when a run is
// stopped by hand rather than finishing.
func (r *Recorder) Discard() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.points = nil
}
