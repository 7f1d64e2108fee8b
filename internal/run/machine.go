package run

import (
	"fmt"
	"sync"
	"time"

	"github.com/gpsbench/dragtimer/internal/monitoring"
	"github.com/gpsbench/dragtimer/internal/timeutil"
)

// State represents the lifecycle state of a run.
type State string

const (
	StateIdle     State = "idle"     // No run armed; samples are ignored
	StateArmed    State = "armed"    // Waiting for GPS lock, then for launch
	StateRunning  State = "running"  // Accumulating distance and time
	StateFinished State = "finished" // Frozen; samples ignored until re-arm
)

// bufferEntry is one (time, smoothed speed) pair in the rolling window
// buffer.
type bufferEntry struct {
	at       time.Time
	speedKmh float64
}

// Machine owns the run lifecycle: arm/stop/reset commands, start detection,
// distance accumulation, milestone capture and finish evaluation. Exactly
// one run is live per machine. All methods are safe for concurrent use, but
// samples are processed one at a time, synchronously, with no look-ahead.
type Machine struct {
	mu    sync.Mutex
	cfg   Config
	clock timeutil.Clock
	est   *Estimator

	state  State
	locked bool

	lastAccuracyM float64
	aboveSince    *time.Time

	startTime time.Time
	elapsed   time.Duration
	distanceM float64
	peakKmh   float64
	avgKmh    float64

	buffer     []bufferEntry
	milestones []Milestone

	record        *Record
	pendingRecord *Record

	onUpdate func(Telemetry)
	onFinish func(Record)
}

// NewMachine constructs a machine in the Idle state. Invalid configuration
// fails fast.
func NewMachine(cfg Config, clock timeutil.Clock) (*Machine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid run configuration: %w", err)
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	m := &Machine{
		cfg:   cfg,
		clock: clock,
		est:   NewEstimator(cfg),
		state: StateIdle,
	}
	m.clearLocked()
	return m, nil
}

// SetObserver installs a callback invoked after every processed sample and
// every command, with a read-only telemetry snapshot. The callback must not
// block; it runs outside the machine lock.
func (m *Machine) SetObserver(fn func(Telemetry)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onUpdate = fn
}

// SetRecordSink installs the collaborator that receives the finished record.
// Called at most once per completed run, outside the machine lock.
func (m *Machine) SetRecordSink(fn func(Record)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onFinish = fn
}

// Arm arms an idle machine, or disarms an already-armed one (idempotent
// toggle). Arming resets all accumulators, filter state, heading memory and
// milestones.
func (m *Machine) Arm() {
	m.mu.Lock()
	if m.state == StateArmed {
		m.clearLocked()
		m.state = StateIdle
		monitoring.Logf("run: disarmed")
	} else {
		m.clearLocked()
		m.state = StateArmed
		monitoring.Logf("run: armed (mode %s)", m.cfg.Mode)
	}
	m.notifyLocked()
}

// Stop returns the machine to Idle, leaving the last values visible to the
// caller.
func (m *Machine) Stop() {
	m.mu.Lock()
	m.state = StateIdle
	monitoring.Logf("run: stopped")
	m.notifyLocked()
}

// Reset returns the machine to Idle and clears all accumulators and
// milestones.
func (m *Machine) Reset() {
	m.mu.Lock()
	m.clearLocked()
	m.state = StateIdle
	monitoring.Logf("run: reset")
	m.notifyLocked()
}

// Submit processes one position sample through the pipeline. It must not be
// called concurrently with itself; calls are serialised by the machine
// lock to preserve the sample-order dependence of the filter state and
// milestone-capture monotonicity.
func (m *Machine) Submit(s Sample) {
	m.mu.Lock()

	switch m.state {
	case StateIdle, StateFinished:
		// Idle machines release the feed; finished machines are frozen
		// until the next explicit arm.
		m.mu.Unlock()
		return
	case StateArmed:
		m.submitArmed(s)
	case StateRunning:
		m.submitRunning(s)
	}

	m.notifyLocked()
}

// submitArmed handles the GPS-lock wait and launch detection. Caller holds
// the lock.
func (m *Machine) submitArmed(s Sample) {
	m.lastAccuracyM = s.AccuracyM

	if !m.locked {
		if s.AccuracyM > m.cfg.AccuracyLockM {
			// Waiting for lock: display-level speed only, never position or
			// heading state.
			meas := m.est.ProcessSpeedOnly(s)
			m.updatePeak(meas)
			return
		}
		m.locked = true
		monitoring.Logf("run: gps lock acquired (accuracy %.1f m)", s.AccuracyM)
	}

	meas := m.est.Process(s)
	m.updatePeak(meas)
	m.appendBuffer(s.Time, meas.SmoothedKmh)

	if meas.SmoothedKmh < m.cfg.StartSpeedKmh {
		m.aboveSince = nil
		return
	}
	if m.aboveSince == nil {
		at := s.Time
		m.aboveSince = &at
	}
	if s.Time.Sub(*m.aboveSince) < m.cfg.StartWindow {
		return
	}

	// Launch: latch the start timestamp, zero the accumulators, seed peak
	// from the current smoothed speed and reduce the buffer to just this
	// sample.
	m.state = StateRunning
	m.startTime = s.Time
	m.elapsed = 0
	m.distanceM = 0
	m.avgKmh = 0
	m.peakKmh = meas.SmoothedKmh
	m.buffer = []bufferEntry{{at: s.Time, speedKmh: meas.SmoothedKmh}}
	m.resetMilestones()
	monitoring.Logf("run: launched")
}

// submitRunning accumulates distance and time, captures milestones and
// evaluates the finish condition. Caller holds the lock.
func (m *Machine) submitRunning(s Sample) {
	m.lastAccuracyM = s.AccuracyM

	meas := m.est.Process(s)
	m.updatePeak(meas)
	m.appendBuffer(s.Time, meas.SmoothedKmh)

	m.distanceM += meas.DistanceDeltaM
	m.elapsed = s.Time.Sub(m.startTime)
	if secs := m.elapsed.Seconds(); secs > 0 {
		m.avgKmh = m.distanceM / secs * 3.6
	}

	m.captureMilestones(meas)

	if m.finishDue() {
		m.finish()
	}
}

// updatePeak tracks the highest pre-smoothing measured speed seen while
// armed or running.
func (m *Machine) updatePeak(meas Measurement) {
	if meas.HasMeasured && meas.MeasuredKmh > m.peakKmh {
		m.peakKmh = meas.MeasuredKmh
	}
}

// appendBuffer records a (time, smoothed speed) pair and prunes entries
// older than the buffer window.
func (m *Machine) appendBuffer(at time.Time, speedKmh float64) {
	m.buffer = append(m.buffer, bufferEntry{at: at, speedKmh: speedKmh})
	cutoff := at.Add(-m.cfg.BufferWindow)
	trim := 0
	for trim < len(m.buffer) && m.buffer[trim].at.Before(cutoff) {
		trim++
	}
	m.buffer = m.buffer[trim:]
}

// captureMilestones records the first crossing of each configured distance.
// A captured milestone is never overwritten, even if cumulative distance
// later regresses through a rejected segment.
func (m *Machine) captureMilestones(meas Measurement) {
	offset := m.cfg.rolloutOffset()
	for i := range m.milestones {
		ms := &m.milestones[i]
		if ms.Captured || m.distanceM < ms.TargetM-offset {
			continue
		}
		ms.Captured = true
		ms.ElapsedS = m.elapsed.Seconds()
		ms.SpeedKmh = m.est.Smoothed()
		monitoring.Logf("run: milestone %.0f m at %.2f s (%.1f km/h)", ms.TargetM, ms.ElapsedS, ms.SpeedKmh)
	}
}

// finishDue evaluates the universal final-milestone rule plus the active
// mode's own finish condition. Caller holds the lock; milestone capture has
// already run for this sample.
func (m *Machine) finishDue() bool {
	if last := m.milestones[len(m.milestones)-1]; last.Captured {
		return true
	}

	offset := m.cfg.rolloutOffset()
	switch m.cfg.Mode {
	case ModeEighthMile:
		return m.distanceM >= 201-offset
	case ModeQuarterMile:
		return m.distanceM >= 402-offset
	case ModeZeroTo100:
		return m.peakKmh >= 100
	case ModeZeroTo140:
		return m.peakKmh >= 140
	case ModeSixtyTo100:
		seen60, seen100 := false, false
		for _, e := range m.buffer {
			if e.speedKmh >= 60 {
				seen60 = true
			}
			if e.speedKmh >= 100 {
				seen100 = true
			}
		}
		return seen60 && seen100
	}
	return false
}

// finish freezes the run and hands the record to the sink. Caller holds the
// lock.
func (m *Machine) finish() {
	m.state = StateFinished
	rec := buildRecord(m, m.clock.Now())
	m.record = &rec
	monitoring.Logf("run: finished mode=%s distance=%.1f m elapsed=%.2f s peak=%.1f km/h",
		rec.Mode, rec.DistanceM, rec.ElapsedS, rec.PeakSpeedKmh)

	// The sink is invoked by notifyLocked after the lock is released; the
	// record itself is a value copy and immutable from here.
	m.pendingRecord = &rec
}

// State returns the current lifecycle state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Record returns a copy of the finished run's record, or nil while no run
// has finished since the last arm.
func (m *Machine) Record() *Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.record == nil {
		return nil
	}
	rec := *m.record
	rec.Milestones = append([]Milestone(nil), m.record.Milestones...)
	return &rec
}

// Telemetry returns a read-only snapshot of the live pipeline.
func (m *Machine) Telemetry() Telemetry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.telemetryLocked()
}

func (m *Machine) telemetryLocked() Telemetry {
	return Telemetry{
		State:          m.state,
		WaitingForLock: m.state == StateArmed && !m.locked,
		SpeedKmh:       m.est.Smoothed(),
		DistanceM:      m.distanceM,
		ElapsedS:       m.elapsed.Seconds(),
		PeakSpeedKmh:   m.peakKmh,
		AvgSpeedKmh:    m.avgKmh,
		AccuracyM:      m.lastAccuracyM,
	}
}

// Milestones returns a copy of the current milestone set.
func (m *Machine) Milestones() []Milestone {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Milestone, len(m.milestones))
	copy(out, m.milestones)
	return out
}

// notifyLocked snapshots telemetry, releases the lock and invokes the
// observer and, when a run just finished, the record sink. Must be the
// final statement of any method that entered with the lock held.
func (m *Machine) notifyLocked() {
	onUpdate := m.onUpdate
	onFinish := m.onFinish
	finished := m.pendingRecord
	m.pendingRecord = nil
	snapshot := m.telemetryLocked()
	m.mu.Unlock()

	if onUpdate != nil {
		onUpdate(snapshot)
	}
	if finished != nil && onFinish != nil {
		onFinish(*finished)
	}
}

// clearLocked resets accumulators, filter state, heading memory and
// milestones. Caller holds the lock.
func (m *Machine) clearLocked() {
	m.est.Reset()
	m.locked = false
	m.lastAccuracyM = 0
	m.aboveSince = nil
	m.startTime = time.Time{}
	m.elapsed = 0
	m.distanceM = 0
	m.peakKmh = 0
	m.avgKmh = 0
	m.buffer = nil
	m.resetMilestones()
	m.record = nil
}

func (m *Machine) resetMilestones() {
	m.milestones = make([]Milestone, len(m.cfg.MilestonesM))
	for i, target := range m.cfg.MilestonesM {
		m.milestones[i] = Milestone{TargetM: target}
	}
}
