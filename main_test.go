package main

import (
	"fmt"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/gpsbench/dragtimer/internal/api"
	"github.com/gpsbench/dragtimer/internal/feed"
	"github.com/gpsbench/dragtimer/internal/history"
	"github.com/gpsbench/dragtimer/internal/run"
	"github.com/gpsbench/dragtimer/internal/timeutil"
	"github.com/gpsbench/dragtimer/internal/units"
)

// nmeaSentence frames a payload with the $ prefix and checksum.
func nmeaSentence(payload string) string {
	var sum byte
	for i := 0; i < len(payload); i++ {
		sum ^= payload[i]
	}
	return fmt.Sprintf("$%s*%02X", payload, sum)
}

func rmcAt(speedKnots float64) string {
	return nmeaSentence(fmt.Sprintf(
		"GPRMC,101500,A,4807.0380,N,01131.0000,E,%.1f,0.0,010625,,,A", speedKnots))
}

// TestAccelerationRunEndToEnd drives recorded NMEA sentences through the
// parser, state machine and history recorder, and checks the stored record
// against the machine's own.
func TestAccelerationRunEndToEnd(t *testing.T) {
	clock := timeutil.NewMockClock(time.Date(2025, 6, 1, 10, 15, 0, 0, time.UTC))

	// Near-passthrough filter tuning keeps the expected speeds readable.
	cfg := run.DefaultConfig()
	cfg.Mode = run.ModeZeroTo100
	cfg.SmoothingAlpha = 1
	cfg.MeasurementNoise = 0.001

	machine, err := run.NewMachine(cfg, clock)
	if err != nil {
		t.Fatalf("NewMachine failed: %v", err)
	}

	db, err := history.Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("history.Open failed: %v", err)
	}
	defer db.Close()

	recorder := history.NewRecorder(db)
	hub := api.NewTelemetryHub()
	machine.SetObserver(func(tel run.Telemetry) {
		recorder.Observe(tel)
		hub.Publish(tel)
	})
	machine.SetRecordSink(recorder.Persist)

	parser := feed.NewParser(clock)
	machine.Arm()

	// A 0-100 pull at a stand: HDOP first, then a hold at 30 km/h through
	// the launch window, then the acceleration to past 100 km/h. 54.6
	// knots is 101.1 km/h.
	lines := []string{
		nmeaSentence("GPGGA,101500,4807.0380,N,01131.0000,E,1,08,0.9,545.4,M,46.9,M,,"),
		rmcAt(16.2), // 30.0 km/h, streak starts
		rmcAt(16.2),
		rmcAt(16.2),
		rmcAt(16.2), // 450 ms above threshold: launch
		rmcAt(27.0), // 50 km/h
		rmcAt(37.8), // 70 km/h
		rmcAt(48.6), // 90 km/h
		rmcAt(54.6), // 101.1 km/h: finish
	}

	base := clock.Now()
	for i, line := range lines {
		clock.Set(base.Add(time.Duration(i) * 150 * time.Millisecond))
		sample, err := parser.Parse(line)
		if err != nil {
			t.Fatalf("parse line %d: %v", i, err)
		}
		if sample != nil {
			machine.Submit(*sample)
		}
	}

	if got := machine.State(); got != run.StateFinished {
		t.Fatalf("machine state = %s, want finished", got)
	}

	rec := machine.Record()
	if rec == nil {
		t.Fatal("no record after finish")
	}

	if rec.Mode != run.ModeZeroTo100 {
		t.Errorf("mode = %s, want 0-100", rec.Mode)
	}
	// Launch latched on the fourth fix (600 ms in), finish on the last
	// (1200 ms in).
	if math.Abs(rec.ElapsedS-0.6) > 1e-9 {
		t.Errorf("elapsed = %v s, want 0.6", rec.ElapsedS)
	}
	wantPeak := units.MpsToKmh(units.KnotsToMps(54.6))
	if math.Abs(rec.PeakSpeedKmh-wantPeak) > 1e-6 {
		t.Errorf("peak = %v km/h, want %v", rec.PeakSpeedKmh, wantPeak)
	}
	// The car never moved on paper, so no milestone distance was covered.
	if rec.DistanceM != 0 {
		t.Errorf("distance = %v m, want 0", rec.DistanceM)
	}
	for _, ms := range rec.Milestones {
		if ms.Captured {
			t.Errorf("milestone %v m unexpectedly captured", ms.TargetM)
		}
	}

	// The record sink persisted the run; the stored copy must match the
	// machine's exactly.
	stored, err := db.Run(rec.ID)
	if err != nil {
		t.Fatalf("stored run not found: %v", err)
	}
	if diff := cmp.Diff(rec, stored); diff != "" {
		t.Errorf("stored record mismatch (-machine +stored):\n%s", diff)
	}

	// One trace point per sample processed while running: the launch fix
	// plus the three acceleration fixes before the finishing one.
	trace, err := db.Trace(rec.ID)
	if err != nil {
		t.Fatalf("Trace failed: %v", err)
	}
	if len(trace) != 4 {
		t.Fatalf("trace points = %d, want 4", len(trace))
	}
	if trace[0].OffsetMs != 0 {
		t.Errorf("first trace offset = %d ms, want 0", trace[0].OffsetMs)
	}
	for i := 1; i < len(trace); i++ {
		if trace[i].OffsetMs <= trace[i-1].OffsetMs {
			t.Errorf("trace offsets not increasing at %d: %v", i, trace)
		}
	}
}
