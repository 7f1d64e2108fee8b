package api

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gpsbench/dragtimer/internal/analysis"
	"github.com/gpsbench/dragtimer/internal/history"
	"github.com/gpsbench/dragtimer/internal/run"
	"github.com/gpsbench/dragtimer/internal/units"
)

func newTestServer(t *testing.T, displayUnits string) (*Server, *run.Machine, *history.DB) {
	t.Helper()

	machine, err := run.NewMachine(run.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("NewMachine failed: %v", err)
	}
	db, err := history.Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("history.Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return NewServer(machine, db, NewTelemetryHub(), displayUnits), machine, db
}

func seedRun(t *testing.T, db *history.DB, id string) run.Record {
	t.Helper()
	rec := run.Record{
		ID:           id,
		Mode:         run.ModeQuarterMile,
		CreatedAt:    time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		PeakSpeedKmh: 178.4,
		AvgSpeedKmh:  110.2,
		DistanceM:    402.9,
		ElapsedS:     13.1,
		Milestones: []run.Milestone{
			{TargetM: 20, Captured: true, ElapsedS: 2.2, SpeedKmh: 51.0},
			{TargetM: 402, Captured: true, ElapsedS: 13.1, SpeedKmh: 176.5},
		},
	}
	trace := []history.TracePoint{
		{OffsetMs: 0, SpeedKmh: 0, DistanceM: 0},
		{OffsetMs: 1000, SpeedKmh: 42.1, DistanceM: 6.2},
	}
	if err := db.SaveRun(rec, trace); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	return rec
}

func TestCommandEndpoints(t *testing.T) {
	srv, machine, _ := newTestServer(t, units.KMPH)
	mux := srv.ServeMux()

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/arm", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("arm status = %d", rec.Code)
	}
	var tel run.Telemetry
	if err := json.NewDecoder(rec.Body).Decode(&tel); err != nil {
		t.Fatalf("decode telemetry: %v", err)
	}
	if tel.State != run.StateArmed {
		t.Errorf("state after arm = %s, want armed", tel.State)
	}
	if machine.State() != run.StateArmed {
		t.Errorf("machine state = %s, want armed", machine.State())
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/reset", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("reset status = %d", rec.Code)
	}
	if machine.State() != run.StateIdle {
		t.Errorf("machine state after reset = %s, want idle", machine.State())
	}

	// Commands are POST only.
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/arm", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET arm status = %d, want 405", rec.Code)
	}
}

func TestTelemetryUnits(t *testing.T) {
	srv, machine, _ := newTestServer(t, units.MPH)
	machine.Arm()

	rec := httptest.NewRecorder()
	srv.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/telemetry", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("telemetry status = %d", rec.Code)
	}
	var tel telemetryResponse
	if err := json.NewDecoder(rec.Body).Decode(&tel); err != nil {
		t.Fatalf("decode telemetry: %v", err)
	}
	// Nothing has moved, so converted speeds stay zero but the state and
	// lock flags come through.
	if tel.State != run.StateArmed || !tel.WaitingForLock {
		t.Errorf("unexpected telemetry: %+v", tel)
	}
	if tel.Units != units.MPH {
		t.Errorf("units = %q, want %q", tel.Units, units.MPH)
	}
}

func TestTelemetryNamesDisplayUnit(t *testing.T) {
	srv, _, _ := newTestServer(t, units.KMPH)

	rec := httptest.NewRecorder()
	srv.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/telemetry", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("telemetry status = %d", rec.Code)
	}
	var payload map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode telemetry: %v", err)
	}
	if payload["units"] != units.KMPH {
		t.Errorf("units field = %v, want %q", payload["units"], units.KMPH)
	}
}

func TestVersionEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t, units.KMPH)

	rec := httptest.NewRecorder()
	srv.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/version", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("version status = %d", rec.Code)
	}
	var info map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatalf("decode version: %v", err)
	}
	if info["version"] == "" {
		t.Error("version field missing")
	}
}

func TestListRuns(t *testing.T) {
	srv, _, db := newTestServer(t, units.KMPH)
	seedRun(t, db, "run-1")

	rec := httptest.NewRecorder()
	srv.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("runs status = %d", rec.Code)
	}
	var records []run.Record
	if err := json.NewDecoder(rec.Body).Decode(&records); err != nil {
		t.Fatalf("decode runs: %v", err)
	}
	if len(records) != 1 || records[0].ID != "run-1" {
		t.Errorf("unexpected records: %+v", records)
	}

	rec = httptest.NewRecorder()
	srv.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs?limit=bogus", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", rec.Code)
	}
}

func TestShowAndDeleteRun(t *testing.T) {
	srv, _, db := newTestServer(t, units.KMPH)
	want := seedRun(t, db, "run-1")
	mux := srv.ServeMux()

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/run-1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("show status = %d", rec.Code)
	}
	var got run.Record
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode run: %v", err)
	}
	if got.ID != want.ID || got.PeakSpeedKmh != want.PeakSpeedKmh {
		t.Errorf("got %+v, want %+v", got, want)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/runs/run-1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/run-1", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("show after delete status = %d, want 404", rec.Code)
	}
}

func TestRunTraceAndSummary(t *testing.T) {
	srv, _, db := newTestServer(t, units.KMPH)
	seedRun(t, db, "run-1")
	mux := srv.ServeMux()

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/run-1/trace", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("trace status = %d", rec.Code)
	}
	var trace []history.TracePoint
	if err := json.NewDecoder(rec.Body).Decode(&trace); err != nil {
		t.Fatalf("decode trace: %v", err)
	}
	if len(trace) != 2 {
		t.Errorf("trace points = %d, want 2", len(trace))
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/run-1/summary", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("summary status = %d", rec.Code)
	}
	var summary analysis.Summary
	if err := json.NewDecoder(rec.Body).Decode(&summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if len(summary.Splits) != 2 {
		t.Errorf("splits = %d, want 2", len(summary.Splits))
	}
}

func TestExportCSV(t *testing.T) {
	srv, _, db := newTestServer(t, units.KMPH)
	seedRun(t, db, "run-1")

	rec := httptest.NewRecorder()
	srv.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/run-1/export.csv", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("export status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("content-type = %s, want text/csv", ct)
	}
	if body := rec.Body.String(); !strings.Contains(body, "id,run-1") {
		t.Errorf("CSV body missing run summary:\n%s", body)
	}
}

func TestRunNotFoundRoutes(t *testing.T) {
	srv, _, _ := newTestServer(t, units.KMPH)
	mux := srv.ServeMux()

	for _, path := range []string{
		"/api/runs/missing",
		"/api/runs/missing/trace",
		"/api/runs/missing/summary",
		"/api/runs/missing/export.csv",
	} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s status = %d, want 404", path, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/run-1/bogus", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown resource status = %d, want 404", rec.Code)
	}
}

func TestTelemetryStream(t *testing.T) {
	srv, _, _ := newTestServer(t, units.KMPH)
	ts := httptest.NewServer(srv.ServeMux())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/telemetry/stream")
	if err != nil {
		t.Fatalf("stream request failed: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content-type = %s, want text/event-stream", ct)
	}

	reader := bufio.NewReader(resp.Body)

	// Initial ping.
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read ping: %v", err)
	}
	if !strings.HasPrefix(line, ": ping") {
		t.Fatalf("first line = %q, want ping comment", line)
	}

	// Give the handler a moment to register its subscription, then publish.
	deadline := time.Now().Add(2 * time.Second)
	go func() {
		for time.Now().Before(deadline) {
			srv.hub.Publish(run.Telemetry{State: run.StateRunning, SpeedKmh: 88.0})
			time.Sleep(20 * time.Millisecond)
		}
	}()

	var dataLine string
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		if strings.HasPrefix(line, "data: ") {
			dataLine = line
			break
		}
	}

	var tel run.Telemetry
	if err := json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(dataLine), "data: ")), &tel); err != nil {
		t.Fatalf("decode stream telemetry: %v", err)
	}
	if tel.SpeedKmh != 88.0 || tel.State != run.StateRunning {
		t.Errorf("unexpected stream telemetry: %+v", tel)
	}
}
