package timeutil

import (
	"testing"
	"time"
)

func TestRealClockNow(t *testing.T) {
	c := RealClock{}
	before := time.Now()
	got := c.Now()
	after := time.Now()
	if got.Before(before) || got.After(after) {
		t.Errorf("RealClock.Now() = %v outside [%v, %v]", got, before, after)
	}
}

func TestMockClockSetAndAdvance(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(base)

	if got := c.Now(); !got.Equal(base) {
		t.Errorf("Now() = %v, want %v", got, base)
	}

	c.Advance(450 * time.Millisecond)
	if got := c.Now(); !got.Equal(base.Add(450 * time.Millisecond)) {
		t.Errorf("Now() after Advance = %v", got)
	}

	other := base.Add(time.Hour)
	c.Set(other)
	if got := c.Now(); !got.Equal(other) {
		t.Errorf("Now() after Set = %v, want %v", got, other)
	}
}

func TestMockClockSince(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(base)
	c.Advance(2 * time.Second)

	if got := c.Since(base); got != 2*time.Second {
		t.Errorf("Since = %v, want 2s", got)
	}
}

func TestMockClockSleepRecordsAndAdvances(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(base)

	c.Sleep(100 * time.Millisecond)
	c.Sleep(250 * time.Millisecond)

	sleeps := c.Sleeps()
	if len(sleeps) != 2 || sleeps[0] != 100*time.Millisecond || sleeps[1] != 250*time.Millisecond {
		t.Errorf("Sleeps = %v", sleeps)
	}
	if got := c.Now(); !got.Equal(base.Add(350 * time.Millisecond)) {
		t.Errorf("Now() after sleeps = %v", got)
	}
}
