package geomath

import (
	"math"
	"testing"
)

func TestDistanceMeters_IdenticalPoints(t *testing.T) {
	pts := []Coordinate{
		{0, 0},
		{51.5074, -0.1278},
		{-33.8688, 151.2093},
		{89.9, 179.9},
	}
	for _, p := range pts {
		if d := DistanceMeters(p, p); d != 0 {
			t.Errorf("DistanceMeters(%v, %v) = %v, want 0", p, p, d)
		}
	}
}

func TestDistanceMeters_Symmetric(t *testing.T) {
	a := Coordinate{48.8566, 2.3522}
	b := Coordinate{52.5200, 13.4050}

	ab := DistanceMeters(a, b)
	ba := DistanceMeters(b, a)
	if math.Abs(ab-ba) > 1e-9 {
		t.Errorf("distance not symmetric: a->b=%v b->a=%v", ab, ba)
	}
}

func TestDistanceMeters_KnownDistance(t *testing.T) {
	// One degree of latitude on a sphere of radius 6371000 m is
	// 6371000 * pi/180 = 111194.93 m.
	a := Coordinate{0, 0}
	b := Coordinate{1, 0}

	want := EarthRadiusMeters * math.Pi / 180
	got := DistanceMeters(a, b)
	if math.Abs(got-want) > 0.01 {
		t.Errorf("DistanceMeters = %v, want %v", got, want)
	}
}

func TestDistanceMeters_ShortSegment(t *testing.T) {
	// ~1 m of northward displacement.
	a := Coordinate{47.0, 8.0}
	b := Coordinate{47.0 + 1.0/111194.9266, 8.0}

	got := DistanceMeters(a, b)
	if math.Abs(got-1.0) > 0.001 {
		t.Errorf("DistanceMeters = %v, want ~1.0", got)
	}
}

func TestBearingDegrees(t *testing.T) {
	tests := []struct {
		name string
		a, b Coordinate
		want float64
	}{
		{"due north", Coordinate{0, 0}, Coordinate{1, 0}, 0},
		{"due east", Coordinate{0, 0}, Coordinate{0, 1}, 90},
		{"due south", Coordinate{1, 0}, Coordinate{0, 0}, 180},
		{"due west", Coordinate{0, 1}, Coordinate{0, 0}, 270},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BearingDegrees(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("BearingDegrees = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBearingDegrees_Range(t *testing.T) {
	coords := []Coordinate{
		{10, 10}, {-10, 10}, {10, -10}, {-10, -10}, {80, 170}, {-80, -170},
	}
	for _, a := range coords {
		for _, b := range coords {
			if a == b {
				continue
			}
			got := BearingDegrees(a, b)
			if got < 0 || got >= 360 {
				t.Errorf("BearingDegrees(%v, %v) = %v out of [0,360)", a, b, got)
			}
		}
	}
}

func TestAngleDiffDegrees(t *testing.T) {
	tests := []struct {
		a, b, want float64
	}{
		{0, 0, 0},
		{0, 180, 180},
		{10, 350, 20},
		{350, 10, 20},
		{90, 270, 180},
		{359, 1, 2},
		{45, 45, 0},
		{0, 25, 25},
		{270, 90, 180},
	}
	for _, tt := range tests {
		got := AngleDiffDegrees(tt.a, tt.b)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("AngleDiffDegrees(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestAngleDiffDegrees_SymmetricAndBounded(t *testing.T) {
	for a := 0.0; a < 360; a += 15 {
		for b := 0.0; b < 360; b += 15 {
			ab := AngleDiffDegrees(a, b)
			ba := AngleDiffDegrees(b, a)
			if math.Abs(ab-ba) > 1e-9 {
				t.Errorf("AngleDiffDegrees not symmetric for (%v, %v): %v vs %v", a, b, ab, ba)
			}
			if ab < 0 || ab > 180 {
				t.Errorf("AngleDiffDegrees(%v, %v) = %v out of [0,180]", a, b, ab)
			}
		}
	}
}
