// Package geomath provides great-circle distance and bearing calculations
// over a spherical-Earth approximation. Distances feed the run pipeline's
// accumulator; bearings are used only for heading-gate comparisons.
package geomath

import "math"

// EarthRadiusMeters is the mean Earth radius used for the spherical
// approximation.
const EarthRadiusMeters = 6371000.0

// Coordinate is a WGS84 position in decimal degrees.
type Coordinate struct {
	Lat float64
	Lon float64
}

// DistanceMeters returns the great-circle distance between a and b in meters
// using the haversine formula. Identical points return 0.
func DistanceMeters(a, b Coordinate) float64 {
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLat := radians(b.Lat - a.Lat)
	dLon := radians(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusMeters * c
}

// BearingDegrees returns the initial bearing from a to b, normalized
// to [0, 360).
func BearingDegrees(a, b Coordinate) float64 {
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLon := radians(b.Lon - a.Lon)

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	deg := degrees(math.Atan2(y, x))
	return math.Mod(deg+360, 360)
}

// AngleDiffDegrees returns the minimal absolute angular difference between two
// bearings, in [0, 180]. The +540 form keeps the result correct across the
// 0/360 wraparound.
func AngleDiffDegrees(a, b float64) float64 {
	return math.Abs(math.Mod(b-a+540, 360) - 180)
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

func degrees(rad float64) float64 { return rad * 180 / math.Pi }
