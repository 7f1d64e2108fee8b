// Package units provides shared constants and conversions for speed units.
// The pipeline and the run store both keep speeds in m/s; km/h is the
// display and threshold unit.
package units

// Unit constants
const (
	MPS  = "mps"
	MPH  = "mph"
	KMPH = "kmph"
	KPH  = "kph"
)

// Conversion factors from m/s.
const (
	mpsToMph  = 2.23694
	mpsToKmh  = 3.6
	knotToMps = 0.514444
)

// ValidUnits contains all valid unit values.
var ValidUnits = []string{MPS, MPH, KMPH, KPH}

// IsValid checks if the given unit is in the list of valid units.
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// ConvertSpeed converts a speed from meters per second to the target units.
func ConvertSpeed(speedMPS float64, targetUnits string) float64 {
	switch targetUnits {
	case MPH:
		return speedMPS * mpsToMph
	case KMPH, KPH:
		return speedMPS * mpsToKmh
	case MPS:
		return speedMPS
	default:
		return speedMPS // default to m/s if unknown unit
	}
}

// MpsToKmh converts meters per second to kilometers per hour.
func MpsToKmh(mps float64) float64 { return mps * mpsToKmh }

// KmhToMps converts kilometers per hour to meters per second.
func KmhToMps(kmh float64) float64 { return kmh / mpsToKmh }

// KnotsToMps converts nautical knots (as reported in NMEA RMC sentences)
// to meters per second.
func KnotsToMps(knots float64) float64 { return knots * knotToMps }
