package baro

import (
	"math"
	"time"
)

// HectopascalToPascal is the factor converting sensor values to SI units.
const HectopascalToPascal = 100.0

// Reading is a single pressure observation as it appears in the sensor log.
type Reading struct {
	Timestamp time.Time // Observation instant, UTC
	SensorID  int64     // Unique per physical sensor
	ModuleID  string    // Parent device the sensor belongs to
	Value     float64   // Pressure in hPa, NaN when the log cell is empty
}

// IsValid reports whether the reading carries a usable pressure value.
func (r Reading) IsValid() bool {
	return !math.IsNaN(r.Value) && !math.IsInf(r.Value, 0)
}
