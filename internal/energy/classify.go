package energy

import (
	"math"

	"energymon/internal/telemetry"
)

func thresholdMkw(value float64, useAbsolute bool) int32 {
	if useAbsolute {
		value = math.Abs(value)
	}
	return KWToMkw(value)
}

// Classify returns the band colour for value. NaN yields ColorNoData.
func Classify(t Thresholds, value float64, useAbsolute bool) RGB {
	if math.IsNaN(value) {
		return ColorNoData
	}

	mkw := thresholdMkw(value, useAbsolute)
	switch {
	case mkw < t.T[0]:
		return t.Good
	case mkw < t.T[1]:
		return t.OK
	case mkw < t.T[2]:
		return t.Attention
	default:
		return t.Warning
	}
}

// IsT2Triggered reports whether value reaches the warning threshold
func IsT2Triggered(t Thresholds, value float64, useAbsolute bool) bool {
	if math.IsNaN(value) {
		return false
	}
	return thresholdMkw(value, useAbsolute) >= t.T[2]
}

// IsT2Cleared reports whether value has dropped below t2 minus the
// hysteresis margin. NaN always counts as cleared.
func IsT2Cleared(t Thresholds, value float64, useAbsolute bool, hysteresisMkw int32) bool {
	if math.IsNaN(value) {
		return true
	}
	limit := t.T[2] - hysteresisMkw
	if useAbsolute && limit < 0 {
		limit = 0
	}
	return thresholdMkw(value, useAbsolute) < limit
}

// HasWarning reports whether any category currently reaches its warning
// threshold, without the alarm latch or hysteresis.
func HasWarning(s Settings, snap telemetry.Snapshot) bool {
	for _, c := range telemetry.Categories {
		if IsT2Triggered(*s.For(c), snap.Value(c), UseAbsolute(c)) {
			return true
		}
	}
	return false
}
