// Package units formats raw metric measurements for display in the user's
// preferred unit system. Every function is pure and total: missing input
// yields a "no data" result instead of an error.
package units

import (
	"fmt"
	"math"
	"strconv"

	"github.com/claude/fitconsole/internal/models"
)

const (
	metersPerKilometer = 1000.0
	metersPerMile      = 1609.344
	metersPerFoot      = 0.3048
	kilogramsPerPound  = 0.45359237
	secondsPerHour     = 3600.0
)

// Speed conversions are kept in their own table rather than derived from the
// distance factors above.
const (
	kmhPerMps = secondsPerHour / metersPerKilometer
	mphPerKmh = metersPerKilometer / metersPerMile
)

// Distance renders meters as kilometers or miles with two decimals.
// It returns false when no value is present.
func Distance(meters models.Field[float64], pref models.UnitPreference) (string, bool) {
	m, ok := meters.Get()
	if !ok {
		return "", false
	}
	if pref.Imperial() {
		return fixed(m/metersPerMile, 2) + " mi", true
	}
	return fixed(m/metersPerKilometer, 2) + " km", true
}

// Elevation renders meters as meters or feet with two decimals.
func Elevation(meters models.Field[float64], pref models.UnitPreference) (string, bool) {
	m, ok := meters.Get()
	if !ok {
		return "", false
	}
	if pref.Imperial() {
		return fixed(m/metersPerFoot, 2) + " ft", true
	}
	return fixed(m, 2) + " m", true
}

// Speed renders meters per second as km/h or mph. Zero counts as no data.
func Speed(mps models.Field[float64], pref models.UnitPreference) (string, bool) {
	v, ok := mps.Get()
	if !ok || v == 0 {
		return "", false
	}
	kmh := v * kmhPerMps
	if pref.Imperial() {
		return fixed(kmh*mphPerKmh, 2) + " mph", true
	}
	return fixed(kmh, 2) + " km/h", true
}

// Weight converts kilograms to the preferred unit rounded to one decimal.
// An unset input stays unset and a null input stays null.
func Weight(kg models.Field[float64], pref models.UnitPreference) models.Field[float64] {
	v, ok := kg.Get()
	if !ok {
		return kg
	}
	if pref.Imperial() {
		v /= kilogramsPerPound
	}
	return models.Some(round(v, 1))
}

// WeightLabel is the unit suffix matching Weight's output.
func WeightLabel(pref models.UnitPreference) string {
	if pref.Imperial() {
		return "lb"
	}
	return "kg"
}

// Duration formats seconds as hh:mm:ss. Hours keep counting past 24.
func Duration(seconds models.Field[float64]) (string, bool) {
	s, ok := seconds.Get()
	if !ok {
		return "", false
	}
	if s < 0 {
		s = 0
	}
	total := int64(math.Round(s))
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, total%3600/60, total%60), true
}

func fixed(v float64, places int) string {
	return strconv.FormatFloat(round(v, places), 'f', places, 64)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
