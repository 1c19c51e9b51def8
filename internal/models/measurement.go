package models

import "time"

// Measurement is one body-composition sample from the backend's measurement series.
// Weight is in kilograms, FatRatio in percent.
type Measurement struct {
	Date     Time           `json:"date"`
	Weight   Field[float64] `json:"weight,omitzero"`
	FatRatio Field[float64] `json:"fat_ratio,omitzero"`
}

// At returns the measurement time.
func (m Measurement) At() time.Time {
	return m.Date.Time
}

// Series is the payload of get_series.
type Series struct {
	Measurements []Measurement `json:"measurements"`
}
