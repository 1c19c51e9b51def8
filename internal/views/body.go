package views

import (
	"context"
	"log/slog"
	"time"

	"github.com/claude/fitconsole/internal/models"
	"github.com/claude/fitconsole/internal/sampler"
	"github.com/claude/fitconsole/internal/units"
)

// Body shows body-composition charts.
type Body struct {
	base
	backend Backend

	// Now is the reference time for charts. Defaults to time.Now.
	Now func() time.Time

	profile *models.Profile
	series  []models.Measurement
	loaded  bool
}

// Point is one chart sample.
type Point struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// Chart is one cadence of the weight and fat-ratio charts.
type Chart struct {
	Cadence  string  `json:"cadence"`
	Interval string  `json:"interval"`
	Weight   []Point `json:"weight"`
	FatRatio []Point `json:"fat_ratio"`
}

// KeyPointRow is a labelled weight at a lookback tick.
type KeyPointRow struct {
	Label  string    `json:"label"`
	Date   time.Time `json:"date"`
	Weight float64   `json:"weight"`
}

// BodyState is the rendered body view.
type BodyState struct {
	Loaded      bool                  `json:"loaded"`
	Units       models.UnitPreference `json:"units,omitempty"`
	WeightLabel string                `json:"weight_label"`
	Charts      []Chart               `json:"charts"`
	KeyPoints   []KeyPointRow         `json:"key_points"`
}

func NewBody(backend Backend, log *slog.Logger) *Body {
	return &Body{base: newBase("body", log), backend: backend, Now: time.Now}
}

// Load fetches the profile and the measurement series.
func (b *Body) Load(ctx context.Context) error {
	fetch(&b.base, "profile", b.backend.GetProfile, func(p *models.Profile) { b.profile = p })
	fetch(&b.base, "series", b.backend.GetSeries, func(ms []models.Measurement) {
		b.series = ms
		b.loaded = true
	})
	return b.wait(ctx)
}

// State renders every cadence and the key points. Weights are converted to the
// profile's units; fat ratio is a percentage and never converted.
func (b *Body) State() BodyState {
	b.mu.Lock()
	defer b.mu.Unlock()

	pref := b.profile.Units()
	st := BodyState{
		Loaded:      b.loaded && b.profile != nil,
		Units:       pref,
		WeightLabel: units.WeightLabel(pref),
		Charts:      []Chart{},
		KeyPoints:   []KeyPointRow{},
	}
	if !b.loaded {
		return st
	}

	weights := withValue(b.series, func(m models.Measurement) models.Field[float64] { return m.Weight })
	fats := withValue(b.series, func(m models.Measurement) models.Field[float64] { return m.FatRatio })
	now := b.Now()

	for _, c := range sampler.Cadences {
		st.Charts = append(st.Charts, Chart{
			Cadence:  c.Name,
			Interval: c.Interval.String(),
			Weight:   points(sampler.ByCadence(weights, c, now), func(m models.Measurement) models.Field[float64] { return units.Weight(m.Weight, pref) }),
			FatRatio: points(sampler.ByCadence(fats, c, now), func(m models.Measurement) models.Field[float64] { return m.FatRatio }),
		})
	}

	for _, kp := range sampler.KeyPoints(weights) {
		w, _ := units.Weight(kp.Measurement.Weight, pref).Get()
		st.KeyPoints = append(st.KeyPoints, KeyPointRow{Label: kp.Label, Date: kp.Measurement.At(), Weight: w})
	}
	return st
}

// withValue keeps the measurements where value is set. A sample without the
// charted value must not claim a bucket.
func withValue(ms []models.Measurement, value func(models.Measurement) models.Field[float64]) []models.Measurement {
	out := make([]models.Measurement, 0, len(ms))
	for _, m := range ms {
		if value(m).IsSet() {
			out = append(out, m)
		}
	}
	return out
}

func points(ms []models.Measurement, value func(models.Measurement) models.Field[float64]) []Point {
	out := make([]Point, 0, len(ms))
	for _, m := range ms {
		if v, ok := value(m).Get(); ok {
			out = append(out, Point{Date: m.At(), Value: v})
		}
	}
	return out
}
