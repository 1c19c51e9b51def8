package sampler

import (
	"slices"
	"time"

	"github.com/claude/fitconsole/internal/models"
)

// KeyPoint is the latest measurement at or before a fixed lookback tick.
type KeyPoint struct {
	Label       string             `json:"label"`
	Tick        time.Time          `json:"tick"`
	Measurement models.Measurement `json:"measurement"`
}

type tick struct {
	label string
	back  func(time.Time) time.Time
}

// ticks are ordered newest first.
var ticks = []tick{
	{"now", func(t time.Time) time.Time { return t }},
	{"1 week ago", func(t time.Time) time.Time { return t.AddDate(0, 0, -7) }},
	{"1 month ago", func(t time.Time) time.Time { return addMonths(t, -1) }},
	{"6 months ago", func(t time.Time) time.Time { return addMonths(t, -6) }},
	{"1 year ago", func(t time.Time) time.Time { return addMonths(t, -12) }},
}

// KeyPoints picks up to five points for a compact "then and now" display: the
// latest sample at or before the end of the newest sample's day, one week, one
// month, six months and one year earlier. Each point lies in (next tick, tick],
// so a tick with no sample of its own is left out rather than repeating an
// older sample. The result is in ascending date order.
func KeyPoints(series []models.Measurement) []KeyPoint {
	if len(series) == 0 {
		return nil
	}

	sorted := newestFirst(series)
	today := endOfDay(sorted[0].At())
	bounds := make([]time.Time, len(ticks))
	for i, tk := range ticks {
		bounds[i] = tk.back(today)
	}

	var out []KeyPoint
	next := 0
	for _, m := range sorted {
		at := m.At()
		if at.After(bounds[next]) {
			continue
		}
		for next+1 < len(bounds) && !at.After(bounds[next+1]) {
			next++
		}
		out = append(out, KeyPoint{Label: ticks[next].label, Tick: bounds[next], Measurement: m})
		next++
		if next == len(bounds) {
			break
		}
	}

	slices.Reverse(out)
	return out
}
