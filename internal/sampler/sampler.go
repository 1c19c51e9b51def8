// Package sampler downsamples dated measurement series for charting: at most
// one point per calendar bucket, each the latest sample at or before its bucket
// boundary.
package sampler

import (
	"fmt"
	"slices"
	"time"

	"github.com/claude/fitconsole/internal/models"
)

// Interval is a calendar bucket size.
type Interval int

const (
	Day Interval = iota
	Week
	Month
)

// ParseInterval accepts the short forms used by the API ("d", "w", "M") and
// the long names.
func ParseInterval(s string) (Interval, error) {
	switch s {
	case "d", "D", "day", "daily":
		return Day, nil
	case "w", "W", "week", "weekly":
		return Week, nil
	case "M", "month", "monthly":
		return Month, nil
	}
	return 0, fmt.Errorf("unknown interval %q", s)
}

func (i Interval) String() string {
	switch i {
	case Day:
		return "day"
	case Week:
		return "week"
	case Month:
		return "month"
	}
	return fmt.Sprintf("Interval(%d)", int(i))
}

// startOf floors t to the start of its bucket. Weeks start on Monday.
func (i Interval) startOf(t time.Time) time.Time {
	y, m, d := t.Date()
	switch i {
	case Week:
		day := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case Month:
		return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
	default:
		return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	}
}

// sub moves t back by n buckets.
func (i Interval) sub(t time.Time, n int) time.Time {
	switch i {
	case Week:
		return t.AddDate(0, 0, -7*n)
	case Month:
		return addMonths(t, -n)
	default:
		return t.AddDate(0, 0, -n)
	}
}

// addMonths shifts t by n calendar months, clamping the day to the target
// month's length so Mar 31 minus one month is Feb 28/29 rather than Mar 3.
func addMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := daysIn(first); d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

func daysIn(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}

// Cadence is an interval with the number of buckets to look back.
type Cadence struct {
	Name     string   `json:"name"`
	Interval Interval `json:"-"`
	Count    int      `json:"count"`
}

// Cadences are the chart ranges offered for body-composition series.
var Cadences = []Cadence{
	{Name: "daily", Interval: Day, Count: 30},
	{Name: "weekly", Interval: Week, Count: 26},
	{Name: "monthly", Interval: Month, Count: 12},
}

// CadenceByName returns the preset cadence with the given name.
func CadenceByName(name string) (Cadence, bool) {
	for _, c := range Cadences {
		if c.Name == name {
			return c, true
		}
	}
	return Cadence{}, false
}

// endOfDay returns the last instant of t's calendar day.
func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location()).Add(-time.Nanosecond)
}

// newestFirst returns a copy of series sorted by date, newest first. Series
// arrive ascending, so the copy is reversed before the stable sort: among equal
// dates the later-listed point comes first, as in a backwards scan.
func newestFirst(series []models.Measurement) []models.Measurement {
	out := slices.Clone(series)
	slices.Reverse(out)
	slices.SortStableFunc(out, func(a, b models.Measurement) int {
		return b.At().Compare(a.At())
	})
	return out
}

// ByInterval samples series into at most count buckets of the given interval,
// ending with the bucket that contains now. Points newer than the end of today
// or older than the horizon are skipped. The result is in ascending date order.
func ByInterval(series []models.Measurement, interval Interval, count int, now time.Time) []models.Measurement {
	if count <= 0 || len(series) == 0 {
		return nil
	}

	upper := endOfDay(now)
	earliest := interval.sub(upper, count)

	var picked []models.Measurement
	for _, m := range newestFirst(series) {
		at := m.At().In(now.Location())
		if at.After(upper) {
			continue
		}
		if at.Before(earliest) {
			break
		}
		picked = append(picked, m)
		// The next point must come from an earlier bucket.
		upper = interval.startOf(at).Add(-time.Nanosecond)
	}

	slices.Reverse(picked)
	return picked
}

// ByCadence is ByInterval with a preset cadence.
func ByCadence(series []models.Measurement, c Cadence, now time.Time) []models.Measurement {
	return ByInterval(series, c.Interval, c.Count, now)
}
