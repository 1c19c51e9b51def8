package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Time accepts the timestamp formats the backend emits: RFC 3339 with or without
// fractional seconds, and date-only "2006-01-02" for daily series.
type Time struct {
	time.Time
}

const DateOnlyLayout = "2006-01-02"

func (t *Time) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	return t.Parse(s)
}

func (t Time) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Format(time.RFC3339Nano))
}

// Parse parses a backend time string, trying full datetime first, then date-only.
func (t *Time) Parse(s string) error {
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err == nil {
		t.Time = parsed
		return nil
	}
	parsed, err2 := time.Parse(DateOnlyLayout, s)
	if err2 == nil {
		t.Time = parsed
		return nil
	}
	return fmt.Errorf("cannot parse time %q: %w", s, err)
}

// ParseTime parses a backend time string into a time.Time.
func ParseTime(s string) (time.Time, error) {
	var t Time
	if err := t.Parse(s); err != nil {
		return time.Time{}, err
	}
	return t.Time, nil
}
