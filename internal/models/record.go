package models

// Record kinds returned by the data plane.
const (
	KindActivity = "activity"
	KindRoute    = "route"
	KindSegment  = "segment"
)

// RecordProperties are the raw metric values of an activity, route or segment.
// Distances and elevations are meters, times seconds, speeds meters per second.
type RecordProperties struct {
	Name               string         `json:"name"`
	Type               string         `json:"type,omitempty"`
	StartDate          *Time          `json:"start_date,omitempty"`
	Distance           Field[float64] `json:"distance,omitzero"`
	MovingTime         Field[float64] `json:"moving_time,omitzero"`
	ElapsedTime        Field[float64] `json:"elapsed_time,omitzero"`
	AverageSpeed       Field[float64] `json:"average_speed,omitzero"`
	MaxSpeed           Field[float64] `json:"max_speed,omitzero"`
	TotalElevationGain Field[float64] `json:"total_elevation_gain,omitzero"`
	AverageGrade       Field[float64] `json:"average_grade,omitzero"`
	Polyline           string         `json:"polyline,omitempty"`
}

// Record is an activity, route or segment. Records are read-only on the client.
type Record struct {
	ID         string           `json:"id"`
	Kind       string           `json:"kind,omitempty"`
	Properties RecordProperties `json:"properties"`
}

// Effort is one athlete's attempt on a segment.
type Effort struct {
	ActivityID  string         `json:"activity_id"`
	AthleteName string         `json:"athlete_name"`
	ElapsedTime Field[float64] `json:"elapsed_time,omitzero"`
	StartDate   *Time          `json:"start_date,omitempty"`
	Rank        int            `json:"rank,omitempty"`
}

// SegmentComparison is the payload of compare_segments.
type SegmentComparison struct {
	Segment Record   `json:"segment"`
	Efforts []Effort `json:"efforts"`
}
