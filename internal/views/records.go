package views

import (
	"context"
	"log/slog"

	"github.com/claude/fitconsole/internal/api"
	"github.com/claude/fitconsole/internal/models"
	"github.com/claude/fitconsole/internal/units"
)

// Records lists activities, routes or segments.
type Records struct {
	base
	backend Backend
	kind    string
	list    func(context.Context, api.ListRequest) ([]models.Record, error)
	req     api.ListRequest

	profile *models.Profile
	records []models.Record
	loaded  bool
}

// RecordsState is a rendered record list.
type RecordsState struct {
	Loaded  bool                  `json:"loaded"`
	Kind    string                `json:"kind"`
	Units   models.UnitPreference `json:"units,omitempty"`
	Records []RecordRow           `json:"records"`
}

func newRecords(backend Backend, kind string, list func(context.Context, api.ListRequest) ([]models.Record, error), req api.ListRequest, log *slog.Logger) *Records {
	return &Records{base: newBase(kind+"s", log), backend: backend, kind: kind, list: list, req: req}
}

// NewActivities lists activities.
func NewActivities(backend Backend, req api.ListRequest, log *slog.Logger) *Records {
	return newRecords(backend, models.KindActivity, backend.GetActivities, req, log)
}

// NewRoutes lists routes.
func NewRoutes(backend Backend, req api.ListRequest, log *slog.Logger) *Records {
	return newRecords(backend, models.KindRoute, backend.GetRoutes, req, log)
}

// NewSegments lists segments.
func NewSegments(backend Backend, req api.ListRequest, log *slog.Logger) *Records {
	return newRecords(backend, models.KindSegment, backend.GetSegments, req, log)
}

// Load fetches the profile and the list.
func (r *Records) Load(ctx context.Context) error {
	fetch(&r.base, "profile", r.backend.GetProfile, func(p *models.Profile) { r.profile = p })
	fetch(&r.base, r.kind+"s", func(ctx context.Context) ([]models.Record, error) {
		return r.list(ctx, r.req)
	}, func(rs []models.Record) {
		r.records = rs
		r.loaded = true
	})
	return r.wait(ctx)
}

func (r *Records) State() RecordsState {
	r.mu.Lock()
	defer r.mu.Unlock()
	pref := r.profile.Units()
	return RecordsState{
		Loaded:  r.loaded && r.profile != nil,
		Kind:    r.kind,
		Units:   pref,
		Records: recordRows(r.records, pref),
	}
}

// SegmentCompare shows every effort on one segment.
type SegmentCompare struct {
	base
	backend Backend
	req     api.CompareRequest

	profile *models.Profile
	cmp     *models.SegmentComparison
}

// EffortRow is one effort with a readable time.
type EffortRow struct {
	ActivityID  string `json:"activity_id"`
	AthleteName string `json:"athlete_name"`
	ElapsedTime string `json:"elapsed_time,omitempty"`
	Rank        int    `json:"rank,omitempty"`
}

// SegmentCompareState is the rendered comparison.
type SegmentCompareState struct {
	Loaded  bool        `json:"loaded"`
	Segment *RecordRow  `json:"segment,omitempty"`
	Efforts []EffortRow `json:"efforts"`
}

func NewSegmentCompare(backend Backend, req api.CompareRequest, log *slog.Logger) *SegmentCompare {
	return &SegmentCompare{base: newBase("segment_compare", log), backend: backend, req: req}
}

// Load fetches the profile and the comparison.
func (s *SegmentCompare) Load(ctx context.Context) error {
	fetch(&s.base, "profile", s.backend.GetProfile, func(p *models.Profile) { s.profile = p })
	fetch(&s.base, "compare", func(ctx context.Context) (*models.SegmentComparison, error) {
		return s.backend.CompareSegments(ctx, s.req)
	}, func(c *models.SegmentComparison) { s.cmp = c })
	return s.wait(ctx)
}

func (s *SegmentCompare) State() SegmentCompareState {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := SegmentCompareState{Loaded: s.cmp != nil && s.profile != nil, Efforts: []EffortRow{}}
	if s.cmp == nil {
		return st
	}
	seg := recordRow(s.cmp.Segment, s.profile.Units())
	st.Segment = &seg
	for _, e := range s.cmp.Efforts {
		row := EffortRow{ActivityID: e.ActivityID, AthleteName: e.AthleteName, Rank: e.Rank}
		row.ElapsedTime, _ = units.Duration(e.ElapsedTime)
		st.Efforts = append(st.Efforts, row)
	}
	return st
}
