// Package views turns backend responses into display-ready state.
//
// A view is created when something is shown and closed when it goes away. Load
// starts each fetch the view needs at most once and waits for them; a failed
// fetch is logged and leaves the view not loaded, and a later Load tries it
// again. Close cancels whatever is still in flight, after which no response
// reaches the view.
package views

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/claude/fitconsole/internal/api"
	"github.com/claude/fitconsole/internal/models"
	"github.com/claude/fitconsole/internal/task"
	"github.com/claude/fitconsole/internal/units"
)

// Backend is the part of the API client the views use.
type Backend interface {
	GetProfile(ctx context.Context) (*models.Profile, error)
	GetActivities(ctx context.Context, req api.ListRequest) ([]models.Record, error)
	GetRoutes(ctx context.Context, req api.ListRequest) ([]models.Record, error)
	GetSegments(ctx context.Context, req api.ListRequest) ([]models.Record, error)
	CompareSegments(ctx context.Context, req api.CompareRequest) (*models.SegmentComparison, error)
	GetSeries(ctx context.Context) ([]models.Measurement, error)
	SyncService(ctx context.Context, name string) (*models.Service, error)
	GetUsers(ctx context.Context) ([]models.AdminUser, error)
	GetBot(ctx context.Context) (*models.Bot, error)
	GetClubs(ctx context.Context) ([]models.Club, error)
	GetSlack(ctx context.Context) ([]models.SlackInstall, error)
	TrackClub(ctx context.Context, clubID string) (*models.Club, error)
	UntrackClub(ctx context.Context, clubID string) (*models.Club, error)
	SyncClub(ctx context.Context, clubID string) (*models.Club, error)
}

var _ Backend = (*api.Client)(nil)

// base is embedded by every view. mu guards the embedding view's state.
type base struct {
	name  string
	group *task.Group
	log   *slog.Logger
	mu    sync.Mutex
}

func newBase(name string, log *slog.Logger) base {
	return base{
		name:  name,
		group: task.NewGroup(context.Background()),
		log:   log.With("view", name),
	}
}

// Close cancels in-flight fetches. The view keeps whatever it already loaded.
func (b *base) Close() {
	b.group.Close()
}

// wait blocks until outstanding fetches settle or ctx ends. If ctx ends while a
// fetch hangs, the goroutine watching the group lives on until the fetch settles
// or Close cancels it.
func (b *base) wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.group.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// fetch runs fn once per key and stores its result under the view lock.
func fetch[T any](b *base, key string, fn func(context.Context) (T, error), store func(T)) {
	fetchOr(b, key, fn, store, nil)
}

// fetchOr is fetch with an extra failure hook, also run under the view lock.
func fetchOr[T any](b *base, key string, fn func(context.Context) (T, error), store func(T), failed func(error)) {
	task.Once(b.group, key, fn, func(v T) {
		b.mu.Lock()
		defer b.mu.Unlock()
		store(v)
	}, func(err error) {
		b.log.Warn("load failed", "concern", key, "error", err)
		if failed != nil {
			b.mu.Lock()
			defer b.mu.Unlock()
			failed(err)
		}
	})
}

// RecordRow is an activity, route or segment with readable values. Missing
// values are empty strings.
type RecordRow struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Type         string     `json:"type,omitempty"`
	StartDate    *time.Time `json:"start_date,omitempty"`
	Distance     string     `json:"distance,omitempty"`
	Elevation    string     `json:"elevation,omitempty"`
	MovingTime   string     `json:"moving_time,omitempty"`
	ElapsedTime  string     `json:"elapsed_time,omitempty"`
	AverageSpeed string     `json:"average_speed,omitempty"`
	MaxSpeed     string     `json:"max_speed,omitempty"`
	Polyline     string     `json:"polyline,omitempty"`
}

func recordRow(r models.Record, pref models.UnitPreference) RecordRow {
	p := r.Properties
	row := RecordRow{ID: r.ID, Name: p.Name, Type: p.Type, Polyline: p.Polyline}
	if p.StartDate != nil {
		t := p.StartDate.Time
		row.StartDate = &t
	}
	row.Distance, _ = units.Distance(p.Distance, pref)
	row.Elevation, _ = units.Elevation(p.TotalElevationGain, pref)
	row.MovingTime, _ = units.Duration(p.MovingTime)
	row.ElapsedTime, _ = units.Duration(p.ElapsedTime)
	row.AverageSpeed, _ = units.Speed(p.AverageSpeed, pref)
	row.MaxSpeed, _ = units.Speed(p.MaxSpeed, pref)
	return row
}

func recordRows(rs []models.Record, pref models.UnitPreference) []RecordRow {
	rows := make([]RecordRow, len(rs))
	for i, r := range rs {
		rows[i] = recordRow(r, pref)
	}
	return rows
}
