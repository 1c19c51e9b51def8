package views

import (
	"context"
	"log/slog"

	"github.com/claude/fitconsole/internal/api"
	"github.com/claude/fitconsole/internal/models"
)

// RecentActivities is how many activities the dashboard shows.
const RecentActivities = 10

// Dashboard shows the user and their latest activities.
type Dashboard struct {
	base
	backend Backend

	profile    *models.Profile
	activities []models.Record
	hasActs    bool
}

// DashboardState is the rendered dashboard.
type DashboardState struct {
	Loaded     bool                  `json:"loaded"`
	Name       string                `json:"name,omitempty"`
	Units      models.UnitPreference `json:"units,omitempty"`
	Activities []RecordRow           `json:"activities"`
}

func NewDashboard(backend Backend, log *slog.Logger) *Dashboard {
	return &Dashboard{base: newBase("dashboard", log), backend: backend}
}

// Load fetches the profile and recent activities.
func (d *Dashboard) Load(ctx context.Context) error {
	fetch(&d.base, "profile", d.backend.GetProfile, func(p *models.Profile) { d.profile = p })
	fetch(&d.base, "activities", func(ctx context.Context) ([]models.Record, error) {
		return d.backend.GetActivities(ctx, api.ListRequest{Limit: RecentActivities})
	}, func(rs []models.Record) {
		d.activities = rs
		d.hasActs = true
	})
	return d.wait(ctx)
}

// State renders the dashboard. Activity values use the profile's units once the
// profile is loaded and metric until then.
func (d *Dashboard) State() DashboardState {
	d.mu.Lock()
	defer d.mu.Unlock()

	pref := d.profile.Units()
	st := DashboardState{
		Loaded:     d.profile != nil && d.hasActs,
		Units:      pref,
		Activities: recordRows(d.activities, pref),
	}
	if d.profile != nil && d.profile.User != nil {
		st.Name = d.profile.User.Name
	}
	return st
}
