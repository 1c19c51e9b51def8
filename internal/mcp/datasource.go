package mcp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/claude/fitconsole/internal/api"
	"github.com/claude/fitconsole/internal/views"
)

// DataSource supplies rendered views to the MCP tools. Local renders them in
// process; HTTPClient fetches them from a running fitconsole-server.
type DataSource interface {
	Dashboard(ctx context.Context) (*views.DashboardState, error)
	Body(ctx context.Context) (*views.BodyState, error)
	Activities(ctx context.Context, req api.ListRequest) (*views.RecordsState, error)
	Services(ctx context.Context) (*views.ServicesState, error)
}

// Local renders views against a backend in this process.
type Local struct {
	backend views.Backend
	log     *slog.Logger
}

// Compile-time check: Local satisfies DataSource.
var _ DataSource = (*Local)(nil)

func NewLocal(backend views.Backend, log *slog.Logger) *Local {
	return &Local{backend: backend, log: log}
}

func (l *Local) Dashboard(ctx context.Context) (*views.DashboardState, error) {
	v := views.NewDashboard(l.backend, l.log)
	return render(ctx, "dashboard", v, v.State, func(st views.DashboardState) bool { return st.Loaded })
}

func (l *Local) Body(ctx context.Context) (*views.BodyState, error) {
	v := views.NewBody(l.backend, l.log)
	return render(ctx, "body", v, v.State, func(st views.BodyState) bool { return st.Loaded })
}

func (l *Local) Activities(ctx context.Context, req api.ListRequest) (*views.RecordsState, error) {
	v := views.NewActivities(l.backend, req, l.log)
	return render(ctx, "activities", v, v.State, func(st views.RecordsState) bool { return st.Loaded })
}

func (l *Local) Services(ctx context.Context) (*views.ServicesState, error) {
	v := views.NewServices(l.backend, l.log)
	return render(ctx, "services", v, v.State, func(st views.ServicesState) bool { return st.Loaded })
}

type loader interface {
	Load(ctx context.Context) error
	Close()
}

// render loads v once and returns its state. Views swallow fetch failures, so
// a state that is not loaded is reported as an error here.
func render[S any](ctx context.Context, name string, v loader, state func() S, loaded func(S) bool) (*S, error) {
	defer v.Close()
	if err := v.Load(ctx); err != nil {
		return nil, err
	}
	st := state()
	if !loaded(st) {
		return nil, fmt.Errorf("%s: backend data unavailable", name)
	}
	return &st, nil
}
