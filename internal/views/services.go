package views

import (
	"context"
	"log/slog"
	"time"

	"github.com/claude/fitconsole/internal/models"
	"github.com/claude/fitconsole/internal/task"
)

// Services shows the connection state of each third-party service.
type Services struct {
	base
	backend Backend

	profile  *models.Profile
	syncErrs map[string]string
}

// ServiceRow is one service's connection. SyncState is shown as the backend
// reports it.
type ServiceRow struct {
	Name      string           `json:"name"`
	Connected bool             `json:"connected"`
	SyncState models.SyncState `json:"sync_state,omitempty"`
	SyncDate  *time.Time       `json:"sync_date,omitempty"`
	SyncError string           `json:"sync_error,omitempty"`
}

// ServicesState is the rendered services page.
type ServicesState struct {
	Loaded   bool         `json:"loaded"`
	Services []ServiceRow `json:"services"`
}

func NewServices(backend Backend, log *slog.Logger) *Services {
	return &Services{base: newBase("services", log), backend: backend, syncErrs: map[string]string{}}
}

// Load fetches the profile, which carries the service connections.
func (s *Services) Load(ctx context.Context) error {
	fetch(&s.base, "profile", s.backend.GetProfile, func(p *models.Profile) { s.profile = p })
	return s.wait(ctx)
}

// Sync asks the backend to sync one service and waits for the answer. A failed
// sync is shown on the service's row.
func (s *Services) Sync(ctx context.Context, name string) error {
	task.Go(s.group, func(ctx context.Context) (*models.Service, error) {
		return s.backend.SyncService(ctx, name)
	}, func(svc *models.Service) {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.syncErrs, name)
		s.replace(*svc)
	}, func(err error) {
		s.log.Warn("sync failed", "service", name, "error", err)
		s.mu.Lock()
		defer s.mu.Unlock()
		s.syncErrs[name] = err.Error()
	})
	return s.wait(ctx)
}

// replace must be called with mu held.
func (s *Services) replace(svc models.Service) {
	if s.profile == nil {
		return
	}
	for i := range s.profile.Services {
		if s.profile.Services[i].Name == svc.Name {
			s.profile.Services[i] = svc
			return
		}
	}
	s.profile.Services = append(s.profile.Services, svc)
}

func (s *Services) State() ServicesState {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := ServicesState{Loaded: s.profile != nil, Services: []ServiceRow{}}
	if s.profile == nil {
		return st
	}
	for _, name := range models.UserServices {
		row := ServiceRow{Name: name}
		if svc, ok := s.profile.Service(name); ok {
			row.Connected = svc.Connected
			row.SyncState = svc.SyncState
			row.SyncError = svc.SyncError
			if svc.SyncDate != nil {
				t := svc.SyncDate.Time
				row.SyncDate = &t
			}
		}
		if msg, ok := s.syncErrs[name]; ok {
			row.SyncError = msg
		}
		st.Services = append(st.Services, row)
	}
	return st
}
