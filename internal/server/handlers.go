package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/claude/fitconsole/internal/api"
	"github.com/claude/fitconsole/internal/identity"
	"github.com/claude/fitconsole/internal/session"
	"github.com/claude/fitconsole/internal/views"
)

// view is what every page handler drives: load, render, close.
type view interface {
	Load(ctx context.Context) error
	Close()
}

// serveView loads v for the life of the request and writes its state. A view
// that fails to fetch still renders, with loaded=false.
func (s *Server) serveView(w http.ResponseWriter, r *http.Request, v view, state func() any) {
	defer v.Close()
	if err := v.Load(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, state())
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userInfoFromContext(r))
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	v := views.NewDashboard(s.backend, s.log)
	s.serveView(w, r, v, func() any { return v.State() })
}

func (s *Server) handleBody(w http.ResponseWriter, r *http.Request) {
	v := views.NewBody(s.backend, s.log)
	s.serveView(w, r, v, func() any { return v.State() })
}

func (s *Server) handleActivities(w http.ResponseWriter, r *http.Request) {
	s.serveRecords(w, r, views.NewActivities)
}

func (s *Server) handleRoutes(w http.ResponseWriter, r *http.Request) {
	s.serveRecords(w, r, views.NewRoutes)
}

func (s *Server) handleSegments(w http.ResponseWriter, r *http.Request) {
	s.serveRecords(w, r, views.NewSegments)
}

func (s *Server) serveRecords(w http.ResponseWriter, r *http.Request, newView func(views.Backend, api.ListRequest, *slog.Logger) *views.Records) {
	req, err := parseListRequest(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	v := newView(s.backend, req, s.log)
	s.serveView(w, r, v, func() any { return v.State() })
}

func (s *Server) handleSegmentCompare(w http.ResponseWriter, r *http.Request) {
	v := views.NewSegmentCompare(s.backend, api.CompareRequest{
		SegmentID:  chi.URLParam(r, "id"),
		ActivityID: r.URL.Query().Get("activity"),
	}, s.log)
	s.serveView(w, r, v, func() any { return v.State() })
}

func (s *Server) handleServices(w http.ResponseWriter, r *http.Request) {
	v := views.NewServices(s.backend, s.log)
	s.serveView(w, r, v, func() any { return v.State() })
}

func (s *Server) handleServiceSync(w http.ResponseWriter, r *http.Request) {
	v := views.NewServices(s.backend, s.log)
	defer v.Close()

	if err := v.Load(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	if err := v.Sync(r.Context(), chi.URLParam(r, "name")); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, v.State())
}

func (s *Server) handleAdmin(w http.ResponseWriter, r *http.Request) {
	v := views.NewAdmin(s.backend, s.auth.CurrentUser(), s.log)
	s.serveView(w, r, v, func() any { return v.State() })
}

func (s *Server) handleClubAction(w http.ResponseWriter, r *http.Request) {
	v := views.NewAdmin(s.backend, s.auth.CurrentUser(), s.log)
	defer v.Close()

	if err := v.Load(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	err := v.Club(r.Context(), chi.URLParam(r, "id"), views.ClubAction(chi.URLParam(r, "action")))
	switch {
	case errors.Is(err, views.ErrNotAdmin):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	case err != nil:
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusOK, v.State())
	}
}

// sessionResponse reports how the backend answered a session call.
type sessionResponse struct {
	StatusCode int    `json:"status_code"`
	Status     string `json:"status"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	s.serveSession(w, r, s.bridge.CreateSession)
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	s.serveSession(w, r, s.bridge.CloseSession)
}

func (s *Server) serveSession(w http.ResponseWriter, r *http.Request, call func(context.Context, *identity.User) (*session.Response, error)) {
	user := s.auth.CurrentUser()
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": api.ErrNotSignedIn.Error()})
		return
	}
	resp, err := call(r.Context(), user)
	if err != nil {
		s.log.Error("session call failed", "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	status := http.StatusOK
	if !resp.OK() {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, sessionResponse{StatusCode: resp.StatusCode, Status: resp.Status})
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	user := s.auth.CurrentUser()
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": api.ErrNotSignedIn.Error()})
		return
	}
	u, err := s.bridge.Connect(r.Context(), user, chi.URLParam(r, "name"))
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": u})
}

func parseListRequest(r *http.Request) (api.ListRequest, error) {
	var req api.ListRequest
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 200 {
			return req, errors.New("limit must be between 1 and 200")
		}
		req.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return req, errors.New("offset must be a non-negative integer")
		}
		req.Offset = n
	}
	return req, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
