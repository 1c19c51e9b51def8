package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/claude/fitconsole/internal/docstore"
	"github.com/claude/fitconsole/internal/identity"
	"github.com/claude/fitconsole/internal/session"
	"github.com/claude/fitconsole/internal/views"
)

// Options tune the HTTP surface.
type Options struct {
	// CORSOrigins lists allowed origins. Empty allows any origin without credentials.
	CORSOrigins []string
	// SessionRateLimit is the per-IP request budget per minute on session routes.
	// Zero disables the limit.
	SessionRateLimit int
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	auth    *identity.Auth
	backend views.Backend
	bridge  *session.Bridge
	docs    docstore.Store
	log     *slog.Logger
	opts    Options

	identity func(http.Handler) http.Handler
	mcp      http.Handler
	router   chi.Router
}

// New creates a new Server. docs may be nil, in which case the events view
// answers 404.
func New(auth *identity.Auth, backend views.Backend, bridge *session.Bridge, docs docstore.Store, opts Options, log *slog.Logger) *Server {
	s := &Server{
		auth:     auth,
		backend:  backend,
		bridge:   bridge,
		docs:     docs,
		log:      log,
		opts:     opts,
		identity: DevIdentity,
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// SetTailscale identifies callers by their tailnet login instead of the local
// dev identity.
func (s *Server) SetTailscale(lc WhoIser) {
	s.identity = TailscaleIdentity(lc, s.log)
	s.routes()
}

// SetMCP mounts an MCP transport at /mcp.
func (s *Server) SetMCP(h http.Handler) {
	s.mcp = h
	s.routes()
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(RequestLogging(s.log))
	r.Use(cors.Handler(corsOptions(s.opts.CORSOrigins)))

	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.identity)

		r.Get("/api/v1/me", s.handleMe)

		r.Route("/api/v1/views", func(r chi.Router) {
			r.Get("/dashboard", s.handleDashboard)
			r.Get("/body", s.handleBody)
			r.Get("/activities", s.handleActivities)
			r.Get("/routes", s.handleRoutes)
			r.Get("/segments", s.handleSegments)
			r.Get("/segments/{id}/compare", s.handleSegmentCompare)
			r.Get("/services", s.handleServices)
			r.Get("/admin", s.handleAdmin)
			r.Get("/events", s.handleEvents)
			r.Get("/events/stream", s.handleEventsStream)
		})

		r.Post("/api/v1/services/{name}/sync", s.handleServiceSync)
		r.Post("/api/v1/admin/clubs/{id}/{action}", s.handleClubAction)

		r.Group(func(r chi.Router) {
			if s.opts.SessionRateLimit > 0 {
				r.Use(httprate.LimitByIP(s.opts.SessionRateLimit, time.Minute))
			}
			r.Post("/api/v1/session", s.handleCreateSession)
			r.Delete("/api/v1/session", s.handleCloseSession)
			r.Get("/api/v1/services/{name}/connect", s.handleConnect)
		})

		if s.mcp != nil {
			r.Handle("/mcp", s.mcp)
		}
	})

	s.router = r
}

func corsOptions(origins []string) cors.Options {
	opts := cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}
	if len(origins) == 0 {
		opts.AllowedOrigins = []string{"*"}
		return opts
	}
	opts.AllowedOrigins = origins
	opts.AllowCredentials = true
	return opts
}
