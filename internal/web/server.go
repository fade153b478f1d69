package web

import (
	"html/template"
	"net/http"
	"time"

	"github.com/edvart/wotc-admin/internal/auth"
	"github.com/edvart/wotc-admin/internal/blob"
	"github.com/edvart/wotc-admin/internal/publish"
	"github.com/edvart/wotc-admin/internal/store"
	"github.com/edvart/wotc-admin/internal/tally"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// Server holds the HTTP server and its dependencies.
type Server struct {
	router    *chi.Mux
	store     store.Store
	publisher *publish.Manager
	tally     *tally.Engine
	sessions  *auth.SessionManager
	uploader  blob.Uploader
	templates *template.Template
	log       logrus.FieldLogger
	cfg       Config
}

// Config holds server configuration.
type Config struct {
	DevMode bool

	// UploadDir, when set, is served at /uploads/ for locally stored logos.
	UploadDir string

	// MaxUploadBytes limits logo uploads. Zero means 5 MiB.
	MaxUploadBytes int64
}

// NewServer creates a new HTTP server.
func NewServer(
	s store.Store,
	publisher *publish.Manager,
	engine *tally.Engine,
	sessions *auth.SessionManager,
	uploader blob.Uploader,
	templates *template.Template,
	log logrus.FieldLogger,
	cfg Config,
) *Server {
	if cfg.MaxUploadBytes == 0 {
		cfg.MaxUploadBytes = 5 << 20
	}
	srv := &Server{
		router:    chi.NewRouter(),
		store:     s,
		publisher: publisher,
		tally:     engine,
		sessions:  sessions,
		uploader:  uploader,
		templates: templates,
		log:       log,
		cfg:       cfg,
	}

	srv.setupRoutes()
	return srv
}

func (s *Server) setupRoutes() {
	r := s.router

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)

	if s.cfg.UploadDir != "" {
		r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(s.cfg.UploadDir))))
	}

	// Mobile client API
	r.Route("/api/public", func(r chi.Router) {
		r.Get("/daily", s.handleDaily)
		r.Get("/stats", s.handleStats)
		r.Get("/userState", s.handleUserState)
		r.Post("/prediction", s.handlePrediction)
	})

	// Admin API
	r.Route("/api/admin", func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.Post("/logout", s.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAdmin(s.sessions))

			r.Get("/teams", s.handleListTeams)
			r.Post("/teams", s.handleTeamAction)
			r.Get("/matches", s.handleListMatches)
			r.Post("/matches", s.handleMatchAction)
			r.Get("/daily", s.handleGetDaily)
			r.Post("/daily", s.handleSetDaily)
			r.Post("/generate", s.handleGenerate)
			r.Post("/upload-logo", s.handleUploadLogo)
			r.Post("/reset", s.handleReset)
		})
	})

	// Admin pages
	r.Get("/login", s.handleLoginPage)
	r.Post("/login", s.handleLoginForm)
	r.Post("/logout", s.handleLogoutForm)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAdminPage(s.sessions, "/login"))

		r.Get("/admin", s.handleAdminPage)
		r.Get("/admin/stats", s.handleStatsPage)
		r.Post("/admin/daily/{dateKey}/publish", s.handlePublishForm)
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/admin", http.StatusFound)
	})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// requestLogger writes one structured log line per request.
func requestLogger(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				entry := log.WithFields(logrus.Fields{
					"method":    r.Method,
					"path":      r.URL.Path,
					"status":    ww.Status(),
					"bytes":     ww.BytesWritten(),
					"duration":  time.Since(start).String(),
					"requestId": middleware.GetReqID(r.Context()),
					"remote":    r.RemoteAddr,
				})
				if ww.Status() >= http.StatusInternalServerError {
					entry.Warn("Request failed")
				} else {
					entry.Debug("Request handled")
				}
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
