package adapthttp

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"weighttracker/internal/app"
	"weighttracker/internal/metrics"
)

// Services groups the application services the HTTP adapter drives.
type Services struct {
	Auth         *app.AuthService
	Measurements *app.MeasurementService
	Trends       *app.TrendService
	Goals        *app.GoalService
}

// Options configures the optional parts of the server. The zero value is
// usable: no CORS, no SSO, no metrics, no request timeout.
type Options struct {
	CORSOrigins    []string
	RequestTimeout time.Duration
	SSO            *SSO
	Metrics        *metrics.Metrics
	// Ping backs /healthz when set.
	Ping func(ctx context.Context) error
}

// Server is the driving HTTP adapter that routes requests to application
// services.
type Server struct {
	auth         *app.AuthService
	measurements *app.MeasurementService
	trends       *app.TrendService
	goals        *app.GoalService
	opts         Options
}

// New creates a Server wired to the given application services.
func New(svc Services, opts Options) *Server {
	return &Server{
		auth:         svc.Auth,
		measurements: svc.Measurements,
		trends:       svc.Trends,
		goals:        svc.Goals,
		opts:         opts,
	}
}

// Handler returns the root http.Handler for the application.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		s.loggingMiddleware,
		middleware.Recoverer,
		s.metricsMiddleware,
		s.corsMiddleware,
	)
	if s.opts.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.opts.RequestTimeout))
	}

	r.Get("/healthz", s.handleHealth)
	if s.opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.opts.Metrics.Handler())
	}

	// The web client calls the credential routes under /auth; API clients
	// use the bare paths.
	r.Group(s.credentialRoutes)
	r.Route("/auth", func(r chi.Router) {
		s.credentialRoutes(r)
		r.Get("/sso/config", s.handleSSOConfig)
		r.Get("/sso/login", s.handleSSOLogin)
		r.Get("/sso/callback", s.handleSSOCallback)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Get("/measurements", s.handleListMeasurements)
		r.Post("/measurements", s.handleAddMeasurement)
		r.Get("/trends", s.handleTrends)
		r.Get("/charts/daily", s.handleChartsDaily)
		r.Get("/goals", s.handleListGoals)
		r.Post("/goals", s.handleAddGoal)
		r.Get("/export", s.handleExport)
		r.Post("/import", s.handleImport)
	})

	return r
}

func (s *Server) credentialRoutes(r chi.Router) {
	r.Post("/register", s.handleRegister)
	r.Post("/login", s.handleLogin)
	r.With(s.authMiddleware).Get("/me", s.handleMe)
	r.With(s.authMiddleware).Put("/me", s.handleUpdateMe)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.opts.Ping != nil {
		if err := s.opts.Ping(r.Context()); err != nil {
			writeServiceError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
