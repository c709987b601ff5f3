package orakle

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/orakle-run/orakle/config"
	"github.com/orakle-run/orakle/skills"
	"github.com/orakle-run/orakle/supervisor"
)

// Server is C7, the HTTP façade. It owns no domain logic of its own: every
// handler is a thin adapter over the Engine, the config store, the skill
// registry, the supervisor, or the python-bridge at BridgeBaseURL.
type Server struct {
	Engine         *Engine
	Config         *config.Store
	Registry       *skills.Registry
	Supervisor     *supervisor.Supervisor
	BridgeBaseURL  string
	HTTPClient     *http.Client
	Logger         *slog.Logger
	AllowedOrigins []string
	RequestTimeout time.Duration
	MaxBodyBytes   int64

	// RateLimitRPS and RateLimitBurst bound the per-IP request budget.
	// Zero RateLimitRPS disables the limiter.
	RateLimitRPS   float64
	RateLimitBurst int
}

// NewServerRouter builds the chi router and middleware stack for s,
// grounded on the teacher's newHTTPRouter layout (request ID, recovery,
// logging, timeout, body-size-limit, CORS, in that order).
func NewServerRouter(s *Server) *chi.Mux {
	if s.HTTPClient == nil {
		s.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if s.RequestTimeout == 0 {
		s.RequestTimeout = 120 * time.Second
	}
	if s.MaxBodyBytes == 0 {
		s.MaxBodyBytes = 1 << 20
	}
	if s.Logger == nil {
		s.Logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(requestIDMiddleware)
	r.Use(recoveryMiddleware(s.Logger))
	r.Use(loggingMiddleware(s.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(timeoutMiddleware(s.RequestTimeout))
	r.Use(bodySizeLimitMiddleware(s.MaxBodyBytes))
	if s.RateLimitRPS > 0 {
		burst := s.RateLimitBurst
		if burst <= 0 {
			burst = int(s.RateLimitRPS)
		}
		r.Use(rateLimitMiddleware(s.RateLimitRPS, burst))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)
	r.Post("/framework/chat", s.handleChat)
	r.Get("/config", s.handleConfigGet)
	r.Put("/config", s.handleConfigPut)
	r.Get("/config/defaults", s.handleConfigDefaults)
	r.Get("/providers", s.handleProviders)
	r.Post("/test-llm", s.handleTestLLM)
	r.Post("/test-skill-key", s.handleTestSkillKey)
	r.Get("/capabilities", s.handleCapabilities)
	r.Get("/hardware/acceleration", s.handleHardwareAcceleration)

	return r
}
