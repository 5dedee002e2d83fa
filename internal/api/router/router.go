package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/novadental/chairside/internal/admin"
	"github.com/novadental/chairside/internal/conversation"
	httpmiddleware "github.com/novadental/chairside/internal/http/middleware"
	"github.com/novadental/chairside/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger              *logging.Logger
	ConversationHandler *conversation.Handler
	AdminHandler        *admin.Handler
	AdminAuthSecret     string
	MetricsHandler      http.Handler
	CORSAllowedOrigins  []string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints
	r.Group(func(public chi.Router) {
		public.Get("/health", handleHealth)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.ConversationHandler != nil {
			public.Group(cfg.ConversationHandler.Routes)
		}
	})

	// Staff routes, JWT-protected. An unset secret keeps them locked.
	if cfg.AdminHandler != nil {
		r.Route("/admin", func(adminRoutes chi.Router) {
			adminRoutes.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			cfg.AdminHandler.Routes(adminRoutes)
		})
	}

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
