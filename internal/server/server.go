package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"sales-dashboard/internal/config"
	"sales-dashboard/internal/errors"
	"sales-dashboard/internal/handlers"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/session"
)

type Server struct {
	router      chi.Router
	logger      *slog.Logger
	sessions    *session.Store
	metrics     *observability.Metrics
	apiHandlers *handlers.APIHandlers
	sseHandlers *handlers.SSEHandlers
}

type TemplateHandlers struct {
	Dashboard http.HandlerFunc
}

func NewServer(sessions *session.Store, cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger, templateHandlers *TemplateHandlers) *Server {
	s := &Server{
		router:      chi.NewRouter(),
		logger:      logger,
		sessions:    sessions,
		metrics:     metrics,
		apiHandlers: handlers.NewAPIHandlers(sessions, cfg.Data, logger),
		sseHandlers: handlers.NewSSEHandlers(logger),
	}
	s.setupRoutes(templateHandlers)
	return s
}

func (s *Server) setupRoutes(templateHandlers *TemplateHandlers) {
	r := s.router

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		errors.WriteError(w, r, s.logger, errors.NotFound("Route not found"), observability.GetRequestID(r.Context()))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		appErr := errors.New(errors.CodeBadRequest, "Method not allowed")
		appErr.StatusCode = http.StatusMethodNotAllowed
		errors.WriteError(w, r, s.logger, appErr, observability.GetRequestID(r.Context()))
	})

	// Session-independent routes
	r.Get("/health", s.apiHandlers.HandleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.sessions.Middleware)

		// Dashboard routes
		r.Get("/", templateHandlers.Dashboard)
		r.Get("/admin/stats", s.apiHandlers.HandleStats)
		r.Post("/upload", s.apiHandlers.HandleUpload)

		// REST API endpoints
		r.Route("/api", func(r chi.Router) {
			r.Get("/summary", s.apiHandlers.HandleSummary)
			r.Get("/kpis", s.apiHandlers.HandleKPIs)
			r.Get("/monthly-sales", s.apiHandlers.HandleMonthlySales)
			r.Get("/monthly-revenue", s.apiHandlers.HandleMonthlyRevenue)
			r.Get("/categories", s.apiHandlers.HandleCategories)
			r.Get("/pivot", s.apiHandlers.HandlePivot)
			r.Get("/gender", s.apiHandlers.HandleGender)
			r.Get("/distribution", s.apiHandlers.HandleDistribution)
			r.Get("/rows", s.apiHandlers.HandleRows)
			r.Get("/export/{table}", s.apiHandlers.HandleExport)
		})

		// Datastar SSE endpoints
		r.Get("/sse/dashboard", s.sseHandlers.HandleDashboard)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
