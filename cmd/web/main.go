package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"sales-dashboard/internal/config"
	"sales-dashboard/internal/middleware"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/sales"
	"sales-dashboard/internal/server"
	"sales-dashboard/internal/services"
	"sales-dashboard/internal/session"
	"sales-dashboard/internal/ui/templates"
)

const (
	appVersion     = "1.0.0"
	dashboardTitle = "Retail Sales Dashboard"
	renderTimeout  = 10 * time.Second
	csvLoadTimeout = 30 * time.Second
	cacheNoStore   = "private, no-store"
)

// Template handler functions that can access the template functions
func handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
	defer cancel()

	data := templates.DashboardData{Title: dashboardTitle}
	if sess, ok := session.FromContext(ctx); ok {
		a := sess.Analytics
		data.RankBy = string(a.RankBy())
		if source, ok := a.Stats()["source"].(string); ok {
			data.Source = filepath.Base(source)
		}
		if err := a.Err(); err != nil {
			data.LoadErr = err.Error()
		} else if s, err := a.Summarize(ctx, sales.Filter{}); err == nil {
			data.Facets = s.Facets
		}
	}

	w.Header().Set("Cache-Control", cacheNoStore)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.Dashboard(data).Render(ctx, w); err != nil {
		http.Error(w, "render error", http.StatusInternalServerError)
	}
}

// newSessionFactory loads the configured fixed dataset once and hands every
// new session its own fork of it. A load failure is kept by the forks and
// shown on their pages.
func newSessionFactory(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (session.Factory, error) {
	rank, err := sales.ParseRankKey(cfg.Data.RankingKey)
	if err != nil {
		return nil, err
	}

	base := services.NewAnalytics(
		services.WithLogger(logger),
		services.WithMetrics(metrics),
		services.WithOptions(sales.Options{RankBy: rank, HistogramBins: cfg.Data.HistogramBins}),
	)

	ctx, cancel := context.WithTimeout(ctx, csvLoadTimeout)
	defer cancel()
	if err := base.LoadFromCSV(ctx, cfg.Data.CSVFile); err != nil {
		logger.Warn("configured dataset is not usable", "csv_file", cfg.Data.CSVFile, "error", err)
	}

	return func(context.Context) *services.Analytics {
		return base.Fork()
	}, nil
}

func newHandler(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics, sessions *session.Store, rateLimiter *middleware.RateLimiter) http.Handler {
	templateHandlers := &server.TemplateHandlers{
		Dashboard: handleDashboard,
	}

	srv := server.NewServer(sessions, cfg, metrics, logger, templateHandlers)

	middlewareChain := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Metrics(metrics),
		middleware.Tracing(logger),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
		middleware.RateLimit(rateLimiter, logger),
	)

	return middlewareChain(srv)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"version", appVersion,
		"addr", cfg.Address(),
		"csv_file", cfg.Data.CSVFile,
		"ranking_key", cfg.Data.RankingKey,
	)

	metrics := observability.NewMetrics()

	factory, err := newSessionFactory(context.Background(), cfg, logger, metrics)
	if err != nil {
		logger.Error("invalid data configuration", "error", err)
		os.Exit(1)
	}

	sessions := session.NewStore(cfg.Session, factory, logger, metrics)
	rateLimiter := middleware.NewRateLimiter(cfg.Security)

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      newHandler(cfg, logger, metrics, sessions, rateLimiter),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg)

	gracefulServer.RegisterWorker(sessions.Run)
	gracefulServer.RegisterWorker(func(ctx context.Context) error {
		return rateLimiter.Run(ctx, time.Minute)
	})

	gracefulServer.RegisterShutdownHook(func(ctx context.Context) error {
		logger.Info("shutting down session store", "active_sessions", sessions.Len())
		return nil
	})

	logger.Info("starting graceful server")
	if err := gracefulServer.ListenAndServe(); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("application stopped gracefully")
}
