package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"sales-dashboard/internal/config"
	"sales-dashboard/internal/errors"
	"sales-dashboard/internal/models"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/services"
	"sales-dashboard/internal/session"
)

const version = "1.0.0"

var noStore = map[string]string{
	"Cache-Control": "private, no-store",
}

type APIHandlers struct {
	sessions       *session.Store
	maxUploadBytes int64
	logger         *slog.Logger
}

func NewAPIHandlers(sessions *session.Store, cfg config.DataConfig, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		sessions:       sessions,
		maxUploadBytes: cfg.MaxUploadBytes,
		logger:         logger,
	}
}

func (h *APIHandlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	errors.WriteError(w, r, h.logger, err, observability.GetRequestID(r.Context()))
}

// sessionAnalytics returns the Analytics attached by the session middleware.
func sessionAnalytics(r *http.Request) (*services.Analytics, error) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		return nil, errors.Internal("No session attached to request")
	}
	return sess.Analytics, nil
}

// summarize runs the request's filter against the session dataset and
// writes an error response when it cannot.
func (h *APIHandlers) summarize(w http.ResponseWriter, r *http.Request) (*models.Summary, bool) {
	a, err := sessionAnalytics(r)
	if err != nil {
		h.writeError(w, r, err)
		return nil, false
	}

	fq, err := filterFromQuery(r)
	if err != nil {
		h.writeError(w, r, err)
		return nil, false
	}
	f, err := fq.Filter()
	if err != nil {
		h.writeError(w, r, err)
		return nil, false
	}
	if key, ok := fq.RankKey(); ok {
		a.SetRankBy(key)
	}

	s, err := a.Summarize(r.Context(), f)
	if err != nil {
		h.writeError(w, r, err)
		return nil, false
	}
	return s, true
}

func (h *APIHandlers) HandleSummary(w http.ResponseWriter, r *http.Request) {
	if s, ok := h.summarize(w, r); ok {
		errors.WriteSuccessWithHeaders(w, r, s, noStore)
	}
}

func (h *APIHandlers) HandleKPIs(w http.ResponseWriter, r *http.Request) {
	if s, ok := h.summarize(w, r); ok {
		errors.WriteSuccessWithHeaders(w, r, s.KPIs, noStore)
	}
}

func (h *APIHandlers) HandleMonthlySales(w http.ResponseWriter, r *http.Request) {
	if s, ok := h.summarize(w, r); ok {
		errors.WriteSuccessWithHeaders(w, r, s.MonthlyTotals, noStore)
	}
}

func (h *APIHandlers) HandleMonthlyRevenue(w http.ResponseWriter, r *http.Request) {
	if s, ok := h.summarize(w, r); ok {
		errors.WriteSuccessWithHeaders(w, r, s.MonthlyRevenue, noStore)
	}
}

func (h *APIHandlers) HandleCategories(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	s, ok := h.summarize(w, r)
	if !ok {
		return
	}

	data := s.Categories
	if limit > 0 && len(data) > limit {
		data = data[:limit]
	}
	errors.WriteSuccessWithHeaders(w, r, map[string]any{
		"ranked_by":  s.RankedBy,
		"categories": data,
	}, noStore)
}

func (h *APIHandlers) HandlePivot(w http.ResponseWriter, r *http.Request) {
	if s, ok := h.summarize(w, r); ok {
		errors.WriteSuccessWithHeaders(w, r, s.Pivot, noStore)
	}
}

func (h *APIHandlers) HandleGender(w http.ResponseWriter, r *http.Request) {
	if s, ok := h.summarize(w, r); ok {
		errors.WriteSuccessWithHeaders(w, r, s.Gender, noStore)
	}
}

func (h *APIHandlers) HandleDistribution(w http.ResponseWriter, r *http.Request) {
	if s, ok := h.summarize(w, r); ok {
		errors.WriteSuccessWithHeaders(w, r, map[string]any{
			"histogram":    s.Histogram,
			"distribution": s.Distribution,
		}, noStore)
	}
}

func (h *APIHandlers) HandleRows(w http.ResponseWriter, r *http.Request) {
	a, err := sessionAnalytics(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	fq, err := filterFromQuery(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	f, err := fq.Filter()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	offset, limit, err := parsePage(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	page, err := a.Rows(f, offset, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	errors.WriteSuccessWithHeaders(w, r, page, noStore)
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {

	healthData := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   version,
	}

	errors.WriteSuccess(w, r, healthData)
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	a, err := sessionAnalytics(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	stats := a.Stats()
	stats["active_sessions"] = h.sessions.Len()

	errors.WriteSuccess(w, r, stats)
}
