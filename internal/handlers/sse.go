package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/starfederation/datastar-go/datastar"

	"sales-dashboard/internal/errors"
	"sales-dashboard/internal/models"
	"sales-dashboard/internal/sales"
	"sales-dashboard/internal/services"
)

type SSEHandlers struct {
	logger *slog.Logger
}

func NewSSEHandlers(logger *slog.Logger) *SSEHandlers {
	return &SSEHandlers{
		logger: logger,
	}
}

// HandleDashboard recomputes the summary for the filter signals and patches
// every dashboard section. A rejected filter patches only the error banner,
// so the sections keep showing the last valid result.
func (h *SSEHandlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	var fq filterQuery
	readErr := datastar.ReadSignals(r, &fq)

	sse := datastar.NewSSE(w, r)

	a, err := sessionAnalytics(r)
	if err != nil {
		patchError(sse, h.logger, err)
		return
	}
	if readErr != nil {
		patchError(sse, h.logger, errors.ValidationWrap(readErr, "Invalid dashboard signals"))
		return
	}

	fq.Year = strings.TrimSpace(fq.Year)
	fq.Category = strings.TrimSpace(fq.Category)
	fq.Rank = strings.ToLower(strings.TrimSpace(fq.Rank))
	if err := validate.Struct(fq); err != nil {
		patchError(sse, h.logger, errors.ValidationWrap(err, "Invalid filter"))
		return
	}
	f, err := fq.Filter()
	if err != nil {
		patchError(sse, h.logger, err)
		return
	}
	if key, ok := fq.RankKey(); ok {
		a.SetRankBy(key)
	}

	s, err := a.Summarize(r.Context(), f)
	if err != nil {
		patchError(sse, h.logger, err)
		return
	}

	patchSummary(sse, h.logger, a, s, f)
}

// patchSummary patches every section for s; the raw table shows the rows
// passing f.
func patchSummary(sse *datastar.ServerSentEventGenerator, logger *slog.Logger, a *services.Analytics, s *models.Summary, f sales.Filter) {
	rows, err := a.Rows(f, 0, maxTableRows)
	if err != nil {
		patchError(sse, logger, err)
		return
	}

	html, err := dashboardFragments(s, rows)
	if err != nil {
		logger.Error("render dashboard fragments", "error", err)
		return
	}
	for _, fragment := range html {
		sse.PatchElements(fragment)
	}

	signals, err := chartSignals(s)
	if err != nil {
		logger.Error("marshal chart signals", "error", err)
		return
	}
	sse.PatchSignals(signals)
}

// chartSignals carries the chart series. The underscore keeps them local to
// the browser so they are not sent back with every request.
func chartSignals(s *models.Summary) ([]byte, error) {
	return json.Marshal(map[string]any{
		"_charts": map[string]any{
			"monthly":        s.MonthlyTotals,
			"monthlyRevenue": s.MonthlyRevenue,
			"categories":     s.Categories,
			"gender":         s.Gender,
			"histogram":      s.Histogram,
			"distribution":   s.Distribution,
			"scatter":        s.Scatter,
		},
		"rankedBy": s.RankedBy,
		"rowCount": s.RowCount,
	})
}

func patchError(sse *datastar.ServerSentEventGenerator, logger *slog.Logger, err error) {
	appErr := errors.FromDomain(err)
	logger.Warn("dashboard update rejected",
		"error_code", appErr.Code,
		"error", err,
	)

	html, renderErr := renderFragment("banner", &bannerData{Message: appErr.Message, Details: appErr.Details})
	if renderErr != nil {
		logger.Error("render error banner", "error", renderErr)
		return
	}
	sse.PatchElements(html)
}
