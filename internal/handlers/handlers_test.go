package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sales-dashboard/internal/config"
	"sales-dashboard/internal/sales"
	"sales-dashboard/internal/services"
	"sales-dashboard/internal/session"
)

const scenarioCSV = `Date,Product Category,Quantity,Total Amount,Gender
2024-01-05,Shoes,2,50.00,Female
2024-01-20,Shoes,1,25.00,Male
2024-02-01,Bags,3,90.00,Female
`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func createTestAnalytics(t *testing.T) *services.Analytics {
	t.Helper()
	a := services.NewAnalytics(services.WithLogger(testLogger()))
	require.NoError(t, a.LoadFromReader(context.Background(), "scenario.csv", strings.NewReader(scenarioCSV)))
	return a
}

func withSession(r *http.Request, a *services.Analytics) *http.Request {
	return r.WithContext(session.NewContext(r.Context(), &session.Session{ID: "test", Analytics: a}))
}

func newTestAPI(t *testing.T) *APIHandlers {
	t.Helper()
	store := session.NewStore(config.SessionConfig{TTL: time.Minute}, func(context.Context) *services.Analytics {
		return createTestAnalytics(t)
	}, testLogger(), nil)
	return NewAPIHandlers(store, config.DataConfig{MaxUploadBytes: 1 << 20}, testLogger())
}

func TestFilterQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/summary?year=2024&start=2024-01-01&category=+Shoes+&rank=REVENUE", nil)
	fq, err := filterFromQuery(req)
	require.NoError(t, err)
	assert.Equal(t, "Shoes", fq.Category)
	assert.Equal(t, "revenue", fq.Rank)

	f, err := fq.Filter()
	require.NoError(t, err)
	require.NotNil(t, f.Year)
	assert.Equal(t, 2024, *f.Year)
	require.NotNil(t, f.DateRange)
	assert.Equal(t, 9999, f.DateRange.End.Year())
	assert.Equal(t, `year=2024 range=2024-01-01..9999-12-31 category="Shoes"`, f.String())

	key, ok := fq.RankKey()
	assert.True(t, ok)
	assert.Equal(t, "revenue", string(key))
}

func TestFilterQuery_Invalid(t *testing.T) {
	for _, query := range []string{
		"year=24",
		"year=twenty",
		"start=2024-13-01",
		"end=01/02/2024",
		"rank=price",
		"category=" + strings.Repeat("x", 129),
	} {
		t.Run(query, func(t *testing.T) {
			_, err := filterFromQuery(httptest.NewRequest(http.MethodGet, "/api/summary?"+query, nil))
			assert.Error(t, err)
		})
	}
}

func TestParsePage(t *testing.T) {
	offset, limit, err := parsePage(httptest.NewRequest(http.MethodGet, "/api/rows", nil))
	require.NoError(t, err)
	assert.Equal(t, 0, offset)
	assert.Equal(t, defaultRowLimit, limit)

	offset, limit, err = parsePage(httptest.NewRequest(http.MethodGet, "/api/rows?offset=10&limit=5", nil))
	require.NoError(t, err)
	assert.Equal(t, 10, offset)
	assert.Equal(t, 5, limit)

	for _, query := range []string{"limit=0", "limit=1001", "offset=-1", "limit=abc"} {
		_, _, err := parsePage(httptest.NewRequest(http.MethodGet, "/api/rows?"+query, nil))
		assert.Error(t, err, query)
	}
}

func TestAPIHandlers_HandleSummary(t *testing.T) {
	h := newTestAPI(t)
	a := createTestAnalytics(t)

	w := httptest.NewRecorder()
	h.HandleSummary(w, withSession(httptest.NewRequest(http.MethodGet, "/api/summary", nil), a))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "private, no-store", w.Header().Get("Cache-Control"))

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			RowCount int `json:"row_count"`
			KPIs     struct {
				Total string `json:"total"`
			} `json:"kpis"`
			Categories []struct {
				Category string `json:"category"`
			} `json:"categories"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, 3, body.Data.RowCount)
	assert.Equal(t, "165", body.Data.KPIs.Total)
	require.Len(t, body.Data.Categories, 2)
	assert.Equal(t, "Bags", body.Data.Categories[0].Category)
}

func TestAPIHandlers_NoSession(t *testing.T) {
	h := newTestAPI(t)
	w := httptest.NewRecorder()
	h.HandleKPIs(w, httptest.NewRequest(http.MethodGet, "/api/kpis", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestAPIHandlers_RangeError(t *testing.T) {
	h := newTestAPI(t)
	w := httptest.NewRecorder()
	h.HandleKPIs(w, withSession(httptest.NewRequest(http.MethodGet, "/api/kpis?start=2024-02-01&end=2024-01-01", nil), createTestAnalytics(t)))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"RANGE_ERROR"`)
}

func TestAPIHandlers_HandleHealth(t *testing.T) {
	h := newTestAPI(t)
	w := httptest.NewRecorder()
	h.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)
	assert.Contains(t, w.Body.String(), `"version":"1.0.0"`)
}

func TestAPIHandlers_HandleExport(t *testing.T) {
	h := newTestAPI(t)

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("table", "pivot")
	req := httptest.NewRequest(http.MethodGet, "/api/export/pivot", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	w := httptest.NewRecorder()
	h.HandleExport(w, withSession(req, createTestAnalytics(t)))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, contentTypeCSV, w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="pivot_sales.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "Product Category,2024-01-01,2024-02-01\nBags,0.00,90.00\nShoes,75.00,0.00\n", w.Body.String())
}

func TestRenderFragments(t *testing.T) {
	a := createTestAnalytics(t)
	s, err := a.Summarize(context.Background(), filterAll)
	require.NoError(t, err)
	rows, err := a.Rows(filterAll, 0, maxTableRows)
	require.NoError(t, err)

	html, err := dashboardFragments(s, rows)
	require.NoError(t, err)
	all := strings.Join(html, "\n")

	for _, want := range []string{
		`<div id="kpi-cards"`,
		`<span class="kpi-value">$165.00</span>`,
		`<td>2024-01</td><td>$75.00</td>`,
		`<td>1</td><td><span class="category-badge">Bags</span></td><td>3</td>`,
		`<td>Female</td><td>$140.00</td>`,
		`<td>Shoes</td><td>75.00</td><td>0.00</td>`,
		`Showing 3 of 3 rows`,
		`<option value="2024"></option>`,
		`class="error-banner hidden"`,
	} {
		assert.Contains(t, all, want)
	}
}

func TestRenderFragments_FlagsIssues(t *testing.T) {
	a := services.NewAnalytics(services.WithLogger(testLogger()))
	require.NoError(t, a.LoadFromReader(context.Background(), "issues.csv", strings.NewReader(
		"Date,Product Category,Quantity,Total Amount\n2024-01-05,Shoes,2,N/A\n")))

	rows, err := a.Rows(filterAll, 0, maxTableRows)
	require.NoError(t, err)
	html, err := renderFragment("rows", rows)
	require.NoError(t, err)

	assert.Contains(t, html, `<tr class="row-issue">`)
	assert.Contains(t, html, `<td class="cell-issue">N/A</td>`)
}

func TestSSEHandlers_HandleDashboard(t *testing.T) {
	h := NewSSEHandlers(testLogger())
	a := createTestAnalytics(t)

	signals := url.QueryEscape(`{"year":"2024","category":"Shoes"}`)
	req := withSession(httptest.NewRequest(http.MethodGet, "/sse/dashboard?datastar="+signals, nil), a)
	w := httptest.NewRecorder()
	h.HandleDashboard(w, req)

	assert.Contains(t, w.Header().Get("Content-Type"), "text/event-stream")
	body := w.Body.String()
	assert.Contains(t, body, "event:")
	assert.Contains(t, body, "data:")
	assert.Contains(t, body, `<span class="kpi-value">$75.00</span>`)
	assert.Contains(t, body, "_charts")
	assert.Contains(t, body, `"rowCount":2`)
	assert.Contains(t, body, `"scatter":[{"quantity":2,"total_amount":"50"},{"quantity":1,"total_amount":"25"}]`)
	assert.Contains(t, body, "Showing 2 of 2 rows", "raw table follows the filter")
}

func TestSSEHandlers_InvalidFilterKeepsSections(t *testing.T) {
	h := NewSSEHandlers(testLogger())
	a := createTestAnalytics(t)

	for _, signals := range []string{
		`{"start":"2024-02-01","end":"2024-01-01"}`,
		`{"year":"abcd"}`,
	} {
		req := withSession(httptest.NewRequest(http.MethodGet, "/sse/dashboard?datastar="+url.QueryEscape(signals), nil), a)
		w := httptest.NewRecorder()
		h.HandleDashboard(w, req)

		body := w.Body.String()
		assert.Contains(t, body, `id="error-banner" class="error-banner"`, signals)
		assert.NotContains(t, body, "kpi-cards", signals)
	}
}

func TestHandleUpload(t *testing.T) {
	h := newTestAPI(t)
	a := createTestAnalytics(t)

	body, contentType := multipartBody(t, "next.csv", "Date,Product Category,Quantity,Total Amount\n2024-03-01,Hats,4,40.00\n")
	req := withSession(httptest.NewRequest(http.MethodPost, "/upload", body), a)
	req.Header.Set("Content-Type", contentType)

	w := httptest.NewRecorder()
	h.HandleUpload(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"source":"next.csv"`)

	s, err := a.Summarize(context.Background(), filterAll)
	require.NoError(t, err)
	assert.Equal(t, 1, s.RowCount)
}

func TestHandleUpload_Datastar(t *testing.T) {
	h := newTestAPI(t)
	a := createTestAnalytics(t)

	body, contentType := multipartBody(t, "bad.csv", "Date,Quantity\n2024-03-01,4\n")
	req := withSession(httptest.NewRequest(http.MethodPost, "/upload", body), a)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Datastar-Request", "true")

	w := httptest.NewRecorder()
	h.HandleUpload(w, req)

	assert.Contains(t, w.Header().Get("Content-Type"), "text/event-stream")
	assert.Contains(t, w.Body.String(), "Total Amount, Product Category")
}

var filterAll = sales.Filter{}

func multipartBody(t *testing.T, filename, content string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(uploadField, filename)
	require.NoError(t, err)
	_, err = io.WriteString(part, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}
