package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"sales-dashboard/internal/models"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/sales"
)

// RawRow is one source row as shown in the raw-data table. Issues names the
// columns whose values could not be parsed.
type RawRow struct {
	Index  int      `json:"index"`
	Cells  []string `json:"cells"`
	Issues []string `json:"issues,omitempty"`
}

type RawPage struct {
	Columns []string `json:"columns"`
	Rows    []RawRow `json:"rows"`
	Offset  int      `json:"offset"`
	Total   int      `json:"total"`
}

// Analytics holds one session's dataset together with its most recent valid
// summary.
type Analytics struct {
	mu       sync.RWMutex
	table    *sales.EnrichedTable
	source   string
	loadErr  error
	loadedAt time.Time
	opts     sales.Options
	last     *models.Summary
	logger   *slog.Logger
	metrics  *observability.Metrics
}

type Option func(*Analytics)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Analytics) { a.logger = logger }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(a *Analytics) { a.metrics = m }
}

func WithOptions(opts sales.Options) Option {
	return func(a *Analytics) { a.opts = opts }
}

func NewAnalytics(options ...Option) *Analytics {
	a := &Analytics{
		logger:  slog.Default(),
		loadErr: sales.ErrNoData,
	}
	for _, opt := range options {
		opt(a)
	}
	return a
}

// Fork returns a new Analytics over the same dataset with no summary yet.
// The enriched table is never mutated, so forks share it safely; a later
// load on either side replaces only that side's table.
func (a *Analytics) Fork() *Analytics {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return &Analytics{
		table:    a.table,
		source:   a.source,
		loadErr:  a.loadErr,
		loadedAt: a.loadedAt,
		opts:     a.opts,
		logger:   a.logger,
		metrics:  a.metrics,
	}
}

// SetData replaces the dataset with typed transactions.
func (a *Analytics) SetData(data []models.Transaction) {
	table := sales.TableFromTransactions(data)
	a.install("memory", sales.Derive(table))
}

func (a *Analytics) LoadFromCSV(ctx context.Context, filename string) error {
	ctx, span := observability.StartSpan(ctx, "sales.load")
	span.SetTag("source", filename)
	defer span.End(a.logger)

	table, err := sales.Open(ctx, filename)
	return a.finishLoad(span, filename, table, err)
}

func (a *Analytics) LoadFromReader(ctx context.Context, name string, r io.Reader) error {
	ctx, span := observability.StartSpan(ctx, "sales.load")
	span.SetTag("source", name)
	defer span.End(a.logger)

	table, err := sales.Load(ctx, r)
	return a.finishLoad(span, name, table, err)
}

func (a *Analytics) finishLoad(span *observability.Span, source string, table *sales.Table, err error) error {
	start := time.Now()
	if err == nil {
		_, err = sales.Validate(table)
	}
	if err != nil {
		span.SetError(err)
		a.recordLoad(loadResult(err))
		a.mu.Lock()
		a.table, a.last, a.source, a.loadErr = nil, nil, source, err
		a.mu.Unlock()

		a.logger.Error("failed to load sales data", "source", source, "error", err)
		return fmt.Errorf("load %s: %w", source, err)
	}

	enriched := sales.Derive(table)
	a.install(source, enriched)

	a.recordLoad("ok")
	if a.metrics != nil {
		a.metrics.RowsLoaded.Add(float64(enriched.Len()))
		a.metrics.RowIssues.Add(float64(enriched.IssueCount()))
	}
	a.logger.Info("sales data loaded",
		"source", source,
		"records", enriched.Len(),
		"rows_with_issues", enriched.IssueCount(),
		"duration", time.Since(start),
	)
	return nil
}

func (a *Analytics) install(source string, table *sales.EnrichedTable) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.table = table
	a.source = source
	a.loadErr = nil
	a.loadedAt = time.Now()
	a.last = nil
}

func (a *Analytics) recordLoad(result string) {
	if a.metrics != nil {
		a.metrics.DatasetLoads.WithLabelValues(result).Inc()
	}
}

func loadResult(err error) string {
	var schemaErr *sales.SchemaError
	switch {
	case errors.Is(err, sales.ErrSourceNotFound):
		return "source_not_found"
	case errors.As(err, &schemaErr):
		return "schema_error"
	default:
		return "error"
	}
}

// Err reports why the session has no usable dataset, or nil.
func (a *Analytics) Err() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.loadErr
}

// Summarize recomputes the summary for f. When f is rejected, the previous
// valid summary is returned together with the error so callers can keep
// showing it.
func (a *Analytics) Summarize(ctx context.Context, f sales.Filter) (*models.Summary, error) {
	_, span := observability.StartSpan(ctx, "sales.summarize")
	span.SetTag("filter", f.String())
	defer span.End(a.logger)

	a.mu.RLock()
	table, loadErr, opts := a.table, a.loadErr, a.opts
	a.mu.RUnlock()
	if loadErr != nil {
		span.SetError(loadErr)
		return nil, loadErr
	}

	start := time.Now()
	summary, err := sales.Summarize(table, f, opts)
	if a.metrics != nil {
		a.metrics.SummarizeDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		span.SetError(err)
		if a.metrics != nil {
			a.metrics.SummarizeErrors.WithLabelValues("range").Inc()
		}
		a.logger.Warn("summary request rejected", "filter", f.String(), "error", err)
		return a.Current(), err
	}

	a.remember(table, summary)
	return summary, nil
}

// remember keeps summary as the last valid result unless a load replaced
// the table it was computed from.
func (a *Analytics) remember(table *sales.EnrichedTable, summary *models.Summary) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.table == table {
		a.last = summary
	}
}

// Current returns the most recent valid summary, or nil.
func (a *Analytics) Current() *models.Summary {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.last
}

func (a *Analytics) RankBy() sales.RankKey {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.opts.RankBy == "" {
		return sales.RankByQuantity
	}
	return a.opts.RankBy
}

func (a *Analytics) SetRankBy(key sales.RankKey) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.opts.RankBy = key
}

// Rows pages through the raw view of the rows passing f, source cells
// unmodified. Total counts the matching rows.
func (a *Analytics) Rows(f sales.Filter, offset, limit int) (RawPage, error) {
	a.mu.RLock()
	table, loadErr := a.table, a.loadErr
	a.mu.RUnlock()
	if loadErr != nil {
		return RawPage{}, loadErr
	}
	if err := f.Validate(); err != nil {
		return RawPage{}, err
	}

	matched := make([]int, 0, table.Len())
	for i := range table.Len() {
		if f.Match(table.Row(i)) {
			matched = append(matched, i)
		}
	}

	total := len(matched)
	offset = min(max(offset, 0), total)
	end := total
	if limit > 0 {
		end = min(offset+limit, total)
	}

	page := RawPage{
		Columns: table.Table().Columns(),
		Rows:    make([]RawRow, 0, end-offset),
		Offset:  offset,
		Total:   total,
	}
	for _, i := range matched[offset:end] {
		cells, issues := table.RawView(i)
		page.Rows = append(page.Rows, RawRow{Index: i, Cells: cells, Issues: issues})
	}
	return page, nil
}

// Utility method for monitoring
func (a *Analytics) Stats() map[string]any {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := map[string]any{
		"source":     a.source,
		"ranked_by":  string(a.opts.RankBy),
		"loaded_at":  a.loadedAt,
		"has_result": a.last != nil,
	}
	if a.loadErr != nil {
		stats["error"] = a.loadErr.Error()
		return stats
	}
	stats["record_count"] = a.table.Len()
	stats["rows_with_issues"] = a.table.IssueCount()
	return stats
}
