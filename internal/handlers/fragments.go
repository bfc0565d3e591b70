package handlers

import (
	"html/template"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"sales-dashboard/internal/models"
	"sales-dashboard/internal/services"
)

const (
	maxTableRows = 50
	monthLayout  = "2006-01"
)

var fragmentFuncs = template.FuncMap{
	"money":   func(d decimal.Decimal) string { return d.StringFixed(2) },
	"month":   func(t time.Time) string { return t.Format(monthLayout) },
	"inc":     func(i int) int { return i + 1 },
	"flagged": slices.Contains[[]string, string],
}

var fragments = template.Must(template.New("fragments").Funcs(fragmentFuncs).Parse(`
{{define "kpis"}}<div id="kpi-cards" class="kpi-grid">
<div class="kpi-card"><span class="kpi-label">Total Sales</span><span class="kpi-value">${{money .Total}}</span></div>
<div class="kpi-card"><span class="kpi-label">Average Sale</span><span class="kpi-value">${{money .Mean}}</span></div>
<div class="kpi-card"><span class="kpi-label">Largest Sale</span><span class="kpi-value">${{money .Max}}</span></div>
<div class="kpi-card"><span class="kpi-label">Smallest Sale</span><span class="kpi-value">${{money .Min}}</span></div>
<div class="kpi-card"><span class="kpi-label">Transactions</span><span class="kpi-value">{{.Count}}</span></div>
</div>{{end}}

{{define "monthly"}}<div id="monthly-table">
<table class="modern-table">
<thead><tr><th>Month</th><th>Total Amount</th></tr></thead>
<tbody>
{{range .}}<tr><td>{{month .YearMonth}}</td><td>${{money .TotalAmount}}</td></tr>
{{else}}<tr><td colspan="2" class="empty">No sales in range</td></tr>
{{end}}</tbody>
</table>
</div>{{end}}

{{define "categories"}}<div id="category-table">
<table class="modern-table">
<thead><tr><th>#</th><th>Product Category</th><th>{{if eq .RankedBy "revenue"}}Revenue{{else}}Quantity{{end}}</th></tr></thead>
<tbody>
{{range $i, $c := .Categories}}<tr><td>{{inc $i}}</td><td><span class="category-badge">{{$c.Category}}</span></td><td>{{if eq $.RankedBy "revenue"}}${{money $c.Value}}{{else}}{{$c.Value}}{{end}}</td></tr>
{{end}}</tbody>
</table>
</div>{{end}}

{{define "gender"}}<div id="gender-table">
<table class="modern-table">
<thead><tr><th>Gender</th><th>Total Amount</th></tr></thead>
<tbody>
{{range .}}<tr><td>{{.Gender}}</td><td>${{money .TotalAmount}}</td></tr>
{{else}}<tr><td colspan="2" class="empty">No gender data</td></tr>
{{end}}</tbody>
</table>
</div>{{end}}

{{define "pivot"}}<div id="pivot-table">
<table class="modern-table pivot">
<thead><tr><th>Product Category</th>{{range .Months}}<th>{{month .}}</th>{{end}}</tr></thead>
<tbody>
{{range $i, $c := .Categories}}<tr><td>{{$c}}</td>{{range index $.Cells $i}}<td>{{money .}}</td>{{end}}</tr>
{{end}}</tbody>
</table>
</div>{{end}}

{{define "rows"}}<div id="raw-table">
<p class="table-note">Showing {{len .Rows}} of {{.Total}} rows</p>
<table class="modern-table raw">
<thead><tr>{{range .Columns}}<th>{{.}}</th>{{end}}</tr></thead>
<tbody>
{{range .Rows}}{{$issues := .Issues}}<tr{{if $issues}} class="row-issue"{{end}}>{{range $j, $cell := .Cells}}<td{{if flagged $issues (index $.Columns $j)}} class="cell-issue"{{end}}>{{$cell}}</td>{{end}}</tr>
{{end}}</tbody>
</table>
</div>{{end}}

{{define "facets"}}<div id="filter-facets" class="hidden">
<datalist id="year-options">{{range .Years}}<option value="{{.}}"></option>{{end}}</datalist>
<datalist id="category-options">{{range .Categories}}<option value="{{.}}"></option>{{end}}</datalist>
</div>{{end}}

{{define "banner"}}<div id="error-banner" class="error-banner{{if not .}} hidden{{end}}" role="alert">{{if .}}<strong>{{.Message}}</strong>{{if .Details}} <span class="details">{{.Details}}</span>{{end}}{{end}}</div>{{end}}
`))

func renderFragment(name string, data any) (string, error) {
	var buf strings.Builder
	err := fragments.ExecuteTemplate(&buf, name, data)
	return buf.String(), err
}

type bannerData struct {
	Message string
	Details string
}

// dashboardFragments renders every summary section for one patch.
func dashboardFragments(s *models.Summary, rows services.RawPage) ([]string, error) {
	sections := []struct {
		name string
		data any
	}{
		{"kpis", s.KPIs},
		{"monthly", s.MonthlyTotals},
		{"categories", s},
		{"gender", s.Gender},
		{"pivot", s.Pivot},
		{"rows", rows},
		{"facets", s.Facets},
		{"banner", (*bannerData)(nil)},
	}

	out := make([]string, 0, len(sections))
	for _, sec := range sections {
		html, err := renderFragment(sec.name, sec.data)
		if err != nil {
			return nil, err
		}
		out = append(out, html)
	}
	return out, nil
}
