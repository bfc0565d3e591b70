// Package templates renders the dashboard page shell. The sections inside it
// are filled by Datastar patches from /sse/dashboard.
package templates

import (
	"fmt"
	"strings"
	"time"

	"sales-dashboard/internal/models"
)

//go:generate templ generate

type DashboardData struct {
	Title   string
	Source  string
	RankBy  string
	Facets  models.Facets
	LoadErr string
}

var rankKeys = []string{"quantity", "revenue"}

// initialSignals seeds the filter signals in Datastar's object notation.
func initialSignals(data DashboardData) string {
	return fmt.Sprintf(`{year: '', start: '', end: '', category: '', rank: '%s', rowCount: 0}`, rankOrDefault(data.RankBy))
}

func rankOrDefault(rank string) string {
	if rank == "" {
		return "quantity"
	}
	return rank
}

func rankLabel(key string) string {
	return strings.ToUpper(key[:1]) + key[1:]
}

// day formats an optional facet bound for a date input.
func day(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

func exportURL(table, format string) string {
	return "/api/export/" + table + "?format=" + format
}

// filteredExport is a Datastar expression that appends the current filter
// signals to an export link.
func filteredExport(table, format string) string {
	return "'" + exportURL(table, format) + "&' + new URLSearchParams({year: $year, start: $start, end: $end, category: $category, rank: $rank})"
}
