package sales

import (
	"fmt"
	"strings"
	"time"
)

type DateRange struct {
	Start time.Time
	End   time.Time
}

// Filter selects the rows a summary is computed over. Nil fields are
// inactive.
type Filter struct {
	Year      *int
	DateRange *DateRange
	Category  *string
}

func (f Filter) WithYear(year int) Filter {
	f.Year = &year
	return f
}

func (f Filter) WithDateRange(start, end time.Time) Filter {
	f.DateRange = &DateRange{Start: start, End: end}
	return f
}

func (f Filter) WithCategory(category string) Filter {
	f.Category = &category
	return f
}

func (f Filter) Validate() error {
	if f.DateRange != nil && truncateDay(f.DateRange.Start).After(truncateDay(f.DateRange.End)) {
		return &RangeError{Start: f.DateRange.Start, End: f.DateRange.End}
	}
	return nil
}

// Match reports whether r passes every active filter. Rows without a valid
// date never pass a year or date-range filter.
func (f Filter) Match(r Row) bool {
	if f.Year != nil && (!r.DateValid || r.Year != *f.Year) {
		return false
	}
	if f.DateRange != nil {
		if !r.DateValid {
			return false
		}
		day := truncateDay(r.Date)
		if day.Before(truncateDay(f.DateRange.Start)) || day.After(truncateDay(f.DateRange.End)) {
			return false
		}
	}
	if f.Category != nil && r.Category != *f.Category {
		return false
	}
	return true
}

func (f Filter) String() string {
	var parts []string
	if f.Year != nil {
		parts = append(parts, fmt.Sprintf("year=%d", *f.Year))
	}
	if f.DateRange != nil {
		parts = append(parts, fmt.Sprintf("range=%s..%s",
			f.DateRange.Start.Format(DateLayout), f.DateRange.End.Format(DateLayout)))
	}
	if f.Category != nil {
		parts = append(parts, fmt.Sprintf("category=%q", *f.Category))
	}
	if len(parts) == 0 {
		return "all"
	}
	return strings.Join(parts, " ")
}

// ParseDay parses a YYYY-MM-DD filter bound.
func ParseDay(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return d, nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
