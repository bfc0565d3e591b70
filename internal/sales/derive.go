package sales

import (
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var dateLayouts = []string{
	DateLayout,
	"2006/01/02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"01/02/2006",
	"02.01.2006",
}

// Row is one enriched transaction. Fields whose source cell failed to parse
// carry a false Valid flag and the column name is listed in Issues.
type Row struct {
	Index int

	Date      time.Time
	DateValid bool
	Year      int
	Month     int
	YearMonth time.Time

	Category string
	Gender   string

	Quantity      int64
	QuantityValid bool

	TotalAmount decimal.Decimal
	AmountValid bool

	Revenue      decimal.Decimal
	RevenueValid bool

	Issues []string
}

// EnrichedTable pairs the table view, derived columns included, with the
// typed rows aggregation works on.
type EnrichedTable struct {
	table     *Table
	rows      []Row
	issueRows int
}

func (e *EnrichedTable) Table() *Table { return e.table }

func (e *EnrichedTable) Len() int { return len(e.rows) }

func (e *EnrichedTable) Row(i int) Row { return e.rows[i] }

// IssueCount is the number of rows with at least one unparsable field.
func (e *EnrichedTable) IssueCount() int { return e.issueRows }

// Derive computes Revenue, Year, Month and Year_Month for every row. Derived
// columns already present in t are recomputed in place, so deriving twice
// yields the same table as deriving once.
func Derive(t *Table) *EnrichedTable {
	columns := t.Columns()
	for _, c := range derivedColumns {
		if !t.HasColumn(c) {
			columns = append(columns, c)
		}
	}
	out := &Table{
		columns: columns,
		rows:    make([][]string, t.Len()),
		index:   make(map[string]int, len(columns)),
		extra:   t.extra,
	}
	for i, c := range columns {
		if _, ok := out.index[c]; !ok {
			out.index[c] = i
		}
	}

	rows := make([]Row, t.Len())
	issues := 0
	for i := range t.Len() {
		row := deriveRow(t, i)
		if len(row.Issues) > 0 {
			issues++
		}
		rows[i] = row

		cells := normalizeRow(t.rows[i], len(columns))
		cells[out.index[ColRevenue]] = formatRevenue(row)
		cells[out.index[ColYear]] = formatInt(row.DateValid, row.Year)
		cells[out.index[ColMonth]] = formatInt(row.DateValid, row.Month)
		cells[out.index[ColYearMonth]] = formatYearMonth(row)
		out.rows[i] = cells
	}

	return &EnrichedTable{table: out, rows: rows, issueRows: issues}
}

func deriveRow(t *Table, i int) Row {
	row := Row{
		Index:    i,
		Category: strings.TrimSpace(t.Cell(i, ColCategory)),
		Gender:   strings.TrimSpace(t.Cell(i, ColGender)),
	}

	if d, ok := parseDate(t.Cell(i, ColDate)); ok {
		row.Date = d
		row.DateValid = true
		row.Year = d.Year()
		row.Month = int(d.Month())
		row.YearMonth = time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
	} else {
		row.Issues = append(row.Issues, ColDate)
	}

	if q, ok := parseQuantity(t.Cell(i, ColQuantity)); ok {
		row.Quantity = q
		row.QuantityValid = true
	} else {
		row.Issues = append(row.Issues, ColQuantity)
	}

	if amt, err := decimal.NewFromString(strings.TrimSpace(t.Cell(i, ColTotalAmount))); err == nil {
		row.TotalAmount = amt
		row.AmountValid = true
	} else {
		row.Issues = append(row.Issues, ColTotalAmount)
	}

	if t.extra[i] > 0 {
		row.Issues = append(row.Issues, IssueExtraCells)
	}

	if row.QuantityValid && row.AmountValid {
		row.Revenue = decimal.NewFromInt(row.Quantity).Mul(row.TotalAmount)
		row.RevenueValid = true
	}
	return row
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			// keep the calendar day as written, whatever its offset
			y, m, day := d.Date()
			return time.Date(y, m, day, 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

var maxQuantity = decimal.NewFromInt(math.MaxInt64)

// parseQuantity accepts non-negative integers that fit in an int64,
// including integral decimals such as "3.0".
func parseQuantity(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if q, err := strconv.ParseInt(s, 10, 64); err == nil {
		return q, q >= 0
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsInteger() || d.IsNegative() || d.GreaterThan(maxQuantity) {
		return 0, false
	}
	return d.IntPart(), true
}

func formatRevenue(r Row) string {
	if !r.RevenueValid {
		return ""
	}
	return r.Revenue.String()
}

func formatInt(valid bool, v int) string {
	if !valid {
		return ""
	}
	return strconv.Itoa(v)
}

func formatYearMonth(r Row) string {
	if !r.DateValid {
		return ""
	}
	return r.YearMonth.Format(DateLayout)
}

// RawView reports the source cells of row i unmodified together with the
// columns that failed to parse.
func (e *EnrichedTable) RawView(i int) ([]string, []string) {
	return e.table.Row(i), slices.Clone(e.rows[i].Issues)
}
