package sales

import (
	"context"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sales-dashboard/internal/models"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), append([]any{"want %s, got %s", want, got.String()}, msgAndArgs...)...)
}

func fixture(t *testing.T) *EnrichedTable {
	t.Helper()
	table, err := Open(context.Background(), filepath.Join("testdata", "retail_sales.csv"))
	require.NoError(t, err)
	_, err = Validate(table)
	require.NoError(t, err)
	return Derive(table)
}

func summarize(t *testing.T, e *EnrichedTable, f Filter, opts Options) *models.Summary {
	t.Helper()
	s, err := Summarize(e, f, opts)
	require.NoError(t, err)
	return s
}

func TestSummarize_Scenario(t *testing.T) {
	s := summarize(t, Derive(loadString(t, scenarioCSV)), Filter{}, Options{})

	require.Len(t, s.MonthlyTotals, 2)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), s.MonthlyTotals[0].YearMonth)
	assertDecimal(t, "75.00", s.MonthlyTotals[0].TotalAmount)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), s.MonthlyTotals[1].YearMonth)
	assertDecimal(t, "90.00", s.MonthlyTotals[1].TotalAmount)

	require.Len(t, s.Categories, 2)
	assert.Equal(t, "Bags", s.Categories[0].Category, "ties break lexicographically")
	assertDecimal(t, "3", s.Categories[0].Value)
	assert.Equal(t, "Shoes", s.Categories[1].Category)
	assertDecimal(t, "3", s.Categories[1].Value)

	assertDecimal(t, "165.00", s.KPIs.Total)
	assertDecimal(t, "55", s.KPIs.Mean)
	assertDecimal(t, "90", s.KPIs.Max)
	assertDecimal(t, "25", s.KPIs.Min)
	assert.Equal(t, 3, s.KPIs.Count)
	assert.Equal(t, "quantity", s.RankedBy)

	require.Len(t, s.Gender, 2)
	assert.Equal(t, "Female", s.Gender[0].Gender)
	assertDecimal(t, "140", s.Gender[0].TotalAmount)
	assert.Equal(t, "Male", s.Gender[1].Gender)
	assertDecimal(t, "25", s.Gender[1].TotalAmount)
}

func TestSummarize_RankByRevenue(t *testing.T) {
	s := summarize(t, Derive(loadString(t, scenarioCSV)), Filter{}, Options{RankBy: RankByRevenue})

	require.Len(t, s.Categories, 2)
	assert.Equal(t, "Bags", s.Categories[0].Category)
	assertDecimal(t, "270", s.Categories[0].Value)
	assert.Equal(t, "Shoes", s.Categories[1].Category)
	assertDecimal(t, "125", s.Categories[1].Value)
	assert.Equal(t, "revenue", s.RankedBy)
}

func TestSummarize_MonthlyTotalsConserveKPITotal(t *testing.T) {
	e := fixture(t)
	for _, f := range []Filter{{}, Filter{}.WithYear(2023), Filter{}.WithCategory("Clothing")} {
		s := summarize(t, e, f, Options{})

		sum := decimal.Zero
		for _, m := range s.MonthlyTotals {
			sum = sum.Add(m.TotalAmount)
		}
		assertDecimal(t, s.KPIs.Total.String(), sum, f.String())
	}

	assertDecimal(t, "9155", summarize(t, e, Filter{}, Options{}).KPIs.Total)
}

func TestSummarize_RankingOrder(t *testing.T) {
	e := fixture(t)
	for _, key := range []RankKey{RankByQuantity, RankByRevenue} {
		ranks := summarize(t, e, Filter{}, Options{RankBy: key}).Categories
		require.NotEmpty(t, ranks)

		for i := 1; i < len(ranks); i++ {
			prev, cur := ranks[i-1], ranks[i]
			c := prev.Value.Cmp(cur.Value)
			assert.True(t, c > 0 || (c == 0 && prev.Category < cur.Category),
				"%s: %s(%s) must precede %s(%s)", key, prev.Category, prev.Value, cur.Category, cur.Value)
		}
	}

	ranks := summarize(t, e, Filter{}, Options{}).Categories
	assert.Equal(t, "Clothing", ranks[0].Category)
	assertDecimal(t, "27", ranks[0].Value)
}

func TestSummarize_PivotIsDense(t *testing.T) {
	e := fixture(t)
	p := summarize(t, e, Filter{}, Options{}).Pivot

	assert.Equal(t, []string{"Beauty", "Clothing", "Electronics"}, p.Categories)
	assert.Len(t, p.Months, 11)
	assert.True(t, slices.IsSortedFunc(p.Months, time.Time.Compare))
	require.Len(t, p.Cells, len(p.Categories))

	total := decimal.Zero
	for i, row := range p.Cells {
		require.Len(t, row, len(p.Months), p.Categories[i])
		for _, cell := range row {
			total = total.Add(cell)
		}
	}
	assertDecimal(t, "9155", total)

	// Beauty has no sales in 2023-02
	feb := slices.IndexFunc(p.Months, func(m time.Time) bool { return m.Equal(time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)) })
	require.GreaterOrEqual(t, feb, 0)
	assertDecimal(t, "0", p.Cells[0][feb])
	assertDecimal(t, "2600", p.Cells[1][feb])
}

func TestSummarize_FullRangeMatchesUnfiltered(t *testing.T) {
	e := fixture(t)
	all := summarize(t, e, Filter{}, Options{})
	require.NotNil(t, all.Facets.FirstDate)

	ranged := summarize(t, e, Filter{}.WithDateRange(*all.Facets.FirstDate, *all.Facets.LastDate), Options{})

	assert.Equal(t, all, ranged)
}

func TestSummarize_Filters(t *testing.T) {
	e := fixture(t)

	byYear := summarize(t, e, Filter{}.WithYear(2024), Options{})
	assert.Equal(t, 1, byYear.RowCount)
	assertDecimal(t, "900", byYear.KPIs.Total)

	byCategory := summarize(t, e, Filter{}.WithCategory("Beauty"), Options{})
	assert.Equal(t, 4, byCategory.RowCount)
	assertDecimal(t, "355", byCategory.KPIs.Total)
	require.Len(t, byCategory.Categories, 1)

	start := time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2023, 2, 27, 0, 0, 0, 0, time.UTC)
	byRange := summarize(t, e, Filter{}.WithDateRange(start, end), Options{})
	assert.Equal(t, 4, byRange.RowCount, "range is inclusive on both ends")
	assertDecimal(t, "2700", byRange.KPIs.Total)

	combined := summarize(t, e, Filter{}.WithDateRange(start, end).WithCategory("Clothing"), Options{})
	assertDecimal(t, "2600", combined.KPIs.Total)

	none := summarize(t, e, Filter{}.WithCategory("Toys"), Options{})
	assert.Zero(t, none.RowCount)
	assert.True(t, none.KPIs.Total.IsZero())
	assert.Empty(t, none.MonthlyTotals)
	assert.Empty(t, none.Pivot.Categories)
	assert.Equal(t, []string{"Beauty", "Clothing", "Electronics"}, none.Facets.Categories, "facets ignore filters")
}

func TestSummarize_RangeError(t *testing.T) {
	e := fixture(t)
	start := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2023, 5, 31, 0, 0, 0, 0, time.UTC)

	s, err := Summarize(e, Filter{}.WithDateRange(start, end), Options{})

	var rangeErr *RangeError
	require.ErrorAs(t, err, &rangeErr)
	assert.Nil(t, s)
	assert.Contains(t, err.Error(), "2023-06-01")

	_, err = Summarize(e, Filter{}.WithDateRange(start, start), Options{})
	assert.NoError(t, err, "a single-day range is valid")
}

func TestSummarize_MalformedRows(t *testing.T) {
	e := Derive(loadString(t, scenarioCSV+"2024-02-10,Bags,1,N/A,Male\nlater,Bags,1,10,Male\n"))
	s := summarize(t, e, Filter{}, Options{})

	assertDecimal(t, "175", s.KPIs.Total, "N/A amount is excluded, undated row still counts")
	assert.Equal(t, 4, s.KPIs.Count)
	assert.Equal(t, 5, s.RowCount)

	monthly := decimal.Zero
	for _, m := range s.MonthlyTotals {
		monthly = monthly.Add(m.TotalAmount)
	}
	assertDecimal(t, "165", monthly, "undated rows are not bucketed")

	bags := s.Categories[0]
	assert.Equal(t, "Bags", bags.Category)
	assertDecimal(t, "5", bags.Value, "quantity is still valid when only the amount is malformed")

	dated := summarize(t, e, Filter{}.WithYear(2024), Options{})
	assert.Equal(t, 4, dated.RowCount)

	raw, issues := e.RawView(3)
	assert.Equal(t, "N/A", raw[3])
	assert.Equal(t, []string{ColTotalAmount}, issues)
}

func TestSummarize_MonthlyRevenue(t *testing.T) {
	s := summarize(t, Derive(loadString(t, scenarioCSV)), Filter{}, Options{})

	require.Len(t, s.MonthlyRevenue, 2)
	assert.Equal(t, 2024, s.MonthlyRevenue[0].Year)
	assert.Equal(t, 1, s.MonthlyRevenue[0].Month)
	assertDecimal(t, "125", s.MonthlyRevenue[0].Revenue)
	assertDecimal(t, "270", s.MonthlyRevenue[1].Revenue)
}

func TestSummarize_Deterministic(t *testing.T) {
	e := fixture(t)
	first := summarize(t, e, Filter{}, Options{RankBy: RankByRevenue})
	for range 5 {
		assert.Equal(t, first, summarize(t, e, Filter{}, Options{RankBy: RankByRevenue}))
	}
}

func TestSummarize_Histogram(t *testing.T) {
	e := fixture(t)
	h := summarize(t, e, Filter{}, Options{HistogramBins: 4}).Histogram

	require.Len(t, h, 4)
	assertDecimal(t, "30", h[0].Lower)
	assertDecimal(t, "2000", h[3].Upper)
	count := 0
	for _, b := range h {
		count += b.Count
	}
	assert.Equal(t, 20, count)
	assert.Equal(t, 14, h[0].Count)
	assert.Equal(t, 2, h[2].Count)
	assert.Equal(t, 1, h[3].Count, "the maximum falls in the last bin")

	single := histogram([]decimal.Decimal{dec("5"), dec("5")}, 10)
	require.Len(t, single, 1)
	assert.Equal(t, 2, single[0].Count)
	assert.Empty(t, histogram(nil, 10))
}

func TestSummarize_Distribution(t *testing.T) {
	e := fixture(t)
	d := summarize(t, e, Filter{}, Options{}).Distribution

	require.Len(t, d, 3)
	beauty := d[0]
	assert.Equal(t, "Beauty", beauty.Category)
	assert.Equal(t, 4, beauty.Count)
	// sorted amounts: 30 75 100 150
	assertDecimal(t, "30", beauty.Min)
	assertDecimal(t, "63.75", beauty.Q1)
	assertDecimal(t, "87.5", beauty.Median)
	assertDecimal(t, "112.5", beauty.Q3)
	assertDecimal(t, "150", beauty.Max)
}

func TestParseRankKey(t *testing.T) {
	for in, want := range map[string]RankKey{"": RankByQuantity, "quantity": RankByQuantity, " Revenue ": RankByRevenue} {
		got, err := ParseRankKey(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseRankKey("profit")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "profit"))
}

func TestSummarize_Scatter(t *testing.T) {
	e := Derive(loadString(t, `Date,Product Category,Quantity,Total Amount
2024-01-05,Shoes,2,50.00
2024-01-06,Shoes,x,25.00
2024-02-01,Bags,3,90.00
`))

	s := summarize(t, e, Filter{}, Options{})
	require.Len(t, s.Scatter, 2, "rows without a parsed quantity are not plotted")
	assert.Equal(t, int64(2), s.Scatter[0].Quantity)
	assertDecimal(t, "50", s.Scatter[0].TotalAmount)
	assert.Equal(t, int64(3), s.Scatter[1].Quantity)

	s = summarize(t, e, Filter{}.WithCategory("Bags"), Options{})
	require.Len(t, s.Scatter, 1)
	assertDecimal(t, "90", s.Scatter[0].TotalAmount)
}
