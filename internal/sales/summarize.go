package sales

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"sales-dashboard/internal/models"
)

type RankKey string

const (
	RankByQuantity RankKey = "quantity"
	RankByRevenue  RankKey = "revenue"

	DefaultHistogramBins = 10
)

func ParseRankKey(s string) (RankKey, error) {
	switch RankKey(strings.ToLower(strings.TrimSpace(s))) {
	case "", RankByQuantity:
		return RankByQuantity, nil
	case RankByRevenue:
		return RankByRevenue, nil
	default:
		return "", fmt.Errorf("unknown ranking key %q, must be one of: quantity, revenue", s)
	}
}

// Options tune how summaries are built. The zero value ranks by quantity
// with DefaultHistogramBins bins.
type Options struct {
	RankBy        RankKey
	HistogramBins int
}

func (o Options) withDefaults() Options {
	if o.RankBy == "" {
		o.RankBy = RankByQuantity
	}
	if o.HistogramBins <= 0 {
		o.HistogramBins = DefaultHistogramBins
	}
	return o
}

// Summarize computes every summary table over the rows of e passing f.
// It is a pure function of its arguments.
func Summarize(e *EnrichedTable, f Filter, opts Options) (*models.Summary, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	matched := make([]Row, 0, len(e.rows))
	for _, r := range e.rows {
		if f.Match(r) {
			matched = append(matched, r)
		}
	}

	return &models.Summary{
		RankedBy:       string(opts.RankBy),
		RowCount:       len(matched),
		KPIs:           kpis(matched),
		MonthlyTotals:  monthlyTotals(matched),
		MonthlyRevenue: monthlyRevenue(matched),
		Categories:     rankCategories(matched, opts.RankBy),
		Pivot:          pivot(matched),
		Gender:         genderTotals(matched),
		Histogram:      histogram(amounts(matched), opts.HistogramBins),
		Distribution:   distributions(matched),
		Scatter:        scatter(matched),
		Facets:         facets(e.rows),
	}, nil
}

// scatter lists (quantity, total amount) for rows where both parsed, in
// source order.
func scatter(rows []Row) []models.ScatterPoint {
	points := make([]models.ScatterPoint, 0, len(rows))
	for _, r := range rows {
		if r.QuantityValid && r.AmountValid {
			points = append(points, models.ScatterPoint{Quantity: r.Quantity, TotalAmount: r.TotalAmount})
		}
	}
	return points
}

func kpis(rows []Row) models.KPISet {
	var k models.KPISet
	for _, r := range rows {
		if !r.AmountValid {
			continue
		}
		if k.Count == 0 {
			k.Max, k.Min = r.TotalAmount, r.TotalAmount
		}
		k.Total = k.Total.Add(r.TotalAmount)
		if r.TotalAmount.GreaterThan(k.Max) {
			k.Max = r.TotalAmount
		}
		if r.TotalAmount.LessThan(k.Min) {
			k.Min = r.TotalAmount
		}
		k.Count++
	}
	if k.Count > 0 {
		k.Mean = k.Total.Div(decimal.NewFromInt(int64(k.Count)))
	}
	return k
}

func monthlyTotals(rows []Row) []models.MonthlyTotal {
	sums := make(map[time.Time]decimal.Decimal)
	for _, r := range rows {
		if r.DateValid && r.AmountValid {
			sums[r.YearMonth] = sums[r.YearMonth].Add(r.TotalAmount)
		}
	}

	result := make([]models.MonthlyTotal, 0, len(sums))
	for month, total := range sums {
		result = append(result, models.MonthlyTotal{YearMonth: month, TotalAmount: total})
	}
	slices.SortFunc(result, func(a, b models.MonthlyTotal) int {
		return a.YearMonth.Compare(b.YearMonth)
	})
	return result
}

func monthlyRevenue(rows []Row) []models.MonthlyRevenue {
	type key struct{ year, month int }
	sums := make(map[key]decimal.Decimal)
	for _, r := range rows {
		if r.DateValid && r.RevenueValid {
			k := key{r.Year, r.Month}
			sums[k] = sums[k].Add(r.Revenue)
		}
	}

	result := make([]models.MonthlyRevenue, 0, len(sums))
	for k, rev := range sums {
		result = append(result, models.MonthlyRevenue{Year: k.year, Month: k.month, Revenue: rev})
	}
	slices.SortFunc(result, func(a, b models.MonthlyRevenue) int {
		return cmp.Or(cmp.Compare(a.Year, b.Year), cmp.Compare(a.Month, b.Month))
	})
	return result
}

// rankCategories orders categories by aggregated value descending, breaking
// ties by category name ascending.
func rankCategories(rows []Row, key RankKey) []models.CategoryRank {
	sums := make(map[string]decimal.Decimal)
	for _, r := range rows {
		if r.Category == "" {
			continue
		}
		switch key {
		case RankByRevenue:
			if r.RevenueValid {
				sums[r.Category] = sums[r.Category].Add(r.Revenue)
			}
		default:
			if r.QuantityValid {
				sums[r.Category] = sums[r.Category].Add(decimal.NewFromInt(r.Quantity))
			}
		}
	}

	result := make([]models.CategoryRank, 0, len(sums))
	for category, value := range sums {
		result = append(result, models.CategoryRank{Category: category, Value: value})
	}
	slices.SortFunc(result, func(a, b models.CategoryRank) int {
		return cmp.Or(b.Value.Cmp(a.Value), strings.Compare(a.Category, b.Category))
	})
	return result
}

func pivot(rows []Row) models.PivotMatrix {
	type key struct {
		category string
		month    time.Time
	}
	sums := make(map[key]decimal.Decimal)
	categorySet := make(map[string]struct{})
	monthSet := make(map[time.Time]struct{})
	for _, r := range rows {
		if r.Category == "" || !r.DateValid || !r.AmountValid {
			continue
		}
		k := key{r.Category, r.YearMonth}
		sums[k] = sums[k].Add(r.TotalAmount)
		categorySet[r.Category] = struct{}{}
		monthSet[r.YearMonth] = struct{}{}
	}

	categories := sortedKeys(categorySet, strings.Compare)
	months := sortedKeys(monthSet, time.Time.Compare)

	cells := make([][]decimal.Decimal, len(categories))
	for i, c := range categories {
		cells[i] = make([]decimal.Decimal, len(months))
		for j, m := range months {
			// absent combinations read as the zero Decimal
			cells[i][j] = sums[key{c, m}]
		}
	}
	return models.PivotMatrix{Categories: categories, Months: months, Cells: cells}
}

func genderTotals(rows []Row) []models.GenderTotal {
	sums := make(map[string]decimal.Decimal)
	for _, r := range rows {
		if r.Gender != "" && r.AmountValid {
			sums[r.Gender] = sums[r.Gender].Add(r.TotalAmount)
		}
	}

	result := make([]models.GenderTotal, 0, len(sums))
	for gender, total := range sums {
		result = append(result, models.GenderTotal{Gender: gender, TotalAmount: total})
	}
	slices.SortFunc(result, func(a, b models.GenderTotal) int {
		return strings.Compare(a.Gender, b.Gender)
	})
	return result
}

func facets(rows []Row) models.Facets {
	years := make(map[int]struct{})
	categories := make(map[string]struct{})
	var first, last time.Time
	for _, r := range rows {
		if r.Category != "" {
			categories[r.Category] = struct{}{}
		}
		if !r.DateValid {
			continue
		}
		years[r.Year] = struct{}{}
		if first.IsZero() || r.Date.Before(first) {
			first = r.Date
		}
		if last.IsZero() || r.Date.After(last) {
			last = r.Date
		}
	}

	f := models.Facets{
		Years:      sortedKeys(years, cmp.Compare[int]),
		Categories: sortedKeys(categories, strings.Compare),
	}
	if !first.IsZero() {
		f.FirstDate, f.LastDate = &first, &last
	}
	return f
}

func sortedKeys[K comparable](set map[K]struct{}, compare func(a, b K) int) []K {
	keys := make([]K, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compare)
	return keys
}
