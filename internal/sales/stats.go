package sales

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"sales-dashboard/internal/models"
)

var (
	quarter      = decimal.RequireFromString("0.25")
	half         = decimal.RequireFromString("0.5")
	threeQuarter = decimal.RequireFromString("0.75")
)

func amounts(rows []Row) []decimal.Decimal {
	out := make([]decimal.Decimal, 0, len(rows))
	for _, r := range rows {
		if r.AmountValid {
			out = append(out, r.TotalAmount)
		}
	}
	return out
}

// histogram splits values into bins of equal width between their min and
// max. The last bin is closed on both ends.
func histogram(values []decimal.Decimal, bins int) []models.HistogramBin {
	if len(values) == 0 {
		return []models.HistogramBin{}
	}
	lo, hi := decimal.Min(values[0], values[1:]...), decimal.Max(values[0], values[1:]...)
	if lo.Equal(hi) {
		return []models.HistogramBin{{Lower: lo, Upper: hi, Count: len(values)}}
	}

	width := hi.Sub(lo).Div(decimal.NewFromInt(int64(bins)))
	result := make([]models.HistogramBin, bins)
	for i := range result {
		result[i].Lower = lo.Add(width.Mul(decimal.NewFromInt(int64(i))))
		result[i].Upper = lo.Add(width.Mul(decimal.NewFromInt(int64(i + 1))))
	}
	result[bins-1].Upper = hi

	for _, v := range values {
		idx := int(v.Sub(lo).Div(width).IntPart())
		idx = min(max(idx, 0), bins-1)
		result[idx].Count++
	}
	return result
}

func distributions(rows []Row) []models.CategoryDistribution {
	groups := make(map[string][]decimal.Decimal)
	for _, r := range rows {
		if r.Category != "" && r.AmountValid {
			groups[r.Category] = append(groups[r.Category], r.TotalAmount)
		}
	}

	result := make([]models.CategoryDistribution, 0, len(groups))
	for category, vals := range groups {
		slices.SortFunc(vals, decimal.Decimal.Cmp)
		result = append(result, models.CategoryDistribution{
			Category: category,
			Min:      vals[0],
			Q1:       quantile(vals, quarter),
			Median:   quantile(vals, half),
			Q3:       quantile(vals, threeQuarter),
			Max:      vals[len(vals)-1],
			Count:    len(vals),
		})
	}
	slices.SortFunc(result, func(a, b models.CategoryDistribution) int {
		return strings.Compare(a.Category, b.Category)
	})
	return result
}

// quantile interpolates linearly between the closest ranks of sorted.
func quantile(sorted []decimal.Decimal, p decimal.Decimal) decimal.Decimal {
	pos := p.Mul(decimal.NewFromInt(int64(len(sorted) - 1)))
	lo := pos.Floor().IntPart()
	if int(lo)+1 >= len(sorted) {
		return sorted[lo]
	}
	frac := pos.Sub(decimal.NewFromInt(lo))
	return sorted[lo].Add(sorted[lo+1].Sub(sorted[lo]).Mul(frac))
}
