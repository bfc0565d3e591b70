// Package export writes summary tables as CSV files and XLSX workbooks.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"

	"sales-dashboard/internal/models"
)

type TableName string

const (
	TableMonthly        TableName = "monthly"
	TableMonthlyRevenue TableName = "monthly-revenue"
	TableCategories     TableName = "categories"
	TableGender         TableName = "gender"
	TableKPIs           TableName = "kpis"
	TablePivot          TableName = "pivot"

	monthLayout = "2006-01-02"
)

var Tables = []TableName{TableKPIs, TableMonthly, TableMonthlyRevenue, TableCategories, TableGender, TablePivot}

func ParseTableName(s string) (TableName, error) {
	name := TableName(s)
	if !slices.Contains(Tables, name) {
		return "", fmt.Errorf("unknown table %q", s)
	}
	return name, nil
}

// FileName is the suggested download name for a table.
func FileName(table TableName, ext string) string {
	return fmt.Sprintf("%s_sales.%s", table, ext)
}

type monthlyRow struct {
	YearMonth   string `csv:"Year_Month"`
	TotalAmount string `csv:"Total Amount"`
}

type monthlyRevenueRow struct {
	Year    int    `csv:"Year"`
	Month   int    `csv:"Month"`
	Revenue string `csv:"Revenue"`
}

type quantityRow struct {
	Category string `csv:"Product Category"`
	Quantity string `csv:"Quantity"`
}

type revenueRow struct {
	Category string `csv:"Product Category"`
	Revenue  string `csv:"Revenue"`
}

type genderRow struct {
	Gender      string `csv:"Gender"`
	TotalAmount string `csv:"Total Amount"`
}

type metricRow struct {
	Metric string `csv:"Metric"`
	Value  string `csv:"Value"`
}

func money(d decimal.Decimal) string { return d.StringFixed(2) }

// WriteCSV writes one summary table with a header row and no index column.
func WriteCSV(w io.Writer, s *models.Summary, table TableName) error {
	var rows any
	switch table {
	case TableMonthly:
		out := make([]monthlyRow, 0, len(s.MonthlyTotals))
		for _, m := range s.MonthlyTotals {
			out = append(out, monthlyRow{YearMonth: m.YearMonth.Format(monthLayout), TotalAmount: money(m.TotalAmount)})
		}
		rows = out
	case TableMonthlyRevenue:
		out := make([]monthlyRevenueRow, 0, len(s.MonthlyRevenue))
		for _, m := range s.MonthlyRevenue {
			out = append(out, monthlyRevenueRow{Year: m.Year, Month: m.Month, Revenue: money(m.Revenue)})
		}
		rows = out
	case TableCategories:
		rows = categoryRows(s)
	case TableGender:
		out := make([]genderRow, 0, len(s.Gender))
		for _, g := range s.Gender {
			out = append(out, genderRow{Gender: g.Gender, TotalAmount: money(g.TotalAmount)})
		}
		rows = out
	case TableKPIs:
		rows = kpiRows(s.KPIs)
	case TablePivot:
		return writePivotCSV(w, s.Pivot)
	default:
		return fmt.Errorf("unknown table %q", table)
	}

	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("write %s csv: %w", table, err)
	}
	return nil
}

func categoryRows(s *models.Summary) any {
	if s.RankedBy == "revenue" {
		out := make([]revenueRow, 0, len(s.Categories))
		for _, c := range s.Categories {
			out = append(out, revenueRow{Category: c.Category, Revenue: money(c.Value)})
		}
		return out
	}
	out := make([]quantityRow, 0, len(s.Categories))
	for _, c := range s.Categories {
		out = append(out, quantityRow{Category: c.Category, Quantity: c.Value.String()})
	}
	return out
}

func kpiRows(k models.KPISet) []metricRow {
	return []metricRow{
		{Metric: "Total Sales", Value: money(k.Total)},
		{Metric: "Average Sales", Value: money(k.Mean)},
		{Metric: "Max Sales", Value: money(k.Max)},
		{Metric: "Min Sales", Value: money(k.Min)},
		{Metric: "Transactions", Value: strconv.Itoa(k.Count)},
	}
}

// writePivotCSV has one column per month, so the header is built at runtime.
func writePivotCSV(w io.Writer, p models.PivotMatrix) error {
	out := gocsv.NewSafeCSVWriter(csv.NewWriter(w))

	header := make([]string, 0, len(p.Months)+1)
	header = append(header, "Product Category")
	for _, m := range p.Months {
		header = append(header, m.Format(monthLayout))
	}
	if err := out.Write(header); err != nil {
		return fmt.Errorf("write pivot header: %w", err)
	}

	for i, category := range p.Categories {
		record := make([]string, 0, len(p.Months)+1)
		record = append(record, category)
		for _, cell := range p.Cells[i] {
			record = append(record, money(cell))
		}
		if err := out.Write(record); err != nil {
			return fmt.Errorf("write pivot row %q: %w", category, err)
		}
	}

	out.Flush()
	return out.Error()
}
